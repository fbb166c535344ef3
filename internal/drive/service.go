package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	folderMimeType      = "application/vnd.google-apps.folder"
	spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"
	xlsxMimeType        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	// ErrFileNotFound is returned when Drive has no file with the given ID.
	ErrFileNotFound = errors.New("drive: file not found")
	// ErrNotConfigured is returned by callers that have no Drive credentials.
	ErrNotConfigured = errors.New("drive: credentials not configured")
)

type Service struct {
	srv *drive.Service
}

// NewService builds a read-only Drive client from a service account key.
func NewService(ctx context.Context, credentialsJSON string) (*Service, error) {
	if strings.TrimSpace(credentialsJSON) == "" {
		return nil, ErrNotConfigured
	}
	config, err := google.JWTConfigFromJSON([]byte(credentialsJSON), drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse drive credentials: %w", err)
	}
	return newService(ctx, option.WithHTTPClient(config.Client(ctx)))
}

func newService(ctx context.Context, opts ...option.ClientOption) (*Service, error) {
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive client: %w", err)
	}
	return &Service{srv: srv}, nil
}

type File struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	ModifiedTime string `json:"modifiedTime,omitempty"`
	Size         int64  `json:"size,string,omitempty"`
}

// ListFiles lists the non-trashed children of a folder; "" means root.
func (s *Service) ListFiles(ctx context.Context, folderID string) ([]*File, error) {
	if folderID == "" {
		folderID = "root"
	}

	result, err := s.srv.Files.List().
		Q(fmt.Sprintf("'%s' in parents and trashed=false", escapeQuery(folderID))).
		Fields("files(id, name, mimeType, modifiedTime, size)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list drive files: %w", err)
	}

	files := make([]*File, 0, len(result.Files))
	for _, f := range result.Files {
		files = append(files, &File{
			ID:           f.Id,
			Name:         f.Name,
			MimeType:     f.MimeType,
			ModifiedTime: f.ModifiedTime,
			Size:         f.Size,
		})
	}
	return files, nil
}

// FindFolderByPath walks a slash separated folder path from root.
func (s *Service) FindFolderByPath(ctx context.Context, folderPath string) (string, error) {
	currentID := "root"
	for _, folder := range strings.Split(folderPath, "/") {
		if folder == "" {
			continue
		}

		result, err := s.srv.Files.List().
			Q(fmt.Sprintf("'%s' in parents and name='%s' and mimeType='%s' and trashed=false",
				escapeQuery(currentID), escapeQuery(folder), folderMimeType)).
			Fields("files(id, name)").
			Context(ctx).
			Do()
		if err != nil {
			return "", fmt.Errorf("find folder %s: %w", folder, err)
		}
		if len(result.Files) == 0 {
			return "", fmt.Errorf("folder not found: %s", folder)
		}
		currentID = result.Files[0].Id
	}
	return currentID, nil
}

// DownloadFile fetches a file's name and content. Native Google Sheets are
// exported as xlsx so the name always carries an extension the sheet reader
// understands.
func (s *Service) DownloadFile(ctx context.Context, fileID string) (string, []byte, error) {
	meta, err := s.srv.Files.Get(fileID).Fields("id, name, mimeType").Context(ctx).Do()
	if err != nil {
		return "", nil, mapError(fileID, err)
	}

	var resp *http.Response
	name := meta.Name
	if meta.MimeType == spreadsheetMimeType {
		resp, err = s.srv.Files.Export(fileID, xlsxMimeType).Context(ctx).Download()
		if path.Ext(name) == "" {
			name += ".xlsx"
		}
	} else {
		resp, err = s.srv.Files.Get(fileID).Context(ctx).Download()
	}
	if err != nil {
		return "", nil, mapError(fileID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("read drive file %s: %w", fileID, err)
	}
	return name, data, nil
}

func mapError(fileID string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	}
	return fmt.Errorf("download drive file %s: %w", fileID, err)
}

func escapeQuery(s string) string {
	return strings.ReplaceAll(s, "'", `\'`)
}
