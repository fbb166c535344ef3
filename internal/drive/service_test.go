package drive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := newService(context.Background(),
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"),
	)
	require.NoError(t, err)
	return s
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestDownloadFile_BinaryFile(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/files/f1" && r.URL.Query().Get("alt") == "media":
			_, _ = w.Write([]byte("Fecha,Ventas\n2025-03-01,4\n"))
		case r.URL.Path == "/files/f1":
			writeJSON(w, map[string]string{"id": "f1", "name": "inventario.csv", "mimeType": "text/csv"})
		default:
			http.NotFound(w, r)
		}
	})

	name, data, err := s.DownloadFile(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, "inventario.csv", name)
	assert.Equal(t, "Fecha,Ventas\n2025-03-01,4\n", string(data))
}

func TestDownloadFile_ExportsGoogleSheet(t *testing.T) {
	var exportedAs string
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/files/sheet1/export":
			exportedAs = r.URL.Query().Get("mimeType")
			_, _ = w.Write([]byte("xlsx-bytes"))
		case "/files/sheet1":
			writeJSON(w, map[string]string{"id": "sheet1", "name": "Inventario", "mimeType": spreadsheetMimeType})
		default:
			http.NotFound(w, r)
		}
	})

	name, data, err := s.DownloadFile(context.Background(), "sheet1")
	require.NoError(t, err)
	assert.Equal(t, "Inventario.xlsx", name)
	assert.Equal(t, "xlsx-bytes", string(data))
	assert.Equal(t, xlsxMimeType, exportedAs)
}

func TestDownloadFile_NotFound(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"File not found"}}`))
	})

	_, _, err := s.DownloadFile(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestListFiles(t *testing.T) {
	var query string
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("q")
		writeJSON(w, map[string]any{"files": []map[string]string{
			{"id": "a", "name": "enero.xlsx", "mimeType": xlsxMimeType, "size": "120"},
		}})
	})

	files, err := s.ListFiles(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "enero.xlsx", files[0].Name)
	assert.Equal(t, int64(120), files[0].Size)
	assert.Equal(t, "'root' in parents and trashed=false", query)
}

func TestFindFolderByPath(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		switch {
		case q == "'root' in parents and name='reportes' and mimeType='"+folderMimeType+"' and trashed=false":
			writeJSON(w, map[string]any{"files": []map[string]string{{"id": "r1", "name": "reportes"}}})
		default:
			writeJSON(w, map[string]any{"files": []map[string]string{}})
		}
	})

	id, err := s.FindFolderByPath(context.Background(), "/reportes/")
	require.NoError(t, err)
	assert.Equal(t, "r1", id)

	_, err = s.FindFolderByPath(context.Background(), "reportes/2025")
	assert.Error(t, err)

	id, err = s.FindFolderByPath(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "root", id)
}

func TestNewService_RequiresCredentials(t *testing.T) {
	_, err := NewService(context.Background(), " ")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewService(context.Background(), "{not json")
	assert.Error(t, err)
}

func TestEscapeQuery(t *testing.T) {
	assert.Equal(t, `it\'s`, escapeQuery("it's"))
}
