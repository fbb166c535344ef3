// backend-go/internal/api/handlers/inventory_handler.go
package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/inventariate/backend-go/internal/domain"
	"github.com/andresuchdata/inventariate/backend-go/internal/drive"
	"github.com/andresuchdata/inventariate/backend-go/internal/pipeline"
	"github.com/andresuchdata/inventariate/backend-go/internal/pipeline/inventory"
	"github.com/andresuchdata/inventariate/backend-go/internal/repository"
	"github.com/andresuchdata/inventariate/backend-go/internal/service"
	"github.com/andresuchdata/inventariate/backend-go/internal/sheet"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	processedName   = "inventario_calculado.xlsx"
	templateName    = "plantilla_inventario.xlsx"
)

type InventoryHandler struct {
	service        *service.InventoryService
	maxUploadBytes int64
}

func NewInventoryHandler(svc *service.InventoryService, maxUploadBytes int64) *InventoryHandler {
	return &InventoryHandler{service: svc, maxUploadBytes: maxUploadBytes}
}

// UploadResponse is returned by both upload endpoints.
type UploadResponse struct {
	SessionKey string                `json:"session_key"`
	FileName   string                `json:"file_name"`
	Summary    *inventory.RunSummary `json:"summary"`
}

// Upload runs the pipeline synchronously on one uploaded sheet.
func (h *InventoryHandler) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	header, err := formFile(c, "file", "archivo")
	if err != nil {
		writeError(c, err)
		return
	}
	data, err := readUpload(header)
	if err != nil {
		writeError(c, err)
		return
	}

	job := jobFromRequest(c)
	job.FileName, job.Data = header.Filename, data

	res, err := h.service.Process(c.Request.Context(), job)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, UploadResponse{SessionKey: res.SessionKey, FileName: job.FileName, Summary: res.Summary})
}

// DriveUpload processes a spreadsheet stored in Google Drive.
func (h *InventoryHandler) DriveUpload(c *gin.Context) {
	fileID := strings.TrimSpace(firstNonEmpty(c.Query("fileId"), c.PostForm("fileId")))
	if fileID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fileId parameter is required"})
		return
	}

	res, err := h.service.ImportFromDrive(c.Request.Context(), fileID, jobFromRequest(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, UploadResponse{SessionKey: res.SessionKey, FileName: res.Job.FileName, Summary: res.Summary})
}

func (h *InventoryHandler) Dashboard(c *gin.Context) {
	d, err := h.service.Dashboard(c.Request.Context(), c.Param("key"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Report serves the session report as PDF, or HTML with ?format=html.
func (h *InventoryHandler) Report(c *gin.Context) {
	key := c.Param("key")
	switch strings.ToLower(c.DefaultQuery("format", "pdf")) {
	case "html":
		page, err := h.service.ReportHTML(c.Request.Context(), key)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", page)
	case "pdf":
		pdf, err := h.service.ReportPDF(c.Request.Context(), key)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="reporte_%s.pdf"`, key))
		c.Data(http.StatusOK, "application/pdf", pdf)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be pdf or html"})
	}
}

func (h *InventoryHandler) ProcessedWorkbook(c *gin.Context) {
	data, err := h.service.ProcessedWorkbook(c.Request.Context(), c.Param("key"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+processedName+`"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (h *InventoryHandler) DeleteSession(c *gin.Context) {
	if err := h.service.DeleteSession(c.Request.Context(), c.Param("key")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *InventoryHandler) Template(c *gin.Context) {
	data, err := h.service.Template()
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+templateName+`"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// History lists recorded balances; filters are username, year and limit.
func (h *InventoryHandler) History(c *gin.Context) {
	filter := domain.HistoryFilter{
		Username: strings.TrimSpace(c.Query("username")),
		Year:     parseNonNegativeInt(c.Query("year")),
		Limit:    parsePositiveIntWithDefault(c.Query("limit"), 100),
	}
	records, err := h.service.History(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func jobFromRequest(c *gin.Context) pipeline.Job {
	return pipeline.Job{
		Budget:         firstNonEmpty(c.PostForm("budget"), c.PostForm("presupuesto"), c.Query("budget")),
		GenerateCharts: parseBool(firstNonEmpty(c.PostForm("charts"), c.PostForm("graficos"), c.Query("charts"))),
		Username:       strings.TrimSpace(firstNonEmpty(c.PostForm("username"), c.Query("username"))),
	}
}

func formFile(c *gin.Context, names ...string) (*multipart.FileHeader, error) {
	for _, name := range names {
		header, err := c.FormFile(name)
		if err == nil {
			return header, nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
	}
	return nil, service.ErrNoFile
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

// writeError maps domain errors to status codes. Unknown errors are 500
// and their detail is only logged.
func writeError(c *gin.Context, err error) {
	var maxErr *http.MaxBytesError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &maxErr):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrNoFile),
		errors.Is(err, inventory.ErrUnreadableInput),
		errors.Is(err, sheet.ErrUnsupportedFormat):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, drive.ErrFileNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrDriveDisabled):
		status = http.StatusServiceUnavailable
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		message = "internal server error"
	}
	c.JSON(status, gin.H{"error": message})
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes", "si", "sí":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parsePositiveIntWithDefault(value string, fallback int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && v > 0 {
		return v
	}
	return fallback
}

func parseNonNegativeInt(value string) int {
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && v >= 0 {
		return v
	}
	return 0
}
