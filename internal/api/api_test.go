package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/inventariate/backend-go/internal/api/handlers"
	"github.com/andresuchdata/inventariate/backend-go/internal/domain"
	"github.com/andresuchdata/inventariate/backend-go/internal/drive"
	"github.com/andresuchdata/inventariate/backend-go/internal/pipeline"
	"github.com/andresuchdata/inventariate/backend-go/internal/report"
	"github.com/andresuchdata/inventariate/backend-go/internal/service"
	"github.com/andresuchdata/inventariate/backend-go/internal/storage"
)

const sampleCSV = "Nombre Producto,Fecha,Ventas,Gastos(compras),Stock Final,Ventas Totales,Días,Tiempo_reposicion\n" +
	"Widget,2025-03-01,10,500,40,300,30,7\n" +
	"Gadget,2025-03-02,5,1000,20,150,30,7\n"

func init() {
	gin.SetMode(gin.TestMode)
}

type stubPDF struct{}

func (stubPDF) RenderPDF(context.Context, string) ([]byte, error) {
	return []byte("%PDF-1.4"), nil
}

type stubRuns struct {
	runs []pipeline.PipelineRun
}

func (s *stubRuns) RecordRun(_ context.Context, run *pipeline.PipelineRun) error {
	s.runs = append(s.runs, *run)
	return nil
}

func (s *stubRuns) ListRuns(context.Context, int) ([]pipeline.PipelineRun, error) {
	return s.runs, nil
}

func (s *stubRuns) GetRun(_ context.Context, key string) (*pipeline.PipelineRun, error) {
	for i := range s.runs {
		if s.runs[i].SessionKey == key {
			return &s.runs[i], nil
		}
	}
	return nil, nil
}

type stubDrive struct{}

func (stubDrive) ListFiles(_ context.Context, folderID string) ([]*drive.File, error) {
	return []*drive.File{{ID: "f1", Name: "inventario.csv", MimeType: "text/csv"}}, nil
}

func (stubDrive) FindFolderByPath(_ context.Context, p string) (string, error) {
	if p == "reportes" {
		return "r1", nil
	}
	return "", errors.New("folder not found: " + p)
}

func (stubDrive) DownloadFile(_ context.Context, fileID string) (string, []byte, error) {
	if fileID != "f1" {
		return "", nil, drive.ErrFileNotFound
	}
	return "inventario.csv", []byte(sampleCSV), nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *stubRuns) {
	t.Helper()
	runs := &stubRuns{}
	svc := service.NewInventoryService(service.Dependencies{
		Store:    storage.NewArtifactStore(storage.NewMemoryStorage()),
		Runs:     runs,
		Renderer: report.NewRenderer(stubPDF{}, 10),
		Drive:    stubDrive{},
	})
	router := NewRouter(&Services{Inventory: svc, Runs: runs, Drive: stubDrive{}}, RouterOptions{MaxUploadBytes: 1 << 20})
	return router, runs
}

func multipartUpload(t *testing.T, field, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if field != "" {
		part, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func upload(t *testing.T, router *gin.Engine) handlers.UploadResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartUpload(t, "archivo", "inventario.csv", sampleCSV,
		map[string]string{"presupuesto": "1000", "charts": "true"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp handlers.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestUploadAndDashboard(t *testing.T) {
	router, runs := newTestRouter(t)
	resp := upload(t, router)

	assert.NotEmpty(t, resp.SessionKey)
	assert.Equal(t, "inventario.csv", resp.FileName)
	require.NotNil(t, resp.Summary)
	assert.Equal(t, -485.0, resp.Summary.FinalBalance)
	assert.True(t, resp.Summary.GenerateCharts)
	require.Len(t, runs.runs, 1)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+resp.SessionKey+"/dashboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var d service.Dashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, "widget", d.Summary.BestSeller)
	assert.Len(t, d.SalesByProductMonth, 2)
}

func TestUpload_BadRequests(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartUpload(t, "", "", "", map[string]string{"budget": "10"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no file provided")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, multipartUpload(t, "file", "notes.pdf", "%PDF", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, multipartUpload(t, "file", "empty.csv", "\n\n", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)
	key := upload(t, router).SessionKey

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+key+"/report", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+key+"/report?format=html", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<svg")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+key+"/report?format=docx", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+key+"/processed.xlsx", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "inventario_calculado.xlsx")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+key, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+key+"/dashboard", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
}

func TestUnknownSession(t *testing.T) {
	router, _ := newTestRouter(t)
	for _, path := range []string{
		"/api/v1/sessions/nope/dashboard",
		"/api/v1/sessions/4b0c7a5e-3f55-4a0b-9f4b-0f6c1f1d2e3a/report",
		"/api/v1/sessions/4b0c7a5e-3f55-4a0b-9f4b-0f6c1f1d2e3a/processed.xlsx",
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestTemplateAndHistory(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/template", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "plantilla_inventario.xlsx")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/history?username=ana", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var records []domain.BalanceRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Empty(t, records)
}

func TestDriveEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/drive/uploads?fileId=f1&budget=2000", nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp handlers.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 515.0, resp.Summary.FinalBalance)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/drive/uploads?fileId=zzz", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/drive/uploads", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/drive/files?path=reportes", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "inventario.csv")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/drive/files?path=otros", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunsEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)
	key := upload(t, router).SessionKey

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []pipeline.PipelineRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunCompleted, runs[0].Status)
	assert.WithinDuration(t, time.Now(), runs[0].CompletedAt, time.Minute)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs?status=failed", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs?status=running", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+key, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	origins, all := normalizeAllowedOrigins([]string{"http://a.com, http://b.com", " "})
	assert.False(t, all)
	assert.Equal(t, []string{"http://a.com", "http://b.com"}, origins)

	_, all = normalizeAllowedOrigins([]string{"*"})
	assert.True(t, all)
}
