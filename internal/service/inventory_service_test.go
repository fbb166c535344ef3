package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/inventariate/backend-go/internal/domain"
	"github.com/andresuchdata/inventariate/backend-go/internal/pipeline"
	"github.com/andresuchdata/inventariate/backend-go/internal/pipeline/inventory"
	"github.com/andresuchdata/inventariate/backend-go/internal/report"
	"github.com/andresuchdata/inventariate/backend-go/internal/storage"
)

const (
	testSessionKey = "4b0c7a5e-3f55-4a0b-9f4b-0f6c1f1d2e3a"
	sampleCSV      = "Nombre Producto,Fecha,Ventas,Gastos(compras),Stock Final,Ventas Totales,Días,Tiempo_reposicion\n" +
		"Widget,2025-03-01,10,500,40,300,30,7\n" +
		"Gadget,2025-03-02,5,1000,20,150,30,7\n"
)

type fakeHistory struct {
	mu       sync.Mutex
	username string
	records  []domain.BalanceRecord
}

func (f *fakeHistory) RecordBalance(_ context.Context, username string, record *domain.BalanceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.username = username
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeHistory) ListHistory(_ context.Context, _ domain.HistoryFilter) ([]domain.BalanceRecord, error) {
	return f.records, nil
}

type fakeRuns struct {
	mu   sync.Mutex
	runs []pipeline.PipelineRun
}

func (f *fakeRuns) RecordRun(_ context.Context, run *pipeline.PipelineRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, *run)
	return nil
}

type fakeDrive struct {
	name string
	data []byte
	err  error
}

func (f *fakeDrive) DownloadFile(_ context.Context, _ string) (string, []byte, error) {
	return f.name, f.data, f.err
}

type fakePDF struct{}

func (fakePDF) RenderPDF(_ context.Context, html string) ([]byte, error) {
	return []byte("%PDF " + html[:15]), nil
}

type fixture struct {
	svc     *InventoryService
	mem     *storage.MemoryStorage
	history *fakeHistory
	runs    *fakeRuns
}

func newFixture(t *testing.T, drive DriveDownloader) *fixture {
	t.Helper()
	f := &fixture{mem: storage.NewMemoryStorage(), history: &fakeHistory{}, runs: &fakeRuns{}}
	f.svc = NewInventoryService(Dependencies{
		Store:    storage.NewArtifactStore(f.mem),
		History:  f.history,
		Runs:     f.runs,
		Renderer: report.NewRenderer(fakePDF{}, 5),
		Drive:    drive,
	})
	f.svc.newSessionKey = func() string { return testSessionKey }
	f.svc.now = func() time.Time { return time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC) }
	return f
}

func sampleJob() pipeline.Job {
	return pipeline.Job{FileName: "inventario.csv", Data: []byte(sampleCSV), Budget: "1000", GenerateCharts: true, Username: "ana"}
}

func TestProcess_StoresArtifactsAndLogs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	res, err := f.svc.Process(ctx, sampleJob())
	require.NoError(t, err)
	assert.Equal(t, testSessionKey, res.SessionKey)
	assert.Equal(t, 15.0, res.Summary.TotalSales)
	assert.Equal(t, 1500.0, res.Summary.TotalExpenses)
	assert.Equal(t, -485.0, res.Summary.FinalBalance)
	assert.NotEmpty(t, res.Summary.Alert)
	assert.Equal(t, "widget", res.Summary.BestSeller)

	objects, err := f.mem.ListObjects(ctx, storage.SessionPrefix(testSessionKey))
	require.NoError(t, err)
	assert.Len(t, objects, len(inventory.DocumentNames)+1)

	require.Len(t, f.runs.runs, 1)
	assert.Equal(t, domain.RunCompleted, f.runs.runs[0].Status)
	assert.Equal(t, 2, f.runs.runs[0].TotalRows)
	assert.Nil(t, f.runs.runs[0].ErrorMessage)

	require.Len(t, f.history.records, 1)
	assert.Equal(t, "ana", f.history.username)
	assert.Equal(t, "March", f.history.records[0].Month)
	assert.Equal(t, 2025, f.history.records[0].Year)
	assert.Equal(t, -485.0, f.history.records[0].Balance)
}

func TestProcess_NoUsernameSkipsHistory(t *testing.T) {
	f := newFixture(t, nil)
	job := sampleJob()
	job.Username = ""

	_, err := f.svc.Process(context.Background(), job)
	require.NoError(t, err)
	assert.Empty(t, f.history.records)
}

func TestProcess_HistoryFallsBackToCurrentMonth(t *testing.T) {
	f := newFixture(t, nil)
	job := sampleJob()
	job.Data = []byte("Ventas,Gastos\n10,4\n")

	_, err := f.svc.Process(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, f.history.records, 1)
	assert.Equal(t, "April", f.history.records[0].Month)
}

func TestProcess_Failures(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Process(context.Background(), pipeline.Job{FileName: "x.csv"})
	assert.ErrorIs(t, err, ErrNoFile)
	assert.Empty(t, f.runs.runs)

	_, err = f.svc.Process(context.Background(), pipeline.Job{FileName: "x.pdf", Data: []byte("%PDF")})
	require.Error(t, err)
	require.Len(t, f.runs.runs, 1)
	assert.Equal(t, domain.RunFailed, f.runs.runs[0].Status)
	require.NotNil(t, f.runs.runs[0].ErrorMessage)

	_, err = f.svc.Process(context.Background(), pipeline.Job{FileName: "blank.csv", Data: []byte(" , \n")})
	assert.ErrorIs(t, err, inventory.ErrUnreadableInput)
}

// rejectingStorage fails every put whose key has the given suffix.
type rejectingStorage struct {
	*storage.MemoryStorage
	suffix string
}

func (r rejectingStorage) PutObject(ctx context.Context, key string, data []byte) error {
	if strings.HasSuffix(key, r.suffix) {
		return fmt.Errorf("put %s: bucket unavailable", key)
	}
	return r.MemoryStorage.PutObject(ctx, key, data)
}

func TestProcess_StorageFailureLeavesNoArtifacts(t *testing.T) {
	ctx := context.Background()

	for _, suffix := range []string{".xlsx", "run_summary.json"} {
		t.Run(suffix, func(t *testing.T) {
			f := newFixture(t, nil)
			backend := rejectingStorage{MemoryStorage: f.mem, suffix: suffix}
			f.svc.store = storage.NewArtifactStore(backend)

			_, err := f.svc.Process(ctx, sampleJob())
			require.Error(t, err)

			objects, err := f.mem.ListObjects(ctx, "sessions/")
			require.NoError(t, err)
			assert.Empty(t, objects)

			require.Len(t, f.runs.runs, 1)
			assert.Equal(t, domain.RunFailed, f.runs.runs[0].Status)
			assert.Empty(t, f.history.records)
		})
	}
}

func TestProcess_ConcurrentRunsAreIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.svc.newSessionKey = uuid.NewString

	const runs = 8
	results := make([]*pipeline.JobResult, runs)
	errs := make([]error, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			job := sampleJob()
			job.Budget = fmt.Sprintf("%d", 1000+i*100)
			results[i], errs[i] = f.svc.Process(ctx, job)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, runs)
	for i := 0; i < runs; i++ {
		require.NoError(t, errs[i])
		key := results[i].SessionKey
		require.False(t, seen[key], "session key reused: %s", key)
		seen[key] = true

		raw, err := f.mem.GetObject(ctx, storage.DocumentKey(key, inventory.DocRunSummary))
		require.NoError(t, err)
		summary, err := inventory.DecodeRunSummary(raw)
		require.NoError(t, err)

		budget := float64(1000 + i*100)
		assert.Equal(t, budget, summary.Budget)
		assert.Equal(t, budget-1485, summary.FinalBalance)
		assert.Equal(t, summary.FinalBalance, results[i].Summary.FinalBalance)
	}
	assert.Len(t, f.runs.runs, runs)
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	_, err := f.svc.Process(ctx, sampleJob())
	require.NoError(t, err)

	d, err := f.svc.Dashboard(ctx, testSessionKey)
	require.NoError(t, err)
	assert.Equal(t, testSessionKey, d.SessionKey)
	assert.Equal(t, -485.0, d.Summary.FinalBalance)
	assert.Len(t, d.SalesByProductMonth, 2)
	assert.Len(t, d.ExpensesByMonth, 1)
	assert.Len(t, d.StockSummary, 2)
}

func TestSessionLookups_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.svc.Dashboard(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = f.svc.Dashboard(ctx, testSessionKey)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = f.svc.ProcessedWorkbook(ctx, testSessionKey)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = f.svc.ReportHTML(ctx, testSessionKey)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestReportsAndWorkbook(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	_, err := f.svc.Process(ctx, sampleJob())
	require.NoError(t, err)

	html, err := f.svc.ReportHTML(ctx, testSessionKey)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<svg")

	pdf, err := f.svc.ReportPDF(ctx, testSessionKey)
	require.NoError(t, err)
	assert.Contains(t, string(pdf), "%PDF")

	xlsx, err := f.svc.ProcessedWorkbook(ctx, testSessionKey)
	require.NoError(t, err)
	assert.NotEmpty(t, xlsx)

	tmpl, err := f.svc.Template()
	require.NoError(t, err)
	assert.NotEmpty(t, tmpl)
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	_, err := f.svc.Process(ctx, sampleJob())
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteSession(ctx, testSessionKey))
	_, err = f.svc.Summary(ctx, testSessionKey)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestImportFromDrive(t *testing.T) {
	ctx := context.Background()

	_, err := newFixture(t, nil).svc.ImportFromDrive(ctx, "f1", pipeline.Job{})
	assert.ErrorIs(t, err, ErrDriveDisabled)

	f := newFixture(t, &fakeDrive{name: "drive.csv", data: []byte(sampleCSV)})
	res, err := f.svc.ImportFromDrive(ctx, "f1", pipeline.Job{Budget: "2000"})
	require.NoError(t, err)
	assert.Equal(t, "drive.csv", res.Job.FileName)
	assert.Equal(t, 515.0, res.Summary.FinalBalance)
	assert.Empty(t, res.Summary.Alert)

	boom := errors.New("drive down")
	_, err = newFixture(t, &fakeDrive{err: boom}).svc.ImportFromDrive(ctx, "f1", pipeline.Job{})
	assert.ErrorIs(t, err, boom)
}

func TestHistory(t *testing.T) {
	svc := NewInventoryService(Dependencies{Store: storage.NewArtifactStore(storage.NewMemoryStorage())})
	records, err := svc.History(context.Background(), domain.HistoryFilter{Username: "ana"})
	require.NoError(t, err)
	assert.Empty(t, records)
}
