// backend-go/internal/service/inventory_service.go
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/inventariate/backend-go/internal/cache"
	"github.com/andresuchdata/inventariate/backend-go/internal/domain"
	"github.com/andresuchdata/inventariate/backend-go/internal/pipeline"
	"github.com/andresuchdata/inventariate/backend-go/internal/pipeline/inventory"
	"github.com/andresuchdata/inventariate/backend-go/internal/report"
	"github.com/andresuchdata/inventariate/backend-go/internal/repository"
	"github.com/andresuchdata/inventariate/backend-go/internal/sheet"
	"github.com/andresuchdata/inventariate/backend-go/internal/storage"
)

var (
	// ErrSessionNotFound means no artifacts exist under the session key.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNoFile means the upload carried no file content.
	ErrNoFile = errors.New("no file provided")
	// ErrDriveDisabled means no Drive client is configured.
	ErrDriveDisabled = errors.New("drive import is not configured")
)

// RunRecorder persists the run log.
type RunRecorder interface {
	RecordRun(ctx context.Context, run *pipeline.PipelineRun) error
}

// DriveDownloader fetches a file by ID from Google Drive.
type DriveDownloader interface {
	DownloadFile(ctx context.Context, fileID string) (string, []byte, error)
}

// Dependencies wires the collaborators of InventoryService. History, Runs
// and Drive are optional.
type Dependencies struct {
	Pipeline *inventory.Pipeline
	Store    *storage.ArtifactStore
	Cache    cache.RunSummaryCache
	History  repository.HistoryRepository
	Runs     RunRecorder
	Renderer *report.Renderer
	Drive    DriveDownloader
}

type InventoryService struct {
	pipeline *inventory.Pipeline
	store    *storage.ArtifactStore
	cache    cache.RunSummaryCache
	history  repository.HistoryRepository
	runs     RunRecorder
	renderer *report.Renderer
	drive    DriveDownloader

	newSessionKey func() string
	now           func() time.Time
}

func NewInventoryService(deps Dependencies) *InventoryService {
	s := &InventoryService{
		pipeline:      deps.Pipeline,
		store:         deps.Store,
		cache:         deps.Cache,
		history:       deps.History,
		runs:          deps.Runs,
		renderer:      deps.Renderer,
		drive:         deps.Drive,
		newSessionKey: uuid.NewString,
		now:           time.Now,
	}
	if s.pipeline == nil {
		s.pipeline = inventory.NewPipeline(inventory.Options{})
	}
	if s.cache == nil {
		s.cache = cache.NewNoopRunSummaryCache()
	}
	if s.renderer == nil {
		s.renderer = report.NewRenderer(nil, 0)
	}
	return s
}

// Dashboard is the run summary plus the three summary tables of a session.
type Dashboard struct {
	SessionKey          string                          `json:"session_key"`
	Summary             inventory.RunSummary            `json:"summary"`
	SalesByProductMonth []inventory.SalesByProductMonth `json:"sales_by_product_month"`
	ExpensesByMonth     []inventory.ExpensesByMonth     `json:"expenses_by_month"`
	StockSummary        []inventory.ProductMonthSummary `json:"product_month_stock_summary"`
}

// Process runs one upload end to end: parse, pipeline, persist. It
// satisfies pipeline.Processor so batches can share it.
func (s *InventoryService) Process(ctx context.Context, job pipeline.Job) (*pipeline.JobResult, error) {
	if len(job.Data) == 0 {
		return nil, ErrNoFile
	}

	started := s.now()
	key := s.newSessionKey()
	logger := log.With().Str("session_key", key).Str("file", job.FileName).Logger()

	summary, err := s.run(ctx, key, job)
	s.recordRun(ctx, key, job.FileName, started, summary, err)
	if err != nil {
		logger.Error().Err(err).Msg("inventory run failed")
		return nil, err
	}

	if job.Username != "" {
		s.recordBalance(ctx, job.Username, summary)
	}

	logger.Info().Int("rows", summary.RowCount).Float64("final_balance", summary.FinalBalance).
		Int("issues", len(summary.DataQuality)).Msg("inventory run completed")
	return &pipeline.JobResult{Job: job, SessionKey: key, Summary: summary}, nil
}

func (s *InventoryService) run(ctx context.Context, key string, job pipeline.Job) (*inventory.RunSummary, error) {
	table, err := sheet.Read(bytes.NewReader(job.Data), job.FileName)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", job.FileName, err)
	}

	res, err := s.pipeline.Run(inventory.Input{Table: table, Budget: job.Budget, GenerateCharts: job.GenerateCharts})
	if err != nil {
		return nil, err
	}

	docs, err := inventory.Serialize(res)
	if err != nil {
		return nil, err
	}
	workbook, err := sheet.WriteProcessed(inventory.ProcessedTableDoc{Columns: res.Columns, Rows: res.Rows})
	if err != nil {
		return nil, fmt.Errorf("write processed workbook: %w", err)
	}

	if err := s.persist(ctx, key, docs, workbook); err != nil {
		s.discardSession(ctx, key)
		return nil, err
	}

	summary := res.Summary
	if err := s.cache.SetSummary(ctx, key, &summary); err != nil {
		log.Warn().Err(err).Str("session_key", key).Msg("failed to cache run summary")
	}
	return &summary, nil
}

func (s *InventoryService) persist(ctx context.Context, key string, docs inventory.Documents, workbook []byte) error {
	if err := s.store.SaveAll(ctx, key, docs); err != nil {
		return fmt.Errorf("store artifacts: %w", err)
	}
	if err := s.store.SaveFile(ctx, key, storage.ProcessedWorkbook, workbook); err != nil {
		return fmt.Errorf("store processed workbook: %w", err)
	}
	return nil
}

// discardSession removes whatever a failed run already wrote, so a session
// key that was never handed out owns no objects.
func (s *InventoryService) discardSession(ctx context.Context, key string) {
	if err := s.store.DeleteSession(context.WithoutCancel(ctx), key); err != nil {
		log.Warn().Err(err).Str("session_key", key).Msg("failed to discard partial session artifacts")
	}
}

func (s *InventoryService) recordRun(ctx context.Context, key, fileName string, started time.Time, summary *inventory.RunSummary, runErr error) {
	if s.runs == nil {
		return
	}
	run := &pipeline.PipelineRun{
		SessionKey:  key,
		FileName:    fileName,
		Status:      domain.RunCompleted,
		StartedAt:   started,
		CompletedAt: s.now(),
	}
	if summary != nil {
		run.TotalRows = summary.RowCount
	}
	if runErr != nil {
		msg := runErr.Error()
		run.Status = domain.RunFailed
		run.ErrorMessage = &msg
	}
	if err := s.runs.RecordRun(ctx, run); err != nil {
		log.Warn().Err(err).Str("session_key", key).Msg("failed to record pipeline run")
	}
}

// recordBalance files the final balance under the latest month present in
// the data, or the current month when no row carried a date.
func (s *InventoryService) recordBalance(ctx context.Context, username string, summary *inventory.RunSummary) {
	if s.history == nil {
		return
	}
	now := s.now()
	month, year := now.Month(), now.Year()
	if summary.LatestMonth != nil {
		month, year = summary.LatestMonth.Month, summary.LatestMonth.Year
	}
	record := &domain.BalanceRecord{
		Month:        month.String(),
		Year:         year,
		Balance:      summary.FinalBalance,
		DateRecorded: now,
	}
	if err := s.history.RecordBalance(ctx, username, record); err != nil {
		log.Warn().Err(err).Str("username", username).Msg("failed to record balance history")
	}
}

// ImportFromDrive downloads a Drive file and processes it like an upload.
func (s *InventoryService) ImportFromDrive(ctx context.Context, fileID string, job pipeline.Job) (*pipeline.JobResult, error) {
	if s.drive == nil {
		return nil, ErrDriveDisabled
	}
	name, data, err := s.drive.DownloadFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	job.FileName, job.Data = name, data
	return s.Process(ctx, job)
}

// Summary returns the run summary, from cache when possible.
func (s *InventoryService) Summary(ctx context.Context, key string) (*inventory.RunSummary, error) {
	if err := checkSessionKey(key); err != nil {
		return nil, err
	}
	if cached, ok, err := s.cache.GetSummary(ctx, key); err != nil {
		log.Warn().Err(err).Str("session_key", key).Msg("run summary cache read failed")
	} else if ok {
		return cached, nil
	}

	raw, err := s.store.Load(ctx, key, inventory.DocRunSummary)
	if err != nil {
		return nil, mapStorageError(err)
	}
	summary, err := inventory.DecodeRunSummary(raw)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetSummary(ctx, key, &summary); err != nil {
		log.Warn().Err(err).Str("session_key", key).Msg("failed to cache run summary")
	}
	return &summary, nil
}

func (s *InventoryService) Dashboard(ctx context.Context, key string) (*Dashboard, error) {
	summary, err := s.Summary(ctx, key)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{SessionKey: key, Summary: *summary}

	raw, err := s.store.Load(ctx, key, inventory.DocSalesByProductMonth)
	if err != nil {
		return nil, mapStorageError(err)
	}
	if d.SalesByProductMonth, err = inventory.DecodeSalesByProductMonth(raw); err != nil {
		return nil, err
	}
	if raw, err = s.store.Load(ctx, key, inventory.DocExpensesByMonth); err != nil {
		return nil, mapStorageError(err)
	}
	if d.ExpensesByMonth, err = inventory.DecodeExpensesByMonth(raw); err != nil {
		return nil, err
	}
	if raw, err = s.store.Load(ctx, key, inventory.DocStockSummary); err != nil {
		return nil, mapStorageError(err)
	}
	if d.StockSummary, err = inventory.DecodeStockSummary(raw); err != nil {
		return nil, err
	}
	return d, nil
}

// ReportHTML renders the session report as an HTML page.
func (s *InventoryService) ReportHTML(ctx context.Context, key string) ([]byte, error) {
	b, err := s.bundle(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.renderer.HTML(b)
}

// ReportPDF renders the session report through the configured PDF renderer.
func (s *InventoryService) ReportPDF(ctx context.Context, key string) ([]byte, error) {
	b, err := s.bundle(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.renderer.PDF(ctx, b)
}

func (s *InventoryService) bundle(ctx context.Context, key string) (*inventory.Bundle, error) {
	if err := checkSessionKey(key); err != nil {
		return nil, err
	}
	b, err := s.store.LoadBundle(ctx, key)
	if err != nil {
		return nil, mapStorageError(err)
	}
	return b, nil
}

// ProcessedWorkbook returns the processed xlsx of a session.
func (s *InventoryService) ProcessedWorkbook(ctx context.Context, key string) ([]byte, error) {
	if err := checkSessionKey(key); err != nil {
		return nil, err
	}
	data, err := s.store.LoadFile(ctx, key, storage.ProcessedWorkbook)
	if err != nil {
		return nil, mapStorageError(err)
	}
	return data, nil
}

// Template returns an empty workbook with the recognized headers.
func (s *InventoryService) Template() ([]byte, error) {
	return sheet.WriteTemplate()
}

// History lists recorded balances, newest first. Without a history
// repository the list is empty.
func (s *InventoryService) History(ctx context.Context, filter domain.HistoryFilter) ([]domain.BalanceRecord, error) {
	if s.history == nil {
		return []domain.BalanceRecord{}, nil
	}
	return s.history.ListHistory(ctx, filter)
}

// DeleteSession removes every artifact of a session and its cached summary.
func (s *InventoryService) DeleteSession(ctx context.Context, key string) error {
	if err := checkSessionKey(key); err != nil {
		return err
	}
	if err := s.store.DeleteSession(ctx, key); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, key); err != nil {
		log.Warn().Err(err).Str("session_key", key).Msg("failed to invalidate run summary")
	}
	return nil
}

func checkSessionKey(key string) error {
	if _, err := uuid.Parse(key); err != nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, key)
	}
	return nil
}

func mapStorageError(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}
	return err
}
