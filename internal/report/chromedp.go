package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/andresuchdata/inventariate/backend-go/internal/config"
)

const defaultChromeTimeout = 30 * time.Second

// A4 portrait, 12mm margins.
const (
	paperWidthMM  = 210.0
	paperHeightMM = 297.0
	marginMM      = 12.0
)

// ErrEmptyDocument is returned when there is no HTML to print.
var ErrEmptyDocument = errors.New("report: empty document")

// PDFRenderer turns a complete HTML document into PDF bytes.
type PDFRenderer interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
}

// ChromedpRenderer prints HTML through a headless Chrome, either launched
// locally or reached through a remote DevTools URL.
type ChromedpRenderer struct {
	timeout     time.Duration
	logger      zerolog.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

func NewChromedpRenderer(cfg config.ReportConfig, logger zerolog.Logger) *ChromedpRenderer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultChromeTimeout
	}

	r := &ChromedpRenderer{timeout: timeout, logger: logger}

	if cfg.ChromeRemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.ChromeRemoteURL)
		return r
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return r
}

func (r *ChromedpRenderer) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	if strings.TrimSpace(html) == "" {
		return nil, ErrEmptyDocument
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	browserCtx, browserCancel := chromedp.NewContext(r.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			r.logger.Debug().Msgf(format, args...)
		}),
	)
	defer browserCancel()

	// Tie the browser tab to the caller's deadline.
	stop := context.AfterFunc(ctx, browserCancel)
	defer stop()

	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(mmToInches(paperWidthMM)).
				WithPaperHeight(mmToInches(paperHeightMM)).
				WithMarginTop(mmToInches(marginMM)).
				WithMarginBottom(mmToInches(marginMM)).
				WithMarginLeft(mmToInches(marginMM)).
				WithMarginRight(mmToInches(marginMM)).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = data
			return nil
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("render pdf: %w", ctxErr)
		}
		r.logger.Error().Err(err).Msg("chromedp rendering failed")
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("render pdf: %w", ErrEmptyDocument)
	}

	r.logger.Info().
		Int("bytes", len(pdf)).
		Dur("duration", time.Since(start)).
		Msg("PDF rendered")
	return pdf, nil
}

// Close shuts down the browser allocator.
func (r *ChromedpRenderer) Close() error {
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}

func mmToInches(mm float64) float64 {
	return mm / 25.4
}
