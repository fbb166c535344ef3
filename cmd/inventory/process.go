package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/inventariate/backend-go/internal/app"
	"github.com/andresuchdata/inventariate/backend-go/internal/config"
	"github.com/andresuchdata/inventariate/backend-go/internal/domain"
	"github.com/andresuchdata/inventariate/backend-go/internal/pipeline"
	"github.com/andresuchdata/inventariate/backend-go/internal/pipeline/inventory"
	"github.com/andresuchdata/inventariate/backend-go/internal/storage"
	"github.com/andresuchdata/inventariate/backend-go/pkg/logger"
)

func processCommand() *cli.Command {
	return &cli.Command{
		Name:      "process",
		Usage:     "Run the inventory pipeline on one or more local xlsx/csv files",
		ArgsUsage: "FILE [FILE...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "budget", Usage: "Declared monthly budget"},
			&cli.BoolFlag{Name: "charts", Usage: "Draw charts in the report"},
			&cli.StringFlag{Name: "username", Usage: "Record the final balance under this user"},
			&cli.StringFlag{Name: "out", Usage: "Write artifacts to this directory instead of the configured storage"},
			&cli.BoolFlag{Name: "pdf", Usage: "Also render report.pdf for every run"},
			&cli.BoolFlag{Name: "no-db", Usage: "Skip the run log and balance history"},
			&cli.IntFlag{Name: "workers", Usage: "Files processed concurrently", EnvVars: []string{"PIPELINE_WORKER_COUNT"}},
		},
		Action: runProcess,
	}
}

func runProcess(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("at least one input file is required", 2)
	}

	jobs, err := jobsFromPaths(c.Args().Slice(), pipeline.Job{
		Budget:         c.String("budget"),
		GenerateCharts: c.Bool("charts"),
		Username:       c.String("username"),
	})
	if err != nil {
		return err
	}

	cfg := overrideOutput(loadConfig(), c.String("out"))
	a, err := app.New(c.Context, cfg, app.Options{SkipDatabase: c.Bool("no-db"), SkipDrive: true})
	if err != nil {
		return err
	}
	defer a.Close()

	workerCfg := pipeline.DefaultWorkerConfig()
	if n := c.Int("workers"); n > 0 {
		workerCfg.WorkerCount = n
	}
	worker := pipeline.NewWorker(a.Inventory, workerCfg)
	results, err := worker.ProcessBatch(c.Context, jobs)
	if err != nil {
		return err
	}

	if c.Bool("pdf") {
		renderPDFs(c.Context, a, results)
	}

	failed := printResults(c.App.Writer, results)
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d files failed", failed, len(results)), 1)
	}
	return nil
}

func jobsFromPaths(paths []string, template pipeline.Job) ([]pipeline.Job, error) {
	jobs := make([]pipeline.Job, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		job := template
		job.FileName = filepath.Base(p)
		job.Data = data
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// overrideOutput points storage at a local directory when out is set.
func overrideOutput(cfg *config.Config, out string) *config.Config {
	if out == "" {
		return cfg
	}
	cfg.Storage = config.StorageConfig{Backend: "local", LocalDir: out}
	return cfg
}

func renderPDFs(ctx context.Context, a *app.App, results []pipeline.JobResult) {
	for i := range results {
		r := &results[i]
		if r.Err != nil {
			continue
		}
		pdf, err := a.Inventory.ReportPDF(ctx, r.SessionKey)
		if err == nil {
			err = a.Artifacts.SaveFile(ctx, r.SessionKey, storage.ReportPDF, pdf)
		}
		if err != nil {
			logger.Log.Error().Err(err).Str("session_key", r.SessionKey).Msg("failed to render report")
			r.Err = fmt.Errorf("report: %w", err)
		}
	}
}

func printResults(w io.Writer, results []pipeline.JobResult) int {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSESSION\tROWS\tBALANCE\tSTATUS")
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(tw, "%s\t-\t-\t-\t%s: %v\n", r.Job.FileName, domain.RunStatusLabel(domain.RunFailed), r.Err)
			continue
		}
		status := domain.RunStatusLabel(domain.RunCompleted)
		if r.Summary.Alert != "" {
			status += " (deficit)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", r.Job.FileName, r.SessionKey, r.Summary.RowCount,
			inventory.FormatCurrency(r.Summary.FinalBalance), status)
	}
	tw.Flush()
	return failed
}
