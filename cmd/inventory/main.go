package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/inventariate/backend-go/internal/config"
	"github.com/andresuchdata/inventariate/backend-go/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "inventory",
		Usage: "Process inventory spreadsheets and manage stored runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.SetLevel(c.String("log-level"))
			return nil
		},
		Commands: []*cli.Command{
			processCommand(),
			migrateCommand(),
			fetchCommand(),
			cacheCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("command failed")
	}
}

// loadConfig returns a copy of the environment configuration so commands
// can override sections without touching the shared instance.
func loadConfig() *config.Config {
	cfg := *config.Load()
	return &cfg
}
