package main

import (
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/inventariate/backend-go/internal/cache"
)

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the run summary cache",
		Subcommands: []*cli.Command{
			{
				Name:  "clear",
				Usage: "Drop every cached run summary",
				Action: func(c *cli.Context) error {
					cfg := loadConfig()
					summaries, err := cache.NewRunSummaryCache(cfg.Cache)
					if err != nil {
						return err
					}
					if err := summaries.InvalidateAll(c.Context); err != nil {
						return err
					}
					log.Info().Bool("enabled", cfg.Cache.Enabled).Msg("run summary cache cleared")
					return nil
				},
			},
		},
	}
}
