package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/inventariate/backend-go/internal/config"
	"github.com/andresuchdata/inventariate/backend-go/internal/storage"
)

func fetchCommand() *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Download the artifacts of a session from object storage",
		ArgsUsage: "SESSION_KEY",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dest", Usage: "Download directory", Value: "./data/tmp/sessions"},
			&cli.StringFlag{Name: "only", Usage: "Download a single artifact by file name (e.g. run_summary.json)"},
		},
		Action: func(c *cli.Context) error {
			session := strings.TrimSpace(c.Args().First())
			if session == "" {
				return cli.Exit("a session key is required", 2)
			}
			cfg := loadConfig()
			paths, err := fetchSession(c.Context, cfg.Storage, session, c.String("dest"), c.String("only"))
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(c.App.Writer, p)
			}
			return nil
		},
	}
}

func fetchSession(ctx context.Context, cfg config.StorageConfig, session, dest, only string) ([]string, error) {
	objects, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return downloadSession(ctx, storage.NewArtifactStore(objects), session, dest, only)
}

func downloadSession(ctx context.Context, store *storage.ArtifactStore, session, dest, only string) ([]string, error) {
	var keys []string
	if only != "" {
		keys = []string{storage.FileKey(session, only)}
	} else {
		objects, err := store.List(ctx, session)
		if err != nil {
			return nil, fmt.Errorf("list session %s: %w", session, err)
		}
		for _, obj := range objects {
			keys = append(keys, obj.Key)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no artifacts found for session %s", session)
	}

	prefix := storage.SessionPrefix(session)
	destDir := filepath.Join(dest, session)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure download dir %s: %w", destDir, err)
	}

	localPaths := make([]string, 0, len(keys))
	for _, key := range keys {
		localPath := filepath.Join(destDir, objectRelativePath(prefix, key))
		if err := storage.DownloadObject(ctx, store.Backend(), key, localPath); err != nil {
			return nil, fmt.Errorf("download %s: %w", key, err)
		}
		localPaths = append(localPaths, localPath)
	}

	sort.Strings(localPaths)
	return localPaths, nil
}

func objectRelativePath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	prefixTrimmed := strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	rel := strings.TrimPrefix(key, prefixTrimmed+"/")
	if rel == "" || rel == key {
		return filepath.Base(key)
	}
	return rel
}
