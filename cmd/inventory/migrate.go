package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/inventariate/backend-go/internal/migrations"
	"github.com/andresuchdata/inventariate/backend-go/internal/repository/sqldb"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply or roll back the database schema",
		Subcommands: []*cli.Command{
			{Name: "up", Usage: "Apply all pending migrations", Action: withMigrator(func(m *migrations.Migrator) error { return m.Up() })},
			{Name: "down", Usage: "Roll back all migrations", Action: withMigrator(func(m *migrations.Migrator) error { return m.Down() })},
			{
				Name:  "version",
				Usage: "Print the current schema version",
				Action: withMigrator(func(m *migrations.Migrator) error {
					version, dirty, err := m.Version()
					if err != nil {
						return err
					}
					fmt.Printf("version %d (dirty: %t)\n", version, dirty)
					return nil
				}),
			},
		},
	}
}

func withMigrator(fn func(*migrations.Migrator) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg := loadConfig()
		db, err := sqldb.NewDB(&cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		m, err := migrations.New(db.DB.DB, db.Dialect())
		if err != nil {
			return err
		}
		defer m.Close()
		return fn(m)
	}
}
