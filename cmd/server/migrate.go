package main

import (
	"github.com/npezzotti/go-jobboard/internal/database"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "applies pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn := a.v.GetString("database.dsn")
			if dsn == "" {
				return errors.New("database DSN cannot be empty")
			}

			if err := database.Migrate(dsn); err != nil {
				return errors.Wrap(err, "migrate")
			}
			a.log.Info("database is up to date")
			return nil
		},
	}
}
