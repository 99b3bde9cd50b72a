package main

import (
	"context"
	"time"

	"github.com/npezzotti/go-jobboard/internal/database"
	"github.com/npezzotti/go-jobboard/internal/maintenance"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newReconcileCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "purges expired notifications and recomputes unread counters once",
		RunE: func(cmd *cobra.Command, args []string) error {
			retention := a.v.GetDuration("notifications.retention")
			if retention <= 0 {
				return errors.New("notification retention must be positive")
			}

			dbConn, err := database.NewPgJobBoardRepository(a.v.GetString("database.dsn"))
			if err != nil {
				return errors.Wrap(err, "db open")
			}
			defer dbConn.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			return maintenance.NewWorker(a.log, dbConn, retention, time.Hour).RunOnce(ctx)
		},
	}
}
