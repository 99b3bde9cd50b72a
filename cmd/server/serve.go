package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v7"
	"github.com/npezzotti/go-jobboard/internal/api"
	"github.com/npezzotti/go-jobboard/internal/config"
	"github.com/npezzotti/go-jobboard/internal/database"
	"github.com/npezzotti/go-jobboard/internal/events"
	"github.com/npezzotti/go-jobboard/internal/maintenance"
	"github.com/npezzotti/go-jobboard/internal/notify"
	"github.com/npezzotti/go-jobboard/internal/server"
	"github.com/npezzotti/go-jobboard/internal/stats"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serves the REST api and the realtime channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve()
		},
	}

	cmd.Flags().String("addr", "", "server address")
	cmd.Flags().StringSlice("allowed-origins", nil, "allowed origins for CORS and websocket upgrades")
	cmd.Flags().String("signing-key", "", "base64 encoded token signing key")
	cmd.Flags().String("unread-policy", "", "recipient-absent or sender-alone")
	cmd.Flags().Bool("migrate", false, "apply database migrations before serving")
	a.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	a.v.BindPFlag("server.allowed_origins", cmd.Flags().Lookup("allowed-origins"))
	a.v.BindPFlag("auth.signing_key", cmd.Flags().Lookup("signing-key"))
	a.v.BindPFlag("chat.unread_policy", cmd.Flags().Lookup("unread-policy"))
	a.v.BindPFlag("database.migrate", cmd.Flags().Lookup("migrate"))

	return cmd
}

func (a *app) serve() error {
	logger := a.log

	cfg, err := config.NewConfig(a.v)
	if err != nil {
		return errors.Wrap(err, "config")
	}

	if a.v.GetBool("database.migrate") {
		if err := database.Migrate(cfg.DatabaseDSN); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}

	dbConn, err := database.NewPgJobBoardRepository(cfg.DatabaseDSN)
	if err != nil {
		return errors.Wrap(err, "db open")
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.WithError(err).Error("db close")
		}
	}()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	chatServer, err := server.NewChatServer(logger, dbConn, statsUpdater, cfg.UnreadPolicy)
	if err != nil {
		return errors.Wrap(err, "new chat server")
	}

	dispatcher := notify.NewDispatcher(logger, dbConn, chatServer, statsUpdater)
	chatServer.SetNotifier(dispatcher)

	srv := api.NewJobBoardApp(mux, logger, chatServer, dbConn, dispatcher, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go chatServer.Run()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := maintenance.NewWorker(logger, dbConn, cfg.NotificationRetention, cfg.MaintenanceInterval)
	go worker.Run(ctx)

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer client.Close()

		sub, err := events.Subscribe(client, cfg.RedisChannel)
		if err != nil {
			return err
		}
		consumer := events.NewConsumer(logger, sub, dispatcher, statsUpdater)
		go consumer.Run(ctx)
		logger.WithField("channel", cfg.RedisChannel).Info("consuming domain events")
	} else {
		logger.Info("redis not configured, domain event consumer disabled")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.WithField("signal", sig.String()).Info("received signal")
	case err := <-errCh:
		logger.WithError(err).Error("server")
	}

	cancel()

	shutDownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown")
	}

	logger.Info("shutting down chat server")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		return errors.Wrap(err, "chat server shutdown")
	}

	logger.Info("shutdown complete")
	return nil
}
