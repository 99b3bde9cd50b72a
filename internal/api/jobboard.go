package api

import (
	"context"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-jobboard/internal/config"
	"github.com/npezzotti/go-jobboard/internal/database"
	"github.com/npezzotti/go-jobboard/internal/notify"
	"github.com/npezzotti/go-jobboard/internal/server"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ReportNotifier delivers the notifications raised by a conversation report.
type ReportNotifier interface {
	UserReported(ctx context.Context, e notify.UserReported) error
	CompanyReported(ctx context.Context, e notify.CompanyReported) error
}

type JobBoardApp struct {
	log            *logrus.Logger
	db             database.JobBoardRepository
	mux            *http.Server
	cs             *server.ChatServer
	reports        ReportNotifier
	signingKey     []byte
	allowedOrigins []string
}

func NewJobBoardApp(mux *http.ServeMux, logger *logrus.Logger, cs *server.ChatServer, db database.JobBoardRepository, reports ReportNotifier, cfg *config.Config) *JobBoardApp {
	s := &JobBoardApp{
		log:            logger,
		db:             db,
		cs:             cs,
		reports:        reports,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("GET /api/conversations", s.partyOnly(s.listConversations))
	mux.HandleFunc("POST /api/conversations", s.partyOnly(s.createConversation))
	mux.HandleFunc("GET /api/conversations/{id}", s.authMiddleware(s.getConversation))
	mux.HandleFunc("GET /api/conversations/{id}/messages", s.authMiddleware(s.getMessages))
	mux.HandleFunc("PUT /api/conversations/{id}/read", s.partyOnly(s.markConversationRead))
	mux.HandleFunc("PUT /api/conversations/{id}/report", s.partyOnly(s.reportConversation))
	mux.HandleFunc("GET /api/notifications", s.partyOnly(s.listNotifications))
	mux.HandleFunc("PUT /api/notifications/{id}/read", s.partyOnly(s.markNotificationRead))
	mux.HandleFunc("PUT /api/notifications/read-all", s.partyOnly(s.markAllNotificationsRead))
	mux.HandleFunc("GET /api/notifications/settings", s.partyOnly(s.getNotificationSettings))
	mux.HandleFunc("PUT /api/notifications/settings", s.partyOnly(s.updateNotificationSettings))
	mux.HandleFunc("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)
	if logger != nil {
		h = handlers.CombinedLoggingHandler(logger.WriterLevel(logrus.InfoLevel), h)
	}

	s.mux = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *JobBoardApp) Start() error {
	s.log.WithField("addr", s.mux.Addr).Info("starting server")
	return s.mux.ListenAndServe()
}

func (s *JobBoardApp) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	if err := s.mux.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server shutdown")
	}

	return nil
}
