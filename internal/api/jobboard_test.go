package api

import (
	"net/http"
	"testing"

	"github.com/npezzotti/go-jobboard/internal/config"
	"github.com/npezzotti/go-jobboard/internal/database"
	"github.com/npezzotti/go-jobboard/internal/server"
	"github.com/npezzotti/go-jobboard/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewJobBoardApp(t *testing.T) {
	mux := http.NewServeMux()
	logger := testutil.TestLogger(t)
	cs := &server.ChatServer{}
	db := &database.MockJobBoardRepository{}
	reports := &mockReports{}
	cfg := &config.Config{
		ServerAddr:     "localhost:8080",
		DatabaseDSN:    "dsn",
		SigningKey:     []byte("secret"),
		AllowedOrigins: []string{"http://localhost:3000"},
	}

	app := NewJobBoardApp(mux, logger, cs, db, reports, cfg)

	assert.NotNil(t, app, "expected app to be initialized")
	assert.NotNil(t, app.mux, "expected mux to be initialized")
	assert.Equal(t, logger, app.log, "expected logger to be set")
	assert.Equal(t, db, app.db, "expected db to be set")
	assert.Equal(t, cs, app.cs, "expected chat server to be set")
	assert.Equal(t, reports, app.reports, "expected report notifier to be set")
	assert.Equal(t, cfg.SigningKey, app.signingKey, "expected signing key to be set")
	assert.Equal(t, cfg.AllowedOrigins, app.allowedOrigins)
	assert.Equal(t, cfg.ServerAddr, app.mux.Addr, "expected server address to match config")
}
