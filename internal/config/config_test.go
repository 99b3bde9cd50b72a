package config

import (
	"testing"
	"time"

	"github.com/npezzotti/go-jobboard/internal/server"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func newTestViper(overrides map[string]any) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.Set("auth.signing_key", "c29tZV9zZWNyZXQ=")
	for key, val := range overrides {
		v.Set(key, val)
	}
	return v
}

func TestNewConfig(t *testing.T) {
	tcases := []struct {
		name      string
		overrides map[string]any
		err       bool
	}{
		{
			name: "defaults",
		},
		{
			name: "full config",
			overrides: map[string]any{
				"server.addr":             "localhost:8080",
				"server.allowed_origins":  []string{"http://localhost:3000"},
				"redis.addr":              "localhost:6379",
				"chat.unread_policy":      server.SenderAlone.String(),
				"notifications.retention": "24h",
			},
		},
		{
			name:      "empty address",
			overrides: map[string]any{"server.addr": ""},
			err:       true,
		},
		{
			name:      "empty DSN",
			overrides: map[string]any{"database.dsn": ""},
			err:       true,
		},
		{
			name:      "empty signing key",
			overrides: map[string]any{"auth.signing_key": ""},
			err:       true,
		},
		{
			name:      "undecodable signing key",
			overrides: map[string]any{"auth.signing_key": "invalid_base64"},
			err:       true,
		},
		{
			name:      "unknown unread policy",
			overrides: map[string]any{"chat.unread_policy": "always"},
			err:       true,
		},
		{
			name:      "redis without channel",
			overrides: map[string]any{"redis.addr": "localhost:6379", "redis.channel": ""},
			err:       true,
		},
		{
			name:      "zero retention",
			overrides: map[string]any{"notifications.retention": "0s"},
			err:       true,
		},
		{
			name:      "negative interval",
			overrides: map[string]any{"maintenance.interval": "-1m"},
			err:       true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			v := newTestViper(tc.overrides)
			config, err := NewConfig(v)
			if tc.err {
				assert.Error(t, err, "expected error for config: %s", tc.name)
				return
			}
			assert.NoError(t, err, "expected no error for config: %s", tc.name)

			assert.Equal(t, v.GetString("server.addr"), config.ServerAddr, "expected server address to match")
			assert.Equal(t, v.GetString("database.dsn"), config.DatabaseDSN, "expected database DSN to match")
			assert.Equal(t, v.GetStringSlice("server.allowed_origins"), config.AllowedOrigins, "expected allowed origins to match")
			assert.Equal(t, []byte("some_secret"), config.SigningKey, "expected signing key to be decoded")
			assert.Equal(t, v.GetString("chat.unread_policy"), config.UnreadPolicy.String(), "expected unread policy to round trip")
		})
	}
}

func TestDefaults(t *testing.T) {
	config, err := NewConfig(newTestViper(nil))
	assert.NoError(t, err)

	assert.Equal(t, ":8000", config.ServerAddr)
	assert.Equal(t, "jobboard.events", config.RedisChannel)
	assert.Equal(t, server.RecipientAbsent, config.UnreadPolicy)
	assert.Equal(t, 4320*time.Hour, config.NotificationRetention)
	assert.Equal(t, time.Hour, config.MaintenanceInterval)
	assert.Empty(t, config.RedisAddr, "event consumer is disabled by default")
}

func Test_decodeSigningKey(t *testing.T) {
	tcases := []struct {
		name         string
		base64Secret string
		expectedKey  []byte
		expectError  bool
	}{
		{
			name:         "valid base64 secret",
			base64Secret: "c29tZV9zZWNyZXQ=",
			expectedKey:  []byte("some_secret"),
		},
		{
			name:         "invalid base64 secret",
			base64Secret: "invalid_base64",
			expectError:  true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := decodeSigningSecret(tc.base64Secret)
			if tc.expectError {
				assert.Error(t, err, "expected error for base64 secret: %s", tc.base64Secret)
			} else {
				assert.NoError(t, err, "expected no error for base64 secret: %s", tc.base64Secret)
				assert.Equal(t, tc.expectedKey, key, "expected decoded key to match for base64 secret: %s", tc.base64Secret)
			}
		})
	}
}
