package stats

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStatsUpdater(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	assert.NotNil(t, su, "expected StatsUpdater to be non-nil")
	assert.NotNil(t, su.updateChan, "expected updateChan to be initialized")
	handler, pattern := mux.Handler(&http.Request{URL: &url.URL{Path: "/debug/vars"}, Method: http.MethodGet})
	assert.NotNil(t, handler, "expected handler for /debug/vars to be set")
	assert.Equal(t, "GET /debug/vars", pattern, "expected handler to be registered for GET method on /debug/vars")
}

func TestStatsUpdater_counters(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	su.RegisterMetric(ActiveConnections)
	su.RegisterMetric(NotificationsCreated)
	su.Run()
	defer su.Stop()

	su.Incr(ActiveConnections)
	su.Incr(ActiveConnections)
	su.Decr(ActiveConnections)
	su.Add(NotificationsCreated, 3)
	su.Incr("Unregistered")

	read := func() map[string]any {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/vars", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return body
	}

	assert.Eventually(t, func() bool {
		body := read()
		return body[ActiveConnections] == float64(1) && body[NotificationsCreated] == float64(3)
	}, time.Second, 10*time.Millisecond, "expected counters to reflect updates")

	body := read()
	assert.Contains(t, body, "Uptime")
	assert.NotContains(t, body, "Unregistered")
}

func TestStatsUpdater_StopTwice(t *testing.T) {
	su := NewStatsUpdater(http.NewServeMux())
	su.RegisterMetric(ActiveConnections)
	su.Run()

	su.Stop()
	assert.NotPanics(t, su.Stop)
	assert.NotPanics(t, func() { su.Incr(ActiveConnections) })
}
