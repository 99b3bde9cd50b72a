package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/npezzotti/go-jobboard/internal/config"
	"github.com/npezzotti/go-jobboard/internal/database"
	"github.com/npezzotti/go-jobboard/internal/notify"
	"github.com/npezzotti/go-jobboard/internal/server"
	"github.com/npezzotti/go-jobboard/internal/testutil"
	"github.com/npezzotti/go-jobboard/internal/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	testSigningKey = []byte("test-signing-key")
	testSeeker     = types.Account{Id: 7, Kind: types.AccountJobSeeker}
	testCompany    = types.Account{Id: 3, Kind: types.AccountCompany}
	testAdmin      = types.Account{Id: 1, Kind: types.AccountAdmin}
)

func testConversation() types.Conversation {
	return types.Conversation{
		Id:            11,
		ExternalId:    "chat-1",
		UserId:        testSeeker.Id,
		CompanyId:     testCompany.Id,
		UserUnread:    2,
		CompanyUnread: 5,
		User:          &types.Account{Id: 7, Kind: types.AccountJobSeeker, DisplayName: "Jane Doe"},
		Company:       &types.Account{Id: 3, Kind: types.AccountCompany, DisplayName: "Acme"},
	}
}

type mockReports struct {
	mock.Mock
}

func (m *mockReports) UserReported(ctx context.Context, e notify.UserReported) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockReports) CompanyReported(ctx context.Context, e notify.CompanyReported) error {
	return m.Called(ctx, e).Error(0)
}

func newTestApp(t *testing.T, db database.JobBoardRepository, cs *server.ChatServer, reports ReportNotifier) *JobBoardApp {
	t.Helper()

	return NewJobBoardApp(http.NewServeMux(), testutil.TestLogger(t), cs, db, reports, &config.Config{
		ServerAddr:     "localhost:8000",
		SigningKey:     testSigningKey,
		AllowedOrigins: []string{"http://localhost:3000"},
	})
}

// do sends a request through the full handler chain as account. A zero
// account sends no credentials.
func do(t *testing.T, app *JobBoardApp, method, path string, body any, account types.Account) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if account.Id != 0 {
		req.Header.Set("Authorization", "Bearer "+testutil.TestToken(t, testSigningKey, account.Id, string(account.Kind)))
	}

	rr := httptest.NewRecorder()
	app.mux.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeApiError(t *testing.T, rr *httptest.ResponseRecorder) ApiError {
	t.Helper()

	var e ApiError
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&e), "expected json error body")
	return e
}
