package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/npezzotti/go-jobboard/internal/testutil"
	"github.com/npezzotti/go-jobboard/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestAccountFrom(t *testing.T) {
	tcases := []struct {
		name     string
		ctx      context.Context
		account  types.Account
		expected bool
	}{
		{
			name:     "no account",
			ctx:      context.Background(),
			expected: false,
		},
		{
			name:     "account set",
			ctx:      WithAccount(context.Background(), testCompany),
			account:  testCompany,
			expected: true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			account, ok := AccountFrom(tc.ctx)
			assert.Equal(t, tc.expected, ok, "expected AccountFrom to return %v", tc.expected)
			assert.Equal(t, tc.account, account)
		})
	}
}

func signClaims(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func Test_accountFromRequest(t *testing.T) {
	app := &JobBoardApp{signingKey: testSigningKey}
	exp := time.Now().Add(time.Hour).Unix()

	tcases := []struct {
		name    string
		setup   func(r *http.Request)
		account types.Account
		wantErr bool
	}{
		{
			name: "bearer header",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+testutil.TestToken(t, testSigningKey, 7, "user"))
			},
			account: testSeeker,
		},
		{
			name: "token cookie",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: testutil.TestToken(t, testSigningKey, 3, "company")})
			},
			account: testCompany,
		},
		{
			name:    "no credentials",
			setup:   func(r *http.Request) {},
			wantErr: true,
		},
		{
			name: "malformed header",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Token abc")
			},
			wantErr: true,
		},
		{
			name: "wrong key",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+testutil.TestToken(t, []byte("other"), 7, "user"))
			},
			wantErr: true,
		},
		{
			name: "expired",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signClaims(t, jwt.SigningMethodHS256, testSigningKey, jwt.MapClaims{
					accountIdClaim: 7, accountKindClaim: "user", "exp": time.Now().Add(-time.Hour).Unix(),
				}))
			},
			wantErr: true,
		},
		{
			name: "unknown kind",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signClaims(t, jwt.SigningMethodHS256, testSigningKey, jwt.MapClaims{
					accountIdClaim: 7, accountKindClaim: "recruiter", "exp": exp,
				}))
			},
			wantErr: true,
		},
		{
			name: "missing id",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signClaims(t, jwt.SigningMethodHS256, testSigningKey, jwt.MapClaims{
					accountKindClaim: "user", "exp": exp,
				}))
			},
			wantErr: true,
		},
		{
			name: "none algorithm",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signClaims(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{
					accountIdClaim: 7, accountKindClaim: "user", "exp": exp,
				}))
			},
			wantErr: true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.setup(req)

			account, err := app.accountFromRequest(req)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.account, account)
		})
	}
}
