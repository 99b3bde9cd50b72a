package testutil

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/sirupsen/logrus"
)

// TestLogger returns a debug logger that is silenced once the test ends.
func TestLogger(t *testing.T) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	logger.SetOutput(os.Stdout)
	t.Cleanup(func() {
		logger.SetOutput(io.Discard)
	})
	return logger
}

// TestToken signs a token carrying the account claims the api middleware expects.
func TestToken(t *testing.T, key []byte, accountId int, kind string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"account-id":   accountId,
		"account-kind": kind,
		"exp":          time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
