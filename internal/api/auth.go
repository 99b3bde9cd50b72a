package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt"
	"github.com/npezzotti/go-jobboard/internal/types"
	"github.com/pkg/errors"
)

const (
	tokenCookieKey   = "token"
	accountIdClaim   = "account-id"
	accountKindClaim = "account-kind"
)

type contextKey string

const accountKey contextKey = "account"

func WithAccount(ctx context.Context, account types.Account) context.Context {
	return context.WithValue(ctx, accountKey, account)
}

func AccountFrom(ctx context.Context) (types.Account, bool) {
	account, ok := ctx.Value(accountKey).(types.Account)
	return account, ok
}

// tokenFromRequest reads the bearer header, falling back to the token cookie.
func tokenFromRequest(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
			return "", errors.New("malformed authorization header")
		}
		return token, nil
	}

	cookie, err := r.Cookie(tokenCookieKey)
	if err != nil {
		return "", errors.Wrap(err, "get cookie")
	}
	return cookie.Value, nil
}

func (s *JobBoardApp) verifyToken(tokenString string) (*jwt.Token, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "parse token")
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return token, nil
}

func (s *JobBoardApp) accountFromRequest(r *http.Request) (types.Account, error) {
	tokenString, err := tokenFromRequest(r)
	if err != nil {
		return types.Account{}, err
	}

	token, err := s.verifyToken(tokenString)
	if err != nil {
		return types.Account{}, errors.Wrap(err, "verify token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return types.Account{}, errors.New("invalid token claims")
	}

	id, ok := claims[accountIdClaim].(float64)
	if !ok || id <= 0 {
		return types.Account{}, errors.New("invalid account id claim")
	}

	kind, _ := claims[accountKindClaim].(string)
	if !types.AccountKind(kind).Valid() {
		return types.Account{}, errors.Errorf("invalid account kind claim %q", kind)
	}

	return types.Account{Id: int(id), Kind: types.AccountKind(kind)}, nil
}
