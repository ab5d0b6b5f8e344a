package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sb-works/collab-backend/internal/projects/domain"
)

const secret = "test-secret"

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := NewJWTVerifier(secret, "sb-works")
	tok, err := NewToken(secret, "sb-works", domain.Caller{ID: "u1", Role: domain.RoleFreelancer}, time.Hour)
	require.NoError(t, err)

	caller, err := v.Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, domain.Caller{ID: "u1", Role: domain.RoleFreelancer}, caller)
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v := NewJWTVerifier(secret, "sb-works")
	ctx := context.Background()
	client := domain.Caller{ID: "u1", Role: domain.RoleClient}

	expired, err := NewToken(secret, "sb-works", client, -time.Minute)
	require.NoError(t, err)
	wrongKey, err := NewToken("other", "sb-works", client, time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := NewToken(secret, "someone-else", client, time.Hour)
	require.NoError(t, err)
	badRole, err := NewToken(secret, "sb-works", domain.Caller{ID: "u1", Role: "root"}, time.Hour)
	require.NoError(t, err)

	noExp := Claims{}
	noExp.User.ID = "u1"
	noExp.User.Role = domain.RoleClient
	noExpTok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, noExp).SignedString([]byte(secret))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"empty":        "",
		"garbage":      "not.a.jwt",
		"expired":      expired,
		"wrong key":    wrongKey,
		"wrong issuer": wrongIssuer,
		"unknown role": badRole,
		"no expiry":    noExpTok,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(ctx, tok)
			assert.ErrorIs(t, err, domain.ErrUnauthenticated)
		})
	}
}

type fakeFirebase struct {
	token *fbauth.Token
	err   error
}

func (f fakeFirebase) VerifyIDToken(context.Context, string) (*fbauth.Token, error) {
	return f.token, f.err
}

func TestFirebaseVerifier(t *testing.T) {
	ctx := context.Background()

	v := &FirebaseVerifier{client: fakeFirebase{token: &fbauth.Token{UID: "fb-1", Claims: map[string]interface{}{"role": "admin"}}}}
	caller, err := v.Verify(ctx, "id-token")
	require.NoError(t, err)
	assert.Equal(t, domain.Caller{ID: "fb-1", Role: domain.RoleAdmin}, caller)

	noRole := &FirebaseVerifier{client: fakeFirebase{token: &fbauth.Token{UID: "fb-1", Claims: map[string]interface{}{}}}}
	_, err = noRole.Verify(ctx, "id-token")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	failing := &FirebaseVerifier{client: fakeFirebase{err: errors.New("ID token has expired")}}
	_, err = failing.Verify(ctx, "id-token")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", TokenFromRequest(req))

	req = httptest.NewRequest(http.MethodGet, "/ws?token=q1", nil)
	assert.Equal(t, "q1", TokenFromRequest(req))

	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Sec-WebSocket-Protocol", "bearer, p1")
	assert.Equal(t, "p1", TokenFromRequest(req))

	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Basic dXNlcg==")
	assert.Equal(t, "", TokenFromRequest(req))
}
