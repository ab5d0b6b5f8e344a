package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sb-works/collab-backend/internal/projects/domain"
)

// Claims matches the tokens issued by the account service:
// {"user": {"id": "...", "role": "client"}, "exp": ...}.
type Claims struct {
	User struct {
		ID   string      `json:"id"`
		Role domain.Role `json:"role"`
	} `json:"user"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer}
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (domain.Caller, error) {
	if token == "" {
		return domain.Caller{}, fmt.Errorf("%w: missing token", domain.ErrUnauthenticated)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	tok, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Caller{}, fmt.Errorf("%w: token expired", domain.ErrUnauthenticated)
		}
		return domain.Caller{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if !tok.Valid {
		return domain.Caller{}, fmt.Errorf("%w: invalid token", domain.ErrUnauthenticated)
	}

	caller := domain.Caller{ID: claims.User.ID, Role: claims.User.Role}
	if caller.ID == "" || !caller.Role.Valid() {
		return domain.Caller{}, fmt.Errorf("%w: token carries no usable identity", domain.ErrUnauthenticated)
	}
	return caller, nil
}

// NewToken signs a token for the caller. The account service issues real
// tokens; this is used by tests and local tooling.
func NewToken(secret, issuer string, caller domain.Caller, ttl time.Duration) (string, error) {
	claims := Claims{}
	claims.User.ID = caller.ID
	claims.User.Role = caller.Role
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	if issuer != "" {
		claims.Issuer = issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

var _ Verifier = (*JWTVerifier)(nil)
