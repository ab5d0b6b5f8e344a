package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/sb-works/collab-backend/internal/projects/domain"
)

// Verifier turns a presented credential into a caller identity. Missing,
// malformed and expired credentials all fail with domain.ErrUnauthenticated.
type Verifier interface {
	Verify(ctx context.Context, token string) (domain.Caller, error)
}

// TokenFromRequest extracts a credential from, in order, the Authorization
// bearer header, the "token" query parameter, or a "bearer, <token>"
// Sec-WebSocket-Protocol offer. Browsers cannot set headers on socket
// upgrades, hence the last two.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" {
		return t
	}
	return tokenFromSubprotocol(r)
}

func tokenFromSubprotocol(r *http.Request) string {
	var offered []string
	for _, h := range r.Header.Values("Sec-WebSocket-Protocol") {
		for _, p := range strings.Split(h, ",") {
			offered = append(offered, strings.TrimSpace(p))
		}
	}
	for i, p := range offered {
		if strings.EqualFold(p, "bearer") && i+1 < len(offered) {
			return offered[i+1]
		}
	}
	return ""
}
