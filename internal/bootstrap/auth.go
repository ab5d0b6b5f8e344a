package bootstrap

import (
	"context"
	"fmt"

	"github.com/sb-works/collab-backend/config"
	"github.com/sb-works/collab-backend/internal/auth"
)

func NewVerifier(ctx context.Context, cfg config.AuthConfig) (auth.Verifier, error) {
	switch cfg.Provider {
	case config.ProviderJWT:
		return auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer), nil
	case config.ProviderFirebase:
		client, err := auth.InitializeFirebase(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			return nil, err
		}
		return auth.NewFirebaseVerifier(client), nil
	default:
		return nil, fmt.Errorf("unknown auth provider %q", cfg.Provider)
	}
}
