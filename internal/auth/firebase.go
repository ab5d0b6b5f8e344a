package auth

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/sb-works/collab-backend/internal/projects/domain"
)

// InitializeFirebase initializes the Firebase Admin SDK and returns an Auth client
func InitializeFirebase(ctx context.Context, credentialsPath string) (*fbauth.Client, error) {
	if credentialsPath == "" {
		return nil, fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required")
	}

	opt := option.WithCredentialsFile(credentialsPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Auth client: %w", err)
	}

	return authClient, nil
}

type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseVerifier accepts Firebase ID tokens. The role comes from the
// "role" custom claim set by the account service.
type FirebaseVerifier struct {
	client idTokenVerifier
}

func NewFirebaseVerifier(client *fbauth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (domain.Caller, error) {
	if token == "" {
		return domain.Caller{}, fmt.Errorf("%w: missing token", domain.ErrUnauthenticated)
	}
	decoded, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return domain.Caller{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}

	role, _ := decoded.Claims["role"].(string)
	caller := domain.Caller{ID: decoded.UID, Role: domain.Role(role)}
	if caller.ID == "" || !caller.Role.Valid() {
		return domain.Caller{}, fmt.Errorf("%w: token has no role claim", domain.ErrUnauthenticated)
	}
	return caller, nil
}

var _ Verifier = (*FirebaseVerifier)(nil)
