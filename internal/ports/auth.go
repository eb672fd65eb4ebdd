package ports

import "context"

type AuthClaims struct {
	SubjectID string
	Role      string
}

type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (AuthClaims, error)
}
