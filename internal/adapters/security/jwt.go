package security

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/domain"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/ports"
	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier validates RS256 bearer tokens issued by the identity service.
type JWTVerifier struct {
	publicKey *rsa.PublicKey
	issuer    string
	audience  string
}

func NewJWTVerifier(publicKeyPEM, issuer, audience string) (*JWTVerifier, error) {
	if strings.TrimSpace(publicKeyPEM) == "" {
		return nil, errors.New("jwt public key is required")
	}
	pub, err := parseRSAPublic(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return &JWTVerifier{publicKey: pub, issuer: issuer, audience: audience}, nil
}

type accessClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (v *JWTVerifier) Verify(_ context.Context, raw string) (ports.AuthClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithLeeway(30 * time.Second),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	parsed, err := jwt.ParseWithClaims(raw, &accessClaims{}, func(token *jwt.Token) (any, error) {
		return v.publicKey, nil
	}, opts...)
	if err != nil {
		return ports.AuthClaims{}, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}
	subject := claims.UserID
	if subject == "" {
		subject = claims.Subject
	}
	if strings.TrimSpace(subject) == "" {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}
	return ports.AuthClaims{SubjectID: subject, Role: strings.ToLower(claims.Role)}, nil
}

// DevTokenVerifier accepts "<subject>" or "<subject>:<role>" as the bearer
// token. It is only wired when auth is disabled for local runs.
type DevTokenVerifier struct{}

func (DevTokenVerifier) Verify(_ context.Context, raw string) (ports.AuthClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ports.AuthClaims{}, domain.ErrUnauthorized
	}
	subject, role, _ := strings.Cut(raw, ":")
	return ports.AuthClaims{SubjectID: subject, Role: strings.ToLower(role)}, nil
}

func parseRSAPublic(raw string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("invalid public PEM")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	keyAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := keyAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return key, nil
}
