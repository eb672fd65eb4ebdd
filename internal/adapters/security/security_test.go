package security

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

func TestAESGCMRoundTripIsBoundToSubject(t *testing.T) {
	t.Parallel()
	enc := NewAESGCMEncryption("seed")
	sealed, err := enc.Encrypt("inf-1", "IGQVJ-token")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	again, _ := enc.Encrypt("inf-1", "IGQVJ-token")
	if string(sealed) == string(again) {
		t.Fatalf("expected distinct ciphertexts for repeated encryption")
	}
	plain, err := enc.Decrypt("inf-1", sealed)
	if err != nil || plain != "IGQVJ-token" {
		t.Fatalf("decrypt = %q, %v", plain, err)
	}
	if _, err := enc.Decrypt("inf-2", sealed); err == nil {
		t.Fatalf("decrypt with another subject should fail")
	}
}

func newKeyPair(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	return key, string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func TestJWTVerifier(t *testing.T) {
	t.Parallel()
	key, pubPEM := newKeyPair(t)
	v, err := NewJWTVerifier(pubPEM, "identity", "")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	sign := func(c jwt.Claims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, c).SignedString(key)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}
	now := time.Now()

	valid := sign(accessClaims{UserID: "client-1", Role: "Client", RegisteredClaims: jwt.RegisteredClaims{
		Issuer: "identity", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}})
	claims, err := v.Verify(context.Background(), valid)
	if err != nil {
		t.Fatalf("verify valid token: %v", err)
	}
	if claims.SubjectID != "client-1" || claims.Role != "client" {
		t.Fatalf("claims = %+v", claims)
	}

	cases := map[string]string{
		"expired": sign(accessClaims{UserID: "u", RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "identity", ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
		}}),
		"wrong issuer": sign(accessClaims{UserID: "u", RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "other", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}}),
		"no subject": sign(accessClaims{RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "identity", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}}),
		"garbage": "not.a.token",
	}
	for name, raw := range cases {
		if _, err := v.Verify(context.Background(), raw); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("%s: err = %v, want ErrUnauthorized", name, err)
		}
	}
}

func TestDevTokenVerifier(t *testing.T) {
	t.Parallel()
	claims, err := DevTokenVerifier{}.Verify(context.Background(), "inf-1:Influencer")
	if err != nil || claims.SubjectID != "inf-1" || claims.Role != "influencer" {
		t.Fatalf("claims = %+v, err = %v", claims, err)
	}
	if _, err := (DevTokenVerifier{}).Verify(context.Background(), " "); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("empty token err = %v", err)
	}
}
