package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestHS256(t *testing.T) {
	v, err := NewJWTValidator("", "hs256", "secret")
	require.NoError(t, err)
	exp := time.Now().Add(time.Hour).Unix()

	sub, err := v.Validate(sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"sub": "u1", "exp": exp}))
	require.NoError(t, err)
	assert.Equal(t, "u1", sub)

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "u1", "exp": exp})},
		{"expired", sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Minute).Unix()})},
		{"no exp", sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"sub": "u1"})},
		{"no sub", sign(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"exp": exp})},
		{"wrong alg", sign(t, jwt.SigningMethodHS384, []byte("secret"), jwt.MapClaims{"sub": "u1", "exp": exp})},
		{"garbage", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestRS256(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "pub.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))

	v, err := NewJWTValidator(path, "RS256", "")
	require.NoError(t, err)

	sub, err := v.Validate(sign(t, jwt.SigningMethodRS256, key, jwt.MapClaims{"sub": "u9", "exp": time.Now().Add(time.Hour).Unix()}))
	require.NoError(t, err)
	assert.Equal(t, "u9", sub)
}

func TestNewJWTValidatorErrors(t *testing.T) {
	_, err := NewJWTValidator("", "HS256", "")
	assert.Error(t, err)
	_, err = NewJWTValidator(filepath.Join(t.TempDir(), "missing.pem"), "RS256", "")
	assert.Error(t, err)
	_, err = NewJWTValidator("", "none", "x")
	assert.Error(t, err)
}
