package identity

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Config struct {
	// ProviderSecret is the HS256 secret of the external identity provider.
	ProviderSecret string
	// ProviderPublicKey is a PEM RS256 key, or a path to one. Used when ProviderSecret is empty.
	ProviderPublicKey string
	ProviderIssuer    string

	OperatorSecret   string
	OperatorIssuer   string
	OperatorTokenTTL time.Duration
}

// ConfigFromEnv reads identity settings from environment variables.
func ConfigFromEnv() Config {
	ttl := 12 * time.Hour
	if v := os.Getenv("OPERATOR_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			ttl = d
		}
	}
	issuer := os.Getenv("OPERATOR_JWT_ISSUER")
	if issuer == "" {
		issuer = "profile-claim-operators"
	}
	return Config{
		ProviderSecret:    os.Getenv("IDENTITY_JWT_SECRET"),
		ProviderPublicKey: os.Getenv("IDENTITY_JWT_PUBLIC_KEY"),
		ProviderIssuer:    os.Getenv("IDENTITY_JWT_ISSUER"),
		OperatorSecret:    os.Getenv("OPERATOR_JWT_SECRET"),
		OperatorIssuer:    issuer,
		OperatorTokenTTL:  ttl,
	}
}

// ProviderVerifier builds the verifier for end-user tokens.
func (c Config) ProviderVerifier() (*Verifier, error) {
	if c.ProviderSecret != "" {
		return NewHMACVerifier([]byte(c.ProviderSecret), c.ProviderIssuer), nil
	}
	if c.ProviderPublicKey == "" {
		return nil, errors.New("IDENTITY_JWT_SECRET or IDENTITY_JWT_PUBLIC_KEY is required")
	}
	pemBytes := []byte(c.ProviderPublicKey)
	if !strings.HasPrefix(strings.TrimSpace(c.ProviderPublicKey), "-----BEGIN") {
		b, err := os.ReadFile(c.ProviderPublicKey)
		if err != nil {
			return nil, fmt.Errorf("read provider public key: %w", err)
		}
		pemBytes = b
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("parse provider public key: %w", err)
	}
	return NewRSAVerifier(pub, c.ProviderIssuer), nil
}

// OperatorVerifier builds the verifier for operator tokens.
func (c Config) OperatorVerifier() (*Verifier, error) {
	if c.OperatorSecret == "" {
		return nil, errors.New("OPERATOR_JWT_SECRET is required")
	}
	return NewHMACVerifier([]byte(c.OperatorSecret), c.OperatorIssuer), nil
}

// OperatorSigner builds the signer used by the operator login.
func (c Config) OperatorSigner() (*Signer, error) {
	if c.OperatorSecret == "" {
		return nil, errors.New("OPERATOR_JWT_SECRET is required")
	}
	return NewSigner([]byte(c.OperatorSecret), c.OperatorIssuer, c.OperatorTokenTTL), nil
}
