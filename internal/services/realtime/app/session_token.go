package server

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"
)

var (
	errSessionTokenRequired = errors.New("session token is required")
	errSessionTokenInvalid  = errors.New("session token is invalid")
	errSessionTokenExpired  = errors.New("session token is expired")
)

// sessionTokenEnv holds raw env values before post-parse validation.
type sessionTokenEnv struct {
	Issuer    string `env:"CREWDECK_SESSION_TOKEN_ISSUER"`
	Audience  string `env:"CREWDECK_SESSION_TOKEN_AUDIENCE"`
	PublicKey string `env:"CREWDECK_SESSION_TOKEN_PUBLIC_KEY"`
}

// SessionTokenConfig defines how session tokens are verified.
type SessionTokenConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// Configured reports whether the config carries a usable verification key.
func (c SessionTokenConfig) Configured() bool {
	return c.Issuer != "" && c.Audience != "" && len(c.Key) == ed25519.PublicKeySize
}

// LoadSessionTokenConfigFromEnv reads session token verification settings.
// All three variables absent means auth is intentionally unconfigured and the
// zero config is returned without error; a partial set is a configuration
// mistake and fails.
func LoadSessionTokenConfigFromEnv(now func() time.Time) (SessionTokenConfig, error) {
	var raw sessionTokenEnv
	if err := env.Parse(&raw); err != nil {
		return SessionTokenConfig{}, fmt.Errorf("parse session token env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" && audience == "" && publicKey == "" {
		return SessionTokenConfig{}, nil
	}
	if issuer == "" {
		return SessionTokenConfig{}, fmt.Errorf("CREWDECK_SESSION_TOKEN_ISSUER is required")
	}
	if audience == "" {
		return SessionTokenConfig{}, fmt.Errorf("CREWDECK_SESSION_TOKEN_AUDIENCE is required")
	}
	if publicKey == "" {
		return SessionTokenConfig{}, fmt.Errorf("CREWDECK_SESSION_TOKEN_PUBLIC_KEY is required")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return SessionTokenConfig{}, fmt.Errorf("decode session token public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return SessionTokenConfig{}, fmt.Errorf("session token public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return SessionTokenConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// wsAuthorizer resolves a session token to the owning user id.
type wsAuthorizer interface {
	Authenticate(ctx context.Context, accessToken string) (string, error)
}

type sessionTokenAuthorizer struct {
	config SessionTokenConfig
}

func newSessionTokenAuthorizer(config SessionTokenConfig) wsAuthorizer {
	if !config.Configured() {
		return nil
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &sessionTokenAuthorizer{config: config}
}

func (a *sessionTokenAuthorizer) Authenticate(_ context.Context, accessToken string) (string, error) {
	if a == nil || !a.config.Configured() {
		return "", errors.New("session token verifier is not configured")
	}
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return "", errSessionTokenRequired
	}

	var parsed jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(accessToken, &parsed, func(token *jwt.Token) (any, error) {
		return a.config.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return "", mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != a.config.Issuer {
		return "", fmt.Errorf("%w: issuer mismatch", errSessionTokenInvalid)
	}
	if !audienceContains(parsed.Audience, a.config.Audience) {
		return "", fmt.Errorf("%w: audience mismatch", errSessionTokenInvalid)
	}
	if parsed.ExpiresAt == nil {
		return "", fmt.Errorf("%w: exp is required", errSessionTokenInvalid)
	}

	now := a.config.Now().UTC()
	if !parsed.ExpiresAt.Time.UTC().After(now) {
		return "", errSessionTokenExpired
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time.UTC()) {
		return "", fmt.Errorf("%w: not active yet", errSessionTokenInvalid)
	}

	userID := strings.TrimSpace(parsed.Subject)
	if userID == "" {
		return "", fmt.Errorf("%w: sub is required", errSessionTokenInvalid)
	}
	return userID, nil
}

// mapJWTError translates jwt library errors to session token errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return fmt.Errorf("%w: bad signature", errSessionTokenInvalid)
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return fmt.Errorf("%w: bad alg", errSessionTokenInvalid)
	}
	return errSessionTokenInvalid
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
