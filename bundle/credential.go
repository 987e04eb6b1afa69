package bundle

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CredentialEnvVar is the environment variable carrying the
// base64-encoded storage credential blob.
const CredentialEnvVar = "AGESET_STORAGE_CREDENTIAL"

// ErrNoCredential is returned when no credential blob is configured.
var ErrNoCredential = errors.New("storage credential not configured")

// Credential is the bearer credential for the remote storage
// collaborator. Token is passed through to the storage client as-is;
// no auth logic lives here beyond decoding and expiry inspection.
type Credential struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"-"`
}

// LoadCredential decodes the base64 credential blob from the
// environment. The blob is JSON with a "token" field holding the
// bearer token.
func LoadCredential() (*Credential, error) {
	encoded := os.Getenv(CredentialEnvVar)
	if encoded == "" {
		return nil, ErrNoCredential
	}
	return DecodeCredential(encoded)
}

// DecodeCredential parses a base64 credential blob.
func DecodeCredential(encoded string) (*Credential, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: credential blob is not valid base64: %v", ErrPermanent, err)
	}

	var cred Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return nil, fmt.Errorf("%w: credential blob is not valid JSON: %v", ErrPermanent, err)
	}
	if cred.Token == "" {
		return nil, fmt.Errorf("%w: credential blob has no token", ErrPermanent)
	}

	// Bearer tokens from the storage provider are JWTs; read the exp
	// claim without verifying the signature (verification is the
	// storage service's job) so a reload knows when to re-fetch.
	if exp, ok := tokenExpiry(cred.Token); ok {
		cred.ExpiresAt = exp
	}
	return &cred, nil
}

// Expired reports whether the credential is past its expiry, with a
// small safety margin. Tokens without a readable expiry never report
// expired.
func (c *Credential) Expired() bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(c.ExpiresAt.Add(-30 * time.Second))
}

func tokenExpiry(token string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
