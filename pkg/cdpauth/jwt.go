package cdpauth

import (
	"context"
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultExpiry is the lifetime of a request token.
const DefaultExpiry = 120 * time.Second

var ErrInvalidSecret = errors.New("cdpauth: unsupported API key secret")

// Claims are the claims of a CDP API request token.
type Claims struct {
	URIs []string `json:"uris,omitempty"`
	jwt.RegisteredClaims
}

// Signer issues request-scoped JWTs for a CDP API key.
type Signer struct {
	keyID  string
	key    crypto.Signer
	method jwt.SigningMethod
	expiry time.Duration
	now    func() time.Time
}

// NewSigner parses secret, either an EC private key in PEM form (ES256) or a
// base64 Ed25519 key (EdDSA).
func NewSigner(keyID, secret string, expiry time.Duration) (*Signer, error) {
	if keyID == "" {
		return nil, errors.New("cdpauth: key id is required")
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	s := &Signer{keyID: keyID, expiry: expiry, now: time.Now}

	secret = strings.TrimSpace(strings.ReplaceAll(secret, `\n`, "\n"))
	if strings.HasPrefix(secret, "-----BEGIN") {
		key, err := jwt.ParseECPrivateKeyFromPEM([]byte(secret))
		if err != nil {
			return nil, fmt.Errorf("cdpauth: parse EC key: %w", err)
		}
		s.key, s.method = key, jwt.SigningMethodES256
		return s, nil
	}

	raw, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	switch len(raw) {
	case ed25519.PrivateKeySize:
		s.key = ed25519.PrivateKey(raw)
	case ed25519.SeedSize:
		s.key = ed25519.NewKeyFromSeed(raw)
	default:
		return nil, fmt.Errorf("%w: ed25519 key of %d bytes", ErrInvalidSecret, len(raw))
	}
	s.method = jwt.SigningMethodEdDSA
	return s, nil
}

// Generate returns a token authorizing one request. An empty host and path
// yields a token without the uris claim.
func (s *Signer) Generate(method, host, path string) (string, error) {
	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.keyID,
			Issuer:    "cdp",
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}
	if host != "" || path != "" {
		claims.URIs = []string{strings.ToUpper(method) + " " + host + path}
	}

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("cdpauth: nonce: %w", err)
	}

	token := jwt.NewWithClaims(s.method, claims)
	token.Header["kid"] = s.keyID
	token.Header["nonce"] = hex.EncodeToString(nonce)
	return token.SignedString(s.key)
}

// Token implements x402.TokenSource.
func (s *Signer) Token(_ context.Context, method, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("cdpauth: parse url: %w", err)
	}
	return s.Generate(method, u.Host, u.Path)
}

// PublicKey returns the verification key.
func (s *Signer) PublicKey() crypto.PublicKey { return s.key.Public() }
