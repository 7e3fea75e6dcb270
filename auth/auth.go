// Package auth verifies the bearer tokens that identify object owners.
//
// Tokens are HS256 JWTs issued elsewhere; the subject claim is the owner's
// user id. The "kid" header selects the verification key so keys can be
// rotated without invalidating tokens signed by the previous one.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sagarc03/ephemera"
)

// SecretStore resolves a key id to its HMAC secret.
type SecretStore interface {
	Lookup(keyID string) (string, error)
}

// Claims are the token claims the service relies on.
type Claims struct {
	jwt.RegisteredClaims
}

// VerifierConfig holds options for Verifier.
type VerifierConfig struct {
	Issuer string        // required "iss" when set
	Leeway time.Duration // clock skew tolerated on exp/nbf/iat
	Clock  func() time.Time
}

// Verifier checks bearer tokens and extracts the owner id.
type Verifier struct {
	store  SecretStore
	parser *jwt.Parser
}

func NewVerifier(store SecretStore, cfg VerifierConfig) *Verifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Clock != nil {
		opts = append(opts, jwt.WithTimeFunc(cfg.Clock))
	}

	return &Verifier{store: store, parser: jwt.NewParser(opts...)}
}

func (v *Verifier) keyFunc(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, errors.New("missing kid header")
	}

	secret, err := v.store.Lookup(kid)
	if err != nil {
		return nil, err
	}

	return []byte(secret), nil
}

// Verify parses and validates a raw token.
//
// Returns:
//   - string: The owner's user id (the token subject)
//   - error: ErrUnauthorized for any malformed, expired, unsigned or unknown-key token
func (v *Verifier) Verify(raw string) (string, error) {
	var claims Claims

	if _, err := v.parser.ParseWithClaims(raw, &claims, v.keyFunc); err != nil {
		return "", fmt.Errorf("verify token: %w: %w", ephemera.ErrUnauthorized, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("verify token: %w: missing subject", ephemera.ErrUnauthorized)
	}

	return claims.Subject, nil
}

// Issuer signs tokens for local development and tests.
type Issuer struct {
	keyID  string
	secret []byte
	issuer string
	ttl    time.Duration
	clock  func() time.Time
}

// NewIssuer returns an Issuer signing with the given key. A zero ttl means
// one hour.
func NewIssuer(keyID, secret, issuer string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{keyID: keyID, secret: []byte(secret), issuer: issuer, ttl: ttl, clock: time.Now}
}

// Issue returns a signed token whose subject is userID.
func (i *Issuer) Issue(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("issue token: %w: user id cannot be empty", ephemera.ErrInvalidInput)
	}

	now := i.clock()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t.Header["kid"] = i.keyID

	signed, err := t.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return signed, nil
}
