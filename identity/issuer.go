// Package identity implements the delegation-token identity provider and its client.
package identity

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/itiky/educhain-dao/model"
)

// ErrInvalidToken is returned when a token is malformed or invalid.
var ErrInvalidToken = errors.New("invalid token")

// DelegationClaims holds JWT claims of a delegation token.
type DelegationClaims struct {
	jwt.RegisteredClaims
}

// Verifier validates delegation tokens issued by a known provider key.
type Verifier struct {
	publicKey crypto.PublicKey
	issuer    string
	audience  string
}

// Validate parses and validates the delegation token (signature, exp, iss, aud).
// Returns the principal the token was issued for.
func (v *Verifier) Validate(token string) (model.Principal, error) {
	parsed, err := jwt.ParseWithClaims(token, &DelegationClaims{}, v.keyFunc,
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*DelegationClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return model.Principal(claims.Subject), nil
}

func (v *Verifier) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
		return v.publicKey, nil
	}
	return nil, ErrInvalidToken
}

// NewVerifier returns a Verifier trusting the given provider public key.
func NewVerifier(publicKey crypto.PublicKey, issuer, audience string) *Verifier {
	return &Verifier{
		publicKey: publicKey,
		issuer:    issuer,
		audience:  audience,
	}
}

// Issuer signs delegation tokens with RS256 or ES256.
type Issuer struct {
	*Verifier
	privateKey crypto.Signer
	maxTTL     time.Duration
}

// Issue creates a delegation token for the principal.
// ttl is capped by the Issuer max TTL (zero means max TTL).
func (i *Issuer) Issue(principal model.Principal, ttl time.Duration, now time.Time) (string, time.Time, error) {
	if principal == "" {
		return "", time.Time{}, fmt.Errorf("%s: empty", "principal")
	}
	if ttl <= 0 || ttl > i.maxTTL {
		ttl = i.maxTTL
	}

	now = now.UTC()
	expiresAt := now.Add(ttl)
	claims := DelegationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   string(principal),
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := sign(i.privateKey, claims)
	if err != nil {
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}

// PublicKey returns the key delegations are verified with.
func (i *Issuer) PublicKey() crypto.PublicKey {
	return i.publicKey
}

// NewIssuer returns an Issuer that signs with the given private key.
func NewIssuer(privateKey crypto.Signer, issuer, audience string, maxTTL time.Duration) (*Issuer, error) {
	if maxTTL <= 0 {
		return nil, fmt.Errorf("%s: must be GT 0", "maxTTL")
	}

	return &Issuer{
		Verifier:   NewVerifier(privateKey.Public(), issuer, audience),
		privateKey: privateKey,
		maxTTL:     maxTTL,
	}, nil
}

// PrincipalForSessionKey derives a stable principal from a client session key.
func PrincipalForSessionKey(sessionKey string) model.Principal {
	return model.Principal(uuid.NewSHA1(principalNamespace, []byte(sessionKey)).String())
}

var principalNamespace = uuid.MustParse("6f0c7d55-3c1e-4a8e-9a53-6b4c2c1d7e10")

func sign(privateKey crypto.Signer, claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidToken
	}
	t := jwt.NewWithClaims(method, claims)
	return t.SignedString(privateKey)
}
