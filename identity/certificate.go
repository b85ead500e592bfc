package identity

import (
	"crypto"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCertificate is returned when a response certificate doesn't match its payload.
var ErrInvalidCertificate = errors.New("invalid certificate")

// CertificateClaims binds a response payload digest to the state version it was read at.
type CertificateClaims struct {
	jwt.RegisteredClaims
	Digest  string `json:"digest"`
	Version int    `json:"version"`
}

// Certifier signs read responses with the service root key.
type Certifier struct {
	signer crypto.Signer
	issuer string
}

// Certify returns a certificate for the payload read at version.
// nil and empty slices produce different digests, callers pass non-nil values.
func (c *Certifier) Certify(version int, payload interface{}, now time.Time) (string, error) {
	digest, err := Digest(payload)
	if err != nil {
		return "", err
	}

	claims := CertificateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   c.issuer,
			IssuedAt: jwt.NewNumericDate(now.UTC()),
		},
		Digest:  digest,
		Version: version,
	}

	return sign(c.signer, claims)
}

// PublicKey returns the root key certificates are verified with.
func (c *Certifier) PublicKey() crypto.PublicKey {
	return c.signer.Public()
}

// NewCertifier creates a new Certifier object.
func NewCertifier(signer crypto.Signer, issuer string) *Certifier {
	return &Certifier{
		signer: signer,
		issuer: issuer,
	}
}

// VerifyCertificate checks the certificate signature and that it covers payload at version.
func VerifyCertificate(rootKey crypto.PublicKey, certificate string, version int, payload interface{}) error {
	if certificate == "" {
		return fmt.Errorf("%w: missing", ErrInvalidCertificate)
	}

	parsed, err := jwt.ParseWithClaims(certificate, &CertificateClaims{}, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
			return rootKey, nil
		}
		return nil, ErrInvalidCertificate
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
	}
	claims, ok := parsed.Claims.(*CertificateClaims)
	if !ok || !parsed.Valid {
		return ErrInvalidCertificate
	}

	digest, err := Digest(payload)
	if err != nil {
		return err
	}
	if claims.Digest != digest {
		return fmt.Errorf("%w: digest mismatch", ErrInvalidCertificate)
	}
	if claims.Version != version {
		return fmt.Errorf("%w: version mismatch (%d / %d)", ErrInvalidCertificate, claims.Version, version)
	}

	return nil
}

// Digest returns the hex SHA-256 of the payload JSON form.
func Digest(payload interface{}) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("JSON marshal: %w", err)
	}
	sum := sha256.Sum256(raw)

	return hex.EncodeToString(sum[:]), nil
}
