package identity

import "time"

// NewTestIssuer returns an Issuer using a freshly generated key.
// For unit tests only.
func NewTestIssuer() (*Issuer, error) {
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}

	return NewIssuer(key, "test-issuer", "test-audience", time.Hour)
}

// NewTestCertifier returns a Certifier using a freshly generated key.
// For unit tests only.
func NewTestCertifier() (*Certifier, error) {
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}

	return NewCertifier(key, "test-service"), nil
}
