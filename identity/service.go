package identity

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/itiky/educhain-dao/model"
)

// IdentityService implements the identity provider RPC server service.
type IdentityService struct {
	issuer *Issuer
	now    func() time.Time
	logger *slog.Logger
}

// Login issues a delegation for the principal derived from the client session key.
func (s *IdentityService) Login(req model.LoginRequest, res *model.LoginResponse) error {
	if strings.TrimSpace(req.SessionKey) == "" {
		return fmt.Errorf("%s: empty", "SessionKey")
	}
	if req.MaxTTL < 0 {
		return fmt.Errorf("%s: must be GTE 0", "MaxTTL")
	}

	principal := PrincipalForSessionKey(req.SessionKey)
	token, expiresAt, err := s.issuer.Issue(principal, req.MaxTTL, s.now())
	if err != nil {
		s.logger.Error("delegation issue failed", "principal", principal, "error", err)
		return fmt.Errorf("issue delegation: %w", err)
	}

	res.Delegation = token
	res.Principal = principal
	res.ExpiresAt = expiresAt
	s.logger.Info("delegation issued", "principal", principal, "expires_at", expiresAt)

	return nil
}

// PublicKey returns the PEM encoded delegation verification key.
func (s *IdentityService) PublicKey(req model.PublicKeyRequest, res *model.PublicKeyResponse) error {
	pem, err := EncodePublicKey(s.issuer.PublicKey())
	if err != nil {
		return err
	}
	res.PublicKey = pem

	return nil
}

// NewIdentityService creates a new IdentityService object.
func NewIdentityService(issuer *Issuer, logger *slog.Logger) (*IdentityService, error) {
	if issuer == nil {
		return nil, fmt.Errorf("%s: nil", "issuer")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &IdentityService{
		issuer: issuer,
		now:    time.Now,
		logger: logger.With("component", "IdentityService"),
	}, nil
}
