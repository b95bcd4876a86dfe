package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonathan/resume-builder/internal/config"
)

const shareIssuer = "resume-builder"

// ErrInvalidShareToken is matched by every token validation failure.
var ErrInvalidShareToken = errors.New("invalid share token")

// ShareClaims identifies the resume a public link points at.
type ShareClaims struct {
	ResumeID uuid.UUID `json:"resume_id"`
	jwt.RegisteredClaims
}

// ShareService signs and validates public share links.
type ShareService struct {
	secret     []byte
	expiration time.Duration
	now        func() time.Time
}

// NewShareService creates a share service from configuration.
func NewShareService(cfg config.ShareConfig) (*ShareService, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("share secret is required")
	}
	if cfg.ExpirationHours < 1 {
		return nil, fmt.Errorf("share expiration must be at least 1 hour, got: %d", cfg.ExpirationHours)
	}
	return &ShareService{
		secret:     []byte(cfg.Secret),
		expiration: cfg.Expiration(),
		now:        time.Now,
	}, nil
}

// GenerateToken signs a link for resumeID and returns it with its expiry.
func (s *ShareService) GenerateToken(resumeID uuid.UUID) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.expiration)

	claims := &ShareClaims{
		ResumeID: resumeID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    shareIssuer,
			Subject:   resumeID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateToken returns the resume id of a valid link.
func (s *ShareService) ValidateToken(tokenString string) (uuid.UUID, error) {
	if tokenString == "" {
		return uuid.Nil, fmt.Errorf("%w: token string is empty", ErrInvalidShareToken)
	}

	claims := &ShareClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(shareIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return uuid.Nil, fmt.Errorf("%w: token expired: %w", ErrInvalidShareToken, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return uuid.Nil, fmt.Errorf("%w: invalid token signature: %w", ErrInvalidShareToken, err)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return uuid.Nil, fmt.Errorf("%w: malformed token: %w", ErrInvalidShareToken, err)
		}
		return uuid.Nil, fmt.Errorf("%w: failed to parse token: %w", ErrInvalidShareToken, err)
	}
	if !token.Valid || claims.ResumeID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: token is not valid", ErrInvalidShareToken)
	}
	return claims.ResumeID, nil
}
