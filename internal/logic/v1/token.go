package v1

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tryswift/cfp-auth/internal/core/domain"
	"github.com/tryswift/cfp-auth/middleware"
)

// credentialTTL is the lifetime of an issued session credential.
// expiresAt is always issuedAt + credentialTTL.
const credentialTTL = 7 * 24 * time.Hour

// Claims is the payload of a session credential. The credential is
// self-contained and stateless: verification never touches the database,
// which also means issued credentials cannot be revoked before expiry.
type Claims struct {
	jwt.RegisteredClaims
	Role     domain.Role `json:"role"`
	Username string      `json:"username"`
}

// TokenService mints and validates signed session credentials (HS256 JWTs).
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a TokenService signing with the given secret.
func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret), now: time.Now}
}

// Issue mints a credential for the given user. Signing can only fail on a
// broken key, which is a programming error rather than a runtime condition.
func (s *TokenService) Issue(userID int, role domain.Role, username string) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(credentialTTL)),
		},
		Role:     role,
		Username: username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign credential: %w", err)
	}
	return signed, nil
}

// Verify validates the credential and returns its claims. Structure and
// signature are checked before expiry: a tampered token fails with
// ErrSignatureInvalid even when its expiry is also in the past.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("parse credential: %w", ErrCredentialMalformed)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("verify credential: %w", ErrSignatureInvalid)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("verify credential: %w", ErrCredentialExpired)
		default:
			return nil, fmt.Errorf("verify credential: %v: %w", err, ErrCredentialMalformed)
		}
	}

	if !claims.Role.Valid() {
		return nil, fmt.Errorf("verify credential: unknown role %q: %w", claims.Role, ErrCredentialMalformed)
	}

	return claims, nil
}

// VerifyIdentity adapts Verify to the gatekeeper's contract.
func (s *TokenService) VerifyIdentity(tokenString string) (*middleware.Identity, error) {
	claims, err := s.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.Identity{
		Subject:  claims.Subject,
		Role:     claims.Role,
		Username: claims.Username,
	}, nil
}
