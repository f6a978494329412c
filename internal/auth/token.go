package auth

import (
	"fmt"
	"time"

	"github.com/BradenHooton/resera/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenManager handles JWT token generation and validation
type TokenManager struct {
	secret          []byte
	accessExpiry    time.Duration
	challengeExpiry time.Duration
	now             func() time.Time
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, accessExpiry, challengeExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:          []byte(secret),
		accessExpiry:    accessExpiry,
		challengeExpiry: challengeExpiry,
		now:             time.Now,
	}
}

// GenerateAccessToken issues an access token for a fully authenticated account.
// It also returns the token's expiry.
func (tm *TokenManager) GenerateAccessToken(identity models.Identity, passwordExpired bool) (string, time.Time, error) {
	expiresAt := tm.now().Add(tm.accessExpiry)
	claims := &models.TokenClaims{
		Type:             models.TokenTypeAccess,
		AccountID:        identity.ID,
		Email:            identity.Email,
		PasswordExpired:  passwordExpired,
		RegisteredClaims: tm.registered(identity.ID, expiresAt),
	}

	token, err := tm.sign(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return token, expiresAt, nil
}

// GenerateChallengeToken issues the short-lived token that carries a
// password-verified login over to the second-factor step
func (tm *TokenManager) GenerateChallengeToken(accountID string) (string, error) {
	claims := &models.TokenClaims{
		Type:             models.TokenTypeTwoFactorChallenge,
		AccountID:        accountID,
		RegisteredClaims: tm.registered(accountID, tm.now().Add(tm.challengeExpiry)),
	}

	token, err := tm.sign(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign challenge token: %w", err)
	}
	return token, nil
}

// ValidateToken verifies a token's signature, lifetime and type
func (tm *TokenManager) ValidateToken(tokenString, expectedType string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if claims.Type != expectedType {
		return nil, fmt.Errorf("unexpected token type %q", claims.Type)
	}

	if claims.AccountID == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	return claims, nil
}

func (tm *TokenManager) registered(subject string, expiresAt time.Time) jwt.RegisteredClaims {
	now := tm.now()
	return jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
}

func (tm *TokenManager) sign(claims *models.TokenClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
}
