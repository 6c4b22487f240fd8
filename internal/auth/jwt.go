package auth

import (
	"fmt"
	"time"

	"github.com/XavierBriggs/Apollo/pkg/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the token payload Apollo's identity provider issues. Apollo
// only reads these; account and subscription management live elsewhere.
type Claims struct {
	jwt.RegisteredClaims
	Email              string `json:"email,omitempty"`
	Role               string `json:"role"`
	SubscriptionActive bool   `json:"subscription_active"`
}

// Manager validates bearer tokens and derives the caller's identity.
type Manager struct {
	secret []byte
	expiry time.Duration
}

func NewManager(secret string, expiry time.Duration) *Manager {
	return &Manager{
		secret: []byte(secret),
		expiry: expiry,
	}
}

// GenerateToken mints a signed token. Used by tests and the ops tooling;
// production tokens come from the identity provider with the same secret.
func (m *Manager) GenerateToken(userID, email, role string, subscriptionActive bool) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			ID:        uuid.NewString(),
		},
		Email:              email,
		Role:               role,
		SubscriptionActive: subscriptionActive,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken parses and verifies a token, returning the caller's
// identity. Unknown roles land on the free tier rather than erroring.
func (m *Manager) ValidateToken(tokenString string) (models.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return models.Identity{}, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return models.Identity{}, fmt.Errorf("invalid token claims")
	}

	return models.Identity{
		UserID:             claims.Subject,
		Email:              claims.Email,
		Role:               models.ParseTier(claims.Role),
		SubscriptionActive: claims.SubscriptionActive,
	}, nil
}

// EffectiveTier is the entitlement actually applied to a request. A
// lapsed subscription serves the free tier no matter what role the token
// still carries; admins keep their access for operational work.
func EffectiveTier(id models.Identity) models.Tier {
	if id.Role == models.TierAdmin {
		return models.TierAdmin
	}
	if !id.SubscriptionActive && id.Role != models.TierFree {
		return models.TierFree
	}
	return id.Role
}
