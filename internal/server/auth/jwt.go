// Package auth issues and verifies access tokens and hashes passwords.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/common"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the caller identity inside an access token.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int64             `json:"uid"`
	Username string            `json:"username"`
	Roles    []models.RoleName `json:"roles"`
}

func GenerateToken(identity models.Identity, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		UserID:   identity.ID,
		Username: identity.Username,
		Roles:    identity.Roles,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies tokenString and returns the identity it carries.
// Expired tokens yield common.ErrTokenExpired, anything else unusable
// common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (models.Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Identity{}, common.ErrTokenExpired
		}
		return models.Identity{}, common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == 0 {
		return models.Identity{}, common.ErrInvalidToken
	}

	return models.Identity{ID: claims.UserID, Username: claims.Username, Roles: claims.Roles}, nil
}
