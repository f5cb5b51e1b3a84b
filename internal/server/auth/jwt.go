// Package auth issues and verifies operator access tokens and access keys.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/handlewatch/internal/common"
)

// Claims carries the operator identity inside an access token.
type Claims struct {
	jwt.RegisteredClaims
	OperatorID int64 `json:"operator_id"`
}

func GenerateToken(operatorID int64, secretKey []byte, validity time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		OperatorID: operatorID,
	})
	return token.SignedString(secretKey)
}

// OperatorIDFromToken validates tokenString. Expired tokens yield
// common.ErrTokenExpired, every other failure common.ErrInvalidToken.
func OperatorIDFromToken(tokenString string, secretKey []byte) (int64, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, common.ErrTokenExpired
		}
		return 0, common.ErrInvalidToken
	}
	if !token.Valid || claims.OperatorID == 0 {
		return 0, common.ErrInvalidToken
	}
	return claims.OperatorID, nil
}
