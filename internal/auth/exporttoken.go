package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"classattend/internal/apperr"
)

const exportIssuer = "classattend-export"

// exportClaims binds a signed download token to one export file.
type exportClaims struct {
	File string `json:"file"`
	jwt.RegisteredClaims
}

// IssueExportToken signs a short-lived download token for an export file.
// The raw export directory is never exposed; downloads go through
// token-checked handler instead of static file serving.
func IssueExportToken(filename, key string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := exportClaims{
		File: filename,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    exportIssuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return "", apperr.Unexpected(err)
	}
	return token, nil
}

// ParseExportToken validates a download token and returns the filename it
// grants access to.
func ParseExportToken(tokenStr, key string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &exportClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return "", apperr.Authentication("invalid or expired download token")
	}
	claims, ok := parsed.Claims.(*exportClaims)
	if !ok || !parsed.Valid || claims.Issuer != exportIssuer || claims.File == "" {
		return "", apperr.Authentication("invalid or expired download token")
	}
	return claims.File, nil
}
