package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"notesvc/internal/models"
)

var (
	// ErrTokenMalformed covers tokens that cannot be parsed or whose
	// signature does not validate.
	ErrTokenMalformed = errors.New("token is malformed or has an invalid signature")
	// ErrTokenExpired covers tokens whose expiry has passed.
	ErrTokenExpired = errors.New("token expired")
)

// TokenService signs and verifies stateless bearer tokens.
type TokenService interface {
	Sign(userID int64, email string) (token string, expiresAt time.Time, err error)
	Verify(token string) (*models.Claims, error)
}

type tokenService struct {
	secret []byte
	expiry time.Duration
}

// NewTokenService creates a TokenService signing with the given secret.
// The secret must be non-empty; config validation enforces that before
// the process starts serving.
func NewTokenService(secret string, expiry time.Duration) TokenService {
	return &tokenService{secret: []byte(secret), expiry: expiry}
}

func (s *tokenService) Sign(userID int64, email string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.expiry)

	claims := &models.Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *tokenService) Verify(tokenString string) (*models.Claims, error) {
	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}
	if !token.Valid {
		return nil, ErrTokenMalformed
	}
	// Every token this service signs carries iat and exp. A token missing
	// either cannot be checked against the invalidation rule or the
	// expiry, so it is rejected outright.
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}
