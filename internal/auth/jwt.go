package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/safar/go-shop-api/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is what an access token carries about the authenticated identity.
type Claims struct {
	UserID   int64
	Username string
	Email    string
	Role     string
}

// GenerateAccessToken mints an HS256 token for the user. The subject is the
// user id; username, email and role ride along so the surface layer does not
// have to hit the database on every request.
func GenerateAccessToken(user *models.User, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"name":  user.Username,
		"email": user.Email,
		"role":  user.Role,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateAccessToken parses and verifies a token string and returns the
// identity claims. Expired, malformed or wrongly-signed tokens all fail.
func ValidateAccessToken(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	sub, ok := claims["sub"].(float64)
	if !ok {
		return nil, ErrInvalidToken
	}

	out := &Claims{UserID: int64(sub)}
	if name, ok := claims["name"].(string); ok {
		out.Username = name
	}
	if email, ok := claims["email"].(string); ok {
		out.Email = email
	}
	if role, ok := claims["role"].(string); ok {
		out.Role = role
	}

	return out, nil
}
