package tokens

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/snmusic/snmusic/backend/go-services/internal/config"
	"github.com/snmusic/snmusic/backend/go-services/internal/models"
)

// Claims are the verified contents of an access token.
type Claims struct {
	UserID string
	Name   string
	Email  string
	Admin  bool
}

// GenerateAccessToken creates a signed JWT access token for the user
func GenerateAccessToken(cfg *config.Config, u *models.User, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":   u.UserID,
		"name":  u.Name,
		"email": u.Email,
		"admin": u.Admin,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(ttl).Unix(),
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString([]byte(cfg.JWT.Secret))
}

// VerifyAccessToken parses and validates a token string, enforcing HS256.
func VerifyAccessToken(secret, tokenStr string) (*Claims, error) {
	parsed, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type")
	}
	c := &Claims{}
	if v, ok := mc["sub"].(string); ok {
		c.UserID = v
	}
	if c.UserID == "" {
		return nil, fmt.Errorf("token missing sub claim")
	}
	if v, ok := mc["name"].(string); ok {
		c.Name = v
	}
	if v, ok := mc["email"].(string); ok {
		c.Email = v
	}
	if v, ok := mc["admin"].(bool); ok {
		c.Admin = v
	}
	return c, nil
}
