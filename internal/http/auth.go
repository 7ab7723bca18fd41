package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	userIDKey    = "user_id"
	apiKeyHeader = "X-API-KEY"
)

// IssueToken подписывает HS256-токен с claim user_id
func IssueToken(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		userIDKey: userID,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// parseUserID проверяет подпись и срок токена и достаёт user_id
func parseUserID(secret, raw string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}
	userID, _ := claims[userIDKey].(string)
	if userID == "" {
		return "", errors.New("token has no user_id")
	}
	return userID, nil
}

func requireUser(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if raw == "" {
			unauthorized(c, "Authorization header is missing")
			return
		}
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer"))
		userID, err := parseUserID(secret, raw)
		if err != nil {
			unauthorized(c, "Invalid or expired token")
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// requireAdminKey ключ берётся из X-API-KEY; для websocket допускается ?api_key=
func requireAdminKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(apiKeyHeader)
		if got == "" {
			got = c.Query("api_key")
		}
		if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			unauthorized(c, "Invalid or missing API key")
			return
		}
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, envelope{Success: false, Message: msg})
}

func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}
