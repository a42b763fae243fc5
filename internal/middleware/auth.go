package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/minato/storefront-api/internal/model"
)

const guestTokenHeader = "X-Guest-Token"

func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, ok := parseBearer(c, secret)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set("userID", userID)
		c.Set("userRole", role)
		c.Next()
	}
}

// OptionalAuth resolves the caller to either an authenticated user or a
// guest session. A valid bearer token wins; otherwise the guest token header
// is used, minted on first contact and echoed back so the client can keep it.
func OptionalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, role, ok := parseBearer(c, secret); ok {
			c.Set("userID", userID)
			c.Set("userRole", role)
			c.Next()
			return
		}

		token := c.GetHeader(guestTokenHeader)
		if token == "" {
			token = uuid.NewString()
		}
		c.Set("guestToken", token)
		c.Header(guestTokenHeader, token)
		c.Next()
	}
}

func parseBearer(c *gin.Context, secret string) (uuid.UUID, string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return uuid.Nil, "", false
	}

	token, err := jwt.Parse(header[7:], func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, "", false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, "", false
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, "", false
	}

	role, _ := claims["role"].(string)
	return userID, role, true
}

func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUserRole(c) != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) uuid.UUID {
	id, _ := c.Get("userID")
	uid, _ := id.(uuid.UUID)
	return uid
}

func GetUserRole(c *gin.Context) string {
	role, _ := c.Get("userRole")
	r, _ := role.(string)
	return r
}

// GetSession returns the caller identity set by OptionalAuth or
// AuthMiddleware.
func GetSession(c *gin.Context) model.Session {
	sess := model.Session{UserID: GetUserID(c)}
	if token, ok := c.Get("guestToken"); ok {
		sess.GuestToken, _ = token.(string)
	}
	return sess
}
