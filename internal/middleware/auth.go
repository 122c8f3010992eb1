package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// JWTClaims represents the JWT token claims.
type JWTClaims struct {
	// UserID is the account identifier. It becomes the order owner on
	// authenticated order endpoints.
	UserID string `json:"user_id"`
	// Role distinguishes regular accounts from admin and relay accounts.
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware provides JWT authentication middleware.
type AuthMiddleware struct {
	secretKey       []byte
	adminSecretHash string
}

// NewAuthMiddleware creates a new authentication middleware. adminSecretHash
// is an optional bcrypt hash; when set, a matching X-Admin-Secret header is
// accepted as an alternative to an admin-role token.
func NewAuthMiddleware(secretKey, adminSecretHash string) *AuthMiddleware {
	return &AuthMiddleware{
		secretKey:       []byte(secretKey),
		adminSecretHash: adminSecretHash,
	}
}

// RequireAuth middleware validates JWT tokens.
// It requires a valid Bearer token in the Authorization header.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := am.claimsFromRequest(c)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			}
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_role", claims.Role)
		c.Next()
	}
}

// RequireAdmin middleware admits admin-role tokens, or a request carrying the
// admin secret in X-Admin-Secret when an admin secret hash is configured.
func (am *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if am.adminSecretHash != "" {
			if secret := c.GetHeader("X-Admin-Secret"); secret != "" {
				if err := bcrypt.CompareHashAndPassword([]byte(am.adminSecretHash), []byte(secret)); err == nil {
					c.Set("user_role", "admin")
					c.Next()
					return
				}
			}
		}

		claims, err := am.claimsFromRequest(c)
		if err != nil || claims.Role != "admin" {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_role", claims.Role)
		c.Next()
	}
}

func (am *AuthMiddleware) claimsFromRequest(c *gin.Context) (*JWTClaims, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("Authorization header required")
	}

	// Bearer prefix is case-insensitive per RFC 6750
	tokenParts := strings.Split(authHeader, " ")
	if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" || tokenParts[1] == "" {
		return nil, fmt.Errorf("Invalid authorization header format")
	}

	return am.ValidateToken(tokenParts[1])
}

// GenerateToken creates a new signed JWT for a user.
func (am *AuthMiddleware) GenerateToken(userID, role string, duration time.Duration) (string, error) {
	claims := &JWTClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(am.secretKey)
}

// ValidateToken validates a JWT token and returns its claims.
func (am *AuthMiddleware) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return am.secretKey, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
