package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func authTestRouter(am *AuthMiddleware) *gin.Engine {
	router := gin.New()
	router.GET("/protected", am.RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id")})
	})
	router.GET("/admin", am.RequireAdmin(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"role": c.GetString("user_role")})
	})
	return router
}

func TestRequireAuthValidToken(t *testing.T) {
	am := NewAuthMiddleware("test-secret", "")
	token, err := am.GenerateToken("alice", "user", time.Hour)
	require.NoError(t, err)

	router := authTestRouter(am)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice")
}

func TestRequireAuthRejections(t *testing.T) {
	am := NewAuthMiddleware("test-secret", "")
	expired, err := am.GenerateToken("alice", "user", -time.Minute)
	require.NoError(t, err)
	foreign, err := NewAuthMiddleware("other-secret", "").GenerateToken("alice", "user", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"malformed header", "Token abc"},
		{"empty token", "Bearer "},
		{"expired token", "Bearer " + expired},
		{"wrong signing key", "Bearer " + foreign},
	}

	router := authTestRouter(am)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRequireAdminRoleToken(t *testing.T) {
	am := NewAuthMiddleware("test-secret", "")
	adminToken, err := am.GenerateToken("root", "admin", time.Hour)
	require.NoError(t, err)
	userToken, err := am.GenerateToken("alice", "user", time.Hour)
	require.NoError(t, err)

	router := authTestRouter(am)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireAdminSecretHeader(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	am := NewAuthMiddleware("test-secret", string(hash))
	router := authTestRouter(am)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-Admin-Secret", "hunter2")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-Admin-Secret", "wrong")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestValidateTokenRoundTrip(t *testing.T) {
	am := NewAuthMiddleware("test-secret", "")
	token, err := am.GenerateToken("relay-1", "relay", time.Hour)
	require.NoError(t, err)

	claims, err := am.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "relay-1", claims.UserID)
	assert.Equal(t, "relay", claims.Role)
}
