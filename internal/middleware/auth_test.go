package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codesherpa/internal/auth"
	"codesherpa/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRequireAuth(t *testing.T) {
	authService := auth.NewAuthService("test-secret-key-for-auth-middleware")
	user := &models.User{ID: 1, Email: "test@example.com", IsActive: true}

	pair, err := authService.GenerateTokens(user)
	require.NoError(t, err)

	expired := auth.NewAuthService("test-secret-key-for-auth-middleware",
		auth.WithClock(func() time.Time { return time.Now().Add(-24 * time.Hour) }))
	oldPair, err := expired.GenerateTokens(user)
	require.NoError(t, err)

	tests := []struct {
		name        string
		header      string
		wantStatus  int
		wantMessage string
	}{
		{"valid token", "Bearer " + pair.AccessToken, http.StatusOK, ""},
		{"lowercase scheme", "bearer " + pair.AccessToken, http.StatusOK, ""},
		{"missing header", "", http.StatusUnauthorized, "Not authenticated"},
		{"no scheme", pair.AccessToken, http.StatusUnauthorized, "Invalid authorization header format"},
		{"basic scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, "Invalid authorization header format"},
		{"empty token", "Bearer  ", http.StatusUnauthorized, "Not authenticated"},
		{"garbage token", "Bearer abc.def.ghi", http.StatusUnauthorized, "Could not validate credentials"},
		{"refresh token rejected", "Bearer " + pair.RefreshToken, http.StatusUnauthorized, "Could not validate credentials"},
		{"expired token", "Bearer " + oldPair.AccessToken, http.StatusUnauthorized, "Token has expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/protected", RequireAuth(authService), func(c *gin.Context) {
				id, ok := GetUserID(c)
				require.True(t, ok)
				email, ok := GetUserEmail(c)
				require.True(t, ok)
				c.JSON(http.StatusOK, gin.H{"user_id": id, "email": email})
			})

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decodeEnvelope(t, w)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, float64(1), body["user_id"])
				assert.Equal(t, "test@example.com", body["email"])
				return
			}
			assert.Equal(t, false, body["success"])
			assert.Nil(t, body["data"])
			assert.Equal(t, tt.wantMessage, body["message"])
			assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestGetUserID_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, ok := GetUserID(c)
	assert.False(t, ok)
	_, ok = GetUserEmail(c)
	assert.False(t, ok)

	c.Set(ContextUserID, "not-a-uint")
	_, ok = GetUserID(c)
	assert.False(t, ok)
}
