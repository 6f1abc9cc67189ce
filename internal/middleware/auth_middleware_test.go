package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taskboard/internal/auth"
	"taskboard/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

const jwtSecret = "test-secret-key"

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	protected := r.Group("/protected")
	protected.Use(middleware.Authenticate(auth.NewManager(jwtSecret, time.Hour)))
	protected.GET("/resource", func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "User ID not found in context"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Access granted", "user_id": userID})
	})

	return r
}

// signV4 builds tokens with the v4 API to check both major versions interoperate.
func signV4(claims jwt.MapClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(jwtSecret))
	return tokenString
}

func request(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, "/protected/resource", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestAuthenticate_ValidToken(t *testing.T) {
	// Arrange
	router := setupRouter()
	userID := uuid.New()
	token := signV4(jwt.MapClaims{
		"user_id": userID.String(),
		"exp":     jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	})

	// Act
	resp := request(router, "Bearer "+token)

	// Assert
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "Access granted")
	assert.Contains(t, resp.Body.String(), userID.String())
}

func TestAuthenticate_AcceptsManagerTokens(t *testing.T) {
	router := setupRouter()
	userID := uuid.New()
	token, err := auth.NewManager(jwtSecret, time.Hour).Generate(userID)
	assert.NoError(t, err)

	resp := request(router, "Bearer "+token)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), userID.String())
}

func TestAuthenticate_Rejections(t *testing.T) {
	expired := signV4(jwt.MapClaims{
		"user_id": uuid.NewString(),
		"exp":     jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	badUserID := signV4(jwt.MapClaims{
		"user_id": "not-a-valid-uuid",
		"exp":     jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	})

	tests := []struct {
		name          string
		authorization string
		message       string
	}{
		{"no header", "", "Authorization header is required"},
		{"wrong scheme", "InvalidFormat token123", "Authorization header format must be Bearer {token}"},
		{"empty bearer", "Bearer ", "Authorization header format must be Bearer {token}"},
		{"garbage token", "Bearer invalid-token", "Invalid or expired token"},
		{"expired token", "Bearer " + expired, "Invalid or expired token"},
		{"malformed user id", "Bearer " + badUserID, "Invalid user ID in token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := request(setupRouter(), tt.authorization)

			assert.Equal(t, http.StatusUnauthorized, resp.Code)
			assert.Contains(t, resp.Body.String(), tt.message)
		})
	}
}
