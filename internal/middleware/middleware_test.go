package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/funmath/funmath-backend/internal/config"
	"github.com/funmath/funmath-backend/internal/model"
	"github.com/funmath/funmath-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuth() *service.AuthService {
	return service.NewAuthService(&config.Config{JWTSecret: "mw-secret", JWTExpiry: time.Hour}, nil)
}

func router(auth *service.AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/learner", RequireJWT(auth), RequireRole(model.RoleLearner), func(c *gin.Context) {
		c.String(http.StatusOK, "%d", GetClaims(c).UserID)
	})
	return r
}

func token(t *testing.T, auth *service.AuthService, role model.Role) string {
	t.Helper()
	tok, _, err := auth.GenerateToken(&model.User{ID: 42, Role: role})
	require.NoError(t, err)
	return tok
}

func TestRequireJWTHeaderAndQuery(t *testing.T) {
	auth := newAuth()
	r := router(auth)
	tok := token(t, auth, model.RoleLearner)

	req := httptest.NewRequest(http.MethodGet, "/learner", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/learner?token="+tok, nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireJWTRejects(t *testing.T) {
	auth := newAuth()
	r := router(auth)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/learner", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_REQUIRED")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/learner?token=garbage", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_INVALID")
}

func TestRequireRole(t *testing.T) {
	auth := newAuth()
	r := router(auth)

	req := httptest.NewRequest(http.MethodGet, "/learner", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, auth, model.RoleTeacher))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "LEARNER_ACCESS_ONLY")
}
