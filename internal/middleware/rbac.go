package middleware

import (
	"net/http"
	"slices"

	"github.com/funmath/funmath-backend/internal/model"
	"github.com/funmath/funmath-backend/internal/response"
	"github.com/gin-gonic/gin"
)

// RequireRole allows the request through only for the listed roles.
// Must run after RequireJWT.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		if slices.Contains(roles, claims.Role) {
			c.Next()
			return
		}

		code := response.ErrForbidden
		switch {
		case len(roles) == 1 && roles[0] == model.RoleLearner:
			code = response.ErrLearnerOnly
		case len(roles) == 1 && roles[0] == model.RoleAdmin:
			code = response.ErrModeratorOnly
		}
		response.AbortFail(c, http.StatusForbidden, code)
	}
}
