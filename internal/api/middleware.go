package api

import (
	"net/http"
	"strings"

	"github.com/MohamedNashad/seafood-node-api/internal/apperr"
	"github.com/MohamedNashad/seafood-node-api/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Context keys set by the session middleware
const (
	ctxUserID = "userId"
	ctxEmail  = "email"
)

func (h *Handler) sessionToken(c *gin.Context) string {
	if token, err := c.Cookie(h.cookie.Name); err == nil && token != "" {
		return token
	}
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// RequireSession rejects requests without a valid session token
func (h *Handler) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := h.sessionToken(c)
		if raw == "" {
			abortWithError(c, apperr.Unauthorized("authentication required"))
			return
		}

		claims, err := h.svc.Users.ValidateToken(raw)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxEmail, claims.Email)
		c.Next()
	}
}

// OptionalSession identifies the caller when a valid token is present and lets
// anonymous requests through
func (h *Handler) OptionalSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := h.sessionToken(c); raw != "" {
			if claims, err := h.svc.Users.ValidateToken(raw); err == nil {
				c.Set(ctxUserID, claims.UserID)
				c.Set(ctxEmail, claims.Email)
			}
		}
		c.Next()
	}
}

// RequirePermission resolves the caller's access on every request and checks one code
func (h *Handler) RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := h.svc.Access.Authorize(c.Request.Context(), c.GetString(ctxUserID), permission); err != nil {
			abortWithError(c, err)
			return
		}
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

func errorBody(err error) (int, gin.H) {
	e := apperr.From(err)
	body := gin.H{
		"error": e.Message,
		"code":  e.Kind,
	}
	if len(e.Fields) > 0 {
		body["fields"] = e.Fields
	}
	return apperr.HTTPStatus(err), body
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status, body := errorBody(err)
	if status >= http.StatusInternalServerError {
		util.WithTrace(c.Request.Context(), h.logger).Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, body)
}

func abortWithError(c *gin.Context, err error) {
	status, body := errorBody(err)
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
}
