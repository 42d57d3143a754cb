package api

import (
	"net/http"

	"github.com/MohamedNashad/seafood-node-api/internal/service"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) register(c *gin.Context) {
	var req service.UserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.svc.Users.Register(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.svc.Users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.setSessionCookie(c, res.Token, int(h.cookie.TTL.Seconds()))
	c.JSON(http.StatusOK, gin.H{
		"user":       res.User,
		"token":      res.Token,
		"expires_at": res.ExpiresAt,
	})
}

func (h *Handler) logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// setSessionCookie writes the httpOnly session cookie. Cross-site storefronts need
// SameSite=None, which browsers only accept on secure cookies.
func (h *Handler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	if h.cookie.Secure {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
	c.SetCookie(h.cookie.Name, value, maxAge, "/", "", h.cookie.Secure, true)
}

func (h *Handler) validateToken(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"userId": userID(c),
		"email":  c.GetString(ctxEmail),
	})
}

func (h *Handler) myAccess(c *gin.Context) {
	profile, err := h.svc.Access.Resolve(c.Request.Context(), userID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.svc.Users.List(c.Request.Context(), userID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *Handler) createUser(c *gin.Context) {
	var req service.UserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.svc.Users.Create(c.Request.Context(), userID(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) getUser(c *gin.Context) {
	user, err := h.svc.Users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) updateUser(c *gin.Context) {
	var req service.UserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.svc.Users.Update(c.Request.Context(), userID(c), c.Param("id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) userRoles(c *gin.Context) {
	roles, err := h.svc.RBAC.UserRoles(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, roles)
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

func (h *Handler) assignUserRoles(c *gin.Context) {
	var req idsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.svc.RBAC.AssignRolesToUser(c.Request.Context(), c.Param("id"), req.IDs); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "roles assigned"})
}

type linkClientRequest struct {
	ClientID string `json:"client_id"`
}

func (h *Handler) linkUserClient(c *gin.Context) {
	var req linkClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var err error
	if req.ClientID == "" {
		err = h.svc.Clients.UnlinkClient(c.Request.Context(), c.Param("id"))
	} else {
		err = h.svc.Clients.LinkClient(c.Request.Context(), c.Param("id"), req.ClientID)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "client linked"})
}

func (h *Handler) softDeleteUser(c *gin.Context) {
	h.respondLifecycle(c, h.svc.Users.SoftDelete(c.Request.Context(), c.Param("id")), "user deactivated")
}

func (h *Handler) activateUser(c *gin.Context) {
	h.respondLifecycle(c, h.svc.Users.Activate(c.Request.Context(), c.Param("id")), "user activated")
}

func (h *Handler) deleteUser(c *gin.Context) {
	h.respondLifecycle(c, h.svc.Users.Delete(c.Request.Context(), c.Param("id")), "user deleted")
}

func (h *Handler) respondLifecycle(c *gin.Context, err error, message string) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}
