package api

import (
	"net/http"

	"github.com/MohamedNashad/seafood-node-api/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listRoles(c *gin.Context) {
	roles, err := h.svc.RBAC.ListRoles(c.Request.Context(), userID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, roles)
}

func (h *Handler) createRole(c *gin.Context) {
	var req service.RoleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	role, err := h.svc.RBAC.CreateRole(c.Request.Context(), userID(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, role)
}

func (h *Handler) getRole(c *gin.Context) {
	role, err := h.svc.RBAC.GetRole(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, role)
}

func (h *Handler) updateRole(c *gin.Context) {
	var req service.RoleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	role, err := h.svc.RBAC.UpdateRole(c.Request.Context(), userID(c), c.Param("id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, role)
}

func (h *Handler) assignRolePermissions(c *gin.Context) {
	var req idsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.svc.RBAC.AssignPermissionsToRole(c.Request.Context(), c.Param("id"), req.IDs); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "permissions assigned"})
}

func (h *Handler) softDeleteRole(c *gin.Context) {
	h.respondLifecycle(c, h.svc.RBAC.SoftDeleteRole(c.Request.Context(), c.Param("id")), "role deactivated")
}

func (h *Handler) activateRole(c *gin.Context) {
	h.respondLifecycle(c, h.svc.RBAC.ActivateRole(c.Request.Context(), c.Param("id")), "role activated")
}

func (h *Handler) deleteRole(c *gin.Context) {
	h.respondLifecycle(c, h.svc.RBAC.DeleteRole(c.Request.Context(), c.Param("id")), "role deleted")
}

func (h *Handler) listPermissions(c *gin.Context) {
	perms, err := h.svc.RBAC.ListPermissions(c.Request.Context(), userID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, perms)
}

func (h *Handler) createPermission(c *gin.Context) {
	var req service.PermissionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	perm, err := h.svc.RBAC.CreatePermission(c.Request.Context(), userID(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, perm)
}

func (h *Handler) getPermission(c *gin.Context) {
	perm, err := h.svc.RBAC.GetPermission(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, perm)
}

func (h *Handler) updatePermission(c *gin.Context) {
	var req service.PermissionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	perm, err := h.svc.RBAC.UpdatePermission(c.Request.Context(), userID(c), c.Param("id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, perm)
}

func (h *Handler) softDeletePermission(c *gin.Context) {
	h.respondLifecycle(c, h.svc.RBAC.SoftDeletePermission(c.Request.Context(), c.Param("id")), "permission deactivated")
}

func (h *Handler) activatePermission(c *gin.Context) {
	h.respondLifecycle(c, h.svc.RBAC.ActivatePermission(c.Request.Context(), c.Param("id")), "permission activated")
}

func (h *Handler) deletePermission(c *gin.Context) {
	h.respondLifecycle(c, h.svc.RBAC.DeletePermission(c.Request.Context(), c.Param("id")), "permission deleted")
}
