package api

import (
	"net/http"

	"github.com/MohamedNashad/seafood-node-api/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listClients(c *gin.Context) {
	clients, err := h.svc.Clients.List(c.Request.Context(), userID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, clients)
}

func (h *Handler) createClient(c *gin.Context) {
	var req service.ClientInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	client, err := h.svc.Clients.Create(c.Request.Context(), userID(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

func (h *Handler) getClient(c *gin.Context) {
	client, err := h.svc.Clients.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *Handler) updateClient(c *gin.Context) {
	var req service.ClientInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	client, err := h.svc.Clients.Update(c.Request.Context(), userID(c), c.Param("id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *Handler) softDeleteClient(c *gin.Context) {
	h.respondLifecycle(c, h.svc.Clients.SoftDelete(c.Request.Context(), c.Param("id")), "client deactivated")
}

func (h *Handler) activateClient(c *gin.Context) {
	h.respondLifecycle(c, h.svc.Clients.Activate(c.Request.Context(), c.Param("id")), "client activated")
}

func (h *Handler) deleteClient(c *gin.Context) {
	h.respondLifecycle(c, h.svc.Clients.Delete(c.Request.Context(), c.Param("id")), "client deleted")
}

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.svc.Products.List(c.Request.Context(), userID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) storefront(c *gin.Context) {
	products, err := h.svc.Products.ListByClient(c.Request.Context(), c.Param("clientId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) createProduct(c *gin.Context) {
	var req service.ProductInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	product, err := h.svc.Products.Create(c.Request.Context(), userID(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.svc.Products.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	var req service.ProductInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	product, err := h.svc.Products.Update(c.Request.Context(), userID(c), c.Param("id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) softDeleteProduct(c *gin.Context) {
	h.respondLifecycle(c, h.svc.Products.SoftDelete(c.Request.Context(), userID(c), c.Param("id")), "product deactivated")
}

func (h *Handler) activateProduct(c *gin.Context) {
	h.respondLifecycle(c, h.svc.Products.Activate(c.Request.Context(), userID(c), c.Param("id")), "product activated")
}

func (h *Handler) deleteProduct(c *gin.Context) {
	h.respondLifecycle(c, h.svc.Products.Delete(c.Request.Context(), userID(c), c.Param("id")), "product deleted")
}
