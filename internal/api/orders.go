package api

import (
	"net/http"

	"github.com/MohamedNashad/seafood-node-api/internal/apperr"
	"github.com/MohamedNashad/seafood-node-api/internal/models"
	"github.com/MohamedNashad/seafood-node-api/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// createPendingOrder handles storefront checkout for online payments. Guests may
// check out; a signed-in buyer is recorded on the order.
func (h *Handler) createPendingOrder(c *gin.Context) {
	var req service.CreateOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.UserID = userID(c)

	order, err := h.svc.Orders.CreatePendingOrder(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	start, err := h.svc.Payments.StartOrderPayment(c.Request.Context(), order.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"order":   order,
		"payment": start,
	})
}

func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.UserID = userID(c)

	order, err := h.svc.Orders.CreateOrder(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.svc.Orders.ListOrders(c.Request.Context(), userID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) listMyOrders(c *gin.Context) {
	orders, err := h.svc.Orders.ListUserOrders(c.Request.Context(), userID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.svc.Orders.GetOrder(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type verifyPaymentRequest struct {
	Reference string `json:"reference"`
}

func (h *Handler) verifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	order, applied, err := h.svc.Orders.VerifyPayment(c.Request.Context(), c.Param("id"), models.PaymentReceipt{Reference: req.Reference})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order":   order,
		"applied": applied,
	})
}

type updateStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	order, err := h.svc.Orders.UpdateStatus(c.Request.Context(), userID(c), c.Param("id"), req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// cartOwner builds the cart key inputs. Guests identify themselves with a session
// id header or query parameter.
func cartOwner(c *gin.Context) service.CartOwner {
	sessionID := c.GetHeader("X-Session-Id")
	if sessionID == "" {
		sessionID = c.Query("session_id")
	}
	return service.CartOwner{
		ClientID:  c.Param("clientId"),
		UserID:    userID(c),
		SessionID: sessionID,
	}
}

func (h *Handler) getCart(c *gin.Context) {
	cart, err := h.svc.Carts.Get(c.Request.Context(), cartOwner(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req service.CartItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	cart, err := h.svc.Carts.AddItem(c.Request.Context(), cartOwner(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) updateCartItem(c *gin.Context) {
	var req service.CartItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	cart, err := h.svc.Carts.UpdateItem(c.Request.Context(), cartOwner(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	cart, err := h.svc.Carts.RemoveItem(c.Request.Context(), cartOwner(c), c.Param("productId"), c.Query("type"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) clearCart(c *gin.Context) {
	if err := h.svc.Carts.Clear(c.Request.Context(), cartOwner(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cart cleared"})
}

func (h *Handler) mergeCart(c *gin.Context) {
	owner := cartOwner(c)
	cart, err := h.svc.Carts.Merge(c.Request.Context(), owner.ClientID, owner.UserID, owner.SessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

type startPaymentRequest struct {
	OrderID  string `json:"order_id" binding:"required"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// startPayment signs a checkout for the gateway. Without an amount the order's
// stored total is used.
func (h *Handler) startPayment(c *gin.Context) {
	var req startPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var (
		start *models.PaymentStart
		err   error
	)
	if req.Amount == "" {
		start, err = h.svc.Payments.StartOrderPayment(c.Request.Context(), req.OrderID)
	} else {
		start, err = h.svc.Payments.StartPayment(req.OrderID, req.Amount, req.Currency)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, start)
}

// notifyPayment receives the gateway callback. Anything other than a 2xx makes
// the gateway retry, so only transient failures answer 5xx.
func (h *Handler) notifyPayment(c *gin.Context) {
	var n models.PaymentNotification
	if err := c.ShouldBind(&n); err != nil {
		badRequest(c, err)
		return
	}

	err := h.svc.Payments.NotifyPayment(c.Request.Context(), n)
	switch apperr.KindOf(err) {
	case "":
		c.JSON(http.StatusOK, gin.H{"message": "notification accepted"})
	case apperr.KindUnavailable:
		h.logger.Warn("Payment notification deferred",
			zap.String("order_id", n.OrderID),
			zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "try again later"})
	case apperr.KindInternal:
		h.writeError(c, err)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "notification rejected"})
	}
}
