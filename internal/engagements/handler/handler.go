package handler

import (
	"net/http"

	"marketplace_backend/internal/engagements/service"
	"marketplace_backend/internal/engagements/transport"
	"marketplace_backend/platform/httpkit"
	"marketplace_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for orders and bookings
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new engagements handler
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterOrderRoutes registers the order routes
func (h *Handler) RegisterOrderRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.CreateOrder)
	rg.GET("", h.ListOrders)
	rg.GET("/:id", h.GetOrder)
	rg.PATCH("/:id/status", h.UpdateOrderStatus)
	rg.POST("/:id/confirm", h.ConfirmOrder)
	rg.POST("/:id/cancel", h.CancelOrder)
	rg.POST("/:id/complete", h.CompleteOrder)
	rg.POST("/:id/ready-for-pickup", h.MarkReadyForPickup)
	rg.POST("/:id/out-for-delivery", h.MarkOutForDelivery)
}

// RegisterBookingRoutes registers the booking routes
func (h *Handler) RegisterBookingRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.CreateBooking)
	rg.GET("", h.ListBookings)
	rg.GET("/slots", h.GetBookedSlots)
	rg.GET("/:id", h.GetBooking)
	rg.PATCH("/:id/status", h.UpdateBookingStatus)
	rg.POST("/:id/confirm", h.ConfirmBooking)
	rg.POST("/:id/cancel", h.CancelBooking)
	rg.POST("/:id/complete", h.CompleteBooking)
	rg.POST("/:id/start", h.StartBooking)
	rg.POST("/:id/no-show", h.MarkNoShow)
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.UUID{}, false
	}
	return id, true
}

// CreateOrder handles POST /api/v1/orders
func (h *Handler) CreateOrder(c *gin.Context) {
	var req transport.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.CreateOrder(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, result)
}

// ListOrders handles GET /api/v1/orders
func (h *Handler) ListOrders(c *gin.Context) {
	var req transport.ListEngagementsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.ListOrders(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// GetOrder handles GET /api/v1/orders/:id
func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.GetOrder(c.Request.Context(), identity.UserID(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// UpdateOrderStatus handles PATCH /api/v1/orders/:id/status
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req transport.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.UpdateOrderStatus(c.Request.Context(), identity.UserID(), id, req.Status, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// ConfirmOrder handles POST /api/v1/orders/:id/confirm
func (h *Handler) ConfirmOrder(c *gin.Context) {
	h.orderAction(c, func(ctx *gin.Context, actorID, id uuid.UUID) (interface{}, error) {
		return h.svc.ConfirmOrder(ctx.Request.Context(), actorID, id)
	})
}

// CancelOrder handles POST /api/v1/orders/:id/cancel
func (h *Handler) CancelOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req transport.CancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		if err := h.val.Struct(req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
			return
		}
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.CancelOrder(c.Request.Context(), identity.UserID(), id, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// CompleteOrder handles POST /api/v1/orders/:id/complete
func (h *Handler) CompleteOrder(c *gin.Context) {
	h.orderAction(c, func(ctx *gin.Context, actorID, id uuid.UUID) (interface{}, error) {
		return h.svc.CompleteOrder(ctx.Request.Context(), actorID, id)
	})
}

// MarkReadyForPickup handles POST /api/v1/orders/:id/ready-for-pickup
func (h *Handler) MarkReadyForPickup(c *gin.Context) {
	h.orderAction(c, func(ctx *gin.Context, actorID, id uuid.UUID) (interface{}, error) {
		return h.svc.MarkReadyForPickup(ctx.Request.Context(), actorID, id)
	})
}

// MarkOutForDelivery handles POST /api/v1/orders/:id/out-for-delivery
func (h *Handler) MarkOutForDelivery(c *gin.Context) {
	h.orderAction(c, func(ctx *gin.Context, actorID, id uuid.UUID) (interface{}, error) {
		return h.svc.MarkOutForDelivery(ctx.Request.Context(), actorID, id)
	})
}

// orderAction runs a body-less order transition endpoint.
func (h *Handler) orderAction(c *gin.Context, fn func(*gin.Context, uuid.UUID, uuid.UUID) (interface{}, error)) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := fn(c, identity.UserID(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}
