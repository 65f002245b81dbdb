package handler

import (
	"net/http"

	"marketplace_backend/internal/engagements/transport"
	"marketplace_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreateBooking handles POST /api/v1/bookings
func (h *Handler) CreateBooking(c *gin.Context) {
	var req transport.CreateBookingRequest
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

	result, err := h.svc.CreateBooking(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, result)
}

// ListBookings handles GET /api/v1/bookings
func (h *Handler) ListBookings(c *gin.Context) {
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

	result, err := h.svc.ListBookings(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// GetBooking handles GET /api/v1/bookings/:id
func (h *Handler) GetBooking(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.GetBooking(c.Request.Context(), identity.UserID(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// GetBookedSlots handles GET /api/v1/bookings/slots
func (h *Handler) GetBookedSlots(c *gin.Context) {
	var req transport.GetBookedSlotsRequest
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

	result, err := h.svc.GetBookedSlots(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// UpdateBookingStatus handles PATCH /api/v1/bookings/:id/status
func (h *Handler) UpdateBookingStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req transport.UpdateBookingStatusRequest
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

	result, err := h.svc.UpdateBookingStatus(c.Request.Context(), identity.UserID(), id, req.Status, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// ConfirmBooking handles POST /api/v1/bookings/:id/confirm
func (h *Handler) ConfirmBooking(c *gin.Context) {
	h.bookingAction(c, func(ctx *gin.Context, actorID, id uuid.UUID) (interface{}, error) {
		return h.svc.ConfirmBooking(ctx.Request.Context(), actorID, id)
	})
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel
func (h *Handler) CancelBooking(c *gin.Context) {
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

	result, err := h.svc.CancelBooking(c.Request.Context(), identity.UserID(), id, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// CompleteBooking handles POST /api/v1/bookings/:id/complete
func (h *Handler) CompleteBooking(c *gin.Context) {
	h.bookingAction(c, func(ctx *gin.Context, actorID, id uuid.UUID) (interface{}, error) {
		return h.svc.CompleteBooking(ctx.Request.Context(), actorID, id)
	})
}

// StartBooking handles POST /api/v1/bookings/:id/start
func (h *Handler) StartBooking(c *gin.Context) {
	h.bookingAction(c, func(ctx *gin.Context, actorID, id uuid.UUID) (interface{}, error) {
		return h.svc.StartBooking(ctx.Request.Context(), actorID, id)
	})
}

// MarkNoShow handles POST /api/v1/bookings/:id/no-show
func (h *Handler) MarkNoShow(c *gin.Context) {
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

	result, err := h.svc.MarkNoShow(c.Request.Context(), identity.UserID(), id, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// bookingAction runs a body-less booking transition endpoint.
func (h *Handler) bookingAction(c *gin.Context, fn func(*gin.Context, uuid.UUID, uuid.UUID) (interface{}, error)) {
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
