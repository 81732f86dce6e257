package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendora/booking-platform/internal/repository"
	"github.com/vendora/booking-platform/internal/service"
)

type CheckoutHandler struct {
	checkout     *service.CheckoutService
	reservations *service.ReservationService
	tenants      repository.TenantRepository
}

// BeginCheckout — POST /api/v1/tenants/:tenant/checkout.
// Конфликт за дату отдаём 409: для клиента это "дата недоступна,
// выберите другую" вне зависимости от причины.
func (h *CheckoutHandler) BeginCheckout(c *gin.Context) {
	tenant, err := h.tenants.GetBySlug(c.Request.Context(), c.Param("tenant"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
		return
	}

	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.checkout.BeginCheckout(c.Request.Context(), tenant.ID, req)
	if err != nil {
		h.renderCheckoutError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

// CancelBooking — POST /api/v1/tenants/:tenant/bookings/:id/cancel.
func (h *CheckoutHandler) CancelBooking(c *gin.Context) {
	tenant, err := h.tenants.GetBySlug(c.Request.Context(), c.Param("tenant"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
		return
	}
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	b, err := h.reservations.CancelBooking(c.Request.Context(), tenant.ID, bookingID, "tenant:"+tenant.Slug)
	if err != nil {
		var st *service.StateTransitionError
		switch {
		case errors.Is(err, service.ErrBookingNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
		case errors.As(err, &st):
			c.JSON(http.StatusConflict, gin.H{"error": "booking already resolved"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking_id": b.ID, "status": b.Status})
}

func (h *CheckoutHandler) renderCheckoutError(c *gin.Context, err error) {
	var vErrs validator.ValidationErrors
	switch {
	case errors.As(err, &vErrs):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrPackageNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "package not found"})
	case errors.Is(err, service.ErrDateBlocked):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "date is not open for booking"})
	default:
		if ce, ok := service.AsConflict(err); ok {
			c.JSON(http.StatusConflict, gin.H{"error": "date no longer available", "reason": ce.Reason})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
