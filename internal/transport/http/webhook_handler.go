package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/vendora/booking-platform/internal/gateway"
	"github.com/vendora/booking-platform/internal/repository"
	"github.com/vendora/booking-platform/internal/service"
)

const signatureHeader = "X-Webhook-Signature"

type WebhookHandler struct {
	webhooks *service.WebhookService
	tenants  repository.TenantRepository
}

// Receive — POST /webhooks/payment. Тонкий ingress: проверка подписи
// и нормализация тела, вся идемпотентность — в WebhookService.
//
// Коды ответов подобраны под ретраи провайдера: успех и повторная
// доставка уже обработанного события — 200 (иначе провайдер будет
// долбить повторами), событие в обработке — 503 с Retry-After.
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	delivery, err := gateway.ParseDelivery(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenantID, err := uuid.Parse(delivery.Metadata["tenant_id"])
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing tenant_id metadata"})
		return
	}
	bookingID, err := uuid.Parse(delivery.Metadata["booking_id"])
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing booking_id metadata"})
		return
	}

	tenant, err := h.tenants.GetByID(c.Request.Context(), tenantID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown tenant"})
		return
	}
	if !gateway.VerifySignature(tenant.WebhookSecret, body, c.GetHeader(signatureHeader)) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "bad signature"})
		return
	}

	booking, err := h.webhooks.ProcessEvent(c.Request.Context(), service.PaymentEvent{
		TenantID:  tenantID,
		EventID:   delivery.EventID,
		Type:      delivery.Type,
		BookingID: bookingID,
		Payload:   datatypes.JSON(body),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEventInProgress):
			c.Header("Retry-After", "30")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event is being processed, retry later"})
		case errors.Is(err, service.ErrBookingNotFound):
			// Событие финализировано как failed; провайдеру — успех,
			// чтобы остановить повторы.
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		}
		return
	}

	resp := gin.H{"status": "ok"}
	if booking != nil {
		resp["booking_id"] = booking.ID
		resp["booking_status"] = booking.Status
	}
	c.JSON(http.StatusOK, resp)
}
