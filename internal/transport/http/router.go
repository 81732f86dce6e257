package http

import (
	"github.com/gin-gonic/gin"

	"github.com/vendora/booking-platform/internal/repository"
	"github.com/vendora/booking-platform/internal/service"
)

// NewRouter собирает тонкий HTTP-слой ядра: оформление брони и приём
// вебхуков платёжного провайдера. Остальной API платформы живёт вне
// этого сервиса.
func NewRouter(
	checkout *service.CheckoutService,
	webhooks *service.WebhookService,
	reservations *service.ReservationService,
	tenants repository.TenantRepository,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	ch := &CheckoutHandler{checkout: checkout, reservations: reservations, tenants: tenants}
	wh := &WebhookHandler{webhooks: webhooks, tenants: tenants}

	api := r.Group("/api/v1")
	{
		api.POST("/tenants/:tenant/checkout", ch.BeginCheckout)
		api.POST("/tenants/:tenant/bookings/:id/cancel", ch.CancelBooking)
	}

	r.POST("/webhooks/payment", wh.Receive)

	return r
}
