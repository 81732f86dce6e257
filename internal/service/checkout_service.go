package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendora/booking-platform/internal/gateway"
	"github.com/vendora/booking-platform/internal/model"
	"github.com/vendora/booking-platform/internal/repository"
)

// CheckoutRequest — входной запрос на оформление брони.
type CheckoutRequest struct {
	PackageID     uuid.UUID `json:"package_id" validate:"required"`
	EventDate     time.Time `json:"event_date" validate:"required"`
	CustomerEmail string    `json:"customer_email" validate:"required,email"`
	CustomerName  string    `json:"customer_name" validate:"max=255"`
}

// CheckoutSession — результат фабрики: PENDING-бронь уже создана,
// клиента остаётся перенаправить на платёжную страницу.
type CheckoutSession struct {
	BookingID   uuid.UUID `json:"booking_id"`
	SessionID   string    `json:"session_id"`
	RedirectURL string    `json:"redirect_url"`
}

// CheckoutService — фабрика checkout-сессий: валидирует запрос,
// считает цену по пакету, резервирует дату через контроллер
// конкурентности и просит внешний платёжный шлюз создать сессию.
// Финального состояния в реестр не пишет — подтверждение приходит
// только вебхуком.
type CheckoutService struct {
	db           *gorm.DB
	validate     *validator.Validate
	tenants      repository.TenantRepository
	bookings     repository.BookingRepository
	reservations *ReservationService
	gateway      gateway.PaymentGateway
	audit        *AuditService
}

func NewCheckoutService(
	db *gorm.DB,
	tenants repository.TenantRepository,
	bookings repository.BookingRepository,
	reservations *ReservationService,
	pg gateway.PaymentGateway,
	audit *AuditService,
) *CheckoutService {
	return &CheckoutService{
		db:           db,
		validate:     validator.New(),
		tenants:      tenants,
		bookings:     bookings,
		reservations: reservations,
		gateway:      pg,
		audit:        audit,
	}
}

// BeginCheckout проводит запрос через весь путь оформления и отдаёт
// redirect URL. Если шлюз не смог создать сессию, свежая PENDING-бронь
// компенсируется в FAILED — дата освобождается сразу.
func (s *CheckoutService) BeginCheckout(ctx context.Context, tenantID uuid.UUID, req CheckoutRequest) (*CheckoutSession, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	pkg, err := s.tenants.GetPackage(ctx, tenantID, req.PackageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPackageNotFound
		}
		return nil, err
	}

	booking, err := s.reservations.ReserveDate(ctx, tenantID, req.EventDate, BookingDraft{
		PackageID:     pkg.ID,
		TotalAmount:   pkg.PriceAmount,
		Currency:      pkg.Currency,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		Actor:         "checkout",
	})
	if err != nil {
		return nil, err
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, gateway.SessionRequest{
		OrderID:       booking.ID.String(),
		Amount:        booking.TotalAmount,
		Currency:      booking.Currency,
		CustomerEmail: booking.CustomerEmail,
		CustomerName:  booking.CustomerName,
		Metadata: map[string]string{
			"tenant_id":  tenantID.String(),
			"booking_id": booking.ID.String(),
		},
	})
	if err != nil {
		_ = s.reservations.FailReservation(ctx, booking, "checkout")
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	// Привязка сессии к брони — тоже мутация, тоже с аудитом.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before := model.SnapshotBooking(booking)
		if err := s.bookings.SetCheckoutSession(tx, booking, sess.SessionID); err != nil {
			return err
		}
		return s.audit.Record(tx, tenantID, model.AuditEntityBooking, booking.ID, model.AuditOpUpdate, before, model.SnapshotBooking(booking), "checkout")
	})
	if err != nil {
		return nil, err
	}

	return &CheckoutSession{
		BookingID:   booking.ID,
		SessionID:   sess.SessionID,
		RedirectURL: sess.RedirectURL,
	}, nil
}
