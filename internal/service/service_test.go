package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vendora/booking-platform/internal/model"
	"github.com/vendora/booking-platform/internal/notify"
	"github.com/vendora/booking-platform/internal/repository"
)

// testEnv wires the full service stack on an in-memory sqlite DB.
type testEnv struct {
	db           *gorm.DB
	bookings     repository.BookingRepository
	events       repository.WebhookEventRepository
	audits       repository.AuditRepository
	tenants      repository.TenantRepository
	audit        *AuditService
	state        *BookingStateMachine
	reservations *ReservationService
	webhooks     *WebhookService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Each pool connection would get its own :memory: database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := model.AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	bookings := repository.NewGormBookingRepository(db)
	events := repository.NewGormWebhookEventRepository(db)
	audits := repository.NewGormAuditRepository(db)
	tenants := repository.NewGormTenantRepository(db)

	audit := NewAuditService(audits)
	state := NewBookingStateMachine(bookings, audit)

	return &testEnv{
		db:           db,
		bookings:     bookings,
		events:       events,
		audits:       audits,
		tenants:      tenants,
		audit:        audit,
		state:        state,
		reservations: NewReservationService(db, bookings, tenants, state, audit),
		webhooks:     NewWebhookService(db, events, bookings, state, audit, notify.Noop{}),
	}
}

func (e *testEnv) seedTenant(t *testing.T) *model.Tenant {
	t.Helper()
	tenant := &model.Tenant{
		ID:            uuid.New(),
		Slug:          "studio-" + uuid.NewString()[:8],
		Name:          "Test Studio",
		WebhookSecret: "whsec_test",
		Active:        true,
	}
	if err := e.db.Create(tenant).Error; err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	return tenant
}

func (e *testEnv) seedPackage(t *testing.T, tenantID uuid.UUID) *model.Package {
	t.Helper()
	pkg := &model.Package{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Name:        "Full Day",
		PriceAmount: 250_000,
		Currency:    "USD",
		Active:      true,
	}
	if err := e.db.Create(pkg).Error; err != nil {
		t.Fatalf("seed package: %v", err)
	}
	return pkg
}

func (e *testEnv) draft(pkg *model.Package) BookingDraft {
	return BookingDraft{
		PackageID:     pkg.ID,
		TotalAmount:   pkg.PriceAmount,
		Currency:      pkg.Currency,
		CustomerEmail: "customer@example.com",
		CustomerName:  "Pat Customer",
		Actor:         "checkout",
	}
}

func (e *testEnv) bookingAudits(t *testing.T, tenantID, bookingID uuid.UUID) []model.AuditEntry {
	t.Helper()
	entries, err := e.audits.ListForEntity(context.Background(), tenantID, model.AuditEntityBooking, bookingID)
	if err != nil {
		t.Fatalf("list booking audits: %v", err)
	}
	return entries
}

var testDate = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
