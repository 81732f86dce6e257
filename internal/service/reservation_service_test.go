package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/vendora/booking-platform/internal/model"
	"github.com/vendora/booking-platform/internal/repository"
)

func TestReserveDate_CreatesPendingBookingWithAudit(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(t)
	pkg := env.seedPackage(t, tenant.ID)

	b, err := env.reservations.ReserveDate(context.Background(), tenant.ID, testDate, env.draft(pkg))
	if err != nil {
		t.Fatalf("ReserveDate: %v", err)
	}

	if b.Status != model.BookingStatusPending {
		t.Fatalf("status = %s, want pending", b.Status)
	}
	if b.TotalAmount != pkg.PriceAmount || b.Currency != pkg.Currency {
		t.Fatalf("price not taken from package: %d %s", b.TotalAmount, b.Currency)
	}
	if !b.EventDate.Equal(testDate) {
		t.Fatalf("event date = %v, want %v", b.EventDate, testDate)
	}
	if b.Version != 1 {
		t.Fatalf("version = %d, want 1", b.Version)
	}

	entries := env.bookingAudits(t, tenant.ID, b.ID)
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(entries))
	}
	if entries[0].Operation != model.AuditOpCreate {
		t.Fatalf("audit op = %s, want create", entries[0].Operation)
	}
	if entries[0].Before != nil {
		t.Fatalf("create audit must have nil before snapshot")
	}
	if entries[0].Actor != "checkout" {
		t.Fatalf("audit actor = %q, want checkout", entries[0].Actor)
	}
}

func TestReserveDate_SecondAttemptConflicts(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(t)
	pkg := env.seedPackage(t, tenant.ID)

	if _, err := env.reservations.ReserveDate(context.Background(), tenant.ID, testDate, env.draft(pkg)); err != nil {
		t.Fatalf("first ReserveDate: %v", err)
	}

	_, err := env.reservations.ReserveDate(context.Background(), tenant.ID, testDate, env.draft(pkg))
	ce, ok := AsConflict(err)
	if !ok {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if ce.Reason != ConflictDateAlreadyBooked {
		t.Fatalf("reason = %s, want DATE_ALREADY_BOOKED", ce.Reason)
	}

	// Loser's transaction must leave no partial rows behind.
	var count int64
	if err := env.db.Model(&model.Booking{}).Where("tenant_id = ?", tenant.ID).Count(&count).Error; err != nil {
		t.Fatalf("count bookings: %v", err)
	}
	if count != 1 {
		t.Fatalf("bookings = %d, want 1", count)
	}
}

func TestReserveDate_ConcurrentAttemptsSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(t)
	pkg := env.seedPackage(t, tenant.ID)

	// Simultaneous checkouts racing for the same slot: exactly one
	// transaction commits, every loser gets a typed conflict.
	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.reservations.ReserveDate(context.Background(), tenant.ID, testDate, env.draft(pkg))
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		if _, ok := AsConflict(err); !ok {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}

	var bookings int64
	if err := env.db.Model(&model.Booking{}).Where("tenant_id = ?", tenant.ID).Count(&bookings).Error; err != nil {
		t.Fatalf("count bookings: %v", err)
	}
	if bookings != 1 {
		t.Fatalf("bookings = %d, want 1", bookings)
	}

	// Losers must not leave audit entries behind either.
	var audits int64
	if err := env.db.Model(&model.AuditEntry{}).
		Where("tenant_id = ? AND entity_type = ?", tenant.ID, model.AuditEntityBooking).
		Count(&audits).Error; err != nil {
		t.Fatalf("count audits: %v", err)
	}
	if audits != 1 {
		t.Fatalf("booking audit entries = %d, want 1", audits)
	}
}

func TestReserveDate_DifferentTenantsShareDate(t *testing.T) {
	env := newTestEnv(t)
	t1 := env.seedTenant(t)
	t2 := env.seedTenant(t)
	p1 := env.seedPackage(t, t1.ID)
	p2 := env.seedPackage(t, t2.ID)

	if _, err := env.reservations.ReserveDate(context.Background(), t1.ID, testDate, env.draft(p1)); err != nil {
		t.Fatalf("tenant1 ReserveDate: %v", err)
	}
	if _, err := env.reservations.ReserveDate(context.Background(), t2.ID, testDate, env.draft(p2)); err != nil {
		t.Fatalf("tenant2 ReserveDate: %v", err)
	}
}

func TestReserveDate_BlackoutRejected(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(t)
	pkg := env.seedPackage(t, tenant.ID)

	blackout := &model.BlackoutDate{
		ID:       uuid.New(),
		TenantID: tenant.ID,
		Date:     testDate,
		Reason:   "holiday",
	}
	if err := env.db.Create(blackout).Error; err != nil {
		t.Fatalf("seed blackout: %v", err)
	}

	_, err := env.reservations.ReserveDate(context.Background(), tenant.ID, testDate, env.draft(pkg))
	if err != ErrDateBlocked {
		t.Fatalf("expected ErrDateBlocked, got %v", err)
	}
}

func TestReserveDate_NormalizesTimeComponent(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(t)
	pkg := env.seedPackage(t, tenant.ID)

	// Same calendar date with a time-of-day component must hit the
	// same slot.
	if _, err := env.reservations.ReserveDate(context.Background(), tenant.ID, testDate.Add(9*time.Hour), env.draft(pkg)); err != nil {
		t.Fatalf("first ReserveDate: %v", err)
	}
	_, err := env.reservations.ReserveDate(context.Background(), tenant.ID, testDate.Add(17*time.Hour), env.draft(pkg))
	if _, ok := AsConflict(err); !ok {
		t.Fatalf("expected conflict on same calendar date, got %v", err)
	}
}

func TestReleaseStaleReservations_FreesDate(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(t)
	pkg := env.seedPackage(t, tenant.ID)

	stale := &model.Booking{
		ID:            uuid.New(),
		TenantID:      tenant.ID,
		EventDate:     testDate,
		Status:        model.BookingStatusPending,
		PackageID:     pkg.ID,
		TotalAmount:   pkg.PriceAmount,
		Currency:      pkg.Currency,
		CustomerEmail: "late@example.com",
		CreatedAt:     time.Now().UTC().Add(-2 * time.Hour),
		UpdatedAt:     time.Now().UTC().Add(-2 * time.Hour),
		Version:       1,
	}
	if err := env.db.Create(stale).Error; err != nil {
		t.Fatalf("seed stale booking: %v", err)
	}

	released, err := env.reservations.ReleaseStaleReservations(context.Background(), 30*time.Minute)
	if err != nil {
		t.Fatalf("ReleaseStaleReservations: %v", err)
	}
	if released != 1 {
		t.Fatalf("released = %d, want 1", released)
	}

	var b model.Booking
	if err := env.db.Take(&b, "id = ?", stale.ID).Error; err != nil {
		t.Fatalf("load booking: %v", err)
	}
	if b.Status != model.BookingStatusFailed {
		t.Fatalf("status = %s, want failed", b.Status)
	}

	entries := env.bookingAudits(t, tenant.ID, stale.ID)
	if len(entries) != 1 || entries[0].Actor != "sweeper" {
		t.Fatalf("expected one sweeper audit entry, got %+v", entries)
	}

	// The date is reservable again.
	if _, err := env.reservations.ReserveDate(context.Background(), tenant.ID, testDate, env.draft(pkg)); err != nil {
		t.Fatalf("ReserveDate after sweep: %v", err)
	}
}

func TestReleaseStaleReservations_KeepsFreshPending(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(t)
	pkg := env.seedPackage(t, tenant.ID)

	b, err := env.reservations.ReserveDate(context.Background(), tenant.ID, testDate, env.draft(pkg))
	if err != nil {
		t.Fatalf("ReserveDate: %v", err)
	}

	released, err := env.reservations.ReleaseStaleReservations(context.Background(), 30*time.Minute)
	if err != nil {
		t.Fatalf("ReleaseStaleReservations: %v", err)
	}
	if released != 0 {
		t.Fatalf("released = %d, want 0", released)
	}

	var got model.Booking
	if err := env.db.Take(&got, "id = ?", b.ID).Error; err != nil {
		t.Fatalf("load booking: %v", err)
	}
	if got.Status != model.BookingStatusPending {
		t.Fatalf("status = %s, want pending", got.Status)
	}
}

// heldLockBookingRepo simulates another transaction holding the row
// lock of one candidate during the sweep.
type heldLockBookingRepo struct {
	repository.BookingRepository
	heldID uuid.UUID
}

func (r *heldLockBookingRepo) GetForUpdate(tx *gorm.DB, tenantID, id uuid.UUID, nowait bool) (*model.Booking, error) {
	if nowait && id == r.heldID {
		return nil, &pgconn.PgError{Code: "55P03", Message: "could not obtain lock on row"}
	}
	return r.BookingRepository.GetForUpdate(tx, tenantID, id, nowait)
}

func TestReleaseStaleReservations_CountsOnlyCommittedTransitions(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(t)
	pkg := env.seedPackage(t, tenant.ID)

	seedStale := func(date time.Time) *model.Booking {
		b := &model.Booking{
			ID:            uuid.New(),
			TenantID:      tenant.ID,
			EventDate:     date,
			Status:        model.BookingStatusPending,
			PackageID:     pkg.ID,
			TotalAmount:   pkg.PriceAmount,
			Currency:      pkg.Currency,
			CustomerEmail: "late@example.com",
			CreatedAt:     time.Now().UTC().Add(-2 * time.Hour),
			UpdatedAt:     time.Now().UTC().Add(-2 * time.Hour),
			Version:       1,
		}
		if err := env.db.Create(b).Error; err != nil {
			t.Fatalf("seed stale booking: %v", err)
		}
		return b
	}
	free := seedStale(testDate)
	held := seedStale(testDate.AddDate(0, 0, 1))

	bookings := &heldLockBookingRepo{BookingRepository: env.bookings, heldID: held.ID}
	audit := NewAuditService(env.audits)
	state := NewBookingStateMachine(bookings, audit)
	svc := NewReservationService(env.db, bookings, env.tenants, state, audit)

	released, err := svc.ReleaseStaleReservations(context.Background(), 30*time.Minute)
	if err != nil {
		t.Fatalf("ReleaseStaleReservations: %v", err)
	}
	// The lock-contended candidate is skipped and must not be counted.
	if released != 1 {
		t.Fatalf("released = %d, want 1", released)
	}

	var got model.Booking
	if err := env.db.Take(&got, "id = ?", free.ID).Error; err != nil {
		t.Fatalf("load swept booking: %v", err)
	}
	if got.Status != model.BookingStatusFailed {
		t.Fatalf("swept booking status = %s, want failed", got.Status)
	}
	var gotHeld model.Booking
	if err := env.db.Take(&gotHeld, "id = ?", held.ID).Error; err != nil {
		t.Fatalf("load held booking: %v", err)
	}
	if gotHeld.Status != model.BookingStatusPending {
		t.Fatalf("held booking status = %s, want pending", gotHeld.Status)
	}
}

func TestCancelBooking_FreesDateAndGuardsTerminal(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(t)
	pkg := env.seedPackage(t, tenant.ID)

	b, err := env.reservations.ReserveDate(context.Background(), tenant.ID, testDate, env.draft(pkg))
	if err != nil {
		t.Fatalf("ReserveDate: %v", err)
	}

	cancelled, err := env.reservations.CancelBooking(context.Background(), tenant.ID, b.ID, "tenant:test")
	if err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	if cancelled.Status != model.BookingStatusCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}
	if cancelled.Version != 2 {
		t.Fatalf("version = %d, want 2", cancelled.Version)
	}

	// No transition out of a terminal state.
	if _, err := env.reservations.CancelBooking(context.Background(), tenant.ID, b.ID, "tenant:test"); err == nil {
		t.Fatalf("expected error cancelling a cancelled booking")
	}

	// Cancelled booking releases the date.
	if _, err := env.reservations.ReserveDate(context.Background(), tenant.ID, testDate, env.draft(pkg)); err != nil {
		t.Fatalf("ReserveDate after cancel: %v", err)
	}
}
