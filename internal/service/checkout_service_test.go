package service

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/vendora/booking-platform/internal/gateway"
	"github.com/vendora/booking-platform/internal/model"
)

// fakeGateway records the last session request and answers from a
// script instead of calling a real payment provider.
type fakeGateway struct {
	lastReq gateway.SessionRequest
	session *gateway.CheckoutSession
	err     error
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, req gateway.SessionRequest) (*gateway.CheckoutSession, error) {
	g.lastReq = req
	if g.err != nil {
		return nil, g.err
	}
	return g.session, nil
}

func newCheckout(env *testEnv, pg gateway.PaymentGateway) *CheckoutService {
	return NewCheckoutService(env.db, env.tenants, env.bookings, env.reservations, pg, env.audit)
}

func checkoutRequest(pkg *model.Package) CheckoutRequest {
	return CheckoutRequest{
		PackageID:     pkg.ID,
		EventDate:     testDate,
		CustomerEmail: "customer@example.com",
		CustomerName:  "Pat Customer",
	}
}

func TestBeginCheckout_CreatesSessionAndBindsBooking(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(t)
	pkg := env.seedPackage(t, tenant.ID)

	pg := &fakeGateway{session: &gateway.CheckoutSession{
		SessionID:   "sess_123",
		RedirectURL: "https://pay.example.com/sess_123",
	}}
	svc := newCheckout(env, pg)

	sess, err := svc.BeginCheckout(context.Background(), tenant.ID, checkoutRequest(pkg))
	if err != nil {
		t.Fatalf("BeginCheckout: %v", err)
	}
	if sess.SessionID != "sess_123" || sess.RedirectURL == "" {
		t.Fatalf("unexpected session: %+v", sess)
	}

	// The gateway saw the package price and the webhook routing keys.
	if pg.lastReq.Amount != pkg.PriceAmount || pg.lastReq.Currency != pkg.Currency {
		t.Fatalf("gateway priced from request, not package: %+v", pg.lastReq)
	}
	if pg.lastReq.Metadata["tenant_id"] != tenant.ID.String() ||
		pg.lastReq.Metadata["booking_id"] != sess.BookingID.String() {
		t.Fatalf("gateway metadata incomplete: %+v", pg.lastReq.Metadata)
	}

	b := loadBooking(t, env, sess.BookingID)
	if b.Status != model.BookingStatusPending {
		t.Fatalf("status = %s, want pending", b.Status)
	}
	if b.CheckoutSessionID == nil || *b.CheckoutSessionID != "sess_123" {
		t.Fatalf("checkout session not bound: %+v", b.CheckoutSessionID)
	}

	// Reserve + session binding, each one audited.
	entries := env.bookingAudits(t, tenant.ID, sess.BookingID)
	if len(entries) != 2 {
		t.Fatalf("audit entries = %d, want 2", len(entries))
	}
}

func TestBeginCheckout_GatewayFailureFreesDate(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(t)
	pkg := env.seedPackage(t, tenant.ID)

	pg := &fakeGateway{err: errors.New("provider unavailable")}
	svc := newCheckout(env, pg)

	_, err := svc.BeginCheckout(context.Background(), tenant.ID, checkoutRequest(pkg))
	if err == nil {
		t.Fatalf("expected gateway error")
	}

	// The compensated booking must not hold the date.
	var failed int64
	if err := env.db.Model(&model.Booking{}).
		Where("tenant_id = ? AND status = ?", tenant.ID, model.BookingStatusFailed).
		Count(&failed).Error; err != nil {
		t.Fatalf("count failed bookings: %v", err)
	}
	if failed != 1 {
		t.Fatalf("failed bookings = %d, want 1", failed)
	}

	pg.err = nil
	pg.session = &gateway.CheckoutSession{SessionID: "sess_retry", RedirectURL: "https://pay.example.com/sess_retry"}
	if _, err := svc.BeginCheckout(context.Background(), tenant.ID, checkoutRequest(pkg)); err != nil {
		t.Fatalf("BeginCheckout after compensation: %v", err)
	}
}

func TestBeginCheckout_ValidationAndLookupErrors(t *testing.T) {
	env := newTestEnv(t)
	tenant := env.seedTenant(t)
	pkg := env.seedPackage(t, tenant.ID)
	svc := newCheckout(env, &fakeGateway{})

	req := checkoutRequest(pkg)
	req.CustomerEmail = "not-an-email"
	_, err := svc.BeginCheckout(context.Background(), tenant.ID, req)
	var verr validator.ValidationErrors
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation errors, got %v", err)
	}

	req = checkoutRequest(pkg)
	req.PackageID = uuid.New()
	if _, err := svc.BeginCheckout(context.Background(), tenant.ID, req); err != ErrPackageNotFound {
		t.Fatalf("expected ErrPackageNotFound, got %v", err)
	}

	// A package owned by another tenant is invisible.
	other := env.seedTenant(t)
	if _, err := svc.BeginCheckout(context.Background(), other.ID, checkoutRequest(pkg)); err != ErrPackageNotFound {
		t.Fatalf("expected ErrPackageNotFound across tenants, got %v", err)
	}
}
