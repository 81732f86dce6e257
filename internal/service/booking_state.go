package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendora/booking-platform/internal/model"
	"github.com/vendora/booking-platform/internal/repository"
)

// Исход платежа, извлечённый из webhook-события.
type PaymentOutcome string

const (
	PaymentOutcomeSuccess PaymentOutcome = "SUCCESS"
	PaymentOutcomeFailure PaymentOutcome = "FAILURE"
)

// BookingStateMachine — единственная точка переходов статуса брони:
// PENDING -> CONFIRMED | FAILED | CANCELLED, из терминальных статусов
// переходов нет. Вызывается только внутри транзакции, под блокировкой
// строки брони.
type BookingStateMachine struct {
	bookings repository.BookingRepository
	audit    *AuditService
}

func NewBookingStateMachine(bookings repository.BookingRepository, audit *AuditService) *BookingStateMachine {
	return &BookingStateMachine{bookings: bookings, audit: audit}
}

// ApplyPaymentOutcome применяет исход платежа к брони в транзакции tx.
// Терминальная бронь — no-op без единой записи: так вторая доставка
// (или конкурирующее подтверждение) не искажает уже разрешённое
// состояние независимо от порядка событий.
func (m *BookingStateMachine) ApplyPaymentOutcome(
	tx *gorm.DB,
	tenantID, bookingID uuid.UUID,
	outcome PaymentOutcome,
	eventID string,
) (*model.Booking, error) {
	b, err := m.bookings.GetForUpdate(tx, tenantID, bookingID, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	if b.Status.Terminal() {
		// Доброкачественная гонка: событие опоздало к уже
		// разрешённой брони. Логируем и возвращаем как есть.
		log.Printf("[state] booking %s already %s, event %s is a no-op", b.ID, b.Status, eventID)
		return b, nil
	}

	before := model.SnapshotBooking(b)

	switch outcome {
	case PaymentOutcomeSuccess:
		now := time.Now().UTC()
		if err := m.bookings.UpdateStatus(tx, b, model.BookingStatusConfirmed, &now); err != nil {
			return nil, err
		}
	case PaymentOutcomeFailure:
		if err := m.bookings.UpdateStatus(tx, b, model.BookingStatusFailed, nil); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown payment outcome %q", outcome)
	}

	actor := "webhook:" + eventID
	if err := m.audit.Record(tx, tenantID, model.AuditEntityBooking, b.ID, model.AuditOpUpdate, before, model.SnapshotBooking(b), actor); err != nil {
		return nil, err
	}
	return b, nil
}

// Cancel переводит бронь в CANCELLED под той же дисциплиной
// блокировок. Терминальная бронь отклоняется типизированной ошибкой.
func (m *BookingStateMachine) Cancel(tx *gorm.DB, b *model.Booking, actor string) (*model.Booking, error) {
	if b.Status.Terminal() {
		return nil, &StateTransitionError{From: string(b.Status)}
	}

	before := model.SnapshotBooking(b)
	if err := m.bookings.UpdateStatus(tx, b, model.BookingStatusCancelled, nil); err != nil {
		return nil, err
	}
	if err := m.audit.Record(tx, b.TenantID, model.AuditEntityBooking, b.ID, model.AuditOpUpdate, before, model.SnapshotBooking(b), actor); err != nil {
		return nil, err
	}
	return b, nil
}

// Fail переводит PENDING-бронь в FAILED (сметание просроченных и
// компенсация несостоявшегося checkout). Дата освобождается.
func (m *BookingStateMachine) Fail(tx *gorm.DB, b *model.Booking, actor string) (*model.Booking, error) {
	if b.Status.Terminal() {
		return nil, &StateTransitionError{From: string(b.Status)}
	}

	before := model.SnapshotBooking(b)
	if err := m.bookings.UpdateStatus(tx, b, model.BookingStatusFailed, nil); err != nil {
		return nil, err
	}
	if err := m.audit.Record(tx, b.TenantID, model.AuditEntityBooking, b.ID, model.AuditOpUpdate, before, model.SnapshotBooking(b), actor); err != nil {
		return nil, err
	}
	return b, nil
}
