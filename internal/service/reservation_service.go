package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/vendora/booking-platform/internal/model"
	"github.com/vendora/booking-platform/internal/repository"
)

// Черновик брони: провалидированные данные пакета и клиента, из
// которых контроллер собирает PENDING-строку.
type BookingDraft struct {
	PackageID     uuid.UUID
	TotalAmount   int64
	Currency      string
	CustomerEmail string
	CustomerName  string
	Actor         string
}

// ReservationService — контроллер конкурентного бронирования:
// гарантирует ровно одну активную бронь на (tenant, date) даже при
// одновременных попытках checkout. Вся координация идёт через
// транзакционное хранилище, поэтому гарантия держится и между
// несколькими экземплярами сервера.
type ReservationService struct {
	db       *gorm.DB
	bookings repository.BookingRepository
	tenants  repository.TenantRepository
	state    *BookingStateMachine
	audit    *AuditService
}

func NewReservationService(
	db *gorm.DB,
	bookings repository.BookingRepository,
	tenants repository.TenantRepository,
	state *BookingStateMachine,
	audit *AuditService,
) *ReservationService {
	return &ReservationService{
		db:       db,
		bookings: bookings,
		tenants:  tenants,
		state:    state,
		audit:    audit,
	}
}

// ReserveDate пытается занять дату за тенантом и создаёт PENDING-бронь.
//
// Дисциплина: в транзакции берётся строчная блокировка FOR UPDATE
// NOWAIT по активной броне даты; занятая блокировка и нарушение
// уникального индекса оба схлопываются в ConflictError — вызывающему
// незачем различать "чуть медленнее" и "реально занято". Победитель
// коммитит бронь вместе с записью аудита; у проигравшего транзакция
// откатывается целиком, частичных строк не остаётся.
func (s *ReservationService) ReserveDate(ctx context.Context, tenantID uuid.UUID, eventDate time.Time, draft BookingDraft) (*model.Booking, error) {
	ctx, span := otel.Tracer("booking").Start(ctx, "ReserveDate")
	defer span.End()
	span.SetAttributes(attribute.String("tenant_id", tenantID.String()))

	date := model.NormalizeEventDate(eventDate)

	blocked, err := s.tenants.IsDateBlocked(ctx, tenantID, date)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrDateBlocked
	}

	actor := draft.Actor
	if actor == "" {
		actor = "checkout"
	}

	var booking *model.Booking
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.bookings.FindActiveForDate(tx, tenantID, date, true)
		if err != nil {
			if repository.IsLockNotAvailable(err) {
				return &ConflictError{Reason: ConflictConcurrentAttempt}
			}
			return err
		}
		if existing != nil {
			return &ConflictError{Reason: ConflictDateAlreadyBooked}
		}

		b := &model.Booking{
			ID:            uuid.New(),
			TenantID:      tenantID,
			EventDate:     date,
			Status:        model.BookingStatusPending,
			PackageID:     draft.PackageID,
			TotalAmount:   draft.TotalAmount,
			Currency:      draft.Currency,
			CustomerEmail: draft.CustomerEmail,
			CustomerName:  draft.CustomerName,
			Version:       1,
		}
		if err := s.bookings.Create(tx, b); err != nil {
			// Оба не увидели активной строки и пошли вставлять:
			// проигравшего останавливает частичный индекс.
			if repository.IsDuplicateKey(err) {
				return &ConflictError{Reason: ConflictConcurrentAttempt}
			}
			return err
		}

		if err := s.audit.Record(tx, tenantID, model.AuditEntityBooking, b.ID, model.AuditOpCreate, nil, model.SnapshotBooking(b), actor); err != nil {
			return err
		}

		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// ReleaseStaleReservations — обслуживающее сметание: PENDING-брони,
// по которым вебхук так и не пришёл за olderThan, переводятся в
// FAILED, освобождая дату. Каждая строка обрабатывается в своей
// транзакции с той же блокировкой NOWAIT: бронь, которую прямо сейчас
// подтверждает опоздавший вебхук, просто пропускается до следующего
// прохода.
func (s *ReservationService) ReleaseStaleReservations(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	stale, err := s.bookings.ListStalePending(ctx, cutoff, 100)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, candidate := range stale {
		swept := false
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			b, err := s.bookings.GetForUpdate(tx, candidate.TenantID, candidate.ID, true)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil
				}
				return err
			}
			// Перепроверка под блокировкой: вебхук мог успеть.
			if b.Status != model.BookingStatusPending || b.CreatedAt.After(cutoff) {
				return nil
			}
			if _, err := s.state.Fail(tx, b, "sweeper"); err != nil {
				return err
			}
			swept = true
			return nil
		})
		if err != nil {
			if repository.IsLockNotAvailable(err) {
				continue
			}
			return released, err
		}
		// Считаем только закоммиченные переводы.
		if swept {
			released++
		}
	}
	return released, nil
}

// CancelBooking — явная отмена тенантом. Терминальная бронь
// отклоняется; отменённая освобождает дату.
func (s *ReservationService) CancelBooking(ctx context.Context, tenantID, bookingID uuid.UUID, actor string) (*model.Booking, error) {
	var booking *model.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := s.bookings.GetForUpdate(tx, tenantID, bookingID, false)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return err
		}
		booking, err = s.state.Cancel(tx, b, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// FailReservation — компенсация несостоявшегося checkout: шлюз не дал
// сессию, PENDING-бронь переводится в FAILED, дата освобождается
// немедленно, не дожидаясь сметания.
func (s *ReservationService) FailReservation(ctx context.Context, b *model.Booking, actor string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.bookings.GetForUpdate(tx, b.TenantID, b.ID, false)
		if err != nil {
			return err
		}
		if locked.Status != model.BookingStatusPending {
			return nil
		}
		_, err = s.state.Fail(tx, locked, actor)
		return err
	})
	if err != nil {
		log.Printf("[reservation] fail booking %s: %v", b.ID, err)
	}
	return err
}
