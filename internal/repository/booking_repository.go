package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vendora/booking-platform/internal/model"
)

// BookingRepository — реестр тенантов и дат: единственный владелец
// таблицы bookings. Мутирующие методы принимают открытую транзакцию,
// чтобы вызывающий слой мог совмещать запись брони, события и аудита
// в одном коммите.
type BookingRepository interface {
	// Активная бронь (pending/confirmed) на дату тенанта. При
	// lock=true строка захватывается FOR UPDATE NOWAIT: занятая
	// блокировка отдаёт ошибку немедленно, без ожидания в очереди.
	// Отсутствие брони — (nil, nil).
	FindActiveForDate(tx *gorm.DB, tenantID uuid.UUID, date time.Time, lock bool) (*model.Booking, error)
	// Создать бронь. Гонку "оба не увидели строку" добивает
	// частичный уникальный индекс — вставка проигравшего падает.
	Create(tx *gorm.DB, b *model.Booking) error
	// Бронь по ID с захватом строки в транзакции.
	GetForUpdate(tx *gorm.DB, tenantID, id uuid.UUID, nowait bool) (*model.Booking, error)
	// Бронь по ID без блокировки.
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Booking, error)
	// Перевод статуса с оптимистичной сверкой version.
	UpdateStatus(tx *gorm.DB, b *model.Booking, to model.BookingStatus, paidAt *time.Time) error
	// Привязать checkout-сессию шлюза к брони.
	SetCheckoutSession(tx *gorm.DB, b *model.Booking, sessionID string) error
	// PENDING-брони, созданные раньше cutoff (кандидаты на сметание).
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]model.Booking, error)
}

// Реализация на GORM.
type GormBookingRepository struct {
	db *gorm.DB
}

func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

func (r *GormBookingRepository) FindActiveForDate(tx *gorm.DB, tenantID uuid.UUID, date time.Time, lock bool) (*model.Booking, error) {
	q := tx.Model(&model.Booking{}).
		Where("tenant_id = ?", tenantID).
		Where("event_date = ?", model.NormalizeEventDate(date)).
		Where("status IN ?", []model.BookingStatus{model.BookingStatusPending, model.BookingStatusConfirmed})

	if lock && lockingSupported(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "NOWAIT"})
	}

	var b model.Booking
	if err := q.Take(&b).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (r *GormBookingRepository) Create(tx *gorm.DB, b *model.Booking) error {
	return tx.Create(b).Error
}

func (r *GormBookingRepository) GetForUpdate(tx *gorm.DB, tenantID, id uuid.UUID, nowait bool) (*model.Booking, error) {
	q := tx.Model(&model.Booking{})
	if lockingSupported(tx) {
		lock := clause.Locking{Strength: "UPDATE"}
		if nowait {
			lock.Options = "NOWAIT"
		}
		q = q.Clauses(lock)
	}

	var b model.Booking
	if err := q.Where("tenant_id = ?", tenantID).Take(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *GormBookingRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Booking, error) {
	var b model.Booking
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Take(&b, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *GormBookingRepository) UpdateStatus(tx *gorm.DB, b *model.Booking, to model.BookingStatus, paidAt *time.Time) error {
	update := map[string]any{
		"status":     to,
		"version":    b.Version + 1,
		"updated_at": time.Now().UTC(),
	}
	if paidAt != nil {
		update["paid_at"] = *paidAt
	}

	res := tx.Model(&model.Booking{}).
		Where("id = ? AND version = ?", b.ID, b.Version).
		Updates(update)
	if res.Error != nil {
		return res.Error
	}
	// Счётчик version разошёлся с БД — бронь изменили параллельно.
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	b.Status = to
	b.Version++
	if paidAt != nil {
		b.PaidAt = paidAt
	}
	return nil
}

func (r *GormBookingRepository) SetCheckoutSession(tx *gorm.DB, b *model.Booking, sessionID string) error {
	res := tx.Model(&model.Booking{}).
		Where("id = ? AND version = ?", b.ID, b.Version).
		Updates(map[string]any{
			"checkout_session_id": sessionID,
			"version":             b.Version + 1,
			"updated_at":          time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	b.CheckoutSessionID = &sessionID
	b.Version++
	return nil
}

func (r *GormBookingRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]model.Booking, error) {
	var out []model.Booking
	q := r.db.WithContext(ctx).
		Where("status = ?", model.BookingStatusPending).
		Where("created_at <= ?", cutoff).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
