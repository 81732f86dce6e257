package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendora/booking-platform/internal/model"
)

// WebhookEventRepository — хранилище записей о доставках вебхуков.
// Вставка работает как claim: уникальный индекс (tenant_id, event_id)
// делает дедупликацию на уровне БД.
type WebhookEventRepository interface {
	// Вставить запись о доставке. Повторная вставка того же
	// event_id падает нарушением уникальности (см. IsDuplicateKey).
	Insert(tx *gorm.DB, ev *model.WebhookEvent) error
	// Существующая запись по ключу дедупликации.
	GetByEventID(ctx context.Context, tenantID uuid.UUID, eventID string) (*model.WebhookEvent, error)
	// Защищённый переход статуса: выполняется только если строка всё
	// ещё в статусе from; возвращает, выиграл ли вызывающий гонку.
	TransitionStatus(tx *gorm.DB, ev *model.WebhookEvent, from, to model.WebhookEventStatus, processedAt *time.Time, lastError *string) (bool, error)
}

type GormWebhookEventRepository struct {
	db *gorm.DB
}

func NewGormWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

func (r *GormWebhookEventRepository) Insert(tx *gorm.DB, ev *model.WebhookEvent) error {
	return tx.Create(ev).Error
}

func (r *GormWebhookEventRepository) GetByEventID(ctx context.Context, tenantID uuid.UUID, eventID string) (*model.WebhookEvent, error) {
	var ev model.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND event_id = ?", tenantID, eventID).
		Take(&ev).Error
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (r *GormWebhookEventRepository) TransitionStatus(tx *gorm.DB, ev *model.WebhookEvent, from, to model.WebhookEventStatus, processedAt *time.Time, lastError *string) (bool, error) {
	update := map[string]any{"status": to}
	if processedAt != nil {
		update["processed_at"] = *processedAt
	}
	if lastError != nil {
		update["last_error"] = *lastError
	}
	if ev.BookingID != nil {
		update["booking_id"] = *ev.BookingID
	}

	res := tx.Model(&model.WebhookEvent{}).
		Where("id = ? AND status = ?", ev.ID, from).
		Updates(update)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	ev.Status = to
	if processedAt != nil {
		ev.ProcessedAt = processedAt
	}
	if lastError != nil {
		ev.LastError = lastError
	}
	return true, nil
}
