package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendora/booking-platform/internal/model"
)

// AuditRepository — append-only хранилище журнала аудита. Методов
// обновления или удаления нет намеренно.
type AuditRepository interface {
	Append(tx *gorm.DB, entry *model.AuditEntry) error
	// Записи по сущности в хронологическом порядке, не позже ts.
	ListUpTo(ctx context.Context, tenantID uuid.UUID, entityType model.AuditEntityType, entityID uuid.UUID, ts time.Time) ([]model.AuditEntry, error)
	// Все записи по сущности (для инспекции и тестов).
	ListForEntity(ctx context.Context, tenantID uuid.UUID, entityType model.AuditEntityType, entityID uuid.UUID) ([]model.AuditEntry, error)
}

type GormAuditRepository struct {
	db *gorm.DB
}

func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

func (r *GormAuditRepository) Append(tx *gorm.DB, entry *model.AuditEntry) error {
	return tx.Create(entry).Error
}

func (r *GormAuditRepository) ListUpTo(ctx context.Context, tenantID uuid.UUID, entityType model.AuditEntityType, entityID uuid.UUID, ts time.Time) ([]model.AuditEntry, error) {
	var entries []model.AuditEntry
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ? AND entity_id = ?", tenantID, entityType, entityID).
		Where("created_at <= ?", ts).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *GormAuditRepository) ListForEntity(ctx context.Context, tenantID uuid.UUID, entityType model.AuditEntityType, entityID uuid.UUID) ([]model.AuditEntry, error) {
	var entries []model.AuditEntry
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ? AND entity_id = ?", tenantID, entityType, entityID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
