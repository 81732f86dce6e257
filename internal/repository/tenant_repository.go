package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendora/booking-platform/internal/model"
)

// TenantRepository — доступ к тенантам, их пакетам и blackout-датам.
// Реализует контракт календарного коллаборатора IsDateBlocked.
type TenantRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*model.Tenant, error)
	GetPackage(ctx context.Context, tenantID, packageID uuid.UUID) (*model.Package, error)
	// Закрыта ли дата для бронирования у тенанта.
	IsDateBlocked(ctx context.Context, tenantID uuid.UUID, date time.Time) (bool, error)
}

type GormTenantRepository struct {
	db *gorm.DB
}

func NewGormTenantRepository(db *gorm.DB) *GormTenantRepository {
	return &GormTenantRepository{db: db}
}

func (r *GormTenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	var t model.Tenant
	if err := r.db.WithContext(ctx).Take(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *GormTenantRepository) GetBySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	var t model.Tenant
	if err := r.db.WithContext(ctx).Take(&t, "slug = ?", slug).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *GormTenantRepository) GetPackage(ctx context.Context, tenantID, packageID uuid.UUID) (*model.Package, error) {
	var p model.Package
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Take(&p, "id = ?", packageID).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormTenantRepository) IsDateBlocked(ctx context.Context, tenantID uuid.UUID, date time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.BlackoutDate{}).
		Where("tenant_id = ? AND date = ?", tenantID, model.NormalizeEventDate(date)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
