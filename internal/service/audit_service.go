package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/vendora/booking-platform/internal/model"
	"github.com/vendora/booking-platform/internal/repository"
)

// AuditService — append-only журнал переходов состояния со снимками
// до/после. Record всегда вызывается в транзакции мутации: упавшая
// запись аудита откатывает всю мутацию, молчаливых изменений без
// следа не бывает.
type AuditService struct {
	entries repository.AuditRepository
}

func NewAuditService(entries repository.AuditRepository) *AuditService {
	return &AuditService{entries: entries}
}

// Record добавляет запись журнала в переданную транзакцию.
// Пустой actor отклоняется (см. DESIGN.md, решение по fail-open).
func (s *AuditService) Record(
	tx *gorm.DB,
	tenantID uuid.UUID,
	entityType model.AuditEntityType,
	entityID uuid.UUID,
	op model.AuditOperation,
	before, after datatypes.JSON,
	actor string,
) error {
	if actor == "" {
		return ErrMissingActor
	}
	return s.entries.Append(tx, &model.AuditEntry{
		ID:         uuid.New(),
		TenantID:   tenantID,
		EntityType: entityType,
		EntityID:   entityID,
		Operation:  op,
		Before:     before,
		After:      after,
		Actor:      actor,
		CreatedAt:  time.Now().UTC(),
	})
}

// ReconstructAt воспроизводит состояние сущности на момент ts, играя
// журнал по порядку. Возвращает nil, если сущность к ts ещё не
// существовала или была удалена. Не для горячего пути — инструмент
// ручного отката и разбора инцидентов.
func (s *AuditService) ReconstructAt(
	ctx context.Context,
	tenantID uuid.UUID,
	entityType model.AuditEntityType,
	entityID uuid.UUID,
	ts time.Time,
) (datatypes.JSON, error) {
	entries, err := s.entries.ListUpTo(ctx, tenantID, entityType, entityID, ts)
	if err != nil {
		return nil, err
	}

	var snapshot datatypes.JSON
	for _, e := range entries {
		switch e.Operation {
		case model.AuditOpDelete:
			snapshot = nil
		default:
			snapshot = e.After
		}
	}
	return snapshot, nil
}

// History отдаёт полный журнал по сущности.
func (s *AuditService) History(
	ctx context.Context,
	tenantID uuid.UUID,
	entityType model.AuditEntityType,
	entityID uuid.UUID,
) ([]model.AuditEntry, error) {
	return s.entries.ListForEntity(ctx, tenantID, entityType, entityID)
}
