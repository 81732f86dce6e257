package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type AuditEntityType string

const (
	AuditEntityBooking      AuditEntityType = "booking"
	AuditEntityWebhookEvent AuditEntityType = "webhook_event"
)

type AuditOperation string

const (
	AuditOpCreate AuditOperation = "create"
	AuditOpUpdate AuditOperation = "update"
	AuditOpDelete AuditOperation = "delete"
)

// audit_entries — журнал аудита
//
// Append-only: записи никогда не обновляются и не удаляются. Пишется
// синхронно, в той же транзакции, что и задокументированная мутация.
type AuditEntry struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index:ix_audit_entity,priority:1"`

	EntityType AuditEntityType `gorm:"type:varchar(32);not null;index:ix_audit_entity,priority:2"`
	EntityID   uuid.UUID       `gorm:"type:uuid;not null;index:ix_audit_entity,priority:3"`

	Operation AuditOperation `gorm:"type:varchar(16);not null"`

	// Типизированные снимки состояния до и после мутации; форма снимка
	// выбирается по EntityType (см. snapshot.go).
	Before datatypes.JSON `gorm:"type:jsonb"`
	After  datatypes.JSON `gorm:"type:jsonb"`

	// Кто/что вызвало мутацию. Пустой actor не допускается.
	Actor string `gorm:"type:varchar(128);not null"`

	CreatedAt time.Time `gorm:"not null;index:ix_audit_entity,priority:4"`
}
