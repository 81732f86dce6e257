package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type WebhookEventStatus string

const (
	WebhookEventStatusReceived   WebhookEventStatus = "received"
	WebhookEventStatusProcessing WebhookEventStatus = "processing"
	WebhookEventStatusProcessed  WebhookEventStatus = "processed"
	WebhookEventStatusFailed     WebhookEventStatus = "failed"
)

// Terminal — побочные эффекты события уже применены (или окончательно
// не применены); повторная доставка короткозамыкается.
func (s WebhookEventStatus) Terminal() bool {
	return s == WebhookEventStatusProcessed || s == WebhookEventStatusFailed
}

// Типы событий платёжного провайдера, которые двигают состояние брони.
const (
	WebhookTypePaymentSucceeded = "payment.succeeded"
	WebhookTypePaymentFailed    = "payment.failed"
)

// webhook_events
//
// EventID назначается платёжным провайдером и служит ключом
// дедупликации; уникальный индекс (tenant_id, event_id) делает
// повторную вставку невозможной.
type WebhookEvent struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_webhook_events_tenant_event"`
	EventID  string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_webhook_events_tenant_event"`

	BookingID *uuid.UUID `gorm:"type:uuid;index"`

	Type   string             `gorm:"type:varchar(100);not null;index"`
	Status WebhookEventStatus `gorm:"type:varchar(32);not null;index"`

	// Сырое тело доставки, как его прислал провайдер.
	Payload datatypes.JSON `gorm:"type:jsonb"`

	ReceivedAt  time.Time `gorm:"not null"`
	ProcessedAt *time.Time
	LastError   *string `gorm:"type:text"`

	Tenant  *Tenant  `gorm:"foreignKey:TenantID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Booking *Booking `gorm:"foreignKey:BookingID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}
