package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Снимки для журнала аудита: вместо нетипизированных map — по одной
// известной форме на тип сущности.

// BookingSnapshot — состояние брони на момент записи аудита.
type BookingSnapshot struct {
	ID            uuid.UUID     `json:"id"`
	TenantID      uuid.UUID     `json:"tenant_id"`
	EventDate     time.Time     `json:"event_date"`
	Status        BookingStatus `json:"status"`
	TotalAmount   int64         `json:"total_amount"`
	Currency      string        `json:"currency"`
	CustomerEmail string        `json:"customer_email"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	Version       int64         `json:"version"`
}

// WebhookEventSnapshot — состояние webhook-события на момент записи.
type WebhookEventSnapshot struct {
	ID          uuid.UUID          `json:"id"`
	TenantID    uuid.UUID          `json:"tenant_id"`
	EventID     string             `json:"event_id"`
	BookingID   *uuid.UUID         `json:"booking_id,omitempty"`
	Type        string             `json:"type"`
	Status      WebhookEventStatus `json:"status"`
	ProcessedAt *time.Time         `json:"processed_at,omitempty"`
	LastError   *string            `json:"last_error,omitempty"`
}

// SnapshotBooking сериализует бронь в JSON-снимок для аудита.
func SnapshotBooking(b *Booking) datatypes.JSON {
	if b == nil {
		return nil
	}
	raw, err := json.Marshal(BookingSnapshot{
		ID:            b.ID,
		TenantID:      b.TenantID,
		EventDate:     b.EventDate,
		Status:        b.Status,
		TotalAmount:   b.TotalAmount,
		Currency:      b.Currency,
		CustomerEmail: b.CustomerEmail,
		PaidAt:        b.PaidAt,
		Version:       b.Version,
	})
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// SnapshotWebhookEvent сериализует webhook-событие в JSON-снимок.
func SnapshotWebhookEvent(ev *WebhookEvent) datatypes.JSON {
	if ev == nil {
		return nil
	}
	raw, err := json.Marshal(WebhookEventSnapshot{
		ID:          ev.ID,
		TenantID:    ev.TenantID,
		EventID:     ev.EventID,
		BookingID:   ev.BookingID,
		Type:        ev.Type,
		Status:      ev.Status,
		ProcessedAt: ev.ProcessedAt,
		LastError:   ev.LastError,
	})
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
