package model

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusFailed    BookingStatus = "failed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Terminal сообщает, допускает ли статус дальнейшие переходы.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingStatusConfirmed, BookingStatusFailed, BookingStatusCancelled:
		return true
	default:
		return false
	}
}

// Active — бронь, удерживающая дату (pending или confirmed).
func (s BookingStatus) Active() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

// bookings
//
// Частичный уникальный индекс ux_bookings_tenant_event_date (создаётся
// в AutoMigrate сырым SQL) даёт не более одной активной брони на дату
// у одного тенанта: cancelled и failed выпадают из индекса и
// освобождают дату.
type Booking struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`

	// Дата события без компоненты времени (нормализуется к полуночи UTC).
	EventDate time.Time `gorm:"type:date;not null;index"`

	Status BookingStatus `gorm:"type:varchar(32);not null;index"`

	PackageID   uuid.UUID `gorm:"type:uuid;not null;index"`
	TotalAmount int64     `gorm:"not null"` // минорные единицы валюты
	Currency    string    `gorm:"type:varchar(8);not null"`

	CustomerEmail string `gorm:"type:varchar(255);not null"`
	CustomerName  string `gorm:"type:varchar(255)"`

	// Идентификатор checkout-сессии платёжного шлюза.
	CheckoutSessionID *string `gorm:"type:varchar(255)"`

	// Без явного type: декл-тип подбирает диалект, иначе sqlite в
	// тестах перестаёт сканировать колонку как время.
	PaidAt    *time.Time
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`

	// Монотонный счётчик для оптимистичной сверки при обновлениях.
	Version int64 `gorm:"not null;default:1"`

	Tenant  *Tenant  `gorm:"foreignKey:TenantID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Package *Package `gorm:"foreignKey:PackageID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// NormalizeEventDate отбрасывает время и переводит дату в UTC.
func NormalizeEventDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
