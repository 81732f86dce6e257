package model

import (
	"time"

	"github.com/google/uuid"
)

// tenants — независимые вендоры; все данные ядра скоупятся tenant_id.
type Tenant struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Slug string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	Name string    `gorm:"type:varchar(255);not null"`

	// Секрет для проверки подписи вебхуков на тонком ingress-слое.
	WebhookSecret string `gorm:"type:varchar(128);not null"`

	Active bool `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// blackout_dates — закрытые для бронирования даты тенанта.
type BlackoutDate struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_blackout_tenant_date"`

	// Дата без компоненты времени, как и Booking.EventDate.
	Date time.Time `gorm:"type:date;not null;uniqueIndex:ux_blackout_tenant_date"`

	Reason string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`

	Tenant *Tenant `gorm:"foreignKey:TenantID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}
