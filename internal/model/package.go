package model

import (
	"time"

	"github.com/google/uuid"
)

// packages — минимальная каталожная сущность: ровно те поля, что нужны
// для расчёта цены и валюты брони. Остальной каталог вне ядра.
type Package struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`

	Name string `gorm:"type:varchar(255);not null"`

	PriceAmount int64  `gorm:"not null"` // минорные единицы валюты
	Currency    string `gorm:"type:varchar(8);not null"`

	Active bool `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Tenant *Tenant `gorm:"foreignKey:TenantID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}
