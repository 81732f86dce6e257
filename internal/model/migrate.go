package model

import "gorm.io/gorm"

// AutoMigrate выполняет миграцию всех сущностей ядра бронирования.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&Tenant{},
		&Package{},
		&BlackoutDate{},
		&Booking{},
		&WebhookEvent{},
		&AuditEntry{},
	); err != nil {
		return err
	}

	// Частичный уникальный индекс тегами GORM не выражается, поэтому
	// сырой SQL. Поддерживается и Postgres, и sqlite (тесты).
	return db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_bookings_tenant_event_date
		 ON bookings (tenant_id, event_date)
		 WHERE status IN ('pending', 'confirmed')`,
	).Error
}
