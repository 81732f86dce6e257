package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Коды SQLSTATE Postgres, на которых строится fail-fast семантика.
const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03" // SELECT ... FOR UPDATE NOWAIT по занятой строке
)

// IsDuplicateKey распознаёт нарушение уникального ограничения.
// Покрывает и перевод ошибок GORM (sqlite в тестах), и сырую ошибку
// драйвера Postgres.
func IsDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// IsLockNotAvailable распознаёт отказ неблокирующей блокировки NOWAIT.
func IsLockNotAvailable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable
}

// lockingSupported: строчные блокировки применяем только на Postgres;
// sqlite в тестах сериализует записи сам, а FOR UPDATE не знает.
func lockingSupported(tx *gorm.DB) bool {
	return tx.Dialector.Name() == "postgres"
}
