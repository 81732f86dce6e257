package service

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Причины конфликта при попытке занять дату. Для клиента обе значат
// одно и то же: дата недоступна, выберите другую.
type ConflictReason string

const (
	ConflictDateAlreadyBooked ConflictReason = "DATE_ALREADY_BOOKED"
	ConflictConcurrentAttempt ConflictReason = "CONCURRENT_ATTEMPT"
)

// ConflictError возвращается, когда слот (tenant, date) занять нельзя:
// либо дата уже забронирована, либо её прямо сейчас бронирует кто-то
// другой. За границу компонента не «летит» как паника — всегда
// типизированный результат.
type ConflictError struct {
	Reason ConflictReason
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("booking conflict: %s", e.Reason)
}

// AsConflict извлекает ConflictError из цепочки ошибок.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// StateTransitionError — попытка перехода из терминального статуса.
// Логируется, но наружу не отдаётся: это доброкачественная гонка, уже
// разрешённая идемпотентностью.
type StateTransitionError struct {
	From string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("state transition out of terminal state %q", e.From)
}

var (
	// Событие с тем же event_id сейчас обрабатывается другим
	// исполнением; провайдеру отвечаем "повтори позже".
	ErrEventInProgress = errors.New("webhook event is already being processed")

	// Дата закрыта blackout-списком тенанта.
	ErrDateBlocked = errors.New("date is blocked for booking")

	ErrBookingNotFound = errors.New("booking not found")
	ErrTenantNotFound  = errors.New("tenant not found")
	ErrPackageNotFound = errors.New("package not found")

	// Пустой actor в записи аудита не допускается.
	ErrMissingActor = errors.New("audit actor must not be empty")
)

const (
	txRetryAttempts = 3
	txRetryBaseWait = 50 * time.Millisecond
)

// retryTx гоняет транзакционную функцию с экспоненциальной паузой.
// Конфликты и прочие типизированные результаты не ретраятся — только
// неожиданные ошибки персистентности. После исчерпания попыток ошибка
// уходит вызывающему как фатальная.
func retryTx(ctx context.Context, fn func() error) error {
	var err error
	wait := txRetryBaseWait
	for attempt := 0; attempt < txRetryAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if _, ok := AsConflict(err); ok {
			return err
		}
		var st *StateTransitionError
		if errors.As(err, &st) {
			return err
		}
		if errors.Is(err, ErrBookingNotFound) || errors.Is(err, ErrDateBlocked) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}
