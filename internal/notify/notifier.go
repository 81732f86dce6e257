package notify

import (
	"context"

	"github.com/vendora/booking-platform/internal/model"
)

// Notifier — коллаборатор уведомлений. Вызывается после терминальных
// переходов брони; fire-and-forget, сбой никогда не откатывает
// транзакцию брони.
type Notifier interface {
	BookingConfirmed(ctx context.Context, b *model.Booking) error
	BookingFailed(ctx context.Context, b *model.Booking) error
}

// Noop — заглушка для тестов и конфигураций без брокера.
type Noop struct{}

func (Noop) BookingConfirmed(context.Context, *model.Booking) error { return nil }
func (Noop) BookingFailed(context.Context, *model.Booking) error    { return nil }
