package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/vendora/booking-platform/internal/model"
	"github.com/vendora/booking-platform/internal/notify"
	"github.com/vendora/booking-platform/internal/repository"
)

// Исход попытки заявить событие за собой.
type ClaimOutcome int

const (
	// Заявка выиграна: событие наше, можно применять побочные эффекты.
	ClaimOutcomeClaimed ClaimOutcome = iota
	// Событие уже дошло до терминального статуса; эффекты повторно не
	// применяются, провайдеру отвечаем успехом.
	ClaimOutcomeAlreadyProcessed
	// То же событие сейчас в обработке другим исполнением; провайдеру
	// отвечаем "повтори позже".
	ClaimOutcomeInProgress
)

type ClaimResult struct {
	Outcome ClaimOutcome
	Event   *model.WebhookEvent
}

// PaymentEvent — нормализованная доставка вебхука платёжного
// провайдера после тонкого ingress-слоя (подпись уже проверена).
type PaymentEvent struct {
	TenantID  uuid.UUID
	EventID   string
	Type      string
	BookingID uuid.UUID
	Payload   datatypes.JSON
}

// WebhookService — хранилище идемпотентности вебхуков и оркестратор
// их обработки. Claim транзакционен и быстр; побочные эффекты (машина
// состояний брони) выполняются только после выигранной заявки и
// финализируются в той же транзакции, что и переход брони.
type WebhookService struct {
	db       *gorm.DB
	events   repository.WebhookEventRepository
	bookings repository.BookingRepository
	state    *BookingStateMachine
	audit    *AuditService
	notifier notify.Notifier
}

func NewWebhookService(
	db *gorm.DB,
	events repository.WebhookEventRepository,
	bookings repository.BookingRepository,
	state *BookingStateMachine,
	audit *AuditService,
	notifier notify.Notifier,
) *WebhookService {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &WebhookService{
		db:       db,
		events:   events,
		bookings: bookings,
		state:    state,
		audit:    audit,
		notifier: notifier,
	}
}

// ClaimEvent атомарно закрепляет событие за вызывающим. Вставка
// RECEIVED и перевод в PROCESSING идут одной транзакцией; дедупликацию
// делает уникальный индекс (tenant_id, event_id). Повторная доставка
// терминального события — AlreadyProcessed, доставка во время
// обработки — InProgress.
func (s *WebhookService) ClaimEvent(ctx context.Context, tenantID uuid.UUID, eventID, eventType string, payload datatypes.JSON) (ClaimResult, error) {
	ev := &model.WebhookEvent{
		ID:         uuid.New(),
		TenantID:   tenantID,
		EventID:    eventID,
		Type:       eventType,
		Status:     model.WebhookEventStatusReceived,
		Payload:    payload,
		ReceivedAt: time.Now().UTC(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.events.Insert(tx, ev); err != nil {
			return err
		}
		won, err := s.events.TransitionStatus(tx, ev, model.WebhookEventStatusReceived, model.WebhookEventStatusProcessing, nil, nil)
		if err != nil {
			return err
		}
		if !won {
			// Свежевставленная строка не может быть в другом
			// статусе в той же транзакции.
			return errors.New("claim: lost transition on own insert")
		}
		return s.audit.Record(tx, tenantID, model.AuditEntityWebhookEvent, ev.ID, model.AuditOpCreate, nil, model.SnapshotWebhookEvent(ev), "webhook:"+eventID)
	})
	if err == nil {
		return ClaimResult{Outcome: ClaimOutcomeClaimed, Event: ev}, nil
	}
	if !repository.IsDuplicateKey(err) {
		return ClaimResult{}, err
	}

	// Событие уже видели: решаем по статусу существующей записи.
	existing, err := s.events.GetByEventID(ctx, tenantID, eventID)
	if err != nil {
		return ClaimResult{}, err
	}
	switch existing.Status {
	case model.WebhookEventStatusProcessed, model.WebhookEventStatusFailed:
		return ClaimResult{Outcome: ClaimOutcomeAlreadyProcessed, Event: existing}, nil
	case model.WebhookEventStatusProcessing:
		return ClaimResult{Outcome: ClaimOutcomeInProgress, Event: existing}, nil
	}

	// Осиротевшая RECEIVED-строка: перезаявляем защищённым переходом,
	// продолжает только победитель гонки.
	var won bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		won, err = s.events.TransitionStatus(tx, existing, model.WebhookEventStatusReceived, model.WebhookEventStatusProcessing, nil, nil)
		return err
	})
	if err != nil {
		return ClaimResult{}, err
	}
	if !won {
		return ClaimResult{Outcome: ClaimOutcomeInProgress, Event: existing}, nil
	}
	return ClaimResult{Outcome: ClaimOutcomeClaimed, Event: existing}, nil
}

// FinalizeEvent выводит событие из PROCESSING в терминальный статус в
// переданной транзакции. Вызывается в том же коммите, что и переход
// брони: наблюдать "бронь подтверждена, а событие ещё RECEIVED"
// невозможно.
func (s *WebhookService) FinalizeEvent(tx *gorm.DB, ev *model.WebhookEvent, outcome model.WebhookEventStatus, procErr error) error {
	if !outcome.Terminal() {
		return errors.New("finalize: outcome must be terminal")
	}

	before := model.SnapshotWebhookEvent(ev)
	now := time.Now().UTC()
	var lastError *string
	if procErr != nil {
		msg := procErr.Error()
		lastError = &msg
	}

	won, err := s.events.TransitionStatus(tx, ev, model.WebhookEventStatusProcessing, outcome, &now, lastError)
	if err != nil {
		return err
	}
	if !won {
		return errors.New("finalize: event is not in processing state")
	}
	return s.audit.Record(tx, ev.TenantID, model.AuditEntityWebhookEvent, ev.ID, model.AuditOpUpdate, before, model.SnapshotWebhookEvent(ev), "webhook:"+ev.EventID)
}

// ProcessEvent — полный путь доставки: заявка, переход брони и
// финализация одной транзакцией, затем уведомление fire-and-forget.
// Повторная доставка возвращает сохранённый исход без эффектов.
func (s *WebhookService) ProcessEvent(ctx context.Context, pe PaymentEvent) (*model.Booking, error) {
	ctx, span := otel.Tracer("booking").Start(ctx, "ProcessWebhookEvent")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant_id", pe.TenantID.String()),
		attribute.String("event_id", pe.EventID),
	)

	claim, err := s.ClaimEvent(ctx, pe.TenantID, pe.EventID, pe.Type, pe.Payload)
	if err != nil {
		return nil, err
	}
	switch claim.Outcome {
	case ClaimOutcomeInProgress:
		return nil, ErrEventInProgress
	case ClaimOutcomeAlreadyProcessed:
		if claim.Event.BookingID == nil {
			return nil, nil
		}
		return s.bookings.GetByID(ctx, pe.TenantID, *claim.Event.BookingID)
	}

	ev := claim.Event

	outcome, known := paymentOutcomeFor(pe.Type)
	if !known {
		// Чужой тип события: фиксируем как обработанное, бронь не
		// трогаем, провайдеру — успех.
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.FinalizeEvent(tx, ev, model.WebhookEventStatusProcessed, nil)
		})
		return nil, err
	}

	// Откат транзакции не откатывает мутации указателя: перед каждой
	// попыткой (и перед финализацией сбоя) событие возвращается к
	// состоянию на момент заявки, иначе снимок before зафиксирует
	// статус несостоявшейся попытки.
	claimed := *ev

	var booking *model.Booking
	procErr := retryTx(ctx, func() error {
		*ev = claimed
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			b, err := s.state.ApplyPaymentOutcome(tx, pe.TenantID, pe.BookingID, outcome, pe.EventID)
			if err != nil {
				return err
			}
			ev.BookingID = &b.ID
			if err := s.FinalizeEvent(tx, ev, model.WebhookEventStatusProcessed, nil); err != nil {
				return err
			}
			booking = b
			return nil
		})
	})
	if procErr != nil {
		// Гарантированный выход из PROCESSING: иначе все повторные
		// доставки будут вечно получать "повтори позже".
		ferr := retryTx(ctx, func() error {
			*ev = claimed
			return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				return s.FinalizeEvent(tx, ev, model.WebhookEventStatusFailed, procErr)
			})
		})
		if ferr != nil {
			log.Printf("[webhook] finalize failed event %s: %v", pe.EventID, ferr)
		}
		return nil, procErr
	}

	s.notifyOutcome(booking)
	return booking, nil
}

func paymentOutcomeFor(eventType string) (PaymentOutcome, bool) {
	switch eventType {
	case model.WebhookTypePaymentSucceeded:
		return PaymentOutcomeSuccess, true
	case model.WebhookTypePaymentFailed:
		return PaymentOutcomeFailure, true
	default:
		return "", false
	}
}

// Уведомления fire-and-forget: сбой здесь никогда не откатывает
// транзакцию брони.
func (s *WebhookService) notifyOutcome(b *model.Booking) {
	if b == nil {
		return
	}
	go func(b model.Booking) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var err error
		switch b.Status {
		case model.BookingStatusConfirmed:
			err = s.notifier.BookingConfirmed(ctx, &b)
		case model.BookingStatusFailed:
			err = s.notifier.BookingFailed(ctx, &b)
		}
		if err != nil {
			log.Printf("[webhook] notify booking %s: %v", b.ID, err)
		}
	}(*b)
}
