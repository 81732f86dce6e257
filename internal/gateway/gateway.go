package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// SessionRequest — запрос на создание checkout-сессии у платёжного
// провайдера. Metadata возвращается провайдером в webhook-доставках и
// связывает событие с тенантом и бронью.
type SessionRequest struct {
	OrderID       string
	Amount        int64 // минорные единицы валюты
	Currency      string
	CustomerEmail string
	CustomerName  string
	Metadata      map[string]string
}

type CheckoutSession struct {
	SessionID   string
	RedirectURL string
}

// PaymentGateway — контракт внешнего платёжного шлюза. Подтверждение
// платежа шлюз доставляет асинхронно, вебхуком.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (*CheckoutSession, error)
}

// WebhookDelivery — распакованное тело доставки вебхука до
// нормализации ingress-слоем.
type WebhookDelivery struct {
	EventID  string            `json:"event_id"`
	Type     string            `json:"type"`
	Metadata map[string]string `json:"metadata"`
}

// ParseDelivery разбирает сырое тело вебхука.
func ParseDelivery(body []byte) (*WebhookDelivery, error) {
	var d WebhookDelivery
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("parse webhook body: %w", err)
	}
	if d.EventID == "" {
		return nil, fmt.Errorf("webhook body has no event_id")
	}
	return &d, nil
}

// SignBody считает подпись тела вебхука секретом тенанта
// (HMAC-SHA512, hex).
func SignBody(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature сверяет подпись доставки за константное время.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := SignBody(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
