package gateway

import (
	"context"
	"fmt"

	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
)

// MidtransGateway — реализация PaymentGateway на Midtrans Snap.
// OrderID сессии = ID брони, сумма — в минорных единицах.
type MidtransGateway struct {
	client snap.Client
}

// NewMidtransGateway создаёт клиента Snap. useProduction=false —
// sandbox-окружение.
func NewMidtransGateway(serverKey string, useProduction bool) *MidtransGateway {
	g := &MidtransGateway{}
	env := midtrans.Sandbox
	if useProduction {
		env = midtrans.Production
	}
	g.client.New(serverKey, env)
	return g
}

func (g *MidtransGateway) CreateCheckoutSession(_ context.Context, req SessionRequest) (*CheckoutSession, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("invalid checkout amount %d", req.Amount)
	}
	if req.OrderID == "" {
		return nil, fmt.Errorf("order id is required")
	}

	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: req.Amount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.CustomerName,
			Email: req.CustomerEmail,
		},
		Metadata: req.Metadata,
	}

	resp, mErr := g.client.CreateTransaction(snapReq)
	if mErr != nil {
		return nil, fmt.Errorf("midtrans create transaction: %w", mErr)
	}

	return &CheckoutSession{
		SessionID:   resp.Token,
		RedirectURL: resp.RedirectURL,
	}, nil
}
