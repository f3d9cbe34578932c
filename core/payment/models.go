package payment

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Gateway event statuses
const (
	EventReceived  EventStatus = "received"
	EventProcessed EventStatus = "processed"
	EventIgnored   EventStatus = "ignored"
	EventFailed    EventStatus = "failed"
)

var (
	// errors
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidOrderID   = errors.New("invalid order id")
	ErrNothingDue       = errors.New("nothing is due")
	ErrGatewayDisabled  = errors.New("payment gateway not configured")
)

type (
	EventStatus string

	// Notification is the payload a gateway posts once a transaction changes status.
	Notification struct {
		OrderID           string `json:"order_id"`
		StatusCode        string `json:"status_code"`
		GrossAmount       string `json:"gross_amount"`
		SignatureKey      string `json:"signature_key"`
		TransactionID     string `json:"transaction_id"`
		TransactionStatus string `json:"transaction_status"`
		FraudStatus       string `json:"fraud_status"`
		PaymentType       string `json:"payment_type"`
	}

	// GatewayEvent is the append-only record of a received notification.
	GatewayEvent struct {
		ID                int             `json:"id" db:"id"`
		Provider          string          `json:"provider" db:"provider"`
		OrderID           string          `json:"order_id" db:"order_id"`
		TransactionID     string          `json:"transaction_id" db:"transaction_id"`
		TransactionStatus string          `json:"transaction_status" db:"transaction_status"`
		GrossAmount       decimal.Decimal `json:"gross_amount" db:"gross_amount"`
		Status            EventStatus     `json:"status" db:"status"`
		Error             string          `json:"error" db:"error"`
		ReceivedAt        time.Time       `json:"received_at" db:"received_at"` // UTC
	}

	CheckoutRequest struct {
		OrderID      string
		Amount       decimal.Decimal
		CustomerName string
		Email        string
		Phone        string
		ItemName     string
	}

	Checkout struct {
		OrderID     string          `json:"order_id"`
		Amount      decimal.Decimal `json:"amount"`
		Token       string          `json:"token"`
		RedirectURL string          `json:"redirect_url"`
	}

	// Gateway is an online payment provider (services/payment).
	Gateway interface {
		Name() string
		CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error)
		VerifySignature(n Notification) bool
		// IsPaid maps the provider transaction status to "money received".
		IsPaid(n Notification) bool
	}

	Repository interface {
		// RecordEvent stores evt; duplicate is true (and the stored event returned) when
		// (provider, transaction_id, transaction_status) was already received.
		RecordEvent(ctx context.Context, evt GatewayEvent) (stored GatewayEvent, duplicate bool, err error)
		UpdateEventStatus(ctx context.Context, id int, status EventStatus, errMsg string) error
	}
)
