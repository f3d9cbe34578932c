package payment

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/Syed-Nuhad/school-web-sub000/core"
	"github.com/Syed-Nuhad/school-web-sub000/core/billing"
	"github.com/Syed-Nuhad/school-web-sub000/core/student"
)

const orderPrefix = "dues-"

type (
	Billing interface {
		Summarize(ctx context.Context, studentID int) (billing.DuesSummary, error)
		Allocate(ctx context.Context, studentID int, amount decimal.Decimal, provider, txnID string) ([]billing.Payment, error)
	}

	Students interface {
		GetStudent(ctx context.Context, id int) (student.Student, error)
	}

	Service struct {
		repo     Repository
		gateway  Gateway
		billing  Billing
		students Students
		logger   core.Logger
	}
)

// NewService wires online payments; gateway may be nil when no provider is configured.
func NewService(repo Repository, gateway Gateway, billing Billing, students Students, logger core.Logger) *Service {
	return &Service{
		repo:     repo,
		gateway:  gateway,
		billing:  billing,
		students: students,
		logger:   logger,
	}
}

// NewOrderID encodes the student in the gateway order id: `dues-<studentID>-<random>`.
func NewOrderID(studentID int) string {
	return fmt.Sprintf("%s%d-%s", orderPrefix, studentID, strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}

func ParseOrderID(orderID string) (int, error) {
	if !strings.HasPrefix(orderID, orderPrefix) {
		return 0, errors.Wrapf(ErrInvalidOrderID, "%q", orderID)
	}
	parts := strings.SplitN(strings.TrimPrefix(orderID, orderPrefix), "-", 2)
	id, err := strconv.Atoi(parts[0])
	if err != nil || id <= 0 {
		return 0, errors.Wrapf(ErrInvalidOrderID, "%q", orderID)
	}
	return id, nil
}

// CheckoutDues opens a gateway checkout for the whole outstanding balance of the student.
func (svc *Service) CheckoutDues(ctx context.Context, studentID int) (Checkout, error) {
	if svc.gateway == nil {
		return Checkout{}, ErrGatewayDisabled
	}
	st, err := svc.students.GetStudent(ctx, studentID)
	if err != nil {
		return Checkout{}, errors.Wrap(err, "getting student")
	}
	dues, err := svc.billing.Summarize(ctx, st.ID)
	if err != nil {
		return Checkout{}, errors.Wrap(err, "summarizing dues")
	}
	if !dues.TotalDue.IsPositive() {
		return Checkout{}, core.NewValidationError(ErrNothingDue)
	}

	req := CheckoutRequest{
		OrderID:      NewOrderID(st.ID),
		Amount:       dues.TotalDue,
		CustomerName: st.Name,
		Email:        st.Email,
		Phone:        st.Phone,
		ItemName:     fmt.Sprintf("Dues (%d invoice(s))", dues.UnpaidCount),
	}
	co, err := svc.gateway.CreateCheckout(ctx, req)
	if err != nil {
		return Checkout{}, errors.Wrap(err, "creating checkout")
	}
	return co, nil
}

// HandleNotification records a gateway notification and allocates the paid amount.
// Replayed notifications are recorded once and allocated once.
func (svc *Service) HandleNotification(ctx context.Context, n Notification) (GatewayEvent, error) {
	if svc.gateway == nil {
		return GatewayEvent{}, ErrGatewayDisabled
	}
	if !svc.gateway.VerifySignature(n) {
		return GatewayEvent{}, ErrInvalidSignature
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(n.GrossAmount))
	if err != nil {
		return GatewayEvent{}, core.NewFieldError(billing.ErrInvalidAmount, "gross_amount")
	}

	evt, duplicate, err := svc.repo.RecordEvent(ctx, GatewayEvent{
		Provider:          svc.gateway.Name(),
		OrderID:           n.OrderID,
		TransactionID:     n.TransactionID,
		TransactionStatus: n.TransactionStatus,
		GrossAmount:       amount,
		Status:            EventReceived,
		ReceivedAt:        core.NowFunc().UTC(),
	})
	if err != nil {
		return GatewayEvent{}, errors.Wrap(err, "recording gateway event")
	}
	if duplicate && evt.Status != EventReceived && evt.Status != EventFailed {
		return evt, nil
	}

	status, errMsg := svc.process(ctx, n, amount)
	if err = svc.repo.UpdateEventStatus(ctx, evt.ID, status, errMsg); err != nil {
		return GatewayEvent{}, errors.Wrap(err, "updating gateway event")
	}
	evt.Status = status
	evt.Error = errMsg
	return evt, nil
}

func (svc *Service) process(ctx context.Context, n Notification, amount decimal.Decimal) (EventStatus, string) {
	if !svc.gateway.IsPaid(n) {
		return EventIgnored, ""
	}
	studentID, err := ParseOrderID(n.OrderID)
	if err != nil {
		return EventFailed, err.Error()
	}
	txnID := n.TransactionID
	if txnID == "" {
		txnID = n.OrderID
	}
	if _, err = svc.billing.Allocate(ctx, studentID, amount, svc.gateway.Name(), txnID); err != nil {
		svc.logger.Error(fmt.Sprintf("allocating %s payment of order %s: %v", svc.gateway.Name(), n.OrderID, err), err)
		return EventFailed, core.Truncate(err.Error(), 1000)
	}
	return EventProcessed, ""
}
