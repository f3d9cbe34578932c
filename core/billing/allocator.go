package billing

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/Syed-Nuhad/school-web-sub000/core"
)

const ProviderManual = "manual"

// Allocate spreads amount over the open invoices of the student, oldest first.
// The recorded total is min(amount, outstanding balance); any excess is dropped.
// A non positive amount is a no-op. When txnID is set and payments already exist for
// (provider, txnID), those are returned and nothing is allocated again.
func (svc *Service) Allocate(ctx context.Context, studentID int, amount decimal.Decimal, provider, txnID string) ([]Payment, error) {
	payments := make([]Payment, 0)
	if !amount.IsPositive() {
		return payments, nil
	}
	provider = core.CleanString(provider, true /* lower */)
	if provider == "" {
		provider = ProviderManual
	}
	txnID = strings.TrimSpace(txnID)

	err := svc.repo.Atomic(ctx, func(tx Repository) error {
		// The invoice locks serialize allocations of the student, so the
		// transaction check below cannot race a concurrent delivery of the same txn.
		invoices, err := tx.ListStudentInvoices(ctx, studentID, true /* lock */)
		if err != nil {
			return errors.Wrap(err, "locking invoices")
		}
		if txnID != "" {
			existing, err := tx.ListPaymentsByTxn(ctx, provider, txnID)
			if err != nil {
				return errors.Wrap(err, "checking transaction")
			}
			if len(existing) > 0 {
				payments = existing
				return nil
			}
		}
		SortOldestFirst(invoices)

		now := core.NowFunc().UTC()
		remaining := amount
		for _, inv := range invoices {
			if !remaining.IsPositive() {
				break
			}
			bal := inv.Balance()
			if !bal.IsPositive() {
				continue
			}
			payNow := decimal.Min(bal, remaining)

			p, err := tx.CreatePayment(ctx, Payment{
				InvoiceID: inv.ID,
				Amount:    payNow,
				Provider:  provider,
				TxnID:     null.NewString(txnID, txnID != ""),
				PaidOn:    core.LocalDate(now),
				CreatedAt: now,
			})
			if err != nil {
				return errors.Wrapf(err, "creating payment for invoice %d", inv.ID)
			}
			inv.PaidAmount = inv.PaidAmount.Add(payNow)
			if err = tx.UpdateInvoice(ctx, inv); err != nil {
				return errors.Wrapf(err, "updating invoice %d", inv.ID)
			}

			payments = append(payments, p)
			remaining = remaining.Sub(payNow)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payments, nil
}
