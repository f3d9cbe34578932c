package billing

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Summarize reports the outstanding balance of the student.
// Its only side effect is ensuring the current and next period invoices exist.
func (svc *Service) Summarize(ctx context.Context, studentID int) (DuesSummary, error) {
	_, next, err := svc.EnsureWindow(ctx, studentID, 1)
	if err != nil {
		return DuesSummary{}, errors.Wrap(err, "ensuring invoice window")
	}

	invoices, err := svc.repo.ListStudentInvoices(ctx, studentID, false)
	if err != nil {
		return DuesSummary{}, errors.Wrap(err, "listing invoices")
	}
	SortOldestFirst(invoices)

	sum := DuesSummary{
		TotalDue: decimal.Zero,
		Unpaid:   make([]Invoice, 0),
	}
	for i, inv := range invoices {
		if inv.PaidAmount.LessThan(inv.TuitionAmount) {
			sum.Unpaid = append(sum.Unpaid, inv)
			sum.TotalDue = sum.TotalDue.Add(inv.Balance())
		}
		if next != nil && inv.ID == next.ID {
			sum.Upcoming = &invoices[i]
		}
	}
	sum.UnpaidCount = len(sum.Unpaid)
	return sum, nil
}
