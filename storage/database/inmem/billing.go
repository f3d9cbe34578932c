package inmemdb

import (
	"context"
	"sort"

	"github.com/Syed-Nuhad/school-web-sub000/core"
	"github.com/Syed-Nuhad/school-web-sub000/core/billing"
)

type billingRepository struct {
	db   *DB
	inTx bool
}

var _ billing.Repository = (*billingRepository)(nil) // interface compliance check

func NewBillingRepository(db *DB) *billingRepository {
	return &billingRepository{db: db}
}

func (repo *billingRepository) Atomic(ctx context.Context, fn func(tx billing.Repository) error) error {
	if repo.inTx {
		return fn(repo)
	}
	return repo.db.atomic(func(_ *core.CommitHooks) error {
		return fn(&billingRepository{db: repo.db, inTx: true})
	})
}

func (repo *billingRepository) LockPeriodInvoice(ctx context.Context, seed billing.Invoice) (billing.Invoice, bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, inv := range repo.db.data.invoices {
		if inv.Kind == billing.KindMonthly && inv.StudentID == seed.StudentID &&
			inv.PeriodYear == seed.PeriodYear && inv.PeriodMonth == seed.PeriodMonth {
			return inv, false, nil
		}
	}
	seed.ID = repo.db.nextID("invoices")
	repo.db.data.invoices[seed.ID] = seed
	return seed, true, nil
}

func (repo *billingRepository) CreateInvoice(ctx context.Context, inv billing.Invoice) (billing.Invoice, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	inv.ID = repo.db.nextID("invoices")
	repo.db.data.invoices[inv.ID] = inv
	return inv, nil
}

func (repo *billingRepository) GetInvoice(ctx context.Context, id int) (billing.Invoice, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if inv, ok := repo.db.data.invoices[id]; ok {
		return inv, nil
	}
	return billing.Invoice{}, billing.ErrNotFound
}

func (repo *billingRepository) UpdateInvoice(ctx context.Context, inv billing.Invoice) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.data.invoices[inv.ID]
	if !ok {
		return billing.ErrNotFound
	}
	orig.TuitionAmount = inv.TuitionAmount
	orig.PaidAmount = inv.PaidAmount
	repo.db.data.invoices[inv.ID] = orig
	return nil
}

func (repo *billingRepository) ListStudentInvoices(ctx context.Context, studentID int, lock bool) ([]billing.Invoice, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	invoices := make([]billing.Invoice, 0)
	for _, inv := range repo.db.data.invoices {
		if inv.StudentID == studentID {
			invoices = append(invoices, inv)
		}
	}
	sort.Slice(invoices, func(i, j int) bool { return invoices[i].ID < invoices[j].ID })
	return invoices, nil
}

func (repo *billingRepository) FilterInvoices(ctx context.Context, filter billing.InvoiceFilter) ([]billing.Invoice, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	invoices := make([]billing.Invoice, 0)
	for _, inv := range repo.db.data.invoices {
		if filter.StudentID != 0 && inv.StudentID != filter.StudentID {
			continue
		}
		if filter.Outstanding && !inv.PaidAmount.LessThan(inv.TuitionAmount) {
			continue
		}
		if !filter.DueOnOrBefore.IsZero() && inv.DueDate.After(filter.DueOnOrBefore) {
			continue
		}
		invoices = append(invoices, inv)
	}

	// newest period first, custom invoices (no period) last, then newest id first
	sort.Slice(invoices, func(i, j int) bool {
		a, b := invoices[i], invoices[j]
		if a.PeriodYear != b.PeriodYear {
			return a.PeriodYear > b.PeriodYear
		}
		if a.PeriodMonth != b.PeriodMonth {
			return a.PeriodMonth > b.PeriodMonth
		}
		return a.ID > b.ID
	})
	if filter.Limit > 0 && len(invoices) > filter.Limit {
		invoices = invoices[:filter.Limit]
	}
	return invoices, nil
}

func (repo *billingRepository) CreatePayment(ctx context.Context, p billing.Payment) (billing.Payment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.data.invoices[p.InvoiceID]; !ok {
		return billing.Payment{}, billing.ErrNotFound
	}
	p.ID = repo.db.nextID("payments")
	repo.db.data.payments[p.ID] = p
	return p, nil
}

func (repo *billingRepository) listPayments(keep func(p billing.Payment) bool) []billing.Payment {
	payments := make([]billing.Payment, 0)
	for _, p := range repo.db.data.payments {
		if keep(p) {
			payments = append(payments, p)
		}
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].ID < payments[j].ID })
	return payments
}

func (repo *billingRepository) ListPaymentsByTxn(ctx context.Context, provider, txnID string) ([]billing.Payment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.listPayments(func(p billing.Payment) bool {
		return p.Provider == provider && p.TxnID.Valid && p.TxnID.String == txnID
	}), nil
}

func (repo *billingRepository) ListInvoicePayments(ctx context.Context, invoiceID int) ([]billing.Payment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.listPayments(func(p billing.Payment) bool { return p.InvoiceID == invoiceID }), nil
}
