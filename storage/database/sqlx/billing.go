package sqlxrepos

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/Syed-Nuhad/school-web-sub000/core/billing"
)

const invoiceColumns = `id, student_id, kind, COALESCE(period_year, 0) AS period_year, COALESCE(period_month, 0) AS period_month,
	title, tuition_amount, paid_amount, due_date, created_at`

const paymentColumns = `id, invoice_id, amount, provider, txn_id, paid_on, created_at`

type billingRepository struct {
	scope
}

var _ billing.Repository = (*billingRepository)(nil) // interface compliance check

func NewBillingRepository(db *sqlx.DB) *billingRepository {
	return &billingRepository{scope{db: db}}
}

func (repo *billingRepository) Atomic(ctx context.Context, fn func(tx billing.Repository) error) error {
	return repo.atomic(ctx, func(s scope) error {
		return fn(&billingRepository{s})
	})
}

func (repo *billingRepository) LockPeriodInvoice(ctx context.Context, seed billing.Invoice) (billing.Invoice, bool, error) {
	// ON CONFLICT targets the partial unique index on monthly (student, period)
	q := `INSERT INTO invoices (student_id, kind, period_year, period_month, title, tuition_amount, paid_amount, due_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (student_id, period_year, period_month) WHERE kind = 'monthly' DO NOTHING`
	res, err := repo.ext().ExecContext(ctx, q,
		seed.StudentID, billing.KindMonthly, seed.PeriodYear, seed.PeriodMonth, seed.Title,
		seed.TuitionAmount, seed.PaidAmount, seed.DueDate, seed.CreatedAt)
	if err != nil {
		return billing.Invoice{}, false, errors.Wrap(err, "inserting period invoice")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return billing.Invoice{}, false, errors.Wrap(err, "inserting period invoice")
	}

	var inv billing.Invoice
	err = sqlx.GetContext(ctx, repo.ext(), &inv,
		`SELECT `+invoiceColumns+` FROM invoices
		WHERE kind = 'monthly' AND student_id = $1 AND period_year = $2 AND period_month = $3
		FOR UPDATE`,
		seed.StudentID, seed.PeriodYear, seed.PeriodMonth)
	if err != nil {
		return billing.Invoice{}, false, trapNoRowsErr(err, billing.ErrNotFound, "locking period invoice")
	}
	return inv, n > 0, nil
}

func (repo *billingRepository) CreateInvoice(ctx context.Context, inv billing.Invoice) (billing.Invoice, error) {
	q := `INSERT INTO invoices (student_id, kind, period_year, period_month, title, tuition_amount, paid_amount, due_date, created_at)
		VALUES ($1, $2, NULLIF($3, 0), NULLIF($4, 0), $5, $6, $7, $8, $9)
		RETURNING id`
	err := sqlx.GetContext(ctx, repo.ext(), &inv.ID, q,
		inv.StudentID, inv.Kind, inv.PeriodYear, inv.PeriodMonth, inv.Title,
		inv.TuitionAmount, inv.PaidAmount, inv.DueDate, inv.CreatedAt)
	if err != nil {
		return billing.Invoice{}, errors.Wrap(err, "inserting invoice")
	}
	return inv, nil
}

func (repo *billingRepository) GetInvoice(ctx context.Context, id int) (billing.Invoice, error) {
	var inv billing.Invoice
	err := sqlx.GetContext(ctx, repo.ext(), &inv, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	if err != nil {
		return billing.Invoice{}, trapNoRowsErr(err, billing.ErrNotFound, "getting invoice")
	}
	return inv, nil
}

func (repo *billingRepository) UpdateInvoice(ctx context.Context, inv billing.Invoice) error {
	res, err := repo.ext().ExecContext(ctx,
		`UPDATE invoices SET tuition_amount = $1, paid_amount = $2 WHERE id = $3`,
		inv.TuitionAmount, inv.PaidAmount, inv.ID)
	if err != nil {
		return errors.Wrap(err, "updating invoice")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return billing.ErrNotFound
	}
	return nil
}

func (repo *billingRepository) ListStudentInvoices(ctx context.Context, studentID int, lock bool) ([]billing.Invoice, error) {
	q := `SELECT ` + invoiceColumns + ` FROM invoices WHERE student_id = $1 ORDER BY id`
	if lock {
		q += ` FOR UPDATE`
	}
	invoices := make([]billing.Invoice, 0)
	if err := sqlx.SelectContext(ctx, repo.ext(), &invoices, q, studentID); err != nil {
		return nil, errors.Wrap(err, "listing student invoices")
	}
	return invoices, nil
}

func (repo *billingRepository) FilterInvoices(ctx context.Context, filter billing.InvoiceFilter) ([]billing.Invoice, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.StudentID != 0 {
		where = append(where, "student_id = "+arg(filter.StudentID))
	}
	if filter.Outstanding {
		where = append(where, "paid_amount < tuition_amount")
	}
	if !filter.DueOnOrBefore.IsZero() {
		where = append(where, "due_date <= "+arg(filter.DueOnOrBefore))
	}

	q := `SELECT ` + invoiceColumns + ` FROM invoices`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY COALESCE(period_year, 0) DESC, COALESCE(period_month, 0) DESC, id DESC`
	if filter.Limit > 0 {
		q += ` LIMIT ` + arg(filter.Limit)
	}

	invoices := make([]billing.Invoice, 0)
	if err := sqlx.SelectContext(ctx, repo.ext(), &invoices, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering invoices")
	}
	return invoices, nil
}

func (repo *billingRepository) CreatePayment(ctx context.Context, p billing.Payment) (billing.Payment, error) {
	q := `INSERT INTO payments (invoice_id, amount, provider, txn_id, paid_on, created_at)
		VALUES (:invoice_id, :amount, :provider, :txn_id, :paid_on, :created_at)
		RETURNING id`
	q, args, err := sqlx.Named(q, p)
	if err != nil {
		return billing.Payment{}, errors.Wrap(err, "binding payment")
	}
	if err = sqlx.GetContext(ctx, repo.ext(), &p.ID, repo.db.Rebind(q), args...); err != nil {
		return billing.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return p, nil
}

func (repo *billingRepository) ListPaymentsByTxn(ctx context.Context, provider, txnID string) ([]billing.Payment, error) {
	payments := make([]billing.Payment, 0)
	err := sqlx.SelectContext(ctx, repo.ext(), &payments,
		`SELECT `+paymentColumns+` FROM payments WHERE provider = $1 AND txn_id = $2 ORDER BY id`, provider, txnID)
	if err != nil {
		return nil, errors.Wrap(err, "listing transaction payments")
	}
	return payments, nil
}

func (repo *billingRepository) ListInvoicePayments(ctx context.Context, invoiceID int) ([]billing.Payment, error) {
	payments := make([]billing.Payment, 0)
	err := sqlx.SelectContext(ctx, repo.ext(), &payments,
		`SELECT `+paymentColumns+` FROM payments WHERE invoice_id = $1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, errors.Wrap(err, "listing invoice payments")
	}
	return payments, nil
}
