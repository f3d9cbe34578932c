package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/Syed-Nuhad/school-web-sub000/core"
	"github.com/Syed-Nuhad/school-web-sub000/core/events"
	"github.com/Syed-Nuhad/school-web-sub000/core/student"
)

type (
	Repository interface {
		// Atomic runs fn inside one transaction. fn must only use the Repository it is given.
		Atomic(ctx context.Context, fn func(tx Repository) error) error

		// LockPeriodInvoice inserts seed unless a monthly invoice already exists for its (student, period),
		// then returns that invoice locked for update. created reports whether seed was inserted.
		LockPeriodInvoice(ctx context.Context, seed Invoice) (inv Invoice, created bool, err error)
		CreateInvoice(ctx context.Context, inv Invoice) (Invoice, error)
		GetInvoice(ctx context.Context, id int) (Invoice, error)
		// UpdateInvoice persists tuition_amount & paid_amount.
		UpdateInvoice(ctx context.Context, inv Invoice) error
		// ListStudentInvoices returns every invoice of the student; lock takes their row locks.
		ListStudentInvoices(ctx context.Context, studentID int, lock bool) ([]Invoice, error)
		FilterInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)

		CreatePayment(ctx context.Context, p Payment) (Payment, error)
		ListPaymentsByTxn(ctx context.Context, provider, txnID string) ([]Payment, error)
		ListInvoicePayments(ctx context.Context, invoiceID int) ([]Payment, error)
	}

	// Directory is the part of the student registry billing reads from.
	Directory interface {
		GetStudent(ctx context.Context, id int) (student.Student, error)
		GetClass(ctx context.Context, id int) (student.Class, error)
		ListActiveStudents(ctx context.Context) ([]student.Student, error)
	}

	Service struct {
		repo        Repository
		students    Directory
		defaultFee  decimal.Decimal
		dueDay      int
		monthsAhead int
		logger      core.Logger
	}
)

func NewService(repo Repository, students Directory, conf *core.Config, logger core.Logger) *Service {
	return &Service{
		repo:        repo,
		students:    students,
		defaultFee:  conf.Billing.DefaultMonthlyFee,
		dueDay:      conf.Billing.DueDay,
		monthsAhead: conf.Billing.MonthsAhead,
		logger:      logger,
	}
}

// Subscribe registers the billing reactions to domain events.
func (svc *Service) Subscribe(bus *events.Bus) {
	bus.Subscribe(student.EventEnrolled, svc.handleStudentEnrolled)
}

// handleStudentEnrolled opens the invoice window of a newly enrolled student.
func (svc *Service) handleStudentEnrolled(ctx context.Context, evt events.Event) error {
	payload, ok := evt.Payload.(student.Enrolled)
	if !ok {
		return errors.Errorf("unexpected payload %T", evt.Payload)
	}
	if _, _, err := svc.EnsureWindow(ctx, payload.StudentID, svc.monthsAhead); err != nil {
		return errors.Wrapf(err, "ensuring invoice window of student %d", payload.StudentID)
	}
	return nil
}

// MonthlyFee resolves the tuition of a student; the first positive value wins:
// the student override, the class default, then the configured fallback.
// It never fails and never returns a negative amount.
func (svc *Service) MonthlyFee(ctx context.Context, st student.Student) decimal.Decimal {
	if st.MonthlyFee.Valid && st.MonthlyFee.Decimal.IsPositive() {
		return st.MonthlyFee.Decimal
	}
	if st.ClassID.Valid {
		cls, err := svc.students.GetClass(ctx, st.ClassID.Int)
		if err != nil {
			svc.logger.Warn(fmt.Sprintf("resolving class fee of student %d: %v", st.ID, err), err)
		} else if cls.MonthlyFee.Valid && cls.MonthlyFee.Decimal.IsPositive() {
			return cls.MonthlyFee.Decimal
		}
	}
	if svc.defaultFee.IsNegative() {
		return decimal.Zero
	}
	return svc.defaultFee
}

func (svc *Service) lockPeriodInvoice(ctx context.Context, tx Repository, studentID int, p Period, fee decimal.Decimal, reconcile bool) (Invoice, bool, error) {
	seed := Invoice{
		StudentID:     studentID,
		Kind:          KindMonthly,
		PeriodYear:    p.Year,
		PeriodMonth:   int(p.Month),
		TuitionAmount: fee,
		PaidAmount:    decimal.Zero,
		DueDate:       p.DueDate(svc.dueDay),
		CreatedAt:     core.NowFunc().UTC(),
	}
	inv, created, err := tx.LockPeriodInvoice(ctx, seed)
	if err != nil {
		return Invoice{}, false, errors.Wrapf(err, "locking %s invoice", p)
	}

	// once any payment lands the amount is frozen
	if !created && reconcile && inv.PaidAmount.IsZero() && !inv.TuitionAmount.Equal(fee) {
		inv.TuitionAmount = fee
		if err = tx.UpdateInvoice(ctx, inv); err != nil {
			return Invoice{}, false, errors.Wrapf(err, "reconciling %s invoice", p)
		}
	}
	return inv, created, nil
}

func (svc *Service) ensurePeriod(ctx context.Context, st student.Student, p Period) (Invoice, error) {
	fee := svc.MonthlyFee(ctx, st)
	var inv Invoice
	err := svc.repo.Atomic(ctx, func(tx Repository) error {
		var err error
		inv, _, err = svc.lockPeriodInvoice(ctx, tx, st.ID, p, fee, true)
		return err
	})
	return inv, err
}

// GetOrCreatePeriodInvoice returns the monthly invoice of the student for p, creating it if needed.
// An unpaid invoice is resynced to the currently resolved fee.
func (svc *Service) GetOrCreatePeriodInvoice(ctx context.Context, studentID int, p Period) (Invoice, error) {
	if err := p.Validate(); err != nil {
		return Invoice{}, core.NewFieldError(err, "period")
	}
	st, err := svc.students.GetStudent(ctx, studentID)
	if err != nil {
		return Invoice{}, errors.Wrap(err, "getting student")
	}
	return svc.ensurePeriod(ctx, st, p)
}

// EnsureWindow ensures the current period invoice and the next monthsAhead ones exist.
// last is the furthest future invoice, nil when monthsAhead is 0.
func (svc *Service) EnsureWindow(ctx context.Context, studentID int, monthsAhead int) (current Invoice, last *Invoice, err error) {
	st, err := svc.students.GetStudent(ctx, studentID)
	if err != nil {
		return Invoice{}, nil, errors.Wrap(err, "getting student")
	}

	p := CurrentPeriod()
	if current, err = svc.ensurePeriod(ctx, st, p); err != nil {
		return Invoice{}, nil, err
	}
	for i := 1; i <= monthsAhead; i++ {
		inv, err := svc.ensurePeriod(ctx, st, p.AddMonths(i))
		if err != nil {
			return Invoice{}, nil, err
		}
		last = &inv
	}
	return current, last, nil
}

// CreateCustomInvoice always inserts a new custom invoice; dueDate defaults to today.
func (svc *Service) CreateCustomInvoice(ctx context.Context, studentID int, title string, amount interface{}, dueDate *time.Time) (Invoice, error) {
	amt, err := ParseAmount(amount)
	if err != nil {
		return Invoice{}, core.NewFieldError(err, "amount")
	}
	st, err := svc.students.GetStudent(ctx, studentID)
	if err != nil {
		return Invoice{}, errors.Wrap(err, "getting student")
	}

	due := core.Today()
	if dueDate != nil && !dueDate.IsZero() {
		due = core.DateOf(*dueDate)
	}
	inv, err := svc.repo.CreateInvoice(ctx, Invoice{
		StudentID:     st.ID,
		Kind:          KindCustom,
		Title:         core.CleanString(title),
		TuitionAmount: amt,
		PaidAmount:    decimal.Zero,
		DueDate:       due,
		CreatedAt:     core.NowFunc().UTC(),
	})
	if err != nil {
		return Invoice{}, errors.Wrap(err, "creating custom invoice")
	}
	return inv, nil
}

// GenerateMonthlyInvoices ensures one invoice per active student for p.
// New invoices use the configured default fee; existing ones are left untouched.
func (svc *Service) GenerateMonthlyInvoices(ctx context.Context, p Period) (created, total int, err error) {
	if err = p.Validate(); err != nil {
		return 0, 0, core.NewFieldError(err, "period")
	}
	students, err := svc.students.ListActiveStudents(ctx)
	if err != nil {
		return 0, 0, errors.Wrap(err, "listing students")
	}

	fee := svc.defaultFee
	if fee.IsNegative() {
		fee = decimal.Zero
	}
	for _, st := range students {
		var wasCreated bool
		err = svc.repo.Atomic(ctx, func(tx Repository) error {
			var err error
			_, wasCreated, err = svc.lockPeriodInvoice(ctx, tx, st.ID, p, fee, false)
			return err
		})
		if err != nil {
			return created, total, errors.Wrapf(err, "generating invoice of student %d", st.ID)
		}
		total++
		if wasCreated {
			created++
		}
	}
	return created, total, nil
}

func (svc *Service) GetInvoice(ctx context.Context, id int) (Invoice, error) {
	return svc.repo.GetInvoice(ctx, id)
}

// ListInvoices returns the student invoices, newest period first.
func (svc *Service) ListInvoices(ctx context.Context, studentID int) ([]Invoice, error) {
	return svc.repo.FilterInvoices(ctx, InvoiceFilter{StudentID: studentID})
}

func (svc *Service) FilterInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error) {
	return svc.repo.FilterInvoices(ctx, filter)
}

func (svc *Service) ListInvoicePayments(ctx context.Context, invoiceID int) ([]Payment, error) {
	return svc.repo.ListInvoicePayments(ctx, invoiceID)
}
