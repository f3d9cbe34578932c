package billing

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/Syed-Nuhad/school-web-sub000/core"
)

// Kinds
const (
	KindMonthly Kind = "monthly"
	KindCustom  Kind = "custom"
)

var (
	// errors
	ErrNotFound       = errors.New("invoice not found")
	ErrInvalidAmount  = errors.New("amount must be a valid number")
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrInvalidPeriod  = errors.New("invalid billing period")
)

type Kind string

// Period is a (year, month) pair identifying one monthly billing cycle.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the period holding the instant t on the school calendar.
func PeriodOf(t time.Time) Period {
	t = t.In(core.Location)
	return Period{Year: t.Year(), Month: t.Month()}
}

func CurrentPeriod() Period {
	return PeriodOf(core.NowFunc())
}

// AddMonths wraps year boundaries (2024-12 + 1 = 2025-01).
func (p Period) AddMonths(n int) Period {
	t := time.Date(p.Year, p.Month+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	return Period{Year: t.Year(), Month: t.Month()}
}

func (p Period) Next() Period { return p.AddMonths(1) }

func (p Period) FirstDay() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// DueDate returns the given day of the period; day is clamped to [1, 28].
func (p Period) DueDate(day int) time.Time {
	if day < 1 {
		day = 1
	} else if day > 28 {
		day = 28
	}
	return time.Date(p.Year, p.Month, day, 0, 0, 0, 0, time.UTC)
}

func (p Period) String() string {
	return fmt.Sprintf("%d-%02d", p.Year, int(p.Month))
}

func (p Period) Validate() error {
	if p.Month < time.January || p.Month > time.December || p.Year < 1970 || p.Year > 9999 {
		return errors.Wrapf(ErrInvalidPeriod, "%d-%02d", p.Year, int(p.Month))
	}
	return nil
}

type Invoice struct {
	ID            int             `json:"id" db:"id"`
	StudentID     int             `json:"student_id" db:"student_id"`
	Kind          Kind            `json:"kind" db:"kind"`
	PeriodYear    int             `json:"period_year,omitempty" db:"period_year"`  // monthly only
	PeriodMonth   int             `json:"period_month,omitempty" db:"period_month"` // monthly only
	Title         string          `json:"title" db:"title"`
	TuitionAmount decimal.Decimal `json:"tuition_amount" db:"tuition_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount" db:"paid_amount"`
	DueDate       time.Time       `json:"due_date" db:"due_date"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"` // UTC
}

func (inv Invoice) Balance() decimal.Decimal {
	return inv.TuitionAmount.Sub(inv.PaidAmount)
}

func (inv Invoice) IsPaid() bool {
	return !inv.PaidAmount.LessThan(inv.TuitionAmount)
}

func (inv Invoice) Period() (Period, bool) {
	if inv.Kind != KindMonthly || inv.PeriodYear == 0 || inv.PeriodMonth == 0 {
		return Period{}, false
	}
	return Period{Year: inv.PeriodYear, Month: time.Month(inv.PeriodMonth)}, true
}

// Label is the human readable period of the invoice: `YYYY-MM` for monthly ones, the title otherwise.
func (inv Invoice) Label() string {
	if p, ok := inv.Period(); ok {
		return p.String()
	}
	if t := strings.TrimSpace(inv.Title); t != "" {
		return t
	}
	return "Invoice"
}

// billingDate orders invoices chronologically: monthly ones by their period, custom ones by due date.
func (inv Invoice) billingDate() time.Time {
	if p, ok := inv.Period(); ok {
		return p.FirstDay()
	}
	return core.DateOf(inv.DueDate)
}

// SortOldestFirst sorts invoices by billing date; on the same date monthly invoices come first, then by id.
func SortOldestFirst(invoices []Invoice) {
	sort.SliceStable(invoices, func(i, j int) bool {
		di, dj := invoices[i].billingDate(), invoices[j].billingDate()
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		if invoices[i].Kind != invoices[j].Kind {
			return invoices[i].Kind == KindMonthly
		}
		return invoices[i].ID < invoices[j].ID
	})
}

type Payment struct {
	ID        int             `json:"id" db:"id"`
	InvoiceID int             `json:"invoice_id" db:"invoice_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Provider  string          `json:"provider" db:"provider"`
	TxnID     null.String     `json:"txn_id" db:"txn_id"`
	PaidOn    time.Time       `json:"paid_on" db:"paid_on"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"` // UTC
}

type DuesSummary struct {
	TotalDue    decimal.Decimal `json:"total_due"`
	UnpaidCount int             `json:"unpaid_count"`
	Unpaid      []Invoice       `json:"unpaid_invoices"`
	Upcoming    *Invoice        `json:"upcoming_invoice"`
}

// InvoiceFilter applies AND operation on its set fields. Results are ordered newest period first.
type InvoiceFilter struct {
	StudentID     int
	Outstanding   bool      // paid_amount < tuition_amount
	DueOnOrBefore time.Time // ignored when zero
	Limit         int       // ignored when <= 0
}

// NewCustomInvoice contains information needed to create a custom invoice.
type NewCustomInvoice struct {
	Title   string      `json:"title"`
	Amount  interface{} `json:"amount"` // number or numeric string
	DueDate *time.Time  `json:"due_date"`
}

// ParseAmount coerces numeric-like input (numbers, numeric strings, decimals) into a non-negative amount.
func ParseAmount(v interface{}) (decimal.Decimal, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch a := v.(type) {
	case decimal.Decimal:
		d = a
	case *decimal.Decimal:
		if a == nil {
			return decimal.Zero, ErrInvalidAmount
		}
		d = *a
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(a))
	case json.Number:
		d, err = decimal.NewFromString(a.String())
	case int:
		d = decimal.NewFromInt(int64(a))
	case int32:
		d = decimal.NewFromInt32(a)
	case int64:
		d = decimal.NewFromInt(a)
	case float32:
		if math.IsNaN(float64(a)) || math.IsInf(float64(a), 0) {
			return decimal.Zero, ErrInvalidAmount
		}
		d = decimal.NewFromFloat32(a)
	case float64:
		if math.IsNaN(a) || math.IsInf(a, 0) {
			return decimal.Zero, ErrInvalidAmount
		}
		d = decimal.NewFromFloat(a)
	default:
		return decimal.Zero, ErrInvalidAmount
	}
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	return d, nil
}
