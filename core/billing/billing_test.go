package billing_test

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/Syed-Nuhad/school-web-sub000/core"
	"github.com/Syed-Nuhad/school-web-sub000/core/billing"
	"github.com/Syed-Nuhad/school-web-sub000/core/student"
	inmemdb "github.com/Syed-Nuhad/school-web-sub000/storage/database/inmem"
)

var ctx = context.Background()

type fixture struct {
	conf     *core.Config
	db       *inmemdb.DB
	stRepo   student.Repository
	students *student.Service
	svc      *billing.Service
}

// setup freezes the clock at now; students created through the fixture get no invoice window.
func setup(t *testing.T, now time.Time) *fixture {
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = orig })

	f := &fixture{conf: core.NewTestConfig(), db: inmemdb.Open()}
	f.stRepo = inmemdb.NewStudentRepository(f.db)
	f.students = student.NewService(f.stRepo, nil)
	f.svc = billing.NewService(inmemdb.NewBillingRepository(f.db), f.students, f.conf, core.NewNopLogger())
	return f
}

func (f *fixture) student(t *testing.T, fee string, classID ...int) student.Student {
	st := student.Student{Name: "Amina", IsActive: true, CreatedAt: core.NowFunc()}
	if fee != "" {
		st.MonthlyFee = decimal.NewNullDecimal(decimal.RequireFromString(fee))
	}
	if len(classID) > 0 {
		st.ClassID = null.IntFrom(classID[0])
	}
	st, err := f.stRepo.CreateStudent(ctx, st)
	require.NoError(t, err)
	return st
}

func (f *fixture) custom(t *testing.T, studentID int, amount string, due time.Time) billing.Invoice {
	inv, err := f.svc.CreateCustomInvoice(ctx, studentID, "Custom", amount, &due)
	require.NoError(t, err)
	return inv
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestService_MonthlyFee(t *testing.T) {
	f := setup(t, date(2024, time.March, 5))

	withFee, err := f.stRepo.CreateClass(ctx, student.Class{Name: "P1", MonthlyFee: decimal.NewNullDecimal(decimal.NewFromInt(1500))})
	require.NoError(t, err)
	freeClass, err := f.stRepo.CreateClass(ctx, student.Class{Name: "P2", MonthlyFee: decimal.NewNullDecimal(decimal.Zero)})
	require.NoError(t, err)

	tests := []struct {
		name string
		st   student.Student
		want string
	}{
		{name: "student override", st: f.student(t, "900", withFee.ID), want: "900"},
		{name: "zero override falls back to class", st: f.student(t, "0", withFee.ID), want: "1500"},
		{name: "class fee", st: f.student(t, "", withFee.ID), want: "1500"},
		{name: "zero class fee falls back to default", st: f.student(t, "", freeClass.ID), want: "2000"},
		{name: "unknown class falls back to default", st: f.student(t, "", 999), want: "2000"},
		{name: "default", st: f.student(t, ""), want: "2000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.svc.MonthlyFee(ctx, tt.st).String())
		})
	}

	t.Run("never negative", func(t *testing.T) {
		conf := core.NewTestConfig()
		conf.Billing.DefaultMonthlyFee = decimal.NewFromInt(-10)
		svc := billing.NewService(inmemdb.NewBillingRepository(f.db), f.students, conf, core.NewNopLogger())
		assert.True(t, svc.MonthlyFee(ctx, f.student(t, "")).IsZero())
	})
}

func TestService_GetOrCreatePeriodInvoice(t *testing.T) {
	f := setup(t, date(2024, time.March, 5))
	st := f.student(t, "100")
	p := billing.Period{Year: 2024, Month: time.April}

	inv, err := f.svc.GetOrCreatePeriodInvoice(ctx, st.ID, p)
	require.NoError(t, err)
	assert.Equal(t, billing.KindMonthly, inv.Kind)
	assert.Equal(t, "100", inv.TuitionAmount.String())
	assert.Equal(t, date(2024, time.April, f.conf.Billing.DueDay), inv.DueDate)

	again, err := f.svc.GetOrCreatePeriodInvoice(ctx, st.ID, p)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, again.ID)

	// an unpaid invoice follows the fee
	fee := decimal.NewFromInt(120)
	_, err = f.students.SetMonthlyFee(ctx, st.ID, &fee)
	require.NoError(t, err)
	again, err = f.svc.GetOrCreatePeriodInvoice(ctx, st.ID, p)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, again.ID)
	assert.Equal(t, "120", again.TuitionAmount.String())

	// a paid one is frozen
	_, err = f.svc.Allocate(ctx, st.ID, decimal.NewFromInt(10), "cash", "")
	require.NoError(t, err)
	fee = decimal.NewFromInt(200)
	_, err = f.students.SetMonthlyFee(ctx, st.ID, &fee)
	require.NoError(t, err)
	again, err = f.svc.GetOrCreatePeriodInvoice(ctx, st.ID, p)
	require.NoError(t, err)
	assert.Equal(t, "120", again.TuitionAmount.String())
	assert.Equal(t, "10", again.PaidAmount.String())

	invs, err := f.svc.ListInvoices(ctx, st.ID)
	require.NoError(t, err)
	assert.Len(t, invs, 1)

	t.Run("invalid period", func(t *testing.T) {
		_, err := f.svc.GetOrCreatePeriodInvoice(ctx, st.ID, billing.Period{Year: 2024, Month: 13})
		assert.True(t, core.IsValidationError(err))
	})
	t.Run("unknown student", func(t *testing.T) {
		_, err := f.svc.GetOrCreatePeriodInvoice(ctx, 999, p)
		assert.Equal(t, student.ErrNotFound, errors.Cause(err))
	})
}

func TestService_EnsureWindow(t *testing.T) {
	f := setup(t, date(2024, time.December, 20))
	st := f.student(t, "")

	current, last, err := f.svc.EnsureWindow(ctx, st.ID, 2)
	require.NoError(t, err)
	p, _ := current.Period()
	assert.Equal(t, billing.Period{Year: 2024, Month: time.December}, p)
	require.NotNil(t, last)
	p, _ = last.Period()
	assert.Equal(t, billing.Period{Year: 2025, Month: time.February}, p)

	_, last, err = f.svc.EnsureWindow(ctx, st.ID, 0)
	require.NoError(t, err)
	assert.Nil(t, last)

	invs, err := f.svc.ListInvoices(ctx, st.ID)
	require.NoError(t, err)
	assert.Len(t, invs, 3)
}

func TestService_Allocate(t *testing.T) {
	tests := []struct {
		name         string
		amount       string
		wantPayments []string
		wantPaid     []string
	}{
		{name: "partial", amount: "120", wantPayments: []string{"100", "20"}, wantPaid: []string{"100", "20", "0"}},
		{name: "exact", amount: "180", wantPayments: []string{"100", "50", "30"}, wantPaid: []string{"100", "50", "30"}},
		{name: "excess is dropped", amount: "500", wantPayments: []string{"100", "50", "30"}, wantPaid: []string{"100", "50", "30"}},
		{name: "zero", amount: "0", wantPayments: []string{}, wantPaid: []string{"0", "0", "0"}},
		{name: "negative", amount: "-5", wantPayments: []string{}, wantPaid: []string{"0", "0", "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, date(2024, time.March, 5))
			st := f.student(t, "")
			// created out of order: allocation follows the billing date
			inv30 := f.custom(t, st.ID, "30", date(2024, time.March, 1))
			inv100 := f.custom(t, st.ID, "100", date(2024, time.January, 1))
			inv50 := f.custom(t, st.ID, "50", date(2024, time.February, 1))

			payments, err := f.svc.Allocate(ctx, st.ID, decimal.RequireFromString(tt.amount), "", "")
			require.NoError(t, err)
			got := make([]string, 0, len(payments))
			for _, p := range payments {
				got = append(got, p.Amount.String())
				assert.Equal(t, billing.ProviderManual, p.Provider)
			}
			assert.Equal(t, tt.wantPayments, got)

			for i, id := range []int{inv100.ID, inv50.ID, inv30.ID} {
				inv, err := f.svc.GetInvoice(ctx, id)
				require.NoError(t, err)
				assert.Equal(t, tt.wantPaid[i], inv.PaidAmount.String())
				assert.False(t, inv.PaidAmount.GreaterThan(inv.TuitionAmount))
			}
		})
	}
}

func TestService_Allocate_monthlyBeforeCustom(t *testing.T) {
	f := setup(t, date(2024, time.March, 5))
	st := f.student(t, "100")

	custom := f.custom(t, st.ID, "40", date(2024, time.March, 1))
	monthly, err := f.svc.GetOrCreatePeriodInvoice(ctx, st.ID, billing.Period{Year: 2024, Month: time.March})
	require.NoError(t, err)

	payments, err := f.svc.Allocate(ctx, st.ID, decimal.NewFromInt(100), "cash", "")
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, monthly.ID, payments[0].InvoiceID)

	custom, err = f.svc.GetInvoice(ctx, custom.ID)
	require.NoError(t, err)
	assert.True(t, custom.PaidAmount.IsZero())
}

func TestService_Allocate_idempotentTransaction(t *testing.T) {
	f := setup(t, date(2024, time.March, 5))
	st := f.student(t, "")
	f.custom(t, st.ID, "100", date(2024, time.January, 1))
	f.custom(t, st.ID, "100", date(2024, time.February, 1))

	first, err := f.svc.Allocate(ctx, st.ID, decimal.NewFromInt(60), "Midtrans", "txn-1")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "midtrans", first[0].Provider)
	assert.Equal(t, null.StringFrom("txn-1"), first[0].TxnID)

	replay, err := f.svc.Allocate(ctx, st.ID, decimal.NewFromInt(60), "midtrans", "txn-1")
	require.NoError(t, err)
	assert.Equal(t, first, replay)

	dues, err := f.svc.Summarize(ctx, st.ID)
	require.NoError(t, err)
	// 140 of the custom invoices + the current and next monthly ones
	assert.Equal(t, "4140", dues.TotalDue.String())
}

func TestService_Allocate_duplicateDelivery(t *testing.T) {
	f := setup(t, date(2024, time.March, 5))
	st := f.student(t, "")
	f.custom(t, st.ID, "100", date(2024, time.January, 1))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results [][]billing.Payment
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ps, err := f.svc.Allocate(ctx, st.ID, decimal.NewFromInt(40), "midtrans", "txn-dup")
			assert.NoError(t, err)
			mu.Lock()
			results = append(results, ps)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, results, 10)
	for _, ps := range results {
		assert.Equal(t, results[0], ps, "every delivery sees the same payments")
	}
	dues, err := f.svc.Summarize(ctx, st.ID)
	require.NoError(t, err)
	// 60 of the custom invoice + the current and next monthly ones
	assert.Equal(t, "4060", dues.TotalDue.String())
}

func TestService_Summarize(t *testing.T) {
	f := setup(t, date(2024, time.December, 20))
	st := f.student(t, "100")
	f.custom(t, st.ID, "30", date(2024, time.November, 1))

	dues, err := f.svc.Summarize(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, "230", dues.TotalDue.String())
	assert.Equal(t, 3, dues.UnpaidCount)
	require.Len(t, dues.Unpaid, 3)
	assert.Equal(t, billing.KindCustom, dues.Unpaid[0].Kind) // oldest first
	require.NotNil(t, dues.Upcoming)
	assert.Equal(t, 2025, dues.Upcoming.PeriodYear)
	assert.Equal(t, 1, dues.Upcoming.PeriodMonth)

	_, err = f.svc.Allocate(ctx, st.ID, decimal.NewFromInt(230), "cash", "")
	require.NoError(t, err)
	dues, err = f.svc.Summarize(ctx, st.ID)
	require.NoError(t, err)
	assert.True(t, dues.TotalDue.IsZero())
	assert.Equal(t, 0, dues.UnpaidCount)
	assert.NotNil(t, dues.Unpaid)
}

func TestService_CreateCustomInvoice(t *testing.T) {
	f := setup(t, date(2024, time.March, 5))
	st := f.student(t, "")

	inv, err := f.svc.CreateCustomInvoice(ctx, st.ID, "  Trip ", 150.5, nil)
	require.NoError(t, err)
	assert.Equal(t, billing.KindCustom, inv.Kind)
	assert.Equal(t, "Trip", inv.Title)
	assert.Equal(t, "150.5", inv.TuitionAmount.String())
	assert.Equal(t, date(2024, time.March, 5), inv.DueDate)
	assert.Equal(t, "Trip", inv.Label())

	for _, amount := range []interface{}{"lol", -1, nil, math.NaN()} {
		_, err = f.svc.CreateCustomInvoice(ctx, st.ID, "Bad", amount, nil)
		assert.True(t, core.IsValidationError(err), "amount %v", amount)
	}
}

func TestService_GenerateMonthlyInvoices(t *testing.T) {
	f := setup(t, date(2024, time.March, 5))
	override := f.student(t, "700")
	f.student(t, "")
	inactive := f.student(t, "")
	inactive.IsActive = false
	_, err := f.stRepo.UpdateStudent(ctx, inactive)
	require.NoError(t, err)

	p := billing.Period{Year: 2024, Month: time.May}
	created, total, err := f.svc.GenerateMonthlyInvoices(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Equal(t, 2, total)

	// the command seeds the configured default fee, not the student override
	invoices, err := f.svc.ListInvoices(ctx, override.ID)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, "2000", invoices[0].TuitionAmount.String())

	created, total, err = f.svc.GenerateMonthlyInvoices(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Equal(t, 2, total)

	_, _, err = f.svc.GenerateMonthlyInvoices(ctx, billing.Period{Year: 2024, Month: 0})
	assert.True(t, core.IsValidationError(err))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      interface{}
		want    string
		wantErr error
	}{
		{in: "12.50", want: "12.5"},
		{in: " 7 ", want: "7"},
		{in: json.Number("3.25"), want: "3.25"},
		{in: 10, want: "10"},
		{in: int64(10), want: "10"},
		{in: 0.1, want: "0.1"},
		{in: decimal.NewFromInt(4), want: "4"},
		{in: "0", want: "0"},
		{in: "abc", wantErr: billing.ErrInvalidAmount},
		{in: "", wantErr: billing.ErrInvalidAmount},
		{in: nil, wantErr: billing.ErrInvalidAmount},
		{in: math.Inf(1), wantErr: billing.ErrInvalidAmount},
		{in: true, wantErr: billing.ErrInvalidAmount},
		{in: "-1", wantErr: billing.ErrNegativeAmount},
	}
	for _, tt := range tests {
		got, err := billing.ParseAmount(tt.in)
		if tt.wantErr != nil {
			assert.Equal(t, tt.wantErr, err, "ParseAmount(%v)", tt.in)
			continue
		}
		if assert.NoError(t, err, "ParseAmount(%v)", tt.in) {
			assert.Equal(t, tt.want, got.String(), "ParseAmount(%v)", tt.in)
		}
	}
}

func TestPeriod(t *testing.T) {
	p := billing.Period{Year: 2024, Month: time.December}
	assert.Equal(t, billing.Period{Year: 2025, Month: time.January}, p.Next())
	assert.Equal(t, billing.Period{Year: 2023, Month: time.December}, p.AddMonths(-12))
	assert.Equal(t, "2024-12", p.String())
	assert.Equal(t, date(2024, time.December, 28), p.DueDate(31))
	assert.Equal(t, date(2024, time.December, 1), p.DueDate(0))
	assert.NoError(t, p.Validate())
	assert.Error(t, billing.Period{Year: 2024}.Validate())
}

func TestCurrentPeriod(t *testing.T) {
	orig := core.Location
	t.Cleanup(func() { core.Location = orig })

	// 2024-03-31 20:00 UTC
	f := setup(t, time.Date(2024, time.March, 31, 20, 0, 0, 0, time.UTC))
	tests := []struct {
		name string
		loc  *time.Location
		want billing.Period
	}{
		{name: "utc", loc: time.UTC, want: billing.Period{Year: 2024, Month: time.March}},
		{name: "ahead of utc", loc: time.FixedZone("Asia/Dhaka", 6*60*60), want: billing.Period{Year: 2024, Month: time.April}},
		{name: "behind utc", loc: time.FixedZone("America/New_York", -4*60*60), want: billing.Period{Year: 2024, Month: time.March}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core.Location = tt.loc
			assert.Equal(t, tt.want, billing.CurrentPeriod())
			assert.Equal(t, tt.want.Next(), tt.want.AddMonths(1))
		})
	}

	t.Run("payments are dated on the school calendar", func(t *testing.T) {
		core.Location = time.FixedZone("Asia/Dhaka", 6*60*60)
		st := f.student(t, "")
		f.custom(t, st.ID, "50", date(2024, time.March, 1))
		ps, err := f.svc.Allocate(ctx, st.ID, decimal.NewFromInt(50), "cash", "")
		require.NoError(t, err)
		require.Len(t, ps, 1)
		assert.Equal(t, date(2024, time.April, 1), ps[0].PaidOn)
	})
}

func TestSortOldestFirst(t *testing.T) {
	invs := []billing.Invoice{
		{ID: 1, Kind: billing.KindCustom, DueDate: date(2024, time.February, 1)},
		{ID: 2, Kind: billing.KindMonthly, PeriodYear: 2024, PeriodMonth: 2},
		{ID: 3, Kind: billing.KindMonthly, PeriodYear: 2024, PeriodMonth: 1},
		{ID: 4, Kind: billing.KindCustom, DueDate: date(2024, time.February, 1)},
	}
	billing.SortOldestFirst(invs)

	ids := make([]int, 0, len(invs))
	for _, inv := range invs {
		ids = append(ids, inv.ID)
	}
	assert.Equal(t, []int{3, 2, 1, 4}, ids)
}
