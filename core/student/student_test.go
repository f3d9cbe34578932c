package student_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Syed-Nuhad/school-web-sub000/core"
	"github.com/Syed-Nuhad/school-web-sub000/core/events"
	"github.com/Syed-Nuhad/school-web-sub000/core/student"
	inmemdb "github.com/Syed-Nuhad/school-web-sub000/storage/database/inmem"
)

var ctx = context.Background()

func newService() (*student.Service, *events.Bus) {
	bus := events.NewBus(core.NewNopLogger())
	return student.NewService(inmemdb.NewStudentRepository(inmemdb.Open()), bus), bus
}

func TestService_Create(t *testing.T) {
	svc, bus := newService()

	var enrolled []int
	bus.Subscribe(student.EventEnrolled, func(ctx context.Context, evt events.Event) error {
		enrolled = append(enrolled, evt.Payload.(student.Enrolled).StudentID)
		return errors.New("billing is down")
	})

	fee := decimal.NewFromInt(1500)
	st, err := svc.Create(ctx, student.NewStudent{Name: "Amina", Email: "amina@test.cd", MonthlyFee: &fee})
	require.NoError(t, err, "subscriber errors never fail the enrollment")
	assert.Greater(t, st.ID, 0)
	assert.True(t, st.IsActive)
	assert.True(t, st.MonthlyFee.Valid)
	assert.True(t, fee.Equal(st.MonthlyFee.Decimal))
	assert.Equal(t, []int{st.ID}, enrolled)

	got, err := svc.GetStudent(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, "Amina", got.Name)

	_, err = svc.GetStudent(ctx, 999)
	assert.Equal(t, student.ErrNotFound, errors.Cause(err))
}

func TestService_SetMonthlyFee(t *testing.T) {
	svc, _ := newService()
	st, err := svc.Create(ctx, student.NewStudent{Name: "Baraka"})
	require.NoError(t, err)
	assert.False(t, st.MonthlyFee.Valid)

	fee := decimal.NewFromInt(900)
	st, err = svc.SetMonthlyFee(ctx, st.ID, &fee)
	require.NoError(t, err)
	assert.True(t, fee.Equal(st.MonthlyFee.Decimal))

	neg := decimal.NewFromInt(-1)
	_, err = svc.SetMonthlyFee(ctx, st.ID, &neg)
	assert.True(t, core.IsValidationError(err))

	st, err = svc.SetMonthlyFee(ctx, st.ID, nil)
	require.NoError(t, err)
	assert.False(t, st.MonthlyFee.Valid)
}

func TestNewStudent_Validate(t *testing.T) {
	svc, _ := newService()
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	fee := decimal.NewFromInt(1000)
	cls, err := svc.CreateClass(ctx, student.NewClass{Name: "Grade 1", MonthlyFee: &fee})
	require.NoError(t, err)

	classID, unknownID := cls.ID, 999
	neg := decimal.NewFromInt(-10)
	tests := []struct {
		name    string
		ns      student.NewStudent
		wantErr bool
	}{
		{name: "valid", ns: student.NewStudent{Name: " Amina ", Email: "Amina@Test.cd", Phone: "01712345678", ClassID: &classID}},
		{name: "missing name", ns: student.NewStudent{Name: "  "}, wantErr: true},
		{name: "bad email", ns: student.NewStudent{Name: "Amina", Email: "amina"}, wantErr: true},
		{name: "bad guardian phone", ns: student.NewStudent{Name: "Amina", GuardianPhone: "call me"}, wantErr: true},
		{name: "unknown class", ns: student.NewStudent{Name: "Amina", ClassID: &unknownID}, wantErr: true},
		{name: "negative fee", ns: student.NewStudent{Name: "Amina", MonthlyFee: &neg}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ns.Validate(ctx, validate, svc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Amina", tt.ns.Name)
			assert.Equal(t, "amina@test.cd", tt.ns.Email)
		})
	}

	ns := student.NewStudent{Name: "Amina", ClassID: &unknownID}
	err = ns.Validate(ctx, validate, svc)
	assert.True(t, core.IsValidationError(err))
}
