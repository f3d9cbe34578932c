package student

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/Syed-Nuhad/school-web-sub000/core"
	"github.com/Syed-Nuhad/school-web-sub000/core/events"
)

// EventEnrolled is published once a Student has been created; its payload is an Enrolled.
const EventEnrolled = "student.enrolled"

var (
	// errors
	ErrNotFound      = errors.New("student not found")
	ErrClassNotFound = errors.New("class not found")
)

type (
	Enrolled struct {
		StudentID int
	}

	Repository interface {
		CreateStudent(ctx context.Context, st Student) (Student, error)
		GetStudent(ctx context.Context, id int) (Student, error)
		// UpdateStudent saves every field but ID and CreatedAt.
		UpdateStudent(ctx context.Context, st Student) (Student, error)
		// ListActiveStudents returns the active students ordered by id.
		ListActiveStudents(ctx context.Context) ([]Student, error)
		CreateClass(ctx context.Context, cls Class) (Class, error)
		GetClass(ctx context.Context, id int) (Class, error)
	}

	Service struct {
		repo Repository
		bus  *events.Bus
	}
)

func NewService(repo Repository, bus *events.Bus) *Service {
	return &Service{repo: repo, bus: bus}
}

func (svc *Service) checkClass(ctx context.Context, id int) error {
	if _, err := svc.repo.GetClass(ctx, id); err != nil {
		if errors.Cause(err) == ErrClassNotFound {
			return core.NewFieldError(err, "class_id")
		}
		return errors.Wrap(err, "checking class")
	}
	return nil
}

// Create stores the Student then publishes EventEnrolled.
// Subscriber failures never fail the enrollment.
func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	st := Student{
		Name:          ns.Name,
		Email:         ns.Email,
		Phone:         ns.Phone,
		GuardianPhone: ns.GuardianPhone,
		ClassID:       null.IntFromPtr(ns.ClassID),
		IsActive:      true,
		CreatedAt:     core.NowFunc().UTC(),
	}
	if ns.MonthlyFee != nil {
		st.MonthlyFee = decimal.NullDecimal{Decimal: *ns.MonthlyFee, Valid: true}
	}

	st, err := svc.repo.CreateStudent(ctx, st)
	if err != nil {
		return Student{}, errors.Wrap(err, "creating student")
	}
	if svc.bus != nil {
		svc.bus.Publish(ctx, events.Event{Name: EventEnrolled, Payload: Enrolled{StudentID: st.ID}})
	}
	return st, nil
}

func (svc *Service) GetStudent(ctx context.Context, id int) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

// SetMonthlyFee sets (or clears, when fee is nil) the per-student fee override.
func (svc *Service) SetMonthlyFee(ctx context.Context, id int, fee *decimal.Decimal) (Student, error) {
	st, err := svc.repo.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	st.MonthlyFee = decimal.NullDecimal{}
	if fee != nil {
		if fee.IsNegative() {
			return Student{}, core.NewValidationError(nil, core.FieldError{Field: "monthly_fee", Error: "monthly_fee must be at least 0"})
		}
		st.MonthlyFee = decimal.NullDecimal{Decimal: *fee, Valid: true}
	}
	st, err = svc.repo.UpdateStudent(ctx, st)
	if err != nil {
		return Student{}, errors.Wrap(err, "updating student")
	}
	return st, nil
}

func (svc *Service) ListActiveStudents(ctx context.Context) ([]Student, error) {
	return svc.repo.ListActiveStudents(ctx)
}

func (svc *Service) CreateClass(ctx context.Context, nc NewClass) (Class, error) {
	cls := Class{Name: nc.Name}
	if nc.MonthlyFee != nil {
		cls.MonthlyFee = decimal.NullDecimal{Decimal: *nc.MonthlyFee, Valid: true}
	}
	cls, err := svc.repo.CreateClass(ctx, cls)
	if err != nil {
		return Class{}, errors.Wrap(err, "creating class")
	}
	return cls, nil
}

func (svc *Service) GetClass(ctx context.Context, id int) (Class, error) {
	return svc.repo.GetClass(ctx, id)
}
