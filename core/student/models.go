package student

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/Syed-Nuhad/school-web-sub000/core"
)

type Class struct {
	ID         int                 `json:"id" db:"id"`
	Name       string              `json:"name" db:"name"`
	MonthlyFee decimal.NullDecimal `json:"monthly_fee" db:"monthly_fee"`
}

type Student struct {
	ID            int                 `json:"id" db:"id"`
	Name          string              `json:"name" db:"name"`
	Email         string              `json:"email" db:"email"`
	Phone         string              `json:"phone" db:"phone"`
	GuardianPhone string              `json:"guardian_phone" db:"guardian_phone"`
	ClassID       null.Int            `json:"class_id" db:"class_id"`
	MonthlyFee    decimal.NullDecimal `json:"monthly_fee" db:"monthly_fee"` // per-student override
	IsActive      bool                `json:"is_active" db:"is_active"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"` // UTC
}

// NewStudent contains information needed to enroll a new Student.
type NewStudent struct {
	Name          string           `json:"name" validate:"required"`
	Email         string           `json:"email" validate:"omitempty,email"`
	Phone         string           `json:"phone" validate:"omitempty,phone_"`
	GuardianPhone string           `json:"guardian_phone" validate:"omitempty,phone_"`
	ClassID       *int             `json:"class_id" validate:"omitempty,gt=0"`
	MonthlyFee    *decimal.Decimal `json:"monthly_fee" validate:"omitempty,gte=0"`
}

func (ns *NewStudent) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Phone = core.CleanString(ns.Phone)
	ns.GuardianPhone = core.CleanString(ns.GuardianPhone)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	if ns.ClassID != nil {
		return svc.checkClass(ctx, *ns.ClassID)
	}
	return nil
}

type NewClass struct {
	Name       string           `json:"name" validate:"required"`
	MonthlyFee *decimal.Decimal `json:"monthly_fee" validate:"omitempty,gte=0"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	return validate.Struct(nc)
}
