package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Syed-Nuhad/school-web-sub000/apps"
	"github.com/Syed-Nuhad/school-web-sub000/core"
	"github.com/Syed-Nuhad/school-web-sub000/core/billing"
	"github.com/Syed-Nuhad/school-web-sub000/core/payment"
	"github.com/Syed-Nuhad/school-web-sub000/core/student"
)

type (
	studentApi struct {
		students *student.Service
		billing  *billing.Service
		payments *payment.Service
		validate *validator.Validate
	}

	// PaymentRequest records a payment made outside the gateway (cash, bank transfer).
	PaymentRequest struct {
		Amount   interface{} `json:"amount"` // number or numeric string
		Provider string      `json:"provider"`
		TxnID    string      `json:"txn_id"`
	}

	PaymentResponse struct {
		Payments []billing.Payment  `json:"payments"`
		Dues     billing.DuesSummary `json:"dues"`
	}
)

func registerStudentAPI(g *echo.Group, svcs *apps.Services, validate *validator.Validate) {
	api := studentApi{
		students: svcs.Students,
		billing:  svcs.Billing,
		payments: svcs.Payments,
		validate: validate,
	}

	sg := g.Group("/students")
	sg.POST("", api.create)

	// detail endpoints
	dg := sg.Group("/:id", studentMiddleware(api.students))
	dg.GET("", api.retrieve)
	dg.GET("/dues", api.dues)
	dg.GET("/invoices", api.invoices)
	dg.POST("/invoices", api.createInvoice)
	dg.POST("/payments", api.pay)
	dg.POST("/checkout", api.checkout)
}

// Handlers

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.students); err != nil {
		return err
	}

	st, err := api.students.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, st)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, getContextStudent(ctx))
}

func (api *studentApi) dues(ctx echo.Context) error {
	dues, err := api.billing.Summarize(ctx.Request().Context(), getContextStudent(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "summarizing dues")
	}
	return ctx.JSON(http.StatusOK, dues)
}

func (api *studentApi) invoices(ctx echo.Context) error {
	var query InvoiceQuery
	if err := query.Bind(ctx); err != nil {
		return err
	}

	invoices, err := api.billing.FilterInvoices(ctx.Request().Context(), billing.InvoiceFilter{
		StudentID:   getContextStudent(ctx).ID,
		Outstanding: query.Outstanding,
		Limit:       query.Limit,
	})
	if err != nil {
		return errors.Wrap(err, "filtering invoices")
	}
	return ctx.JSON(http.StatusOK, invoices)
}

func (api *studentApi) createInvoice(ctx echo.Context) error {
	var data billing.NewCustomInvoice
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCustomInvoice")
	}

	inv, err := api.billing.CreateCustomInvoice(ctx.Request().Context(), getContextStudent(ctx).ID, data.Title, data.Amount, data.DueDate)
	if err != nil {
		return errors.Wrap(err, "creating custom invoice")
	}
	return ctx.JSON(http.StatusCreated, inv)
}

func (api *studentApi) pay(ctx echo.Context) error {
	var data PaymentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PaymentRequest")
	}
	amount, err := billing.ParseAmount(data.Amount)
	if err != nil {
		return core.NewFieldError(err, "amount")
	}
	if !amount.IsPositive() {
		return core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "amount must be greater than 0"})
	}

	st := getContextStudent(ctx)
	payments, err := api.billing.Allocate(ctx.Request().Context(), st.ID, amount, data.Provider, data.TxnID)
	if err != nil {
		return errors.Wrap(err, "allocating payment")
	}
	dues, err := api.billing.Summarize(ctx.Request().Context(), st.ID)
	if err != nil {
		return errors.Wrap(err, "summarizing dues")
	}
	return ctx.JSON(http.StatusCreated, PaymentResponse{Payments: payments, Dues: dues})
}

func (api *studentApi) checkout(ctx echo.Context) error {
	co, err := api.payments.CheckoutDues(ctx.Request().Context(), getContextStudent(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "opening checkout")
	}
	return ctx.JSON(http.StatusCreated, co)
}
