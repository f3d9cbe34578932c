package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Syed-Nuhad/school-web-sub000/core"
)

const maxPageSize = 500

// InvoiceQuery holds the `outstanding` and `limit` query params of invoice listings.
type InvoiceQuery struct {
	Outstanding bool
	Limit       int
}

func (q *InvoiceQuery) Bind(ctx echo.Context) error {
	if val := ctx.QueryParam("outstanding"); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "outstanding", Error: "outstanding must be a boolean"})
		}
		q.Outstanding = b
	}
	if val := ctx.QueryParam("limit"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			return core.NewValidationError(nil, core.FieldError{Field: "limit", Error: "limit must be greater than 0"})
		}
		q.Limit = n
	}
	if q.Limit == 0 || q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}
	return nil
}
