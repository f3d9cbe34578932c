package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Syed-Nuhad/school-web-sub000/core/student"
)

const ctxStudentKey = "student"

// studentMiddleware loads the student named by the `:id` path param into the context.
func studentMiddleware(students *student.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := strconv.Atoi(ctx.Param("id"))
			if err != nil || id <= 0 {
				return errHttpNotFound
			}
			st, err := students.GetStudent(ctx.Request().Context(), id)
			if err != nil {
				return errors.Wrap(err, "getting student")
			}
			ctx.Set(ctxStudentKey, st)
			return next(ctx)
		}
	}
}

func getContextStudent(ctx echo.Context) student.Student {
	st, _ := ctx.Get(ctxStudentKey).(student.Student)
	return st
}
