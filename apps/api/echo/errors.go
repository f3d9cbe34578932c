package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Syed-Nuhad/school-web-sub000/core"
	"github.com/Syed-Nuhad/school-web-sub000/core/billing"
	"github.com/Syed-Nuhad/school-web-sub000/core/comms"
	"github.com/Syed-Nuhad/school-web-sub000/core/payment"
	"github.com/Syed-Nuhad/school-web-sub000/core/student"
)

var (
	errHttpNotFound        = echo.NewHTTPError(http.StatusNotFound, "not found")
	errHttpBadPayload      = echo.NewHTTPError(http.StatusBadRequest, "malformed payload")
	errHttpBadSignature    = echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	errHttpGatewayDisabled = echo.NewHTTPError(http.StatusServiceUnavailable, "online payments are disabled")
)

func isNotFound(err error) bool {
	switch errors.Cause(err) {
	case student.ErrNotFound, student.ErrClassNotFound, billing.ErrNotFound, comms.ErrTemplateNotFound, comms.ErrEntryNotFound:
		return true
	}
	return false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		if isNotFound(err) {
			err = errors.Wrap(errHttpNotFound, err.Error())
		}
		switch errors.Cause(err) {
		case payment.ErrInvalidSignature:
			err = errHttpBadSignature
		case payment.ErrGatewayDisabled:
			err = errHttpGatewayDisabled
		}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var st student.Student
			if cst, ok := ctx.Get(ctxStudentKey).(student.Student); ok {
				st = cst
			}
			logger.Error(msg, errors.Wrap(err, msg), st)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
