package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Syed-Nuhad/school-web-sub000/core"
	"github.com/Syed-Nuhad/school-web-sub000/core/payment"
)

type paymentApi struct {
	svc    *payment.Service
	logger core.Logger
}

func registerPaymentAPI(g *echo.Group, svc *payment.Service, logger core.Logger) {
	api := paymentApi{svc: svc, logger: logger}

	g.POST("/payments/midtrans/notification", api.midtransNotification)
}

// midtransNotification acknowledges every recorded notification, whatever its outcome,
// so the gateway only retries the ones we could not store.
func (api *paymentApi) midtransNotification(ctx echo.Context) error {
	var n payment.Notification
	if err := ctx.Bind(&n); err != nil {
		return errHttpBadPayload
	}
	if n.OrderID == "" || n.TransactionStatus == "" {
		return errHttpBadPayload
	}

	evt, err := api.svc.HandleNotification(ctx.Request().Context(), n)
	if err != nil {
		return errors.Wrap(err, "handling midtrans notification")
	}
	if evt.Status == payment.EventFailed {
		api.logger.Warn(fmt.Sprintf("midtrans order %s: %s", evt.OrderID, evt.Error))
	}
	return ctx.JSON(http.StatusOK, echo.Map{"status": evt.Status})
}
