package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Syed-Nuhad/school-web-sub000/core/comms"
)

type outboxApi struct {
	svc      *comms.Service
	validate *validator.Validate
}

func registerOutboxAPI(g *echo.Group, svc *comms.Service, validate *validator.Validate) {
	api := outboxApi{svc: svc, validate: validate}

	g.POST("/outbox/:channel", api.enqueue)
}

func (api *outboxApi) enqueue(ctx echo.Context) error {
	ch, err := comms.ParseChannel(ctx.Param("channel"))
	if err != nil {
		return errHttpNotFound
	}

	var data comms.EnqueueRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnqueueRequest")
	}
	data.Channel = ch
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	e, err := api.svc.Enqueue(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "queueing message")
	}
	return ctx.JSON(http.StatusCreated, e)
}
