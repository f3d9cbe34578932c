// Package emailsvc holds the email transports of the outbox.
package emailsvc

import (
	"log"

	"github.com/pkg/errors"

	"github.com/Syed-Nuhad/school-web-sub000/core"
)

// New returns the transport selected by email.backend.
func New(std *log.Logger, conf *core.Config) (core.EmailService, error) {
	switch conf.Email.Backend {
	case "", "console":
		return NewConsoleService(std, conf), nil
	case "smtp":
		return NewSMTPService(conf), nil
	case "sendgrid":
		if conf.Email.SendgridApiKey == "" {
			return nil, errors.New("email.sendgridApiKey is required by the sendgrid backend")
		}
		return NewSendgridService(conf), nil
	}
	return nil, errors.Errorf("unknown email backend %q", conf.Email.Backend)
}
