// Package apps wires the domain services shared by the admin CLI, the API and the worker.
package apps

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/Syed-Nuhad/school-web-sub000/core"
	"github.com/Syed-Nuhad/school-web-sub000/core/billing"
	"github.com/Syed-Nuhad/school-web-sub000/core/comms"
	"github.com/Syed-Nuhad/school-web-sub000/core/events"
	"github.com/Syed-Nuhad/school-web-sub000/core/notices"
	"github.com/Syed-Nuhad/school-web-sub000/core/payment"
	"github.com/Syed-Nuhad/school-web-sub000/core/student"
	inmemdb "github.com/Syed-Nuhad/school-web-sub000/storage/database/inmem"
	sqlxrepos "github.com/Syed-Nuhad/school-web-sub000/storage/database/sqlx"
)

type (
	// Stores holds one repository per domain.
	Stores struct {
		Students student.Repository
		Billing  billing.Repository
		Comms    comms.Repository
		Events   payment.Repository
	}

	Deps struct {
		Conf    *core.Config
		Logger  core.Logger
		Stores  Stores
		Email   core.EmailService
		SMS     core.SMSService
		Gateway payment.Gateway // nil disables online payments
	}

	Services struct {
		Bus      *events.Bus
		Students *student.Service
		Billing  *billing.Service
		Comms    *comms.Service
		Notices  *notices.Service
		Payments *payment.Service
	}
)

func NewPostgresStores(db *sqlx.DB) Stores {
	return Stores{
		Students: sqlxrepos.NewStudentRepository(db),
		Billing:  sqlxrepos.NewBillingRepository(db),
		Comms:    sqlxrepos.NewCommsRepository(db),
		Events:   sqlxrepos.NewPaymentEventRepository(db),
	}
}

func NewMemoryStores(db *inmemdb.DB) Stores {
	return Stores{
		Students: inmemdb.NewStudentRepository(db),
		Billing:  inmemdb.NewBillingRepository(db),
		Comms:    inmemdb.NewCommsRepository(db),
		Events:   inmemdb.NewPaymentEventRepository(db),
	}
}

func NewServices(deps Deps) *Services {
	if loc := deps.Conf.Billing.Location; loc != nil {
		core.Location = loc
	}
	bus := events.NewBus(deps.Logger)
	students := student.NewService(deps.Stores.Students, bus)
	bill := billing.NewService(deps.Stores.Billing, students, deps.Conf, deps.Logger)
	bill.Subscribe(bus)
	outbox := comms.NewService(deps.Stores.Comms, deps.Email, deps.SMS, deps.Conf, deps.Logger)

	return &Services{
		Bus:      bus,
		Students: students,
		Billing:  bill,
		Comms:    outbox,
		Notices:  notices.NewService(bill, students, outbox, deps.Conf, deps.Logger),
		Payments: payment.NewService(deps.Stores.Events, deps.Gateway, bill, students, deps.Logger),
	}
}

// Close waits for the background email deliveries until ctx expires.
func (s *Services) Close(ctx context.Context) error {
	return s.Comms.Close(ctx)
}
