// Package testutil builds the in-memory application used by handler and command tests.
package testutil

import (
	"context"
	"io/ioutil"
	"log"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Syed-Nuhad/school-web-sub000/apps"
	"github.com/Syed-Nuhad/school-web-sub000/core"
	"github.com/Syed-Nuhad/school-web-sub000/core/comms"
	"github.com/Syed-Nuhad/school-web-sub000/core/notices"
	"github.com/Syed-Nuhad/school-web-sub000/core/payment"
	"github.com/Syed-Nuhad/school-web-sub000/core/student"
	emailsvc "github.com/Syed-Nuhad/school-web-sub000/services/email"
	smssvc "github.com/Syed-Nuhad/school-web-sub000/services/sms"
	inmemdb "github.com/Syed-Nuhad/school-web-sub000/storage/database/inmem"
)

// App is a fully wired application backed by the in-memory DB and console transports.
type App struct {
	Conf  *core.Config
	DB    *inmemdb.DB
	Email *emailsvc.ConsoleService
	SMS   *smssvc.ConsoleService
	Svcs  *apps.Services
}

// NewApp wires an App; gateway may be nil.
func NewApp(t *testing.T, gateway payment.Gateway) *App {
	t.Helper()

	conf := core.NewTestConfig()
	db := inmemdb.Open()
	app := &App{
		Conf:  conf,
		DB:    db,
		Email: emailsvc.NewConsoleServiceMock(conf),
		SMS:   smssvc.NewConsoleService(log.New(ioutil.Discard, "", 0)),
	}
	app.Svcs = apps.NewServices(apps.Deps{
		Conf:    conf,
		Logger:  core.NewNopLogger(),
		Stores:  apps.NewMemoryStores(db),
		Email:   app.Email,
		SMS:     app.SMS,
		Gateway: gateway,
	})
	return app
}

// SeedTemplates saves the default dues templates.
func SeedTemplates(t *testing.T, app *App) []comms.Template {
	t.Helper()

	var saved []comms.Template
	for _, tpl := range notices.DefaultTemplates(app.Conf) {
		tpl, err := app.Svcs.Comms.SaveTemplate(context.Background(), tpl)
		if err != nil {
			t.Fatalf("SeedTemplates() failed: %v", err)
		}
		saved = append(saved, tpl)
	}
	return saved
}

// CreateStudent enrolls a student; a zero fee uses the configured default.
func CreateStudent(t *testing.T, app *App, name, email, phone string, fee ...int64) student.Student {
	t.Helper()

	ns := student.NewStudent{Name: name, Email: email, Phone: phone}
	if len(fee) > 0 && fee[0] > 0 {
		d := decimal.NewFromInt(fee[0])
		ns.MonthlyFee = &d
	}
	st, err := app.Svcs.Students.Create(context.Background(), ns)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return st
}
