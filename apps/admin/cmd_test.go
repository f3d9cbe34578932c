package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Syed-Nuhad/school-web-sub000/apps"
	"github.com/Syed-Nuhad/school-web-sub000/core/billing"
	"github.com/Syed-Nuhad/school-web-sub000/core/comms"
	"github.com/Syed-Nuhad/school-web-sub000/tests"
)

func setup(t *testing.T) (*commandLine, *testutil.App, *bytes.Buffer) {
	app := testutil.NewApp(t, nil)
	out := new(bytes.Buffer)

	// start CLI
	return &commandLine{
		conf: app.Conf,
		svcs: app.Svcs,
		out:  out,
	}, app, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantOut    string
}

func runCLITests(t *testing.T, cli *commandLine, out *bytes.Buffer, tests []cliTest) {
	t.Helper()

	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				if assert.Error(t, err) {
					assert.Equal(t, tt.wantErrStr, err.Error())
				}
			default:
				require.NoError(t, err)
			}
			if tt.wantOut != "" {
				assert.Contains(t, out.String(), tt.wantOut)
			}
		})
	}
}

func Test_commandLine_run(t *testing.T) {
	cli, _, out := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "help flag", args: []string{"process-outbox", "-h"}, wantErr: errHelp},
		{name: "stray argument", args: []string{"seed-templates", "lol"}, wantErr: errHelp},
	}
	runCLITests(t, cli, out, tests)
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, out := setup(t)

	migrateFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "reminders", "sql"}},
	}
	runCLITests(t, cli, out, tests)
}

func Test_commandLine_argumentErrors(t *testing.T) {
	cli, _, _ := setup(t)

	for _, args := range [][]string{
		{"process-outbox", "-limit", "0"},
		{"process-outbox", "-only", "fax"},
		{"queue-dues-notices", "-limit", "-1"},
		{"generate-monthly-invoices", "-month", "13"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			err := cli.run(append([]string{"admin"}, args...))
			_, ok := err.(*apps.ArgumentError)
			assert.True(t, ok, "want an ArgumentError, got %v", err)
		})
	}
}

func Test_commandLine_generateMonthlyInvoices(t *testing.T) {
	cli, app, out := setup(t)
	ctx := context.Background()

	st1 := testutil.CreateStudent(t, app, "Amina", "amina@test.cd", "")
	testutil.CreateStudent(t, app, "Baraka", "", "")

	tests := []cliTest{
		{name: "new period", args: []string{"generate-monthly-invoices", "-year", "2031", "-month", "3"}, wantOut: "Done. Created 2 invoice(s) for 2031-03."},
		{name: "rerun is idempotent", args: []string{"generate-monthly-invoices", "-year", "2031", "-month", "3"}, wantOut: "Done. Created 0 invoice(s) for 2031-03."},
		{name: "underscore alias", args: []string{"generate_monthly_invoices", "-year", "2031", "-month", "4"}, wantOut: "Done. Created 2 invoice(s) for 2031-04."},
	}
	runCLITests(t, cli, out, tests)

	invs, err := app.Svcs.Billing.ListInvoices(ctx, st1.ID)
	require.NoError(t, err)
	var march int
	for _, inv := range invs {
		if p, ok := inv.Period(); ok && p == (billing.Period{Year: 2031, Month: time.March}) {
			march++
		}
	}
	assert.Equal(t, 1, march)
}

func Test_commandLine_queueAndProcess(t *testing.T) {
	cli, app, out := setup(t)

	runCLITests(t, cli, out, []cliTest{
		{name: "seed templates", args: []string{"seed-templates"}, wantOut: `Saved email template "dues_notice_email"`},
	})

	// newest invoices come first: Amina's are picked by -limit 1
	testutil.CreateStudent(t, app, "Baraka", "", "")
	testutil.CreateStudent(t, app, "Amina", "amina@test.cd", "01712345678")

	tests := []cliTest{
		{name: "nothing selected", args: []string{"queue-dues-notices"}, wantOut: "Queued SMS: 0  |  Queued Email: 0"},
		{name: "both channels", args: []string{"queue-dues-notices", "-send-sms", "-send-email", "-only-overdue", "-limit", "1"}, wantOut: "Queued SMS: 1  |  Queued Email: 1"},
		{name: "process sms only", args: []string{"process-outbox", "-only", "sms"}, wantOut: "SMS sent: 1\nTotal processed: 1"},
		{name: "process both", args: []string{"process_outbox"}, wantOut: "SMS sent: 0\nEmail sent: 1\nTotal processed: 1"},
		{name: "nothing left", args: []string{"process-outbox"}, wantOut: "Total processed: 0"},
	}
	runCLITests(t, cli, out, tests)

	if assert.Len(t, app.SMS.Sent(), 1) {
		assert.Equal(t, "+8801712345678", app.SMS.Sent()[0].To)
	}
	if assert.Len(t, app.Email.Sent(), 1) {
		assert.Contains(t, app.Email.Sent()[0].TextContent, "Dear Amina")
	}

	logs, err := app.Svcs.Comms.ListLogs(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
	for _, rec := range logs {
		assert.Equal(t, comms.StatusSent, rec.Status)
	}
}
