package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/kat-co/vala"

	"github.com/Syed-Nuhad/school-web-sub000/apps"
	"github.com/Syed-Nuhad/school-web-sub000/core"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db   *sql.DB
	conf *core.Config
	svcs *apps.Services
	out  io.Writer
}

func (cli *commandLine) printUsage() {
	cli.println("Usage:")
	cli.println("  migrate COMMAND [ARGS]                                                   - run a goose migration command (up, down, status, ...)")
	cli.println("  process-outbox [-limit N] [-only sms|email|both] [-ignore-throttle]      - send the queued SMS and email")
	cli.println("  generate-monthly-invoices [-year YYYY] [-month M]                        - ensure a monthly invoice for every active student")
	cli.println("  queue-dues-notices [-send-sms] [-send-email] [-only-overdue] [-limit N]  - queue dues notices for outstanding invoices")
	cli.println("  seed-templates                                                           - create or update the default message templates")
}

func (cli *commandLine) println(a ...interface{}) {
	_, _ = fmt.Fprintln(cli.out, a...)
}

func (cli *commandLine) printf(format string, a ...interface{}) {
	_, _ = fmt.Fprintf(cli.out, format, a...)
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

// parse maps -h to errHelp.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return errHelp
		}
		return err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return errHelp
	}
	return nil
}

// check runs the vala checkers and turns a failure into an ArgumentError.
func check(checkers ...vala.Checker) error {
	if err := vala.BeginValidation().Validate(checkers...).Check(); err != nil {
		return apps.NewArgumentError(err.Error())
	}
	return nil
}

func oneOf(val, paramName string, choices ...string) vala.Checker {
	return func() (bool, string) {
		for _, c := range choices {
			if val == c {
				return true, ""
			}
		}
		return false, fmt.Sprintf("parameter %s must be one of %s (got %q)", paramName, strings.Join(choices, "|"), val)
	}
}

func between(val, min, max int, paramName string) vala.Checker {
	return func() (bool, string) {
		if val < min || val > max {
			return false, fmt.Sprintf("parameter %s must be between %d and %d (got %d)", paramName, min, max, val)
		}
		return true, ""
	}
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	// management command style names are accepted too
	switch strings.ReplaceAll(args[1], "_", "-") {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "process-outbox":
		return cli.processOutbox(ctx, args[2:])
	case "generate-monthly-invoices":
		return cli.generateMonthlyInvoices(ctx, args[2:])
	case "queue-dues-notices":
		return cli.queueDuesNotices(ctx, args[2:])
	case "seed-templates":
		return cli.seedTemplates(ctx, args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}
