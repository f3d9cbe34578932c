package main

import (
	"context"
	"time"

	"github.com/Syed-Nuhad/school-web-sub000/core/billing"
)

func (cli *commandLine) generateMonthlyInvoices(ctx context.Context, args []string) error {
	fs := cli.newFlagSet("generate-monthly-invoices")
	year := fs.Int("year", 0, "Year, e.g. 2026 (default: current year).")
	month := fs.Int("month", 0, "Month 1-12 (default: current month).")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := check(between(*year, 0, 9999, "year"), between(*month, 0, 12, "month")); err != nil {
		return err
	}

	p := billing.CurrentPeriod()
	if *year != 0 {
		p.Year = *year
	}
	if *month != 0 {
		p.Month = time.Month(*month)
	}

	created, _, err := cli.svcs.Billing.GenerateMonthlyInvoices(ctx, p)
	if err != nil {
		return err
	}
	cli.printf("Done. Created %d invoice(s) for %s.\n", created, p)
	return nil
}
