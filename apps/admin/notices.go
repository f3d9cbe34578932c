package main

import (
	"context"

	"github.com/kat-co/vala"

	"github.com/Syed-Nuhad/school-web-sub000/core/notices"
)

func (cli *commandLine) queueDuesNotices(ctx context.Context, args []string) error {
	fs := cli.newFlagSet("queue-dues-notices")
	sendSMS := fs.Bool("send-sms", false, "Queue SMS notices.")
	sendEmail := fs.Bool("send-email", false, "Queue email notices.")
	onlyOverdue := fs.Bool("only-overdue", false, "Only invoices with a balance.")
	limit := fs.Int("limit", 1000, "Max invoices considered.")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := check(vala.GreaterThan(*limit, 0, "limit")); err != nil {
		return err
	}

	res, err := cli.svcs.Notices.QueueDuesNotices(ctx, notices.Options{
		SendSMS:     *sendSMS,
		SendEmail:   *sendEmail,
		OnlyOverdue: *onlyOverdue,
		Limit:       *limit,
	})
	if err != nil {
		return err
	}
	cli.printf("Queued SMS: %d  |  Queued Email: %d\n", res.SMS, res.Email)
	return nil
}
