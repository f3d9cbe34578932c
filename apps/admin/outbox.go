package main

import (
	"context"

	"github.com/kat-co/vala"

	"github.com/Syed-Nuhad/school-web-sub000/core/comms"
)

func (cli *commandLine) processOutbox(ctx context.Context, args []string) error {
	fs := cli.newFlagSet("process-outbox")
	limit := fs.Int("limit", 100, "Max entries sent per channel.")
	only := fs.String("only", "both", "Channel to process: sms, email or both.")
	ignoreThrottle := fs.Bool("ignore-throttle", false, "Send even when the recipient got the same template recently.")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := check(vala.GreaterThan(*limit, 0, "limit"), oneOf(*only, "only", "sms", "email", "both")); err != nil {
		return err
	}

	var total int
	if *only == "sms" || *only == "both" {
		sent, err := cli.svcs.Comms.DispatchBatch(ctx, comms.ChannelSMS, *limit, *ignoreThrottle)
		if err != nil {
			return err
		}
		cli.printf("SMS sent: %d\n", sent)
		total += sent
	}
	if *only == "email" || *only == "both" {
		sent, err := cli.svcs.Comms.DispatchBatch(ctx, comms.ChannelEmail, *limit, *ignoreThrottle)
		if err != nil {
			return err
		}
		cli.printf("Email sent: %d\n", sent)
		total += sent
	}
	cli.printf("Total processed: %d\n", total)
	return nil
}
