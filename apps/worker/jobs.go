package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/Syed-Nuhad/school-web-sub000/apps"
	"github.com/Syed-Nuhad/school-web-sub000/core"
	"github.com/Syed-Nuhad/school-web-sub000/core/comms"
	"github.com/Syed-Nuhad/school-web-sub000/services/scheduler"
)

func newJobs(conf *core.Config, svcs *apps.Services, logger core.Logger) []scheduler.Job {
	jobs := make([]scheduler.Job, 0, len(comms.Channels)+1)
	for _, ch := range comms.Channels {
		jobs = append(jobs, scheduler.Job{
			Name:     "outbox-" + string(ch),
			Interval: conf.Scheduler.OutboxInterval,
			Run:      outboxJob(svcs.Comms, ch, conf.Scheduler.OutboxBatch, logger),
		})
	}
	jobs = append(jobs, scheduler.Job{
		Name:     "dues-scan",
		Interval: conf.Scheduler.DuesScanInterval,
		Run:      duesScanJob(svcs, logger),
	})
	return jobs
}

// outboxJob recovers entries stuck in `sending` then sends one batch of ch.
func outboxJob(svc *comms.Service, ch comms.Channel, batch int, logger core.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		released, err := svc.ReleaseStale(ctx, ch)
		if err != nil {
			return errors.Wrapf(err, "releasing stale %s entries", ch)
		}
		if released > 0 {
			logger.Warn(fmt.Sprintf("%d stale %s entr(ies) released for retry", released, ch))
		}

		sent, err := svc.DispatchBatch(ctx, ch, batch, false)
		if err != nil {
			return errors.Wrapf(err, "dispatching %s", ch)
		}
		if sent > 0 {
			logger.Info(fmt.Sprintf("%s sent: %d", ch, sent))
		}
		return nil
	}
}

func duesScanJob(svcs *apps.Services, logger core.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		queued, err := svcs.Notices.QueueOverdueEmails(ctx)
		if err != nil {
			return errors.Wrap(err, "queueing overdue emails")
		}
		if queued > 0 {
			logger.Info(fmt.Sprintf("dues scan: %d email(s) queued", queued))
		}
		return nil
	}
}
