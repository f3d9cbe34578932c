package comms

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Syed-Nuhad/school-web-sub000/core"
)

const staleReason = "delivery interrupted while sending"

type throttleKey struct {
	to         string
	templateID int
}

// DispatchBatch delivers up to limit due entries of the channel and returns how many were sent.
// Entries are claimed (-> sending) in one short transaction, then sent one by one outside of it.
// Delivery failures are recorded on the entry (backoff) and never returned.
func (svc *Service) DispatchBatch(ctx context.Context, ch Channel, limit int, ignoreThrottle bool) (int, error) {
	if !ch.Valid() {
		return 0, errors.Wrapf(ErrUnknownChannel, "%q", ch)
	}
	if limit <= 0 {
		return 0, nil
	}

	claimed, err := svc.claim(ctx, ch, limit, ignoreThrottle)
	if err != nil {
		return 0, errors.Wrapf(err, "claiming %s entries", ch)
	}

	var sent int
	for _, e := range claimed {
		if svc.deliver(ctx, e) {
			sent++
		}
	}
	return sent, nil
}

func (svc *Service) claim(ctx context.Context, ch Channel, limit int, ignoreThrottle bool) ([]Entry, error) {
	var claimed []Entry
	err := svc.repo.Atomic(ctx, func(tx Repository) error {
		now := core.NowFunc().UTC()
		due, err := tx.LockDueEntries(ctx, ch, now, limit)
		if err != nil {
			return errors.Wrap(err, "locking due entries")
		}

		seen := make(map[throttleKey]bool, len(due))
		ids := make([]int, 0, len(due))
		for _, e := range due {
			key := throttleKey{to: e.To, templateID: e.TemplateID}
			if !ignoreThrottle {
				if seen[key] {
					continue
				}
				throttled, err := tx.IsThrottled(ctx, ch, e.To, e.TemplateID, now.Add(-svc.throttle))
				if err != nil {
					return errors.Wrapf(err, "checking throttle of entry %d", e.ID)
				}
				if throttled {
					continue
				}
			}
			seen[key] = true

			e.Status = StatusSending
			e.ClaimedAt = null.TimeFrom(now)
			claimed = append(claimed, e)
			ids = append(ids, e.ID)
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.MarkSending(ctx, ch, ids, now)
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// deliver sends e and records the outcome; it reports whether e was sent.
func (svc *Service) deliver(ctx context.Context, e Entry) bool {
	provider, ref, sendErr := svc.send(ctx, e)

	now := core.NowFunc().UTC()
	rec := LogRecord{When: now, Channel: e.Channel, Recipient: e.To, TemplateSlug: e.TemplateSlug}
	if provider != "" {
		e.Provider = provider
	}
	if sendErr == nil {
		e.Status = StatusSent
		e.SentAt = null.TimeFrom(now)
		e.ProviderRef = ref
		e.LastError = ""
		rec.Status = StatusSent
		rec.Detail = ref
	} else {
		e.Attempts++
		next := now.Add(Backoff(e.Attempts))
		e.Status = StatusFailed
		e.NextAttemptAt = null.TimeFrom(next)
		e.ScheduledAt = next
		e.LastError = core.Truncate(sendErr.Error(), maxErrorLen)
		rec.Status = StatusFailed
		rec.Detail = e.LastError
	}

	err := svc.repo.Atomic(ctx, func(tx Repository) error {
		if err := tx.SaveOutcome(ctx, e); err != nil {
			return errors.Wrap(err, "saving outcome")
		}
		return errors.Wrap(tx.AppendLog(ctx, rec), "appending log")
	})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("recording %s entry %d outcome: %v", e.Channel, e.ID, err), err)
	}
	if sendErr != nil {
		svc.logger.Warn(fmt.Sprintf("%s entry %d to %s failed (attempt %d): %v", e.Channel, e.ID, e.To, e.Attempts, sendErr))
	}
	return e.Status == StatusSent
}

func (svc *Service) send(ctx context.Context, e Entry) (provider, ref string, err error) {
	tpl, err := svc.repo.GetTemplate(ctx, e.TemplateID)
	if err != nil {
		return "", "", errors.Wrap(err, "loading template")
	}
	out, err := svc.renderer.Render(tpl, e.Context)
	if err != nil {
		return "", "", err
	}

	switch e.Channel {
	case ChannelEmail:
		if svc.email == nil {
			return "", "", errors.Wrap(ErrNoTransport, "email")
		}
		ref, err = svc.email.Send(ctx, svc.emailMessage(e, out))
		return svc.email.Name(), ref, err
	case ChannelSMS:
		if svc.sms == nil {
			return "", "", errors.Wrap(ErrNoTransport, "sms")
		}
		ref, err = svc.sms.Send(ctx, core.SMSMessage{To: e.To, SenderID: e.SenderID, Body: out.Text})
		return svc.sms.Name(), ref, err
	}
	return "", "", errors.Wrapf(ErrUnknownChannel, "%q", e.Channel)
}

func (svc *Service) emailMessage(e Entry, out Rendered) *core.EmailMessage {
	from := svc.defaultFrom
	if e.FromEmail != "" {
		if addr, err := mail.ParseAddress(e.FromEmail); err == nil {
			from = *addr
		}
	}
	replyTo := e.ReplyTo
	if replyTo == "" {
		replyTo = svc.defaultReplyTo
	}
	return &core.EmailMessage{
		From:        from,
		ReplyTo:     replyTo,
		To:          []mail.Address{{Address: e.To}},
		Subject:     out.Subject,
		TextContent: out.Text,
		HTMLContent: out.HTML,
	}
}

// ReleaseStale moves entries stuck in `sending` for longer than the sending timeout back to failed,
// so the next batch retries them.
func (svc *Service) ReleaseStale(ctx context.Context, ch Channel) (int, error) {
	if svc.sendingTimeout <= 0 {
		return 0, nil
	}
	cutoff := core.NowFunc().UTC().Add(-svc.sendingTimeout)
	n, err := svc.repo.ReleaseStale(ctx, ch, cutoff, staleReason)
	if err != nil {
		return 0, errors.Wrapf(err, "releasing stale %s entries", ch)
	}
	return n, nil
}
