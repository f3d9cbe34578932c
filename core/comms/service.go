package comms

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/Syed-Nuhad/school-web-sub000/core"
)

type (
	Repository interface {
		// Atomic runs fn inside one transaction. fn must only use the Repository it is given.
		Atomic(ctx context.Context, fn func(tx Repository) error) error
		// OnCommit runs fn once the current transaction has committed (dropped on rollback).
		// Outside a transaction fn runs right away.
		OnCommit(fn func())

		GetActiveTemplate(ctx context.Context, slug string, kind Channel) (Template, error)
		GetTemplate(ctx context.Context, id int) (Template, error)
		// SaveTemplate inserts or updates the template identified by (slug, kind).
		SaveTemplate(ctx context.Context, tpl Template) (Template, error)

		CreateEntry(ctx context.Context, e Entry) (Entry, error)
		GetEntry(ctx context.Context, ch Channel, id int) (Entry, error)
		// LockDueEntries returns up to limit queued|failed entries with an active template and
		// scheduled_at <= now, oldest schedule first. Rows locked by another transaction are skipped.
		LockDueEntries(ctx context.Context, ch Channel, now time.Time, limit int) ([]Entry, error)
		// IsThrottled reports whether to+template has an entry sent since `since`, or one being sent.
		IsThrottled(ctx context.Context, ch Channel, to string, templateID int, since time.Time) (bool, error)
		MarkSending(ctx context.Context, ch Channel, ids []int, at time.Time) error
		// SaveOutcome persists the delivery fields of e (status, attempts, schedule, provider, error, sent_at).
		SaveOutcome(ctx context.Context, e Entry) error
		// ReleaseStale flags entries stuck in `sending` since before claimedBefore as failed.
		ReleaseStale(ctx context.Context, ch Channel, claimedBefore time.Time, reason string) (int, error)

		AppendLog(ctx context.Context, rec LogRecord) error
		HasLogSince(ctx context.Context, ch Channel, recipient, templateSlug string, status Status, since time.Time) (bool, error)
		// ListLogs returns the latest log records first.
		ListLogs(ctx context.Context, limit int) ([]LogRecord, error)
	}

	Service struct {
		repo     Repository
		email    core.EmailService
		sms      core.SMSService
		renderer *Renderer
		logger   core.Logger

		throttle        time.Duration
		sendingTimeout  time.Duration
		autosendEmail   bool
		autosendBatch   int
		defaultFrom     mail.Address
		defaultReplyTo  string
		defaultSenderID string

		nudge func() // runs after the enqueueing transaction commits

		bgMu     sync.Mutex // guards closed and bg.Add
		bg       sync.WaitGroup
		bgCtx    context.Context
		bgCancel context.CancelFunc
		closed   bool
	}

	EnqueueRequest struct {
		Channel      Channel    `json:"-"`
		To           string     `json:"to" validate:"required"`
		TemplateSlug string     `json:"template" validate:"required"`
		Context      Context    `json:"context"`
		CreatedBy    string     `json:"created_by"`
		ScheduledAt  *time.Time `json:"scheduled_at"`
		SenderID     string     `json:"sender_id" validate:"omitempty,max=20"`
		FromEmail    string     `json:"from_email"`
		ReplyTo      string     `json:"reply_to" validate:"omitempty,email"`
	}
)

// NewService wires the outbox. email and sms may be nil; entries of that channel then fail (and retry).
func NewService(repo Repository, email core.EmailService, sms core.SMSService, conf *core.Config, logger core.Logger) *Service {
	svc := &Service{
		repo:            repo,
		email:           email,
		sms:             sms,
		renderer:        NewRenderer(conf.Debug || conf.TestMode),
		logger:          logger,
		throttle:        conf.Comms.ThrottleWindow,
		sendingTimeout:  conf.Comms.SendingTimeout,
		autosendEmail:   conf.Comms.AutosendEmail,
		autosendBatch:   conf.Comms.AutosendBatch,
		defaultFrom:     conf.DefaultFromEmail(),
		defaultReplyTo:  conf.Email.ReplyTo,
		defaultSenderID: conf.SMS.SenderID,
	}
	svc.bgCtx, svc.bgCancel = context.WithCancel(context.Background())
	svc.nudge = svc.autosend
	return svc
}

// autosend delivers a small email batch in the background. It is a no-op once the service is closed.
func (svc *Service) autosend() {
	svc.bgMu.Lock()
	defer svc.bgMu.Unlock()
	if svc.closed {
		return
	}
	svc.bg.Add(1)
	go func() {
		defer svc.bg.Done()
		sent, err := svc.DispatchBatch(svc.bgCtx, ChannelEmail, svc.autosendBatch, false)
		if err != nil {
			svc.logger.Error(fmt.Sprintf("autosend email batch: %v", err), err)
			return
		}
		if sent > 0 {
			svc.logger.Info(fmt.Sprintf("autosend: %d email(s) sent", sent))
		}
	}()
}

// Close stops autosend and waits for the batches in flight. When ctx expires first,
// their context is canceled and ctx.Err() is returned; entries left in `sending`
// are picked up again by ReleaseStale.
func (svc *Service) Close(ctx context.Context) error {
	svc.bgMu.Lock()
	svc.closed = true
	svc.bgMu.Unlock()

	done := make(chan struct{})
	go func() {
		svc.bg.Wait()
		close(done)
	}()
	defer svc.bgCancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (req *EnqueueRequest) Validate(validate *validator.Validate) error {
	req.To = core.CleanString(req.To)
	req.TemplateSlug = core.CleanString(req.TemplateSlug)
	req.SenderID = core.CleanString(req.SenderID)
	req.FromEmail = core.CleanString(req.FromEmail)
	req.ReplyTo = core.CleanString(req.ReplyTo)

	if err := validate.Struct(req); err != nil {
		return err
	}
	switch req.Channel {
	case ChannelEmail:
		if _, err := mail.ParseAddress(req.To); err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "to", Error: "to must be a valid email address"})
		}
		if req.FromEmail != "" {
			if _, err := mail.ParseAddress(req.FromEmail); err != nil {
				return core.NewValidationError(nil, core.FieldError{Field: "from_email", Error: "from_email must be a valid email address"})
			}
		}
	case ChannelSMS:
		if err := validate.Var(req.To, "phone_"); err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "to", Error: "to must be a valid phone number"})
		}
	default:
		return core.NewFieldError(ErrUnknownChannel, "channel")
	}
	return nil
}

// Enqueue queues a message; see EnqueueTx.
func (svc *Service) Enqueue(ctx context.Context, req EnqueueRequest) (Entry, error) {
	return svc.EnqueueTx(ctx, svc.repo, req)
}

// EnqueueTx queues a message through repo, which may be bound to a caller transaction.
// The template must exist and be active for the channel. For email, when autosend is on,
// a dispatch batch is nudged once the transaction commits.
func (svc *Service) EnqueueTx(ctx context.Context, repo Repository, req EnqueueRequest) (Entry, error) {
	if !req.Channel.Valid() {
		return Entry{}, errors.Wrapf(ErrUnknownChannel, "%q", req.Channel)
	}
	tpl, err := repo.GetActiveTemplate(ctx, req.TemplateSlug, req.Channel)
	if err != nil {
		return Entry{}, errors.Wrapf(err, "resolving %s template %q", req.Channel, req.TemplateSlug)
	}

	now := core.NowFunc().UTC()
	scheduledAt := now
	if req.ScheduledAt != nil && !req.ScheduledAt.IsZero() {
		scheduledAt = req.ScheduledAt.UTC()
	}
	data := req.Context
	if data == nil {
		data = Context{}
	}

	e := Entry{
		Channel:      req.Channel,
		To:           req.To,
		TemplateID:   tpl.ID,
		TemplateSlug: tpl.Slug,
		Context:      data,
		Status:       StatusQueued,
		ScheduledAt:  scheduledAt,
		CreatedBy:    req.CreatedBy,
		CreatedAt:    now,
	}
	switch req.Channel {
	case ChannelSMS:
		e.SenderID = req.SenderID
		if e.SenderID == "" {
			e.SenderID = svc.defaultSenderID
		}
	case ChannelEmail:
		e.FromEmail = req.FromEmail
		e.ReplyTo = req.ReplyTo
	}

	e, err = repo.CreateEntry(ctx, e)
	if err != nil {
		return Entry{}, errors.Wrap(err, "creating outbox entry")
	}
	if e.Channel == ChannelEmail && svc.autosendEmail {
		repo.OnCommit(svc.nudge)
	}
	return e, nil
}

func (svc *Service) GetEntry(ctx context.Context, ch Channel, id int) (Entry, error) {
	return svc.repo.GetEntry(ctx, ch, id)
}

// SentRecently reports whether a `sent` log row exists for recipient+template since `since`.
func (svc *Service) SentRecently(ctx context.Context, ch Channel, recipient, templateSlug string, since time.Time) (bool, error) {
	return svc.repo.HasLogSince(ctx, ch, recipient, templateSlug, StatusSent, since)
}

func (svc *Service) ListLogs(ctx context.Context, limit int) ([]LogRecord, error) {
	return svc.repo.ListLogs(ctx, limit)
}

// SaveTemplate creates or updates a template (admin seeding).
func (svc *Service) SaveTemplate(ctx context.Context, tpl Template) (Template, error) {
	if !tpl.Kind.Valid() {
		return Template{}, errors.Wrapf(ErrUnknownChannel, "%q", tpl.Kind)
	}
	tpl.Slug = core.CleanString(tpl.Slug)
	if tpl.Slug == "" {
		return Template{}, core.NewValidationError(nil, core.FieldError{Field: "slug", Error: "this field is required"})
	}
	tpl.UpdatedAt = core.NowFunc().UTC()
	return svc.repo.SaveTemplate(ctx, tpl)
}
