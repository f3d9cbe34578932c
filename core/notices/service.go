package notices

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/Syed-Nuhad/school-web-sub000/core"
	"github.com/Syed-Nuhad/school-web-sub000/core/billing"
	"github.com/Syed-Nuhad/school-web-sub000/core/comms"
	"github.com/Syed-Nuhad/school-web-sub000/core/student"
)

// DueDatePlaceholder is rendered when an invoice has no due date.
const DueDatePlaceholder = "—"

type (
	Invoices interface {
		FilterInvoices(ctx context.Context, filter billing.InvoiceFilter) ([]billing.Invoice, error)
	}

	Students interface {
		GetStudent(ctx context.Context, id int) (student.Student, error)
	}

	Outbox interface {
		Enqueue(ctx context.Context, req comms.EnqueueRequest) (comms.Entry, error)
		SentRecently(ctx context.Context, ch comms.Channel, recipient, templateSlug string, since time.Time) (bool, error)
	}

	Options struct {
		SendSMS     bool
		SendEmail   bool
		OnlyOverdue bool // only invoices with a balance
		Limit       int
	}

	Result struct {
		SMS   int
		Email int
	}

	Service struct {
		invoices      Invoices
		students      Students
		outbox        Outbox
		logger        core.Logger
		phonePrefix   string
		emailTemplate string
		smsTemplate   string
		emailThrottle time.Duration
	}
)

func NewService(invoices Invoices, students Students, outbox Outbox, conf *core.Config, logger core.Logger) *Service {
	return &Service{
		invoices:      invoices,
		students:      students,
		outbox:        outbox,
		logger:        logger,
		phonePrefix:   conf.SMS.DefaultCountryPrefix,
		emailTemplate: conf.Dues.EmailTemplate,
		smsTemplate:   conf.Dues.SMSTemplate,
		emailThrottle: conf.Dues.EmailThrottle,
	}
}

// TemplateContext is the data every dues template receives.
func TemplateContext(st student.Student, inv billing.Invoice) comms.Context {
	due := DueDatePlaceholder
	if !inv.DueDate.IsZero() {
		due = inv.DueDate.Format("2006-01-02")
	}
	return comms.Context{
		"student_name": st.Name,
		"amount_due":   inv.Balance().StringFixed(2),
		"due_date":     due,
		"period":       inv.Label(),
	}
}

// ResolvePhone returns the first reachable number of the student (own phone, then guardian's).
func (svc *Service) ResolvePhone(st student.Student) (string, bool) {
	for _, raw := range []string{st.Phone, st.GuardianPhone} {
		if core.CleanString(raw) == "" {
			continue
		}
		if phone, ok := NormalizePhone(raw, svc.phonePrefix); ok {
			return phone, true
		}
	}
	return "", false
}

type studentCache struct {
	src  Students
	byID map[int]student.Student
}

func (c *studentCache) get(ctx context.Context, id int) (student.Student, error) {
	if st, ok := c.byID[id]; ok {
		return st, nil
	}
	st, err := c.src.GetStudent(ctx, id)
	if err != nil {
		return student.Student{}, err
	}
	c.byID[id] = st
	return st, nil
}

// QueueDuesNotices queues a dues notice per invoice with a balance, newest invoices first.
func (svc *Service) QueueDuesNotices(ctx context.Context, opts Options) (Result, error) {
	var res Result
	if !opts.SendSMS && !opts.SendEmail {
		return res, nil
	}

	invoices, err := svc.invoices.FilterInvoices(ctx, billing.InvoiceFilter{Outstanding: opts.OnlyOverdue, Limit: opts.Limit})
	if err != nil {
		return res, errors.Wrap(err, "listing invoices")
	}

	students := studentCache{src: svc.students, byID: make(map[int]student.Student)}
	for _, inv := range invoices {
		if !inv.Balance().IsPositive() {
			continue
		}
		st, err := students.get(ctx, inv.StudentID)
		if err != nil {
			return res, errors.Wrapf(err, "getting student of invoice %d", inv.ID)
		}
		data := TemplateContext(st, inv)

		if opts.SendEmail {
			if to := core.CleanString(st.Email); to != "" {
				req := comms.EnqueueRequest{
					Channel:      comms.ChannelEmail,
					To:           to,
					TemplateSlug: svc.emailTemplate,
					Context:      data,
					CreatedBy:    "dues-notices",
				}
				if _, err = svc.outbox.Enqueue(ctx, req); err != nil {
					return res, errors.Wrapf(err, "queueing email for invoice %d", inv.ID)
				}
				res.Email++
			}
		}
		if opts.SendSMS {
			if phone, ok := svc.ResolvePhone(st); ok {
				req := comms.EnqueueRequest{
					Channel:      comms.ChannelSMS,
					To:           phone,
					TemplateSlug: svc.smsTemplate,
					Context:      data,
					CreatedBy:    "dues-notices",
				}
				if _, err = svc.outbox.Enqueue(ctx, req); err != nil {
					return res, errors.Wrapf(err, "queueing sms for invoice %d", inv.ID)
				}
				res.SMS++
			}
		}
	}
	return res, nil
}

// QueueOverdueEmails queues one email per unpaid invoice due today or earlier,
// unless the recipient already got the template within the dues throttle.
func (svc *Service) QueueOverdueEmails(ctx context.Context) (int, error) {
	invoices, err := svc.invoices.FilterInvoices(ctx, billing.InvoiceFilter{Outstanding: true, DueOnOrBefore: core.Today()})
	if err != nil {
		return 0, errors.Wrap(err, "listing overdue invoices")
	}

	since := core.NowFunc().UTC().Add(-svc.emailThrottle)
	students := studentCache{src: svc.students, byID: make(map[int]student.Student)}
	var queued int
	for _, inv := range invoices {
		if !inv.Balance().IsPositive() {
			continue
		}
		st, err := students.get(ctx, inv.StudentID)
		if err != nil {
			svc.logger.Warn(fmt.Sprintf("overdue scan: student of invoice %d: %v", inv.ID, err), err)
			continue
		}
		to := core.CleanString(st.Email)
		if to == "" {
			continue
		}
		recent, err := svc.outbox.SentRecently(ctx, comms.ChannelEmail, to, svc.emailTemplate, since)
		if err != nil {
			return queued, errors.Wrap(err, "checking comms log")
		}
		if recent {
			continue
		}

		req := comms.EnqueueRequest{
			Channel:      comms.ChannelEmail,
			To:           to,
			TemplateSlug: svc.emailTemplate,
			Context:      TemplateContext(st, inv),
			CreatedBy:    "dues-scan",
		}
		if _, err = svc.outbox.Enqueue(ctx, req); err != nil {
			return queued, errors.Wrapf(err, "queueing email for invoice %d", inv.ID)
		}
		queued++
	}
	return queued, nil
}
