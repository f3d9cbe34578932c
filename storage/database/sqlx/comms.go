package sqlxrepos

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/types"

	"github.com/Syed-Nuhad/school-web-sub000/core/comms"
)

const templateColumns = `id, slug, kind, subject_template, body_text_template, body_html_template, is_active, updated_at`

type (
	commsRepository struct {
		scope
	}

	// outboxTable describes the table of one channel; sms and email only differ by their extra columns.
	outboxTable struct {
		name string
		to   string
		cols string // channel specific columns, aliased to entryRow
	}

	entryRow struct {
		ID            int        `db:"id"`
		To            string     `db:"recipient"`
		TemplateID    int        `db:"template_id"`
		TemplateSlug  string     `db:"template_slug"`
		Context       types.JSON `db:"context"`
		Status        string     `db:"status"`
		Attempts      int        `db:"attempts"`
		ScheduledAt   time.Time  `db:"scheduled_at"`
		NextAttemptAt null.Time  `db:"next_attempt_at"`
		ClaimedAt     null.Time  `db:"claimed_at"`
		Provider      string     `db:"provider"`
		ProviderRef   string     `db:"provider_ref"`
		LastError     string     `db:"last_error"`
		SentAt        null.Time  `db:"sent_at"`
		SenderID      string     `db:"sender_id"`
		FromEmail     string     `db:"from_email"`
		ReplyTo       string     `db:"reply_to"`
		CreatedBy     string     `db:"created_by"`
		CreatedAt     time.Time  `db:"created_at"`
	}
)

var _ comms.Repository = (*commsRepository)(nil) // interface compliance check

var outboxTables = map[comms.Channel]outboxTable{
	comms.ChannelSMS: {
		name: "sms_outbox",
		to:   "to_number",
		cols: "o.sender_id, '' AS from_email, '' AS reply_to",
	},
	comms.ChannelEmail: {
		name: "email_outbox",
		to:   "to_email",
		cols: "'' AS sender_id, o.from_email, o.reply_to",
	},
}

func tableOf(ch comms.Channel) (outboxTable, error) {
	t, ok := outboxTables[ch]
	if !ok {
		return outboxTable{}, errors.Wrapf(comms.ErrUnknownChannel, "%q", ch)
	}
	return t, nil
}

func (t outboxTable) selectFrom() string {
	return fmt.Sprintf(`SELECT o.id, o.%s AS recipient, o.template_id, tpl.slug AS template_slug, o.context, o.status,
		o.attempts, o.scheduled_at, o.next_attempt_at, o.claimed_at, o.provider, o.provider_ref, o.last_error,
		o.sent_at, %s, o.created_by, o.created_at
		FROM %s o JOIN message_templates tpl ON tpl.id = o.template_id`, t.to, t.cols, t.name)
}

func NewCommsRepository(db *sqlx.DB) *commsRepository {
	return &commsRepository{scope{db: db}}
}

func (repo *commsRepository) unrow(ch comms.Channel, row entryRow) (comms.Entry, error) {
	data := comms.Context{}
	if len(row.Context) > 0 {
		if err := row.Context.Unmarshal(&data); err != nil {
			return comms.Entry{}, errors.Wrapf(err, "decoding context of %s entry %d", ch, row.ID)
		}
	}
	return comms.Entry{
		ID:            row.ID,
		Channel:       ch,
		To:            row.To,
		TemplateID:    row.TemplateID,
		TemplateSlug:  row.TemplateSlug,
		Context:       data,
		Status:        comms.Status(row.Status),
		Attempts:      row.Attempts,
		ScheduledAt:   row.ScheduledAt.UTC(),
		NextAttemptAt: row.NextAttemptAt,
		ClaimedAt:     row.ClaimedAt,
		Provider:      row.Provider,
		ProviderRef:   row.ProviderRef,
		LastError:     row.LastError,
		SentAt:        row.SentAt,
		SenderID:      row.SenderID,
		FromEmail:     row.FromEmail,
		ReplyTo:       row.ReplyTo,
		CreatedBy:     row.CreatedBy,
		CreatedAt:     row.CreatedAt.UTC(),
	}, nil
}

func (repo *commsRepository) unrowSlice(ch comms.Channel, rows []entryRow) ([]comms.Entry, error) {
	entries := make([]comms.Entry, 0, len(rows))
	for _, row := range rows {
		e, err := repo.unrow(ch, row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (repo *commsRepository) Atomic(ctx context.Context, fn func(tx comms.Repository) error) error {
	return repo.atomic(ctx, func(s scope) error {
		return fn(&commsRepository{s})
	})
}

func (repo *commsRepository) OnCommit(fn func()) {
	repo.onCommit(fn)
}

func (repo *commsRepository) GetActiveTemplate(ctx context.Context, slug string, kind comms.Channel) (comms.Template, error) {
	var tpl comms.Template
	err := sqlx.GetContext(ctx, repo.ext(), &tpl,
		`SELECT `+templateColumns+` FROM message_templates WHERE slug = $1 AND kind = $2 AND is_active`, slug, kind)
	if err != nil {
		return comms.Template{}, trapNoRowsErr(err, comms.ErrTemplateNotFound, "getting active template")
	}
	return tpl, nil
}

func (repo *commsRepository) GetTemplate(ctx context.Context, id int) (comms.Template, error) {
	var tpl comms.Template
	err := sqlx.GetContext(ctx, repo.ext(), &tpl, `SELECT `+templateColumns+` FROM message_templates WHERE id = $1`, id)
	if err != nil {
		return comms.Template{}, trapNoRowsErr(err, comms.ErrTemplateNotFound, "getting template")
	}
	return tpl, nil
}

func (repo *commsRepository) SaveTemplate(ctx context.Context, tpl comms.Template) (comms.Template, error) {
	q := `INSERT INTO message_templates (slug, kind, subject_template, body_text_template, body_html_template, is_active, updated_at)
		VALUES (:slug, :kind, :subject_template, :body_text_template, :body_html_template, :is_active, :updated_at)
		ON CONFLICT (slug, kind) DO UPDATE SET
			subject_template = EXCLUDED.subject_template,
			body_text_template = EXCLUDED.body_text_template,
			body_html_template = EXCLUDED.body_html_template,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
		RETURNING id`
	q, args, err := sqlx.Named(q, tpl)
	if err != nil {
		return comms.Template{}, errors.Wrap(err, "binding template")
	}
	if err = sqlx.GetContext(ctx, repo.ext(), &tpl.ID, repo.db.Rebind(q), args...); err != nil {
		return comms.Template{}, errors.Wrap(err, "saving template")
	}
	return tpl, nil
}

func (repo *commsRepository) CreateEntry(ctx context.Context, e comms.Entry) (comms.Entry, error) {
	t, err := tableOf(e.Channel)
	if err != nil {
		return comms.Entry{}, err
	}
	var data types.JSON
	if err = data.Marshal(e.Context); err != nil {
		return comms.Entry{}, errors.Wrap(err, "encoding context")
	}

	var q string
	args := []interface{}{e.To, e.TemplateID, data, e.Status, e.Attempts, e.ScheduledAt, e.CreatedBy, e.CreatedAt}
	switch e.Channel {
	case comms.ChannelSMS:
		q = `INSERT INTO sms_outbox (to_number, template_id, context, status, attempts, scheduled_at, created_by, created_at, sender_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
		args = append(args, e.SenderID)
	default:
		q = `INSERT INTO email_outbox (to_email, template_id, context, status, attempts, scheduled_at, created_by, created_at, from_email, reply_to)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
		args = append(args, e.FromEmail, e.ReplyTo)
	}
	if err = sqlx.GetContext(ctx, repo.ext(), &e.ID, q, args...); err != nil {
		return comms.Entry{}, errors.Wrapf(err, "inserting into %s", t.name)
	}
	return e, nil
}

func (repo *commsRepository) GetEntry(ctx context.Context, ch comms.Channel, id int) (comms.Entry, error) {
	t, err := tableOf(ch)
	if err != nil {
		return comms.Entry{}, err
	}
	var row entryRow
	if err = sqlx.GetContext(ctx, repo.ext(), &row, t.selectFrom()+` WHERE o.id = $1`, id); err != nil {
		return comms.Entry{}, trapNoRowsErr(err, comms.ErrEntryNotFound, "getting entry")
	}
	return repo.unrow(ch, row)
}

func (repo *commsRepository) LockDueEntries(ctx context.Context, ch comms.Channel, now time.Time, limit int) ([]comms.Entry, error) {
	t, err := tableOf(ch)
	if err != nil {
		return nil, err
	}
	q := t.selectFrom() + `
		WHERE o.status IN ('queued', 'failed') AND o.scheduled_at <= $1 AND tpl.is_active
		ORDER BY o.scheduled_at, o.id
		LIMIT $2
		FOR UPDATE OF o SKIP LOCKED`

	var rows []entryRow
	if err = sqlx.SelectContext(ctx, repo.ext(), &rows, q, now, limit); err != nil {
		return nil, errors.Wrapf(err, "locking due %s entries", ch)
	}
	return repo.unrowSlice(ch, rows)
}

func (repo *commsRepository) IsThrottled(ctx context.Context, ch comms.Channel, to string, templateID int, since time.Time) (bool, error) {
	t, err := tableOf(ch)
	if err != nil {
		return false, err
	}
	q := fmt.Sprintf(`SELECT EXISTS (
		SELECT 1 FROM %s WHERE %s = $1 AND template_id = $2
		AND (status = 'sending' OR (status = 'sent' AND sent_at >= $3)))`, t.name, t.to)

	var throttled bool
	if err = sqlx.GetContext(ctx, repo.ext(), &throttled, q, to, templateID, since); err != nil {
		return false, errors.Wrap(err, "checking throttle")
	}
	return throttled, nil
}

func (repo *commsRepository) MarkSending(ctx context.Context, ch comms.Channel, ids []int, at time.Time) error {
	t, err := tableOf(ch)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`UPDATE %s SET status = 'sending', claimed_at = $1 WHERE id = ANY($2)`, t.name)
	_, err = repo.ext().ExecContext(ctx, q, at, pq.Array(ids))
	return errors.Wrapf(err, "marking %s entries as sending", ch)
}

func (repo *commsRepository) SaveOutcome(ctx context.Context, e comms.Entry) error {
	t, err := tableOf(e.Channel)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`UPDATE %s SET status = $1, attempts = $2, scheduled_at = $3, next_attempt_at = $4,
		provider = $5, provider_ref = $6, last_error = $7, sent_at = $8
		WHERE id = $9`, t.name)
	res, err := repo.ext().ExecContext(ctx, q,
		e.Status, e.Attempts, e.ScheduledAt, e.NextAttemptAt, e.Provider, e.ProviderRef, e.LastError, e.SentAt, e.ID)
	if err != nil {
		return errors.Wrapf(err, "saving %s entry outcome", e.Channel)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return comms.ErrEntryNotFound
	}
	return nil
}

func (repo *commsRepository) ReleaseStale(ctx context.Context, ch comms.Channel, claimedBefore time.Time, reason string) (int, error) {
	t, err := tableOf(ch)
	if err != nil {
		return 0, err
	}
	q := fmt.Sprintf(`UPDATE %s SET status = 'failed', last_error = $1
		WHERE status = 'sending' AND claimed_at < $2`, t.name)
	res, err := repo.ext().ExecContext(ctx, q, reason, claimedBefore)
	if err != nil {
		return 0, errors.Wrapf(err, "releasing stale %s entries", ch)
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "counting released entries")
}

func (repo *commsRepository) AppendLog(ctx context.Context, rec comms.LogRecord) error {
	_, err := queries.Raw(
		`INSERT INTO comms_log (occurred_at, channel, recipient, template_slug, status, detail) VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.When, rec.Channel, rec.Recipient, rec.TemplateSlug, rec.Status, rec.Detail,
	).ExecContext(ctx, repo.exec())
	return errors.Wrap(err, "appending comms log")
}

func (repo *commsRepository) HasLogSince(ctx context.Context, ch comms.Channel, recipient, templateSlug string, status comms.Status, since time.Time) (bool, error) {
	var found struct {
		Found bool `boil:"found"`
	}
	err := queries.Raw(
		`SELECT EXISTS (SELECT 1 FROM comms_log
		WHERE channel = $1 AND recipient = $2 AND template_slug = $3 AND status = $4 AND occurred_at >= $5) AS found`,
		ch, recipient, templateSlug, status, since,
	).Bind(ctx, repo.exec(), &found)
	if err != nil {
		return false, errors.Wrap(err, "checking comms log")
	}
	return found.Found, nil
}

func (repo *commsRepository) ListLogs(ctx context.Context, limit int) ([]comms.LogRecord, error) {
	q := `SELECT id, occurred_at, channel, recipient, template_slug, status, detail FROM comms_log ORDER BY id DESC`
	args := make([]interface{}, 0, 1)
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}

	logs := make([]comms.LogRecord, 0)
	if err := queries.Raw(q, args...).Bind(ctx, repo.exec(), &logs); err != nil {
		return nil, errors.Wrap(err, "listing comms log")
	}
	return logs, nil
}
