package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/Syed-Nuhad/school-web-sub000/core"
	"github.com/Syed-Nuhad/school-web-sub000/core/comms"
)

type commsRepository struct {
	db    *DB
	hooks *core.CommitHooks // nil outside a transaction
}

var _ comms.Repository = (*commsRepository)(nil) // interface compliance check

func NewCommsRepository(db *DB) *commsRepository {
	return &commsRepository{db: db}
}

func (repo *commsRepository) Atomic(ctx context.Context, fn func(tx comms.Repository) error) error {
	if repo.hooks != nil {
		return fn(repo)
	}
	return repo.db.atomic(func(hooks *core.CommitHooks) error {
		return fn(&commsRepository{db: repo.db, hooks: hooks})
	})
}

func (repo *commsRepository) OnCommit(fn func()) {
	if repo.hooks == nil {
		fn()
		return
	}
	repo.hooks.Add(fn)
}

func (repo *commsRepository) GetActiveTemplate(ctx context.Context, slug string, kind comms.Channel) (comms.Template, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, tpl := range repo.db.data.templates {
		if tpl.Slug == slug && tpl.Kind == kind && tpl.IsActive {
			return tpl, nil
		}
	}
	return comms.Template{}, comms.ErrTemplateNotFound
}

func (repo *commsRepository) GetTemplate(ctx context.Context, id int) (comms.Template, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if tpl, ok := repo.db.data.templates[id]; ok {
		return tpl, nil
	}
	return comms.Template{}, comms.ErrTemplateNotFound
}

func (repo *commsRepository) SaveTemplate(ctx context.Context, tpl comms.Template) (comms.Template, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, t := range repo.db.data.templates {
		if t.Slug == tpl.Slug && t.Kind == tpl.Kind {
			tpl.ID = id
			repo.db.data.templates[id] = tpl
			return tpl, nil
		}
	}
	tpl.ID = repo.db.nextID("templates")
	repo.db.data.templates[tpl.ID] = tpl
	return tpl, nil
}

func (repo *commsRepository) CreateEntry(ctx context.Context, e comms.Entry) (comms.Entry, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	e.ID = repo.db.nextID(string(e.Channel) + "_outbox")
	repo.db.data.entries[e.Channel][e.ID] = e
	return e, nil
}

func (repo *commsRepository) GetEntry(ctx context.Context, ch comms.Channel, id int) (comms.Entry, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if e, ok := repo.db.data.entries[ch][id]; ok {
		return e, nil
	}
	return comms.Entry{}, comms.ErrEntryNotFound
}

func (repo *commsRepository) LockDueEntries(ctx context.Context, ch comms.Channel, now time.Time, limit int) ([]comms.Entry, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	due := make([]comms.Entry, 0)
	for _, e := range repo.db.data.entries[ch] {
		if e.Status != comms.StatusQueued && e.Status != comms.StatusFailed {
			continue
		}
		if e.ScheduledAt.After(now) {
			continue
		}
		if tpl, ok := repo.db.data.templates[e.TemplateID]; !ok || !tpl.IsActive {
			continue
		}
		due = append(due, e)
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].ScheduledAt.Equal(due[j].ScheduledAt) {
			return due[i].ScheduledAt.Before(due[j].ScheduledAt)
		}
		return due[i].ID < due[j].ID
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (repo *commsRepository) IsThrottled(ctx context.Context, ch comms.Channel, to string, templateID int, since time.Time) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, e := range repo.db.data.entries[ch] {
		if e.To != to || e.TemplateID != templateID {
			continue
		}
		if e.Status == comms.StatusSending {
			return true, nil
		}
		if e.Status == comms.StatusSent && e.SentAt.Valid && !e.SentAt.Time.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (repo *commsRepository) MarkSending(ctx context.Context, ch comms.Channel, ids []int, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, id := range ids {
		e, ok := repo.db.data.entries[ch][id]
		if !ok {
			return comms.ErrEntryNotFound
		}
		e.Status = comms.StatusSending
		e.ClaimedAt = null.TimeFrom(at)
		repo.db.data.entries[ch][id] = e
	}
	return nil
}

func (repo *commsRepository) SaveOutcome(ctx context.Context, e comms.Entry) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.data.entries[e.Channel][e.ID]
	if !ok {
		return comms.ErrEntryNotFound
	}
	orig.Status = e.Status
	orig.Attempts = e.Attempts
	orig.ScheduledAt = e.ScheduledAt
	orig.NextAttemptAt = e.NextAttemptAt
	orig.Provider = e.Provider
	orig.ProviderRef = e.ProviderRef
	orig.LastError = e.LastError
	orig.SentAt = e.SentAt
	repo.db.data.entries[e.Channel][e.ID] = orig
	return nil
}

func (repo *commsRepository) ReleaseStale(ctx context.Context, ch comms.Channel, claimedBefore time.Time, reason string) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for id, e := range repo.db.data.entries[ch] {
		if e.Status != comms.StatusSending || !e.ClaimedAt.Valid || !e.ClaimedAt.Time.Before(claimedBefore) {
			continue
		}
		e.Status = comms.StatusFailed
		e.LastError = reason
		repo.db.data.entries[ch][id] = e
		n++
	}
	return n, nil
}

func (repo *commsRepository) AppendLog(ctx context.Context, rec comms.LogRecord) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	rec.ID = repo.db.nextID("comms_log")
	repo.db.data.logs = append(repo.db.data.logs, rec)
	return nil
}

func (repo *commsRepository) HasLogSince(ctx context.Context, ch comms.Channel, recipient, templateSlug string, status comms.Status, since time.Time) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, rec := range repo.db.data.logs {
		if rec.Channel == ch && rec.Recipient == recipient && rec.TemplateSlug == templateSlug &&
			rec.Status == status && !rec.When.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (repo *commsRepository) ListLogs(ctx context.Context, limit int) ([]comms.LogRecord, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	logs := make([]comms.LogRecord, 0, len(repo.db.data.logs))
	for i := len(repo.db.data.logs) - 1; i >= 0; i-- {
		if limit > 0 && len(logs) >= limit {
			break
		}
		logs = append(logs, repo.db.data.logs[i])
	}
	return logs, nil
}
