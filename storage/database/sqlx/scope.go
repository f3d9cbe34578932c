// Package sqlxrepos holds the PostgreSQL repositories.
package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/boil"

	"github.com/Syed-Nuhad/school-web-sub000/core"
)

// scope is the connection a repository runs its queries on: the pool, or the open transaction.
type scope struct {
	db    *sqlx.DB
	tx    *sqlx.Tx
	hooks *core.CommitHooks
}

func (s scope) ext() sqlx.ExtContext {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// atomic runs fn in a transaction; a scope already in one is reused as is.
func (s scope) atomic(ctx context.Context, fn func(s scope) error) (err error) {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	inner := scope{db: s.db, tx: tx, hooks: &core.CommitHooks{}}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			inner.hooks.Discard()
			panic(p)
		}
	}()

	if err = fn(inner); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back: %v", rbErr)
		}
		inner.hooks.Discard()
		return err
	}
	if err = tx.Commit(); err != nil {
		inner.hooks.Discard()
		return errors.Wrap(err, "committing transaction")
	}
	inner.hooks.Run()
	return nil
}

func (s scope) onCommit(fn func()) {
	if s.hooks == nil {
		fn()
		return
	}
	s.hooks.Add(fn)
}

// exec is the executor handed to sqlboiler raw queries.
func (s scope) exec() boil.ContextExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}
