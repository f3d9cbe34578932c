package inmemdb

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Syed-Nuhad/school-web-sub000/core/billing"
	"github.com/Syed-Nuhad/school-web-sub000/core/comms"
)

var ctx = context.Background()

func TestDB_atomic(t *testing.T) {
	db := Open()
	repo := NewCommsRepository(db)

	var committed []string
	repo.OnCommit(func() { committed = append(committed, "no tx") })
	assert.Equal(t, []string{"no tx"}, committed, "runs right away outside a transaction")

	t.Run("rollback", func(t *testing.T) {
		err := repo.Atomic(ctx, func(tx comms.Repository) error {
			_, err := tx.SaveTemplate(ctx, comms.Template{Slug: "hello", Kind: comms.ChannelSMS, IsActive: true})
			require.NoError(t, err)
			tx.OnCommit(func() { committed = append(committed, "rolled back") })
			return errors.New("abort")
		})
		assert.EqualError(t, err, "abort")
		_, err = repo.GetActiveTemplate(ctx, "hello", comms.ChannelSMS)
		assert.Equal(t, comms.ErrTemplateNotFound, err)
		assert.Len(t, committed, 1)
	})

	t.Run("commit", func(t *testing.T) {
		err := repo.Atomic(ctx, func(tx comms.Repository) error {
			if _, err := tx.SaveTemplate(ctx, comms.Template{Slug: "hello", Kind: comms.ChannelSMS, IsActive: true}); err != nil {
				return err
			}
			// nested calls join the outer transaction
			return tx.Atomic(ctx, func(inner comms.Repository) error {
				inner.OnCommit(func() { committed = append(committed, "committed") })
				assert.Len(t, committed, 1, "hooks wait for the commit")
				return nil
			})
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"no tx", "committed"}, committed)

		tpl, err := repo.GetActiveTemplate(ctx, "hello", comms.ChannelSMS)
		require.NoError(t, err)
		assert.Equal(t, 1, tpl.ID, "rolled back ids are reused")
	})

	t.Run("panic", func(t *testing.T) {
		assert.PanicsWithValue(t, "boom", func() {
			_ = repo.Atomic(ctx, func(tx comms.Repository) error {
				_, err := tx.SaveTemplate(ctx, comms.Template{Slug: "boom", Kind: comms.ChannelSMS, IsActive: true})
				require.NoError(t, err)
				tx.OnCommit(func() { committed = append(committed, "panicked") })
				panic("boom")
			})
		})
		_, err := repo.GetActiveTemplate(ctx, "boom", comms.ChannelSMS)
		assert.Equal(t, comms.ErrTemplateNotFound, err)
		assert.Equal(t, []string{"no tx", "committed"}, committed)

		// the lock was released
		err = repo.Atomic(ctx, func(tx comms.Repository) error {
			_, err := tx.SaveTemplate(ctx, comms.Template{Slug: "after", Kind: comms.ChannelSMS, IsActive: true})
			return err
		})
		require.NoError(t, err)
		_, err = repo.GetActiveTemplate(ctx, "after", comms.ChannelSMS)
		assert.NoError(t, err)
	})
}

func TestBillingRepository_LockPeriodInvoice(t *testing.T) {
	repo := NewBillingRepository(Open())
	seed := billing.Invoice{StudentID: 1, Kind: billing.KindMonthly, PeriodYear: 2024, PeriodMonth: 3, TuitionAmount: decimal.NewFromInt(100)}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Atomic(ctx, func(tx billing.Repository) error {
				_, isNew, err := tx.LockPeriodInvoice(ctx, seed)
				if isNew {
					mu.Lock()
					created++
					mu.Unlock()
				}
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)

	invoices, err := repo.FilterInvoices(ctx, billing.InvoiceFilter{StudentID: 1})
	require.NoError(t, err)
	assert.Len(t, invoices, 1)
}
