package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/Syed-Nuhad/school-web-sub000/core/payment"
)

type paymentEventRepository struct {
	scope
}

var _ payment.Repository = (*paymentEventRepository)(nil) // interface compliance check

func NewPaymentEventRepository(db *sqlx.DB) *paymentEventRepository {
	return &paymentEventRepository{scope{db: db}}
}

func (repo *paymentEventRepository) RecordEvent(ctx context.Context, evt payment.GatewayEvent) (payment.GatewayEvent, bool, error) {
	q := `INSERT INTO gateway_events (provider, order_id, transaction_id, transaction_status, gross_amount, status, error, received_at)
		VALUES (:provider, :order_id, :transaction_id, :transaction_status, :gross_amount, :status, :error, :received_at)
		ON CONFLICT (provider, transaction_id, transaction_status) DO NOTHING
		RETURNING id`
	q, args, err := sqlx.Named(q, evt)
	if err != nil {
		return payment.GatewayEvent{}, false, errors.Wrap(err, "binding gateway event")
	}

	var ids []int
	if err = sqlx.SelectContext(ctx, repo.ext(), &ids, repo.db.Rebind(q), args...); err != nil {
		return payment.GatewayEvent{}, false, errors.Wrap(err, "inserting gateway event")
	}
	if len(ids) == 1 {
		evt.ID = ids[0]
		return evt, false, nil
	}

	var stored payment.GatewayEvent
	err = sqlx.GetContext(ctx, repo.ext(), &stored,
		`SELECT id, provider, order_id, transaction_id, transaction_status, gross_amount, status, error, received_at
		FROM gateway_events WHERE provider = $1 AND transaction_id = $2 AND transaction_status = $3`,
		evt.Provider, evt.TransactionID, evt.TransactionStatus)
	if err != nil {
		return payment.GatewayEvent{}, false, errors.Wrap(err, "getting recorded gateway event")
	}
	return stored, true, nil
}

func (repo *paymentEventRepository) UpdateEventStatus(ctx context.Context, id int, status payment.EventStatus, errMsg string) error {
	_, err := repo.ext().ExecContext(ctx,
		`UPDATE gateway_events SET status = $1, error = $2 WHERE id = $3`, status, errMsg, id)
	return errors.Wrap(err, "updating gateway event")
}
