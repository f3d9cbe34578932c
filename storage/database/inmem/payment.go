package inmemdb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Syed-Nuhad/school-web-sub000/core/payment"
)

type paymentEventRepository struct {
	db *DB
}

var _ payment.Repository = (*paymentEventRepository)(nil) // interface compliance check

func NewPaymentEventRepository(db *DB) *paymentEventRepository {
	return &paymentEventRepository{db: db}
}

func (repo *paymentEventRepository) RecordEvent(ctx context.Context, evt payment.GatewayEvent) (payment.GatewayEvent, bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, e := range repo.db.data.events {
		if e.Provider == evt.Provider && e.TransactionID == evt.TransactionID && e.TransactionStatus == evt.TransactionStatus {
			return e, true, nil
		}
	}
	evt.ID = repo.db.nextID("gateway_events")
	repo.db.data.events[evt.ID] = evt
	return evt, false, nil
}

func (repo *paymentEventRepository) UpdateEventStatus(ctx context.Context, id int, status payment.EventStatus, errMsg string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	evt, ok := repo.db.data.events[id]
	if !ok {
		return errors.Errorf("gateway event %d not found", id)
	}
	evt.Status = status
	evt.Error = errMsg
	repo.db.data.events[id] = evt
	return nil
}
