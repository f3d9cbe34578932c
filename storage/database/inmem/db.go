// Package inmemdb holds the in-memory repositories used by tests.
// Transactions are serialized by one lock and rolled back from a snapshot.
package inmemdb

import (
	"sync"

	"github.com/Syed-Nuhad/school-web-sub000/core"
	"github.com/Syed-Nuhad/school-web-sub000/core/billing"
	"github.com/Syed-Nuhad/school-web-sub000/core/comms"
	"github.com/Syed-Nuhad/school-web-sub000/core/payment"
	"github.com/Syed-Nuhad/school-web-sub000/core/student"
)

type (
	tables struct {
		classes   map[int]student.Class
		students  map[int]student.Student
		invoices  map[int]billing.Invoice
		payments  map[int]billing.Payment
		templates map[int]comms.Template
		entries   map[comms.Channel]map[int]comms.Entry
		logs      []comms.LogRecord
		events    map[int]payment.GatewayEvent
		seq       map[string]int
	}

	DB struct {
		txMu sync.Mutex   // one transaction at a time
		mu   sync.RWMutex // guards data
		data tables
	}
)

func newTables() tables {
	return tables{
		classes:   make(map[int]student.Class),
		students:  make(map[int]student.Student),
		invoices:  make(map[int]billing.Invoice),
		payments:  make(map[int]billing.Payment),
		templates: make(map[int]comms.Template),
		entries: map[comms.Channel]map[int]comms.Entry{
			comms.ChannelSMS:   make(map[int]comms.Entry),
			comms.ChannelEmail: make(map[int]comms.Entry),
		},
		events: make(map[int]payment.GatewayEvent),
		seq:    make(map[string]int),
	}
}

func Open() *DB {
	return &DB{data: newTables()}
}

// Reset drops all rows.
func (db *DB) Reset() {
	db.mu.Lock()
	db.data = newTables()
	db.mu.Unlock()
}

func (db *DB) nextID(table string) int {
	db.data.seq[table]++
	return db.data.seq[table]
}

func (db *DB) snapshot() tables {
	db.mu.RLock()
	defer db.mu.RUnlock()

	src := db.data
	snap := newTables()
	for k, v := range src.classes {
		snap.classes[k] = v
	}
	for k, v := range src.students {
		snap.students[k] = v
	}
	for k, v := range src.invoices {
		snap.invoices[k] = v
	}
	for k, v := range src.payments {
		snap.payments[k] = v
	}
	for k, v := range src.templates {
		snap.templates[k] = v
	}
	for ch, rows := range src.entries {
		for k, v := range rows {
			snap.entries[ch][k] = v
		}
	}
	snap.logs = append(snap.logs, src.logs...)
	for k, v := range src.events {
		snap.events[k] = v
	}
	for k, v := range src.seq {
		snap.seq[k] = v
	}
	return snap
}

// atomic runs fn as one transaction: fn's writes are undone when it fails
// or panics, and the commit hooks only run once it succeeded.
func (db *DB) atomic(fn func(hooks *core.CommitHooks) error) (err error) {
	hooks := &core.CommitHooks{}

	db.txMu.Lock()
	snap := db.snapshot()
	committed := false
	defer func() {
		if !committed {
			db.mu.Lock()
			db.data = snap
			db.mu.Unlock()
		}
		db.txMu.Unlock()
		if committed {
			hooks.Run()
		} else {
			hooks.Discard()
		}
	}()

	if err = fn(hooks); err != nil {
		return err
	}
	committed = true
	return nil
}
