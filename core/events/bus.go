// Package events is a synchronous, in-process handler registry.
// Publishers call Publish only after the triggering write has committed.
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/Syed-Nuhad/school-web-sub000/core"
)

type (
	Event struct {
		Name    string
		Payload interface{}
	}

	// Handler reacts to an Event. Returned errors are logged, never propagated to the publisher.
	Handler func(ctx context.Context, evt Event) error

	Bus struct {
		mu       sync.RWMutex
		handlers map[string][]Handler
		logger   core.Logger
	}
)

func NewBus(logger core.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Publish runs the handlers of evt.Name in subscription order.
// It returns the number of handlers that failed.
func (b *Bus) Publish(ctx context.Context, evt Event) int {
	b.mu.RLock()
	hs := make([]Handler, len(b.handlers[evt.Name]))
	copy(hs, b.handlers[evt.Name])
	b.mu.RUnlock()

	var failed int
	for i, h := range hs {
		if err := b.call(ctx, h, evt); err != nil {
			failed++
			b.logger.Error(fmt.Sprintf("event %q: handler #%d failed: %v", evt.Name, i, err), err)
		}
	}
	return failed
}

func (b *Bus) call(ctx context.Context, h Handler, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, evt)
}
