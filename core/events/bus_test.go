package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Syed-Nuhad/school-web-sub000/core"
)

func TestBus_Publish(t *testing.T) {
	bus := NewBus(core.NewNopLogger())

	var calls []string
	bus.Subscribe("student.enrolled", func(ctx context.Context, evt Event) error {
		calls = append(calls, "first")
		return errors.New("boom")
	})
	bus.Subscribe("student.enrolled", func(ctx context.Context, evt Event) error {
		calls = append(calls, "second")
		panic("kaboom")
	})
	bus.Subscribe("student.enrolled", func(ctx context.Context, evt Event) error {
		calls = append(calls, "third:"+evt.Payload.(string))
		return nil
	})
	bus.Subscribe("other", func(ctx context.Context, evt Event) error {
		calls = append(calls, "other")
		return nil
	})

	failed := bus.Publish(context.Background(), Event{Name: "student.enrolled", Payload: "awe"})

	assert.Equal(t, 2, failed)
	assert.Equal(t, []string{"first", "second", "third:awe"}, calls)
}

func TestBus_Publish_noHandlers(t *testing.T) {
	bus := NewBus(core.NewNopLogger())
	assert.Equal(t, 0, bus.Publish(context.Background(), Event{Name: "nothing"}))
}
