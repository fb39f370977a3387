package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDispatcher_PublishRunsHandlersInOrder(t *testing.T) {
	d := NewDispatcher()
	var calls []string

	d.Subscribe(TypeSetLogged, "first", func(ctx context.Context, e Event) error {
		calls = append(calls, "first")
		assert.Equal(t, TypeSetLogged, e.Type)
		assert.NotEmpty(t, e.ID)
		return nil
	})
	d.Subscribe(TypeSetLogged, "second", func(ctx context.Context, e Event) error {
		calls = append(calls, "second")
		payload, ok := e.Payload.(SetLogged)
		require.True(t, ok)
		assert.Equal(t, 3, payload.Log.SetNumber)
		return nil
	})
	d.Subscribe(TypeProfileScored, "other", func(ctx context.Context, e Event) error {
		calls = append(calls, "other")
		return nil
	})

	payload := SetLogged{}
	payload.Log.SetNumber = 3
	failed := d.Publish(context.Background(), TypeSetLogged, payload)

	assert.Zero(t, failed)
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestDispatcher_FailuresAreContained(t *testing.T) {
	d := NewDispatcher()
	reached := false

	d.Subscribe(TypeSetLogged, "erroring", func(ctx context.Context, e Event) error {
		return errors.New("sink down")
	})
	d.Subscribe(TypeSetLogged, "panicking", func(ctx context.Context, e Event) error {
		panic("boom")
	})
	d.Subscribe(TypeSetLogged, "healthy", func(ctx context.Context, e Event) error {
		reached = true
		return nil
	})

	failed := d.Publish(context.Background(), TypeSetLogged, SetLogged{})
	assert.Equal(t, 2, failed)
	assert.True(t, reached)
}

func TestDispatcher_NoSubscribers(t *testing.T) {
	d := NewDispatcher()
	assert.Zero(t, d.Publish(context.Background(), TypeWorkoutPlanned, WorkoutPlanned{}))
	assert.False(t, Type("nope").IsValid())
	assert.True(t, TypeWorkoutPlanned.IsValid())
}
