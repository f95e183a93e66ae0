package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ballast-sched/ballast/pkg/storage"
	"github.com/ballast-sched/ballast/pkg/types"
)

func TestNotifyCommittedPublishesTaskPutEvent(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	task := &types.ScheduledTask{
		AssignedTask: types.AssignedTask{
			TaskConfig: types.TaskConfig{Role: "r", Environment: "prod", JobName: "j"},
			TaskID:     "task-1",
		},
		Status: types.StatusPending,
	}
	b.NotifyCommitted(storage.NewPutTaskCommand(task))

	select {
	case ev := <-sub:
		require.Equal(t, EventTaskPut, ev.Type)
		require.Equal(t, "task-1", ev.TaskID)
		require.Equal(t, "PENDING", ev.Metadata["status"])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)
	require.Equal(t, 0, b.SubscriberCount())

	// must not panic or block publishing after the only subscriber left
	b.Publish(&Event{Type: EventTaskPut, TaskID: "task-1"})
}

func TestSlowSubscriberDoesNotBlockBroadcast(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	slow := b.Subscribe() // never drained
	fast := b.Subscribe()
	defer b.Unsubscribe(fast)
	defer b.Unsubscribe(slow)

	for i := 0; i < 100; i++ {
		b.Publish(&Event{Type: EventTaskPut, TaskID: "flood"})
	}

	select {
	case <-fast:
	case <-time.After(time.Second):
		t.Fatal("fast subscriber starved by slow subscriber")
	}
}
