// Package events implements the pub/sub broker that fans committed storage
// mutations out to interested subscribers — chiefly the scheduling loop,
// which wakes a task's group the moment it commits into PENDING.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/ballast-sched/ballast/pkg/storage"
	"github.com/ballast-sched/ballast/pkg/types"
)

// EventType identifies what kind of domain event occurred.
type EventType string

const (
	EventTaskPut         EventType = "task.put"
	EventTaskDeleted     EventType = "task.deleted"
	EventJobPut          EventType = "job.put"
	EventJobDeleted      EventType = "job.deleted"
	EventQuotaPut        EventType = "quota.put"
	EventLockAcquired    EventType = "lock.acquired"
	EventLockReleased    EventType = "lock.released"
	EventAttributesPut   EventType = "attributes.put"
	EventMaintenanceMode EventType = "maintenance.mode"
)

// Event is one committed mutation, re-expressed for subscribers that don't
// want to depend on pkg/storage's Command/Op encoding directly.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	TaskID    string
	JobKey    types.JobKey
	Host      string
	Message   string
	Metadata  map[string]string
}

// Subscriber is a channel that receives events.
type Subscriber chan *Event

// Broker manages event subscriptions and distribution, and is the concrete
// storage.Notifier implementation wired at Facade construction time.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 256),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop.
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns a channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 64)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes event to all subscribers.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

// NotifyCommitted implements storage.Notifier: it decodes cmd into the
// corresponding domain Event and publishes it. Decode failures are dropped
// rather than surfaced, since the write itself already committed
// successfully by the time NotifyCommitted runs — a malformed notification
// must never be mistaken for a failed write.
func (b *Broker) NotifyCommitted(cmd storage.Command) {
	switch cmd.Op {
	case storage.OpPutTask:
		var task types.ScheduledTask
		if json.Unmarshal(cmd.Data, &task) == nil {
			b.Publish(&Event{
				Type:   EventTaskPut,
				TaskID: task.TaskID,
				JobKey: types.JobKey{Role: task.Role, Environment: task.Environment, JobName: task.JobName},
				Metadata: map[string]string{
					"status": string(task.Status),
				},
			})
		}
	case storage.OpDeleteTask:
		var p struct {
			TaskID string `json:"task_id"`
		}
		if json.Unmarshal(cmd.Data, &p) == nil {
			b.Publish(&Event{Type: EventTaskDeleted, TaskID: p.TaskID})
		}
	case storage.OpPutJob:
		var job types.JobConfiguration
		if json.Unmarshal(cmd.Data, &job) == nil {
			b.Publish(&Event{Type: EventJobPut, JobKey: job.Key})
		}
	case storage.OpDeleteJob:
		var p struct {
			Key types.JobKey `json:"key"`
		}
		if json.Unmarshal(cmd.Data, &p) == nil {
			b.Publish(&Event{Type: EventJobDeleted, JobKey: p.Key})
		}
	case storage.OpPutQuota:
		var q types.Quota
		if json.Unmarshal(cmd.Data, &q) == nil {
			b.Publish(&Event{Type: EventQuotaPut, Metadata: map[string]string{"role": q.Role}})
		}
	case storage.OpPutLock:
		var l types.Lock
		if json.Unmarshal(cmd.Data, &l) == nil {
			b.Publish(&Event{Type: EventLockAcquired, JobKey: l.Key.Job})
		}
	case storage.OpDeleteLock:
		var p struct {
			Key types.LockKey `json:"key"`
		}
		if json.Unmarshal(cmd.Data, &p) == nil {
			b.Publish(&Event{Type: EventLockReleased, JobKey: p.Key.Job})
		}
	case storage.OpPutAttributes:
		var a types.HostAttributes
		if json.Unmarshal(cmd.Data, &a) == nil {
			b.Publish(&Event{Type: EventAttributesPut, Host: a.Host})
		}
	case storage.OpSetMaintenance:
		var p struct {
			Host string              `json:"host"`
			Mode types.MaintenanceMode `json:"mode"`
		}
		if json.Unmarshal(cmd.Data, &p) == nil {
			b.Publish(&Event{Type: EventMaintenanceMode, Host: p.Host, Metadata: map[string]string{"mode": string(p.Mode)}})
		}
	case storage.OpTaskTransition:
		var p storage.TaskTransitionCommand
		if json.Unmarshal(cmd.Data, &p) == nil {
			if p.Delete {
				b.Publish(&Event{Type: EventTaskDeleted, TaskID: p.TaskID})
			} else {
				b.Publish(&Event{
					Type:   EventTaskPut,
					TaskID: p.TaskID,
					Host:   p.SlaveHost,
					Metadata: map[string]string{
						"status": string(p.Status),
					},
				})
			}
			if p.RescheduleTaskID != "" {
				b.Publish(&Event{
					Type:   EventTaskPut,
					TaskID: p.RescheduleTaskID,
					Metadata: map[string]string{
						"status": string(types.StatusPending),
					},
				})
			}
		}
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// subscriber buffer full; drop rather than block the broker loop
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
