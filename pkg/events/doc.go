/*
Package events provides an in-memory event broker for fanning out committed
storage mutations to interested subscribers.

# Architecture

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                            │
	│  Facade.Write commits  →  Broker.NotifyCommitted(cmd)     │
	│                                 │                          │
	│                                 ▼                          │
	│                       decode Command by Op                │
	│                                 │                          │
	│                                 ▼                          │
	│                     Event channel (buffer: 256)            │
	│                                 │                          │
	│                                 ▼                          │
	│                          broadcast loop                    │
	│                                 │                          │
	│                                 ▼                          │
	│              Subscriber channels (buffer: 64 each)         │
	└────────────────────────────────────────────────────────────┘

# Event types

task.put / task.deleted — the scheduling loop subscribes to task.put to
enqueue a task's group the moment it commits into PENDING, instead of
polling storage.

job.put / job.deleted — job configuration changes. No component of this
module subscribes to them; the cron scheduler drops its cached template
directly in ReplaceCronTemplate.

quota.put — role quota changes.

lock.acquired / lock.released — job lock lifecycle.

attributes.put — host attribute refresh from the cluster resource manager's
offer feed. Placement does not subscribe to it; it reads a host's attributes
from storage on every attempt.

maintenance.mode — host drain lifecycle transitions.

# Usage

	broker := events.NewBroker()
	broker.Start()
	facade, _ := storage.Open(dataDir, storage.WithNotifier(broker))

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)
	for ev := range sub {
		if ev.Type == events.EventTaskPut && ev.Metadata["status"] == "PENDING" {
			scheduler.Enqueue(ev.TaskID)
		}
	}

# Delivery semantics

Publish is non-blocking up to the broker's internal buffer; a slow or dead
subscriber has its own buffer and is dropped from, not blocking the
broadcast loop, once that buffer is full. Event delivery is therefore
best-effort: a subscriber that falls behind loses events rather than
stalling the rest of the system. The scheduling loop enumerates PENDING
tasks from storage only once, on the storage-ready signal at startup; a task
whose task.put it misses after that is not enqueued until the loop next
starts.

NotifyCommitted decodes the committed Command's JSON payload; a decode
failure is dropped silently rather than surfaced, since by the time
NotifyCommitted runs the write has already committed — a malformed
notification must never be mistaken for a failed write.
*/
package events
