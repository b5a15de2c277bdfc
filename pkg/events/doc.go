/*
Package events provides an in-memory event broker for the intake engine's
observability events.

The broker implements a lightweight pub/sub bus for broadcasting job
lifecycle events to anything that wants to watch jobs move through the
pipeline without polling the registry. The registry and the retention
sweeper publish onto it; nothing in this module subscribes to it.

# Architecture

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                            │
	│  Publisher → eventCh (buffer: 100)                        │
	│       ↓                                                    │
	│  broadcast loop (run)                                     │
	│       ↓                                                    │
	│  Subscriber channels (buffer: 50 each)                    │
	└────────────────────────────────────────────────────────┘

# Core components

Broker:
  - Central in-memory message bus
  - Non-blocking publish (buffered channel)
  - Graceful shutdown via Stop

Event:
  - ID, Type, Timestamp, JobID, Message, Metadata

Subscriber:
  - A buffered channel of *Event, created via Broker.Subscribe

# Event types

  - job_submitted: a job was admitted into the registry
  - stage_started / stage_finished: a pipeline stage began or completed
  - job_terminal: a job reached a terminal state (completed/failed/cancelled,
    and again when it moves on to retained_deleted)
  - artifact_written: the object store wrote an encrypted artifact
  - artifact_deleted: the object store deleted an artifact (retention or
    explicit deletion)
  - integrity_failure: a stored artifact failed an integrity check on read

# Usage

Creating and starting a broker:

	import "github.com/secureai/medgenomics/pkg/events"

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

Subscribing:

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			fmt.Printf("[%s] %s: %s\n", event.JobID, event.Type, event.Message)
		}
	}()

Publishing:

	broker.Publish(&events.Event{
		Type:    events.EventJobTerminal,
		JobID:   jobID,
		Message: "job completed",
	})

A full publish never blocks a slow or absent subscriber: Publish enqueues
onto the broker's own buffered channel, and a subscriber whose own buffer is
full simply misses the event rather than stalling the broadcast loop.

# Integration points

This package integrates with:

  - pkg/registry: publishes job lifecycle and stage transition events
  - pkg/retention: publishes artifact expiry events
  - cmd/medgenomics: could stream events to CLI/API clients in the future

# See also

  - pkg/registry for the job state machine that emits most events
  - pkg/retention for the ticker-driven artifact expiry that emits
    artifact_deleted
*/
package events
