package service

import (
	"log/slog"
	"sync"

	"github.com/victorpicon/Backend-Ai-Powered-Code-Review/model"
)

// subscriberBuffer bounds each observer channel. Two snapshots cover the
// longest transition sequence, the rest absorbs slow readers.
const subscriberBuffer = 8

// StatusBroadcaster fans out submission state snapshots to all observers
// currently subscribed to that submission id. Delivery is best effort: a
// slow observer misses intermediate snapshots but never blocks Publish or
// the other observers.
type StatusBroadcaster struct {
	mu     sync.Mutex
	subs   map[string]map[int]chan model.Submission
	nextID int
}

func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		subs: make(map[string]map[int]chan model.Submission),
	}
}

// Subscribe registers an observer for one submission id. The returned
// channel is closed after a terminal snapshot is delivered, or when the
// cancel func is called. Only snapshots published after the subscription
// are delivered; callers wanting the current state fetch it from the store
// first.
func (b *StatusBroadcaster) Subscribe(submissionID string) (<-chan model.Submission, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan model.Submission, subscriberBuffer)
	b.nextID++
	id := b.nextID

	if b.subs[submissionID] == nil {
		b.subs[submissionID] = make(map[int]chan model.Submission)
	}
	b.subs[submissionID][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if observers, ok := b.subs[submissionID]; ok {
			if c, ok := observers[id]; ok {
				delete(observers, id)
				close(c)
			}
			if len(observers) == 0 {
				delete(b.subs, submissionID)
			}
		}
	}
	return ch, cancel
}

// Publish delivers the snapshot to every current observer of its
// submission id. A terminal snapshot ends all subscriptions for that id
// after delivery.
func (b *StatusBroadcaster) Publish(snapshot model.Submission) {
	b.mu.Lock()
	defer b.mu.Unlock()

	observers := b.subs[snapshot.ID]
	for _, ch := range observers {
		select {
		case ch <- snapshot:
		default:
			slog.Warn("dropping status snapshot for slow subscriber",
				"submission_id", snapshot.ID,
				"status", snapshot.Status,
			)
		}
	}

	if model.IsTerminal(snapshot.Status) && len(observers) > 0 {
		for _, ch := range observers {
			close(ch)
		}
		delete(b.subs, snapshot.ID)
	}
}

// SubscriberCount returns the number of observers for a submission id
func (b *StatusBroadcaster) SubscriberCount(submissionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[submissionID])
}
