package orchestrator

import "sync"

// subscriberBufferSize is the channel buffer for each progress subscriber.
// Events are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// Event kinds published for a job.
const (
	EventLog   = "log"
	EventStage = "stage"
)

// Event is one progress notification for a job.
type Event struct {
	Kind string `json:"kind"`
	Seq  int    `json:"seq,omitempty"`
	Data string `json:"data"`
}

// Broker fans out per-job progress events to subscribers. It is safe for
// concurrent use.
//
// A topic exists only while it has subscribers. Subscribing to a job that has
// already finished yields a channel that never receives; callers check the
// job's status after subscribing.
type Broker struct {
	mu     sync.Mutex
	topics map[string]map[int]chan Event
	nextID int
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{topics: make(map[string]map[int]chan Event)}
}

// Subscribe returns a channel of events for jobID and an unsubscribe
// function. The channel is closed by Close or by unsubscribing.
func (b *Broker) Subscribe(jobID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[jobID]
	if !ok {
		subs = make(map[int]chan Event)
		b.topics[jobID] = subs
	}
	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBufferSize)
	subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs, ok := b.topics[jobID]
		if !ok {
			return
		}
		if ch, ok := subs[id]; ok {
			delete(subs, id)
			close(ch)
		}
		if len(subs) == 0 {
			delete(b.topics, jobID)
		}
	}
}

// Publish delivers ev to every subscriber of jobID without blocking.
func (b *Broker) Publish(jobID string, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.topics[jobID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close ends the stream for jobID, closing every subscriber's channel.
func (b *Broker) Close(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.topics[jobID] {
		close(ch)
	}
	delete(b.topics, jobID)
}

// Topics returns the number of jobs with live subscribers.
func (b *Broker) Topics() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics)
}
