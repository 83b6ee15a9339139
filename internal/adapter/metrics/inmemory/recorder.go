// Package inmemory is a small ops-counter recorder surfaced on the kpi
// endpoint.
package inmemory

import "sync"

type Recorder struct {
	mu              sync.Mutex
	requestsByClass map[string]int64
	queuedByVerb    map[string]int64
	ticks           int64
	eventsEmitted   int64
	waitersReleased int64
}

func NewRecorder() *Recorder {
	return &Recorder{
		requestsByClass: make(map[string]int64),
		queuedByVerb:    make(map[string]int64),
	}
}

func (r *Recorder) RequestServed(class string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestsByClass[class]++
}

func (r *Recorder) ActionQueued(verb string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queuedByVerb[verb]++
}

func (r *Recorder) TickCompleted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks++
}

func (r *Recorder) EventsEmitted(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.eventsEmitted += int64(n)
}

func (r *Recorder) WaitersReleased(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waitersReleased += int64(n)
}

func (r *Recorder) SnapshotAny() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	requests := make(map[string]int64, len(r.requestsByClass))
	for k, v := range r.requestsByClass {
		requests[k] = v
	}
	queued := make(map[string]int64, len(r.queuedByVerb))
	for k, v := range r.queuedByVerb {
		queued[k] = v
	}
	return map[string]any{
		"requests_by_class": requests,
		"queued_by_verb":    queued,
		"ticks":             r.ticks,
		"events_emitted":    r.eventsEmitted,
		"waiters_released":  r.waitersReleased,
	}
}
