package events

import (
	"context"
	"sync"
)

// Recorder keeps published events in memory. Tests use it to assert on
// side effects.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

func (r *Recorder) Publish(_ context.Context, topic, key string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev := New(data, topic)
	ev.ID = key
	r.Events = append(r.Events, ev)
	return nil
}

func (r *Recorder) Close() {}

func (r *Recorder) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Events))
	for _, ev := range r.Events {
		out = append(out, ev.Topic)
	}
	return out
}
