package switches

import (
	"context"
	"errors"
	"sync"
)

// memRepository is an in-memory Repository that keeps an ordered log of
// every saved record.
type memRepository struct {
	mu      sync.Mutex
	records map[string]Record
	saves   []Record
	loadErr error
	saveErr error
	closed  bool
}

func newMemRepository() *memRepository {
	return &memRepository{records: make(map[string]Record)}
}

func (r *memRepository) LoadAll(context.Context) (map[string]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Record, len(r.records))
	for id, rec := range r.records {
		out[id] = rec
	}
	return out, r.loadErr
}

func (r *memRepository) Save(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.records[rec.ID] = rec
	r.saves = append(r.saves, rec)
	return nil
}

func (r *memRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *memRepository) setSaveErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveErr = err
}

func (r *memRepository) saveLog() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.saves...)
}

var errDiskFull = errors.New("disk full")

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []StateChanged
}

func (p *recordingPublisher) Publish(ev StateChanged) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) all() []StateChanged {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]StateChanged(nil), p.events...)
}

var testDefs = []Definition{
	{ID: "doorbell", Name: "Doorbell"},
	{ID: "garage_door", Name: "Garage Door"},
}
