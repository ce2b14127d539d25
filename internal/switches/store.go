package switches

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Logger defines the logging interface used by the Store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Mutation computes the next snapshot from a private copy of the current one.
// ID and Name are restored after it runs; they cannot be changed.
type Mutation func(Switch) Switch

// CommitFunc observes a committed change. It runs while the switch lock is
// held and must not block or call back into the Store for the same switch.
type CommitFunc func(prev, next Switch)

type entry struct {
	mu sync.Mutex
	sw Switch
}

// Store is the in-memory switch map backed by a Repository.
//
// All public methods are thread-safe. Init must complete before the first
// Apply.
type Store struct {
	repo    Repository
	entries map[string]*entry
	ids     []string
	logger  Logger
}

// NewStore builds a Store for the configured switches, all initially off.
// Returns ErrInvalidDefinition for an empty set, a bad id or a duplicate.
func NewStore(repo Repository, defs []Definition) (*Store, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: no switches configured", ErrInvalidDefinition)
	}

	s := &Store{
		repo:    repo,
		entries: make(map[string]*entry, len(defs)),
		ids:     make([]string, 0, len(defs)),
		logger:  noopLogger{},
	}
	for _, d := range defs {
		if !ValidID(d.ID) {
			return nil, fmt.Errorf("%w: id %q", ErrInvalidDefinition, d.ID)
		}
		if _, dup := s.entries[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidDefinition, d.ID)
		}
		s.entries[d.ID] = &entry{sw: Switch{
			ID:         d.ID,
			Name:       d.Name,
			State:      DefaultState,
			Attributes: Attributes{},
		}}
		s.ids = append(s.ids, d.ID)
	}
	sort.Strings(s.ids)
	return s, nil
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// Init restores persisted state.
//
// A configured switch with no record starts off. Corrupt records also
// start off, with a warning, rather than preventing startup. Records for
// switches that are no longer configured are ignored. An unreachable
// backend is returned as an error.
func (s *Store) Init(ctx context.Context) error {
	records, err := s.repo.LoadAll(ctx)
	if err != nil {
		if !errors.Is(err, ErrCorruptState) {
			return fmt.Errorf("loading switch state: %w", err)
		}
		s.logger.Warn("corrupt persisted switch state, affected switches start off", "error", err)
	}

	restored := 0
	for _, id := range s.ids {
		e := s.entries[id]
		rec, ok := records[id]
		if !ok {
			s.logger.Info("no persisted state for switch, starting off", "switch_id", id)
			continue
		}
		if err := rec.Validate(); err != nil {
			s.logger.Warn("invalid persisted record, starting off", "switch_id", id, "error", err)
			continue
		}

		e.mu.Lock()
		e.sw.State = rec.State
		e.sw.Attributes = rec.Attributes.Clone()
		e.sw.LastTriggeredAt = nil
		if rec.LastTriggeredAt != nil {
			t := rec.LastTriggeredAt.UTC()
			e.sw.LastTriggeredAt = &t
		}
		e.mu.Unlock()
		restored++
	}

	for id := range records {
		if _, ok := s.entries[id]; !ok {
			s.logger.Info("ignoring persisted state for unconfigured switch", "switch_id", id)
		}
	}

	s.logger.Info("switch state restored", "configured", len(s.ids), "restored", restored)
	return nil
}

// Get returns a snapshot of the switch. The bool is false for an unknown id.
func (s *Store) Get(id string) (Switch, bool) {
	e, ok := s.entries[id]
	if !ok {
		return Switch{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sw.DeepCopy(), true
}

// List returns snapshots of every switch ordered by id.
func (s *Store) List() []Switch {
	out := make([]Switch, 0, len(s.ids))
	for _, id := range s.ids {
		sw, _ := s.Get(id)
		out = append(out, sw)
	}
	return out
}

// Count returns the number of configured switches.
func (s *Store) Count() int {
	return len(s.ids)
}

// Apply runs m against the switch under its lock and persists the result.
//
// Returns:
//   - Switch: the committed snapshot
//   - error: ErrNotFound, ErrInvalidState, or ErrPersistFailure (state unchanged)
func (s *Store) Apply(ctx context.Context, id string, m Mutation) (Switch, error) {
	return s.ApplyNotify(ctx, id, m, nil)
}

// ApplyNotify is Apply with a CommitFunc invoked after the durable write
// and before the lock is released.
func (s *Store) ApplyNotify(ctx context.Context, id string, m Mutation, committed CommitFunc) (Switch, error) {
	e, ok := s.entries[id]
	if !ok {
		return Switch{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.sw.DeepCopy()
	next := m(e.sw.DeepCopy())
	next.ID = prev.ID
	next.Name = prev.Name
	if next.Attributes == nil {
		next.Attributes = Attributes{}
	}
	if !next.State.Valid() {
		return prev, fmt.Errorf("%w: %q", ErrInvalidState, next.State)
	}

	if err := s.repo.Save(ctx, next.Record()); err != nil {
		s.logger.Error("persisting switch state failed", "switch_id", id, "error", err)
		return prev, fmt.Errorf("%w: %s: %w", ErrPersistFailure, id, err)
	}

	e.sw = next
	if committed != nil {
		committed(prev, next.DeepCopy())
	}
	return next.DeepCopy(), nil
}

// Close writes every switch once more and closes the repository.
func (s *Store) Close(ctx context.Context) error {
	var errs []error
	for _, id := range s.ids {
		e := s.entries[id]
		e.mu.Lock()
		err := s.repo.Save(ctx, e.sw.Record())
		e.mu.Unlock()
		if err != nil {
			errs = append(errs, fmt.Errorf("flushing %s: %w", id, err))
		}
	}
	if err := s.repo.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing repository: %w", err))
	}
	return errors.Join(errs...)
}
