package switches

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action is a webhook action.
type Action string

// Recognised actions.
const (
	ActionOn     Action = "on"
	ActionOff    Action = "off"
	ActionToggle Action = "toggle"
	ActionStatus Action = "status"
)

// ParseAction validates an action string. Matching is exact.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionOn, ActionOff, ActionToggle, ActionStatus:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

// Mutating reports whether the action changes the switch.
func (a Action) Mutating() bool {
	return a != ActionStatus
}

// Result is the post-action snapshot returned to the caller.
type Result struct {
	Action Action
	Switch Switch
}

// StateChanged is emitted for every committed mutating action, including
// on/off actions that leave the state as it was.
type StateChanged struct {
	ID              string
	SwitchID        string
	Action          Action
	OldState        State
	NewState        State
	Attributes      Attributes
	LastTriggeredAt time.Time
	Timestamp       time.Time
}

// EventPublisher receives state-changed events. Publish must not block;
// delivery is best effort and never affects the action's outcome.
type EventPublisher interface {
	Publish(StateChanged)
}

// Dispatcher applies webhook actions to the Store.
type Dispatcher struct {
	store  *Store
	events EventPublisher
	now    func() time.Time
}

// NewDispatcher creates a dispatcher. events may be nil.
func NewDispatcher(store *Store, events EventPublisher) *Dispatcher {
	return &Dispatcher{
		store:  store,
		events: events,
		now:    time.Now,
	}
}

// SetClock replaces the clock used for last_triggered_at.
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

// Dispatch runs action against switch id.
//
// The action is validated before the switch is looked up, so an unknown
// action returns ErrUnknownAction even for an unknown id.
//
// Returns:
//   - Result: the full post-action snapshot
//   - error: ErrUnknownAction, ErrInvalidAttribute, ErrNotFound or ErrPersistFailure
func (d *Dispatcher) Dispatch(ctx context.Context, id, action string, attrs Attributes) (Result, error) {
	a, err := ParseAction(action)
	if err != nil {
		return Result{}, err
	}
	if err := ValidateAttributes(attrs); err != nil {
		return Result{}, err
	}

	if !a.Mutating() {
		sw, ok := d.store.Get(id)
		if !ok {
			return Result{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Result{Action: a, Switch: sw}, nil
	}

	update := normalise(attrs)
	sw, err := d.store.ApplyNotify(ctx, id, func(sw Switch) Switch {
		switch a {
		case ActionOn:
			sw.State = StateOn
		case ActionOff:
			sw.State = StateOff
		case ActionToggle:
			sw.State = sw.State.Toggled()
		}
		sw.Attributes = sw.Attributes.Merge(update)
		// Stamped under the lock so timestamps follow apply order.
		at := d.now().UTC()
		sw.LastTriggeredAt = &at
		return sw
	}, func(prev, next Switch) {
		d.emit(a, prev, next)
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Action: a, Switch: sw}, nil
}

func (d *Dispatcher) emit(a Action, prev, next Switch) {
	if d.events == nil {
		return
	}
	d.events.Publish(StateChanged{
		ID:              uuid.NewString(),
		SwitchID:        next.ID,
		Action:          a,
		OldState:        prev.State,
		NewState:        next.State,
		Attributes:      next.Attributes.Clone(),
		LastTriggeredAt: *next.LastTriggeredAt,
		Timestamp:       d.now().UTC(),
	})
}

// normalise converts integer values to float64 so stored attributes have
// the same types whether they came from JSON or from Go callers.
func normalise(attrs Attributes) Attributes {
	out := make(Attributes, len(attrs))
	for k, v := range attrs {
		switch n := v.(type) {
		case int:
			out[k] = float64(n)
		case int64:
			out[k] = float64(n)
		case float32:
			out[k] = float64(n)
		default:
			out[k] = v
		}
	}
	return out
}
