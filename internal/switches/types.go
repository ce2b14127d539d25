package switches

import (
	"fmt"
	"maps"
	"regexp"
	"time"
)

// State is the boolean state of a switch.
type State string

// Valid switch states.
const (
	StateOn  State = "on"
	StateOff State = "off"
)

// DefaultState is used for a switch with no usable persisted record.
const DefaultState = StateOff

// Valid reports whether s is on or off.
func (s State) Valid() bool {
	return s == StateOn || s == StateOff
}

// Toggled returns the opposite state.
func (s State) Toggled() State {
	if s == StateOn {
		return StateOff
	}
	return StateOn
}

// AttrLastTriggeredAt is injected into response attributes and may not be
// supplied by callers.
const AttrLastTriggeredAt = "last_triggered_at"

// TimestampLayout renders timestamps with microseconds and a numeric UTC offset.
const TimestampLayout = "2006-01-02T15:04:05.000000-07:00"

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ValidID reports whether id is a legal switch id.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Attributes holds caller-supplied metadata. Values are string, float64 or bool.
type Attributes map[string]any

// Clone returns a shallow copy. Values are scalars so this is a full copy.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	maps.Copy(out, a)
	return out
}

// Merge returns a copy of a with every key of update overwriting.
func (a Attributes) Merge(update Attributes) Attributes {
	out := a.Clone()
	maps.Copy(out, update)
	return out
}

// ValidateAttributes rejects reserved keys and non-scalar values.
// Integers are accepted and normalised by encoding/json on the way in.
func ValidateAttributes(a Attributes) error {
	for k, v := range a {
		if k == AttrLastTriggeredAt {
			return &AttributeError{Key: k, Reason: "reserved attribute"}
		}
		if k == "" {
			return &AttributeError{Key: k, Reason: "empty attribute name"}
		}
		switch v.(type) {
		case string, bool, float64, float32, int, int64:
		default:
			return &AttributeError{Key: k, Reason: "value must be a string, number or boolean"}
		}
	}
	return nil
}

// Definition declares one switch at configuration time.
type Definition struct {
	ID   string
	Name string
}

// Switch is a snapshot of one switch entity.
type Switch struct {
	ID              string
	Name            string
	State           State
	Attributes      Attributes
	LastTriggeredAt *time.Time
}

// DeepCopy returns a copy sharing no mutable memory with s.
func (s Switch) DeepCopy() Switch {
	out := s
	out.Attributes = s.Attributes.Clone()
	if s.LastTriggeredAt != nil {
		t := *s.LastTriggeredAt
		out.LastTriggeredAt = &t
	}
	return out
}

// IsOn reports whether the switch is on.
func (s Switch) IsOn() bool {
	return s.State == StateOn
}

// ResponseAttributes returns the merged attributes with last_triggered_at
// injected when the switch has been triggered.
func (s Switch) ResponseAttributes() Attributes {
	out := s.Attributes.Clone()
	if s.LastTriggeredAt != nil {
		out[AttrLastTriggeredAt] = FormatTimestamp(*s.LastTriggeredAt)
	}
	return out
}

// Record returns the persisted form of s.
func (s Switch) Record() Record {
	c := s.DeepCopy()
	return Record{
		ID:              c.ID,
		State:           c.State,
		Attributes:      c.Attributes,
		LastTriggeredAt: c.LastTriggeredAt,
	}
}

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Record is the durable layout of one switch, keyed by switch id.
type Record struct {
	ID              string     `json:"switch_id"`
	State           State      `json:"state"`
	Attributes      Attributes `json:"attributes"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
}

// Validate checks a decoded record.
func (r Record) Validate() error {
	if !ValidID(r.ID) {
		return fmt.Errorf("invalid switch id %q", r.ID)
	}
	if !r.State.Valid() {
		return fmt.Errorf("switch %s: %w: %q", r.ID, ErrInvalidState, r.State)
	}
	if err := ValidateAttributes(r.Attributes); err != nil {
		return fmt.Errorf("switch %s: %w", r.ID, err)
	}
	return nil
}
