package switches

import "errors"

// Domain errors. Use errors.Is to classify them.
var (
	// ErrNotFound is returned for a switch id that was not configured.
	ErrNotFound = errors.New("switches: switch not found")

	// ErrUnknownAction is returned for an action outside on/off/toggle/status.
	ErrUnknownAction = errors.New("switches: unknown action")

	// ErrPersistFailure is returned when the durable write fails.
	// The switch keeps its previous state.
	ErrPersistFailure = errors.New("switches: persisting state failed")

	// ErrCorruptState marks persisted records that could not be decoded.
	// Repositories join one error per bad record under it.
	ErrCorruptState = errors.New("switches: corrupt persisted state")

	// ErrInvalidState is returned when a mutation produces a state outside on/off.
	ErrInvalidState = errors.New("switches: invalid state")

	// ErrInvalidAttribute is returned for a non-scalar or reserved attribute.
	ErrInvalidAttribute = errors.New("switches: invalid attribute")

	// ErrInvalidDefinition is returned by NewStore for a bad or duplicate id.
	ErrInvalidDefinition = errors.New("switches: invalid switch definition")
)

// AttributeError identifies the attribute key that failed validation.
type AttributeError struct {
	Key    string
	Reason string
}

func (e *AttributeError) Error() string {
	return "switches: attribute " + e.Key + ": " + e.Reason
}

// Unwrap lets errors.Is match ErrInvalidAttribute.
func (e *AttributeError) Unwrap() error {
	return ErrInvalidAttribute
}
