package fixture

import (
	"errors"
	"fmt"
)

// ErrResolution matches every *ResolutionError via errors.Is.
var ErrResolution = errors.New("fixture: resolution failed")

// ResolutionKind names what could not be resolved.
type ResolutionKind string

const (
	// KindFixture: a fixture id is not registered.
	KindFixture ResolutionKind = "FIXTURE"
	// KindRegistry: the manager registry service is missing or has the wrong type.
	KindRegistry ResolutionKind = "REGISTRY"
	// KindManager: the named manager is not in the registry.
	KindManager ResolutionKind = "MANAGER"
	// KindFamily: a fixture targets a different store family than the manager,
	// or no strategy exists for the family.
	KindFamily ResolutionKind = "FAMILY"
	// KindCycle: fixture dependencies form a cycle.
	KindCycle ResolutionKind = "CYCLE"
)

// ResolutionError reports a fixture, registry or manager that could not be
// resolved before any store mutation took place.
type ResolutionError struct {
	Kind    ResolutionKind
	Name    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("%s %q: %s", e.Kind, e.Name, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ResolutionError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrResolution) match.
func (e *ResolutionError) Is(target error) bool { return target == ErrResolution }

// IsResolutionError reports whether err is a ResolutionError of kind.
// Uses errors.As to handle wrapped errors.
func IsResolutionError(err error, kind ResolutionKind) bool {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re.Kind == kind
	}
	return false
}

func resolutionError(kind ResolutionKind, name, msg string, err error) *ResolutionError {
	return &ResolutionError{Kind: kind, Name: name, Message: msg, Err: err}
}

// NewResolutionError builds a ResolutionError for callers outside this package.
func NewResolutionError(kind ResolutionKind, name, msg string, err error) *ResolutionError {
	return resolutionError(kind, name, msg, err)
}
