package route

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per failure class. Every typed error below matches
// its sentinel with errors.Is.
var (
	ErrValidation    = errors.New("invalid route configuration")
	ErrGeometry      = errors.New("route geometry cannot be built")
	ErrConfiguration = errors.New("unknown component name")
)

// noStep marks an error that is not tied to a step directive.
const noStep = -1

// ValidationError reports a bad step directive or port.
type ValidationError struct {
	Route string // route name, may be empty
	Step  int    // step index, -1 when not tied to a step
	Err   error
}

func (e *ValidationError) Error() string {
	return formatError("validation", e.Route, e.Step, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// GeometryError reports geometry that cannot be realised: handles that do not
// fit, reversals, degenerate placements and self-intersections.
type GeometryError struct {
	Route string
	Step  int
	Err   error
}

func (e *GeometryError) Error() string {
	return formatError("geometry", e.Route, e.Step, e.Err)
}

func (e *GeometryError) Unwrap() error { return e.Err }

// Is matches ErrGeometry.
func (e *GeometryError) Is(target error) bool { return target == ErrGeometry }

// ConfigurationError reports a bend, connector or cross-section name that is
// not registered.
type ConfigurationError struct {
	Route string
	Kind  string // "bend", "connector" or "cross-section"
	Name  string
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("configuration: unknown %s %q", e.Kind, e.Name)
	if e.Route != "" {
		msg = fmt.Sprintf("route %s: %s", e.Route, msg)
	}
	return msg
}

// Is matches ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

func formatError(class, route string, step int, err error) string {
	msg := class
	if route != "" {
		msg = fmt.Sprintf("route %s: %s", route, msg)
	}
	if step >= 0 {
		msg = fmt.Sprintf("%s (step %d)", msg, step)
	}
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return msg
}

func newValidationError(route string, step int, format string, args ...any) *ValidationError {
	return &ValidationError{Route: route, Step: step, Err: fmt.Errorf(format, args...)}
}

func newGeometryError(route string, step int, format string, args ...any) *GeometryError {
	return &GeometryError{Route: route, Step: step, Err: fmt.Errorf(format, args...)}
}

// IsValidationError reports whether err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsGeometryError reports whether err is or wraps a GeometryError.
func IsGeometryError(err error) bool {
	var ge *GeometryError
	return errors.As(err, &ge)
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// StepIndex returns the step index carried by a routing error, or -1.
func StepIndex(err error) int {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Step
	}
	var ge *GeometryError
	if errors.As(err, &ge) {
		return ge.Step
	}
	return noStep
}
