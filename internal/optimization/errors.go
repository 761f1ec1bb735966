package optimization

import "fmt"

// ValidationError reports a malformed parameter definition, a configuration
// that fails validation, or a contract violation detected at construction or
// encode/decode time. It is always surfaced synchronously, never deferred.
type ValidationError struct {
	// Field is the parameter name or config path the error refers to, if any.
	Field string
	// Message describes what was invalid.
	Message string
}

// Error returns the string representation of the error.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation: %s", e.Message)
}

// NewValidationError creates a validation error for the given field.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsValidationError checks if an error is of type ValidationError.
func IsValidationError(err error) (*ValidationError, bool) {
	if e, ok := err.(*ValidationError); ok {
		return e, true
	}
	return nil, false
}

// DependencyUnavailableError reports that an optimization backend required
// by a specific strategy variant is not available. It is raised at strategy
// construction time, never mid-run, and carries remediation text so callers
// can act on it.
type DependencyUnavailableError struct {
	// Backend is the name of the missing backend.
	Backend string
	// Remediation tells the caller how to make the backend available.
	Remediation string
}

// Error returns the string representation of the error.
func (e *DependencyUnavailableError) Error() string {
	if e.Remediation != "" {
		return fmt.Sprintf("backend %q unavailable: %s", e.Backend, e.Remediation)
	}
	return fmt.Sprintf("backend %q unavailable", e.Backend)
}

// IsDependencyUnavailable checks if an error is of type DependencyUnavailableError.
func IsDependencyUnavailable(err error) (*DependencyUnavailableError, bool) {
	if e, ok := err.(*DependencyUnavailableError); ok {
		return e, true
	}
	return nil, false
}

// ExhaustedError reports that a composite strategy was asked after all of its
// members or stages converged. It signals normal run termination, not a defect;
// the Runner converts it into an early stop.
type ExhaustedError struct {
	// Strategy identifies the composite that ran out of proposals.
	Strategy string
}

// Error returns the string representation of the error.
func (e *ExhaustedError) Error() string {
	if e.Strategy != "" {
		return fmt.Sprintf("%s: all strategies exhausted", e.Strategy)
	}
	return "all strategies exhausted"
}

// IsExhausted checks if an error is of type ExhaustedError.
func IsExhausted(err error) (*ExhaustedError, bool) {
	if e, ok := err.(*ExhaustedError); ok {
		return e, true
	}
	return nil, false
}
