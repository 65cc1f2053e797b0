package caps

import (
	"errors"
	"fmt"
)

// Code categorizes resolver errors.
type Code string

const (
	// CodeConfigError indicates a malformed or ambiguous table.
	CodeConfigError Code = "CONFIG_ERROR"

	// CodeUnknownCapability indicates the id is absent for the session's
	// codec and domain.
	CodeUnknownCapability Code = "UNKNOWN_CAPABILITY"

	// CodeOutOfRange indicates a value outside live bounds, off step, or not
	// a member of the menu.
	CodeOutOfRange Code = "OUT_OF_RANGE"

	// CodeReadOnly indicates the capability has no set strategy.
	CodeReadOnly Code = "READ_ONLY"

	// CodeNotDynamicallyAllowed indicates a set while streaming on a
	// capability without DYNAMIC_ALLOWED.
	CodeNotDynamicallyAllowed Code = "NOT_DYNAMICALLY_ALLOWED"

	// CodeDependencyCycle indicates a capability was revisited during one
	// propagation pass.
	CodeDependencyCycle Code = "DEPENDENCY_CYCLE"

	// CodePropertyRejected indicates the firmware declined a property.
	CodePropertyRejected Code = "PROPERTY_REJECTED"

	// CodeSessionLimit indicates the platform's session limit is reached.
	CodeSessionLimit Code = "SESSION_LIMIT"

	// CodeSessionClosed indicates an operation on a closed session.
	CodeSessionClosed Code = "SESSION_CLOSED"
)

// Error is the single error type surfaced by the resolver.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Cap is the capability involved, InvalidID when none.
	Cap ID

	// Message is a human-readable description.
	Message string

	// Details contains additional context.
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cap != InvalidID {
		return fmt.Sprintf("%s: %s (cap=%s)", e.Code, e.Message, e.Cap)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf builds an Error with a formatted message.
func Errorf(code Code, cap ID, format string, args ...any) *Error {
	return &Error{Code: code, Cap: cap, Message: fmt.Sprintf(format, args...)}
}

// IsCode reports whether err, or anything it wraps, is an Error with code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of the first Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
