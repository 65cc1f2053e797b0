package engine

import (
	"errors"
	"fmt"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
)

// CommitError reports a commit that stopped part way.
//
// Property writes cannot be undone, so the capabilities in Committed stay
// applied and clean while Pending keeps its dirty flags for the next commit.
// The error unwraps to the cause in Err and, when Code is set, to a
// caps.Error carrying that code.
type CommitError struct {
	// Cap is the capability the commit stopped at.
	Cap caps.ID

	// Code classifies the failure: PROPERTY_REJECTED when the encoder
	// declined the write, CONFIG_ERROR when the payload could not be built,
	// empty when the commit was cancelled.
	Code caps.Code

	// Committed lists the capabilities cleared before the failure, in
	// commit order.
	Committed []caps.ID

	// Pending lists the capabilities still dirty, starting with Cap.
	Pending []caps.ID

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *CommitError) Error() string {
	var head string
	switch e.Code {
	case "":
		head = fmt.Sprintf("commit stopped at %s", e.Cap)
	case caps.CodePropertyRejected:
		head = fmt.Sprintf("%s: firmware rejected %s", e.Code, e.Cap)
	default:
		head = fmt.Sprintf("%s: cannot encode %s", e.Code, e.Cap)
	}
	return fmt.Sprintf("%s: %v (committed=%d, pending=%d)", head, e.Err, len(e.Committed), len(e.Pending))
}

// Unwrap exposes the taxonomy error, if any, and the underlying error.
func (e *CommitError) Unwrap() []error {
	if e.Code == "" {
		return []error{e.Err}
	}
	return []error{
		&caps.Error{Code: e.Code, Cap: e.Cap, Message: fmt.Sprint(e.Err)},
		e.Err,
	}
}

// IsCommitError reports whether err is a partial commit.
// Uses errors.As to handle wrapped errors.
func IsCommitError(err error) bool {
	var ce *CommitError
	return errors.As(err, &ce)
}

func closedError(id string) *caps.Error {
	e := caps.Errorf(caps.CodeSessionClosed, caps.InvalidID, "session %s is closed", id)
	e.Details = map[string]string{"session": id}
	return e
}

func cycleError(id caps.ID, stuck []caps.ID) *caps.Error {
	e := caps.Errorf(caps.CodeDependencyCycle, id, "propagation could not schedule %v", stuck)
	e.Details = map[string]string{"stuck": fmt.Sprint(stuck)}
	return e
}
