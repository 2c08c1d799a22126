package qctask

import (
	"fmt"
)

// QCError defines the error type of the qctask package. QCError satisfies the error interface and can be
// used safely with other error handlers
type QCError struct {
	Err string `json:"errorChannel"`
	// contextErr passes the actual error as part of the error message
	contextErr error
}

// Error is used for implementing the error interface, and for creating
// a proper error string
func (e *QCError) Error() string {
	if e.contextErr != nil {
		return fmt.Sprintf("%s: %s", e.Err, e.contextErr.Error())
	}

	return e.Err
}

// Context is used for creating a new instance of the error with the contextual error attached
func (e *QCError) Context(err error) *QCError {
	ctxErr := new(QCError)
	*ctxErr = *e
	ctxErr.contextErr = err

	return ctxErr
}

// Unwrap returns the contextual error
func (e *QCError) Unwrap() error {
	return e.contextErr
}

// Is reports whether target is the same sentinel, regardless of the attached context
func (e *QCError) Is(target error) bool {
	t, ok := target.(*QCError)
	if !ok {
		return false
	}
	return t.Err == e.Err
}

func newErr(msg string) *QCError {
	e := new(QCError)
	e.Err = msg
	return e
}

// ErrCreateClient unable to create transport or repository client
var ErrCreateClient = newErr("unable to create client")

// ErrPayloadMarshal unable to marshal payload
var ErrPayloadMarshal = newErr("unable to marshal payload")

// ErrSend unable to send message
var ErrSend = newErr("unable to send message")

// ErrUnableToDelete unable to delete item
var ErrUnableToDelete = newErr("unable to delete item in queue")

// ErrStopped transport was already stopped
var ErrStopped = newErr("transport stopped")

// ErrInputNotFound no payload bound to the requested name
var ErrInputNotFound = newErr("input not found")

// ErrDecode unable to decode payload
var ErrDecode = newErr("unable to decode payload")

// ErrAlreadyPublished an object of the same name is already published
var ErrAlreadyPublished = newErr("object already published")

// ErrNotPublished object is not published
var ErrNotPublished = newErr("object not published")

// ErrStore unable to store monitor objects
var ErrStore = newErr("unable to store monitor objects")

// ErrTaskFailed task lifecycle hook returned an error
var ErrTaskFailed = newErr("task failed")

// ErrUnknownTask no task registered under the requested class name
var ErrUnknownTask = newErr("unknown task class")

// ErrInvalidConfig configuration is not valid
var ErrInvalidConfig = newErr("invalid configuration")
