package session

import "errors"

var (
	// ErrNotFound means no session with the given id exists, or its
	// in-memory buffer was lost and the session cannot be completed.
	ErrNotFound = errors.New("session not found")

	// ErrConflict means the operation is invalid for the session's
	// current state, such as ingesting into a finished session.
	ErrConflict = errors.New("session already finished")

	// ErrBadRequest means the request payload could not be decoded.
	ErrBadRequest = errors.New("invalid request")
)
