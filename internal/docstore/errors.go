package docstore

import "errors"

var (
	// ErrNotFound is returned when a referenced document is absent.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrPermissionDenied is returned when a server-side rule rejects the operation.
	ErrPermissionDenied = errors.New("docstore: permission denied")
	// ErrUnavailable marks transient network or backend failures.
	ErrUnavailable = errors.New("docstore: unavailable")
	// ErrConflict is returned when a conditional mutation finds the document
	// in the wrong state: a create over an existing document or a delete of
	// a missing one.
	ErrConflict = errors.New("docstore: precondition failed")
	// ErrInvalidCursor is returned for a pagination token that does not decode.
	ErrInvalidCursor = errors.New("docstore: invalid cursor")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("docstore: store closed")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsPermissionDenied(err error) bool { return errors.Is(err, ErrPermissionDenied) }

func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
