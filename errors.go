package privchat

import (
	"errors"
	"fmt"
)

// ============================================================================
// Error Taxonomy
// ============================================================================

// ErrSendRejected is returned by a Transport when a frame is submitted while
// the connection is in any state other than open. The caller is expected to
// treat it as a disabled affordance, not a fault.
var ErrSendRejected = errors.New("send rejected: connection not open")

// ErrNotConnected is returned when an operation requires a live connection
// and none has been established yet.
var ErrNotConnected = errors.New("not connected")

// ErrNoSelection is returned when an operation targets the selected dialog
// and no dialog is selected.
var ErrNoSelection = errors.New("no dialog selected")

// FetchError describes a failed auxiliary HTTP fetch (self info, message
// backlog, dialog directory, file upload). Fetch failures never tear the
// session down; the affected data is left untouched.
type FetchError struct {
	Op     string // method and path, e.g. "GET /messages/"
	Status int    // HTTP status, 0 when the request never completed
	Reason string
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Status, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}
