package errors

import "fmt"

var (
	// ErrUnknownIdentity means the identity directory has no account for
	// the given phone number.
	ErrUnknownIdentity = fmt.Errorf("unknown identity")

	// ErrAlreadyExists marks an idempotent no-op, not a failure.
	ErrAlreadyExists = fmt.Errorf("already exists")

	ErrNotFound = fmt.Errorf("not found")

	// ErrPartialWrite means the recipient-mailbox write failed after the
	// sender-mailbox write succeeded. The sender copy is rolled back.
	ErrPartialWrite = fmt.Errorf("partial mailbox write")

	// ErrCompensationFailed means the rollback delete itself failed,
	// leaving a detectable orphan document in the sender mailbox.
	ErrCompensationFailed = fmt.Errorf("mailbox compensation failed")

	// ErrUpstream wraps identity-directory or document-store faults that
	// are opaque to this layer.
	ErrUpstream = fmt.Errorf("upstream failure")

	ErrWorkerPanic = fmt.Errorf("worker panic")
)
