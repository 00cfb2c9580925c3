package extraction_job

import (
	"fmt"
)

// ErrorKind classifies why an extraction job (or a call into the controller) failed.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindInvalidState
	KindTransport
	KindServer
	KindServerUnparseable
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindInvalidState:
		return "InvalidStateError"
	case KindTransport:
		return "TransportError"
	case KindServer:
		return "ServerError"
	case KindServerUnparseable:
		return "ServerError(Unparseable)"
	case KindCancelled:
		return "Cancelled"
	default:
		return "UnknownError"
	}
}

// Messages surfaced when the server gives us nothing better to show.
const (
	MsgTransportFailure = "Cannot reach extraction service."
	MsgServerFailure    = "Error connecting to the extraction server."
	MsgCancelled        = "Extraction cancelled."
)

// JobError is the single error type the controller reports.
// Status is the HTTP status for server errors, 0 otherwise.
type JobError struct {
	Kind    ErrorKind
	Message string
	Status  int
	Cause   error
}

func (e *JobError) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *JobError) Unwrap() error {
	return e.Cause
}

// Is matches the kind-only sentinels below, so callers can write
// errors.Is(err, ErrInvalidState).
func (e *JobError) Is(target error) bool {
	t, ok := target.(*JobError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Cause == nil && t.Kind == e.Kind
}

var (
	ErrValidation        = &JobError{Kind: KindValidation}
	ErrInvalidState      = &JobError{Kind: KindInvalidState}
	ErrTransport         = &JobError{Kind: KindTransport}
	ErrServer            = &JobError{Kind: KindServer}
	ErrServerUnparseable = &JobError{Kind: KindServerUnparseable}
	ErrCancelled         = &JobError{Kind: KindCancelled}
)

func newJobError(kind ErrorKind, message string, cause error) *JobError {
	return &JobError{Kind: kind, Message: message, Cause: cause}
}
