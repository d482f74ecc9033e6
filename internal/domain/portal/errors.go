package portal

import "errors"

// Kind classifies a failed operation. Lookup misses are kinds of their own
// so callers can render a "not found" state instead of a failure.
type Kind int

const (
	KindUnexpected Kind = iota
	KindMissingFields
	KindEmailTaken
	KindInvalidAccount
	KindEmailNotFound
	KindPatientNotFound
	KindUserNotFound
	KindRecordNotFound
	KindTimeout
)

var kindNames = map[Kind]string{
	KindUnexpected:      "unexpected_failure",
	KindMissingFields:   "missing_fields",
	KindEmailTaken:      "email_taken",
	KindInvalidAccount:  "invalid_account",
	KindEmailNotFound:   "email_not_found",
	KindPatientNotFound: "patient_not_found",
	KindUserNotFound:    "user_not_found",
	KindRecordNotFound:  "record_not_found",
	KindTimeout:         "timeout",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error is returned by every Service operation. Message is safe to show to
// the caller; Err holds the underlying cause and is only logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// KindOf reports the Kind of err. Errors that did not come from the portal
// are unexpected.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}
