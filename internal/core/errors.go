package core

import (
	"errors"
	"strings"
)

// ErrorKind classifies fatal failures so callers can branch without string matching.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindMissingRegionCode
	KindInvalidRegionCode
	KindMissingMessage
	KindNotFound
	KindOpen
	KindRead
	KindPersistence
	KindPublish
)

func (k ErrorKind) String() string {
	switch k {
	case KindMissingRegionCode:
		return "missing region code"
	case KindInvalidRegionCode:
		return "invalid region code"
	case KindMissingMessage:
		return "missing message"
	case KindNotFound:
		return "file not found"
	case KindOpen:
		return "open file"
	case KindRead:
		return "read file"
	case KindPersistence:
		return "persistence failure"
	case KindPublish:
		return "publish notification"
	default:
		return "unknown error"
	}
}

// Error is a classified failure. Op names the operation that failed, Subject
// the file path or region code involved, and Err the underlying cause.
type Error struct {
	Kind    ErrorKind
	Op      string
	Subject string
	Err     error
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrMissingRegionCode = &Error{Kind: KindMissingRegionCode}
	ErrInvalidRegionCode = &Error{Kind: KindInvalidRegionCode}
	ErrMissingMessage    = &Error{Kind: KindMissingMessage}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrOpen              = &Error{Kind: KindOpen}
	ErrRead              = &Error{Kind: KindRead}
	ErrPersistence       = &Error{Kind: KindPersistence}
	ErrPublish           = &Error{Kind: KindPublish}
)

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		if e.Subject != "" {
			b.WriteString(" ")
			b.WriteString(e.Subject)
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a bare sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Subject == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// PersistenceError wraps a storage failure.
func PersistenceError(op string, err error) error {
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}
