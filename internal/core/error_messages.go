package core

// error_messages.go maps errors to user-friendly messages with support codes.
//
// Classified errors (*Error) are mapped by kind. Anything else falls back to
// case-insensitive pattern matching on the error text; the first matching
// pattern wins, so specific patterns come before general ones.
//
// Codes:
//
//	ALR001 - Missing region code      ALR002 - Invalid region code
//	ALR003 - Missing message          FILE001 - File not found
//	FILE002 - File could not be opened
//	FILE003 - File could not be read  DB001 - Storage failure
//	Q001 - Queue failure              UPL002 - Too many imports
//	UPL004 - Request cancelled        UPL005 - Request timeout
//	ERR000 - Unknown error

import (
	"errors"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var kindMessages = map[ErrorKind]UserMessage{
	KindMissingRegionCode: {
		Message: "Missing region code",
		Action:  "Provide a 5-digit region code in the request",
		Code:    "ALR001",
	},
	KindInvalidRegionCode: {
		Message: "Invalid region code",
		Action:  "The region code must be exactly 5 digits",
		Code:    "ALR002",
	},
	KindMissingMessage: {
		Message: "Missing message",
		Action:  "Provide the alert text in the message field",
		Code:    "ALR003",
	},
	KindNotFound: {
		Message: "File not found",
		Action:  "Check the path and file permissions",
		Code:    "FILE001",
	},
	KindOpen: {
		Message: "File could not be opened",
		Action:  "Check that the file is not locked by another program",
		Code:    "FILE002",
	},
	KindRead: {
		Message: "File could not be read",
		Action:  "Save the file again as UTF-8 CSV and retry",
		Code:    "FILE003",
	},
	KindPersistence: {
		Message: "Storage operation failed",
		Action:  "No changes were saved. Please try again",
		Code:    "DB001",
	},
	KindPublish: {
		Message: "Notifications could not be queued",
		Action:  "Some recipients may not be notified. Please retry the alert",
		Code:    "Q001",
	},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "System busy: too many imports in progress",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "UPL005",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a UserMessage. A nil error maps to the zero value.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var e *Error
	if errors.As(err, &e) {
		if msg, ok := kindMessages[e.Kind]; ok {
			return msg
		}
	}

	text := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(text, p.pattern) {
			return p.msg
		}
	}
	return defaultMessage
}
