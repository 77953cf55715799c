package core

// error_messages.go maps technical errors onto operator-facing messages
// with support codes.
//
// Codes are grouped by category:
//
//	DB001-DB099    storage constraints and connectivity
//	VAL001-VAL099  row, reference and field validation
//	FILE001-FILE099 upload decoding
//	IMP001-IMP099  import lifecycle and reconciliation
//	RATE001        request throttling
//	ERR000         fallback; check the logs for the technical error
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Storage constraints.
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this key already exists",
			Action:  "Re-run the import; existing books are matched by title",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate entries in your file",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key constraint",
		msg: UserMessage{
			Message: "Referenced record does not exist or is still in use",
			Action:  "Reassign the record's books before deleting it",
			Code:    "DB003",
		},
	},

	// Storage connectivity.
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller batch size or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "record not found",
		msg: UserMessage{
			Message: "Record not found",
			Action:  "Check the id and try again",
			Code:    "DB008",
		},
	},

	// Validation.
	{
		pattern: "missing required columns",
		msg: UserMessage{
			Message: "File is missing required columns",
			Action:  "Include title, first_name, last_name, year, category and level headers",
			Code:    "VAL001",
		},
	},
	{
		pattern: "year must be a valid number",
		msg: UserMessage{
			Message: "Invalid year",
			Action:  "Use a four digit year between 1800 and 2030",
			Code:    "VAL002",
		},
	},
	{
		pattern: "invalid year",
		msg: UserMessage{
			Message: "Invalid year",
			Action:  "Use a four digit year between 1800 and 2030",
			Code:    "VAL002",
		},
	},
	{
		pattern: "missing required field",
		msg: UserMessage{
			Message: "Required field is empty",
			Action:  "Ensure all required columns have values",
			Code:    "VAL003",
		},
	},
	{
		pattern: "category does not exist",
		msg: UserMessage{
			Message: "Unknown award category",
			Action:  "Use the numeric id of an existing category",
			Code:    "VAL004",
		},
	},
	{
		pattern: "award level does not exist",
		msg: UserMessage{
			Message: "Unknown award level",
			Action:  "Use the numeric id of an existing award level",
			Code:    "VAL005",
		},
	},
	{
		pattern: "unknown book field",
		msg: UserMessage{
			Message: "This field cannot be edited",
			Action:  "Edit one of: asin, bibliocommons_id, isbn, page_count, title",
			Code:    "VAL006",
		},
	},
	{
		pattern: "invalid field value",
		msg: UserMessage{
			Message: "The value is not valid for this field",
			Action:  "Correct the value and try again",
			Code:    "VAL007",
		},
	},
	{
		pattern: "title exceeds",
		msg: UserMessage{
			Message: "Title is too long",
			Action:  "Shorten the title to 200 characters or fewer",
			Code:    "VAL008",
		},
	},

	// File decoding.
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid tsv",
		msg: UserMessage{
			Message: "File is not valid tab-separated text",
			Action:  "Export the sheet as tab-separated values",
			Code:    "FILE002",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save file as UTF-8 encoding",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a TSV file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "file appears to be empty",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with a header and data rows",
			Code:    "FILE005",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with a header and data rows",
			Code:    "FILE005",
		},
	},

	// Import lifecycle.
	{
		pattern: "ambiguous match",
		msg: UserMessage{
			Message: "More than one existing record matches this name",
			Action:  "Consolidate the duplicates or import with on_ambiguous=pick_first",
			Code:    "IMP001",
		},
	},
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "Another import is already running",
			Action:  "Please wait for it to finish and try again",
			Code:    "IMP002",
		},
	},
	{
		pattern: "import not found",
		msg: UserMessage{
			Message: "Import not found",
			Action:  "The import may have expired. Check recent imports",
			Code:    "IMP003",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "IMP004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "IMP005",
		},
	},
	{
		pattern: "batch rolled back",
		msg: UserMessage{
			Message: "The batch containing this row was rolled back",
			Action:  "Fix the failing row or import with tx_mode=row",
			Code:    "IMP006",
		},
	},

	// Throttling.
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is the ERR000 fallback.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. Unknown
// errors map to ERR000.
//
//	msg := MapError(fmt.Errorf("row 3: %w", ErrUnknownCategory))
//	// msg.Code == "VAL004"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	return mapText(err.Error())
}

// MapReason maps a row error reason, as stored in RowError, the same way.
func MapReason(reason string) UserMessage {
	if reason == "" {
		return UserMessage{}
	}
	return mapText(reason)
}

func mapText(s string) UserMessage {
	s = strings.ToLower(s)
	for _, ep := range errorPatterns {
		if strings.Contains(s, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError creates "Message (Code: XXX). Action" for display.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error, kept for logging, with its mapped
// message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
