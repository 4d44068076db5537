package core

// error_messages.go maps technical errors to user-facing messages with a code
// operators can quote to support.
//
// Typed errors are matched first with errors.Is. Anything else is matched by
// case-insensitive substring against known driver and runtime messages.
//
// # Validation (VAL)
//
//	VAL001 - One or more rows failed validation
//	VAL002 - Invalid date
//	VAL003 - Invalid number
//	VAL004 - Required field empty
//
// # Headers (HDR)
//
//	HDR001 - Required columns missing
//
// # Divisions (DIV)
//
//	DIV001 - Standard division missing from the catalog
//
// # Commit (COM)
//
//	COM001 - Batch rolled back
//	COM002 - fis_num already belongs to another athlete
//	COM003 - Athlete no longer exists
//
// # Authorization (AUTH)
//
//	AUTH001 - Role not allowed
//
// # Store (DB)
//
//	DB001 - Store unavailable
//	DB002 - Connection refused
//	DB003 - Deadlock
//	DB004 - Foreign key
//
// # Import (IMP)
//
//	IMP001 - Too many concurrent imports
//	IMP002 - File too large
//	IMP003 - Empty file
//	IMP004 - Too many rows
//	IMP005 - Invalid CSV
//	IMP006 - Request cancelled
//	IMP007 - Request timed out
//
// # Request (REQ)
//
//	REQ001 - Malformed request body or parameter
//
// # Default (ERR000)
//
// Returned when nothing matches. Check the logs for the technical error.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage contains a user-friendly error message with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What went wrong
	Action  string `json:"action"`  // What the user can do about it
	Code    string `json:"code"`    // Support reference
}

type sentinelMessage struct {
	target error
	msg    UserMessage
}

// sentinelMessages is checked in order; the first errors.Is match wins.
var sentinelMessages = []sentinelMessage{
	{ErrUnauthorized, UserMessage{
		Message: "You are not allowed to import rosters",
		Action:  "Sign in with an event administrator account",
		Code:    "AUTH001",
	}},
	{ErrMissingHeaders, UserMessage{
		Message: "The roster is missing required columns",
		Action:  "Include last_name, first_name, dob and gender columns",
		Code:    "HDR001",
	}},
	{ErrDivisionBootstrap, UserMessage{
		Message: "The event has no divisions and the standard divisions are missing from the catalog",
		Action:  "Create MALE and FEMALE divisions, or link divisions to the event, then retry",
		Code:    "DIV001",
	}},
	{ErrDuplicateExternalID, UserMessage{
		Message: "A fis_num in the batch already belongs to another athlete",
		Action:  "Reconcile the roster again and resolve the conflict",
		Code:    "COM002",
	}},
	{ErrAthleteNotFound, UserMessage{
		Message: "A matched athlete no longer exists",
		Action:  "Reconcile the roster again before committing",
		Code:    "COM003",
	}},
	{ErrTransientStore, UserMessage{
		Message: "The database is unavailable",
		Action:  "Nothing was saved. Please resubmit in a few moments",
		Code:    "DB001",
	}},
	{ErrValidation, UserMessage{
		Message: "One or more rows failed validation",
		Action:  "Fix the listed fields and resubmit",
		Code:    "VAL001",
	}},
	{ErrCommitAborted, UserMessage{
		Message: "The batch was rejected and nothing was saved",
		Action:  "Fix the row named in the details and resubmit the whole batch",
		Code:    "COM001",
	}},
	{ErrTooManyImports, UserMessage{
		Message: "Too many imports are running",
		Action:  "Please wait a moment and try again",
		Code:    "IMP001",
	}},
	{ErrEmptyFile, UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Upload a CSV file with a header row and data rows",
		Code:    "IMP003",
	}},
	{ErrTooManyRows, UserMessage{
		Message: "The roster has too many rows",
		Action:  "Split the roster into smaller files",
		Code:    "IMP004",
	}},
	{ErrInvalidCSV, UserMessage{
		Message: "The file is not a valid CSV",
		Action:  "Ensure the file is comma-separated with quoted fields closed",
		Code:    "IMP005",
	}},
	{ErrInvalidRequest, UserMessage{
		Message: "The request could not be understood",
		Action:  "Check the event id and the JSON body, then retry",
		Code:    "REQ001",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "IMP006",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Nothing was saved. Try a smaller roster or try again later",
		Code:    "IMP007",
	}},
}

// errorPattern maps an error substring to a user-friendly message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is checked in order after sentinelMessages.
var errorPatterns = []errorPattern{
	{
		pattern: "invalid date",
		msg: UserMessage{
			Message: "Invalid date format detected",
			Action:  "Use YYYY-MM-DD, for example 2001-02-03",
			Code:    "VAL002",
		},
	},
	{
		pattern: "invalid number",
		msg: UserMessage{
			Message: "Invalid number format detected",
			Action:  "Use plain decimal numbers for points",
			Code:    "VAL003",
		},
	},
	{
		pattern: "required field",
		msg: UserMessage{
			Message: "Required field is empty",
			Action:  "Ensure every row has last_name, first_name, dob and gender",
			Code:    "VAL004",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File too large",
			Action:  "Split the roster into smaller files",
			Code:    "IMP002",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File too large",
			Action:  "Split the roster into smaller files",
			Code:    "IMP002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB002",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Nothing was saved. Please resubmit",
			Code:    "DB003",
		},
	},
	{
		pattern: "foreign key",
		msg: UserMessage{
			Message: "Referenced event, athlete or division does not exist",
			Action:  "Check the event and division ids",
			Code:    "DB004",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If nothing matches, a generic fallback message with code ERR000 is returned.
//
// Example:
//
//	err := &HeaderError{Missing: []string{"dob"}}
//	msg := MapError(err)
//	// msg.Code == "HDR001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.target) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
