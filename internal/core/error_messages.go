// Package core provides the record store and sharing business logic.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// Error codes are grouped by category:
//
// # Access Errors (ACC001-ACC099)
//
//	ACC001 - Invalid access level: Access must be viewer, editor or restricted
//	         Action: Choose one of the listed access levels
//	         Matches: ErrInvalidAccessLevel
//
// # File Errors (FILE001-FILE099)
//
// Errors related to the uploaded file itself:
//
//	FILE001 - File too large: File exceeds the maximum upload size
//	          Action: Split the file into smaller files
//	          Matches: ErrPayloadTooLarge
//
//	FILE002 - Invalid CSV: File could not be read as CSV
//	          Action: Ensure the file is comma-separated with a header row
//	          Matches: ErrMalformedInput
//
//	FILE003 - Wrong file type: Only CSV files are accepted
//	          Action: Export the sheet as .csv and upload again
//	          Matches: ErrUnsupportedMediaType
//
//	FILE004 - No file: No file was selected
//	          Action: Please select a CSV file to upload
//	          Matches: ErrNoFile
//
// # Record Errors (REC001-REC099)
//
// Errors related to looking up and acting on a stored record:
//
//	REC001 - Not found: The file does not exist
//	         Action: Check the link or refresh your file list
//	         Matches: ErrNotFound
//
//	REC002 - Forbidden: You do not have permission for this file
//	         Action: Ask the file owner to change its access level
//	         Matches: ErrForbidden
//
//	REC003 - Content missing: The file's stored content could not be found
//	         Action: Upload the file again or contact support
//	         Matches: ErrContentMissing
//
//	REC004 - Name in use: A file with this storage name already exists
//	         Action: Upload again without reusing the storage name
//	         Matches: ErrStorageNameConflict
//
// # Update Errors (UPD001-UPD099)
//
//	UPD001 - No data: The update contained no values
//	         Action: Fill in at least one field before saving
//	         Matches: ErrNoData
//
// # Share Errors (SHR001-SHR099)
//
//	SHR001 - Invalid recipient: The recipient email address is not valid
//	         Action: Check the address and try again
//	         Matches: ErrInvalidRecipient
//
//	SHR002 - Email not sent: The share email could not be delivered
//	         Action: Copy the share link and send it yourself
//	         Matches: ErrNotificationFailed
//
// # System Errors (SYS001-SYS099)
//
//	SYS001 - Storage failure: The file could not be read or written
//	         Action: Please try again later
//	         Matches: ErrStorageIO, ErrSchemaMismatch
//
//	SYS002 - System busy: Too many files are being saved right now
//	         Action: Please wait a moment and try again
//	         Matches: ErrTooManyWrites
//
//	SYS003 - Request cancelled: Request was cancelled
//	         Action: Please try again
//	         Matches: context.Canceled
//
//	SYS004 - Request timeout: Request timed out
//	         Action: Try a smaller file or check your connection
//	         Matches: context.DeadlineExceeded
//
// # Default Error (ERR000)
//
// Fallback when no specific rule matches:
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Matching
//
// Rules are matched with errors.Is against the wrapped error chain. The first
// matching rule wins, so a rule for a more specific sentinel must come before
// one for a sentinel it may wrap.
//
// # For Support Staff
//
// When a user reports an error code:
//  1. Look up the code in this reference
//  2. Check the matched sentinel to understand what triggered it
//  3. Review the suggested action to guide the user
//  4. If ERR000 or SYS001, check application logs for the original technical error
package core

import (
	"context"
	"errors"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorRule maps a sentinel to its user message.
type errorRule struct {
	target error
	msg    UserMessage
}

// errorRules is checked in order. To add a rule:
//  1. Choose the appropriate category and code range
//  2. Add the rule before any rule whose target the new sentinel wraps
//  3. Update the package documentation at the top of this file
var errorRules = []errorRule{
	// Access
	{
		target: ErrInvalidAccessLevel,
		msg: UserMessage{
			Message: "Access must be viewer, editor or restricted",
			Action:  "Choose one of the listed access levels",
			Code:    "ACC001",
		},
	},

	// File
	{
		target: ErrPayloadTooLarge,
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller files",
			Code:    "FILE001",
		},
	},
	{
		target: ErrMalformedInput,
		msg: UserMessage{
			Message: "File could not be read as CSV",
			Action:  "Ensure the file is comma-separated with a header row",
			Code:    "FILE002",
		},
	},
	{
		target: ErrUnsupportedMediaType,
		msg: UserMessage{
			Message: "Only CSV files are accepted",
			Action:  "Export the sheet as .csv and upload again",
			Code:    "FILE003",
		},
	},
	{
		target: ErrNoFile,
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV file to upload",
			Code:    "FILE004",
		},
	},

	// Record
	{
		target: ErrNotFound,
		msg: UserMessage{
			Message: "The file does not exist",
			Action:  "Check the link or refresh your file list",
			Code:    "REC001",
		},
	},
	{
		target: ErrForbidden,
		msg: UserMessage{
			Message: "You do not have permission for this file",
			Action:  "Ask the file owner to change its access level",
			Code:    "REC002",
		},
	},
	{
		target: ErrContentMissing,
		msg: UserMessage{
			Message: "The file's stored content could not be found",
			Action:  "Upload the file again or contact support",
			Code:    "REC003",
		},
	},
	{
		target: ErrStorageNameConflict,
		msg: UserMessage{
			Message: "A file with this storage name already exists",
			Action:  "Upload again without reusing the storage name",
			Code:    "REC004",
		},
	},

	// Update
	{
		target: ErrNoData,
		msg: UserMessage{
			Message: "The update contained no values",
			Action:  "Fill in at least one field before saving",
			Code:    "UPD001",
		},
	},

	// Share
	{
		target: ErrInvalidRecipient,
		msg: UserMessage{
			Message: "The recipient email address is not valid",
			Action:  "Check the address and try again",
			Code:    "SHR001",
		},
	},
	{
		target: ErrNotificationFailed,
		msg: UserMessage{
			Message: "The share email could not be delivered",
			Action:  "Copy the share link and send it yourself",
			Code:    "SHR002",
		},
	},

	// System
	{
		target: ErrStorageIO,
		msg:    storageFailure,
	},
	{
		target: ErrSchemaMismatch,
		msg:    storageFailure,
	},
	{
		target: ErrTooManyWrites,
		msg: UserMessage{
			Message: "Too many files are being saved right now",
			Action:  "Please wait a moment and try again",
			Code:    "SYS002",
		},
	},
	{
		target: context.Canceled,
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "SYS003",
		},
	},
	{
		target: context.DeadlineExceeded,
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "SYS004",
		},
	},
}

var storageFailure = UserMessage{
	Message: "The file could not be read or written",
	Action:  "Please try again later",
	Code:    "SYS001",
}

// defaultMessage is returned when no rule matches (ERR000).
// Support staff should check application logs for the original technical
// error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It walks errorRules and returns the first whose sentinel is in err's chain.
// If none matches, a generic fallback message with code ERR000 is returned.
//
// Example:
//
//	err := fmt.Errorf("record 7: %w", ErrNotFound)
//	msg := MapError(err)
//	// msg.Code == "REC001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, r := range errorRules {
		if errors.Is(err, r.target) {
			return r.msg
		}
	}

	return defaultMessage
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging while providing a clean message for users.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError creates a UserError by mapping a technical error to a user-friendly message.
//
// Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
