package core

// Error codes reported to users, grouped by category:
//
//	SCH001 - invalid column type or schema
//	SCH002 - invalid mapping or profile document
//	CST001 - value could not be converted to the column type
//	NUL001 - required column is empty
//	ABT001 - column not found in source
//	ABT002 - header row not found
//	ABT003 - source has no data rows
//	ABT000 - import aborted for another reason
//	DB001  - duplicate key
//	DB002  - foreign key violation
//	DB003  - not-null violation
//	DB004  - check constraint violation
//	DB005  - connection failure
//	DB006  - deadlock
//	DB000  - other row write failure
//	FILE001 - file too large
//	FILE002 - no file provided
//	FILE003 - unreadable spreadsheet
//	IMP001 - too many concurrent imports
//	IMP002 - import cancelled
//	IMP003 - import timed out
//	IMP004 - unknown profile
//	ERR000 - unexpected error
//
// Typed import errors are classified first; plain errors fall back to
// case-insensitive substring patterns, first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/gridimport/internal/importerr"
)

// UserMessage is the user-facing rendering of an error.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

var (
	msgSchema      = UserMessage{"The column mapping declares an invalid type", "Check the type and binding names in the mapping", "SCH001"}
	msgConfig      = UserMessage{"The import profile could not be read", "Fix the profile or mapping document", "SCH002"}
	msgCast        = UserMessage{"A value does not match its column type", "Correct the value or the column type", "CST001"}
	msgNull        = UserMessage{"A required column is empty", "Fill in the column or allow nulls", "NUL001"}
	msgMissing     = UserMessage{"Expected column not found in the source", "Verify the source headers match the mapping", "ABT001"}
	msgNoHeader    = UserMessage{"Header row not found", "Check that the file has the expected header", "ABT002"}
	msgEmpty       = UserMessage{"The source has no data rows", "Provide a file with at least one data row", "ABT003"}
	msgAbort       = UserMessage{"The import was aborted", "Review the error details and try again", "ABT000"}
	msgDuplicate   = UserMessage{"A record with this key already exists", "Remove duplicates or truncate the table first", "DB001"}
	msgForeignKey  = UserMessage{"Referenced record does not exist", "Import parent records first", "DB002"}
	msgNotNull     = UserMessage{"The database rejected an empty value", "Mark the column as required in the mapping", "DB003"}
	msgCheck       = UserMessage{"A value violates a table constraint", "Review the constraint named in the details", "DB004"}
	msgConnection  = UserMessage{"Unable to reach the database", "Please try again in a few moments", "DB005"}
	msgDeadlock    = UserMessage{"The database was busy with conflicting work", "Please try again", "DB006"}
	msgRow         = UserMessage{"A row could not be written", "Review the row and statement in the details", "DB000"}
	msgTooLarge    = UserMessage{"File exceeds the upload size limit", "Split the file into smaller parts", "FILE001"}
	msgNoFile      = UserMessage{"No file was provided", "Attach a file to import", "FILE002"}
	msgBadSheet    = UserMessage{"The spreadsheet could not be opened", "Check the file and sheet name", "FILE003"}
	msgBusy        = UserMessage{"Too many imports are running", "Please wait a moment and try again", "IMP001"}
	msgCancelled   = UserMessage{"The import was cancelled", "Start it again when ready", "IMP002"}
	msgTimeout     = UserMessage{"The import timed out", "Try a smaller source or try again later", "IMP003"}
	msgNoProfile   = UserMessage{"Unknown import profile", "Choose one of the listed profiles", "IMP004"}
	defaultMessage = UserMessage{"An unexpected error occurred", "Please try again or contact support", "ERR000"}
)

// sqlStateMessages maps Postgres SQLSTATE and MySQL error numbers.
var sqlStateMessages = map[string]UserMessage{
	"23505": msgDuplicate,
	"23503": msgForeignKey,
	"23502": msgNotNull,
	"23514": msgCheck,
	"40P01": msgDeadlock,
	"1062":  msgDuplicate,
	"1452":  msgForeignKey,
	"1048":  msgNotNull,
	"3819":  msgCheck,
	"1213":  msgDeadlock,
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is consulted in order; specific patterns come first.
var errorPatterns = []errorPattern{
	{"column not found", msgMissing},
	{"header not found", msgNoHeader},
	{"no data rows", msgEmpty},
	{"is empty", msgEmpty},
	{"duplicate key", msgDuplicate},
	{"unique constraint", msgDuplicate},
	{"foreign key", msgForeignKey},
	{"not null constraint", msgNotNull},
	{"check constraint", msgCheck},
	{"connection refused", msgConnection},
	{"connection reset", msgConnection},
	{"deadlock", msgDeadlock},
	{"file too large", msgTooLarge},
	{"request body too large", msgTooLarge},
	{"no file provided", msgNoFile},
	{"sheet", msgBadSheet},
	{"unknown profile", msgNoProfile},
	{"too many concurrent imports", msgBusy},
	{"context canceled", msgCancelled},
	{"context deadline exceeded", msgTimeout},
}

// MapError converts err into a user message. Nil yields the zero message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var (
		rowErr  *importerr.RowError
		castErr *importerr.CastError
		nullErr *importerr.NullColumnError
		cfgErr  *importerr.ConfigError
	)
	switch {
	case errors.Is(err, ErrTooManyImports):
		return msgBusy
	case errors.Is(err, ErrUnknownProfile):
		return msgNoProfile
	case errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	case errors.As(err, &rowErr):
		if msg, ok := sqlStateMessages[rowErr.Code]; ok {
			return msg
		}
		if msg, ok := matchPattern(err); ok {
			return msg
		}
		return msgRow
	case errors.As(err, &castErr):
		return msgCast
	case errors.As(err, &nullErr):
		return msgNull
	case errors.Is(err, importerr.ErrSchema):
		return msgSchema
	case errors.As(err, &cfgErr):
		return msgConfig
	}

	if msg, ok := matchPattern(err); ok {
		return msg
	}
	if importerr.KindOf(err) == importerr.KindAbort {
		return msgAbort
	}
	return defaultMessage
}

func matchPattern(err error) (UserMessage, bool) {
	s := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(s, ep.pattern) {
			return ep.msg, true
		}
	}
	return UserMessage{}, false
}

// FormatUserError renders err as "Message (Code: X). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	return err != nil && MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string { return e.User.Message }

func (e *UserError) Unwrap() error { return e.Technical }

// NewUserError maps err, returning nil for nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
