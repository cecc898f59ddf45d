package errs

import (
	"errors"
	"fmt"
)

// Category classifies a pipeline failure so the caller can choose the right
// user-facing message and remediation hint.
type Category string

const (
	CategoryExtraction      Category = "extraction"       // OCR unreachable or malformed response; fields stay empty
	CategoryValidation      Category = "validation"       // missing required field at submission
	CategoryDuplicate       Category = "duplicate"        // receipt number already used within the company
	CategoryDuplicateGlobal Category = "duplicate_global" // store-level global constraint, number used by another company
	CategoryUpload          Category = "upload"           // file upload failed after retries
	CategoryNetwork         Category = "network"          // transient transport failure, suggest retry
	CategoryInternal        Category = "internal"
)

// Error is an application error with a stable category and a message safe to
// surface to the user. Cause keeps the underlying error for logs only.
type Error struct {
	Category Category
	Field    string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a categorized error.
func New(category Category, message string, cause error) *Error {
	return &Error{Category: category, Message: message, Cause: cause}
}

// NewField creates a categorized error tied to a single field.
func NewField(category Category, field, message string) *Error {
	return &Error{Category: category, Field: field, Message: message}
}

// CategoryOf returns the category of err, or CategoryInternal when err
// carries none.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return CategoryInternal
}

// UserMessage returns the user-facing message of err, falling back to a
// generic message so raw vendor/store text never leaks to the UI.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "something went wrong, please try again"
}
