package document

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers match them with errors.Is; operations wrap them in
// *Error to carry the operation name and a detail message.
var (
	ErrInvalidElement  = errors.New("invalid element")
	ErrDuplicateID     = errors.New("duplicate element id")
	ErrMaxPages        = errors.New("maximum page count reached")
	ErrLastPage        = errors.New("document must keep at least one page")
	ErrPageNotFound    = errors.New("page not found")
	ErrElementNotFound = errors.New("element not found")
	ErrDecode          = errors.New("malformed document")
)

// Error is a failed document operation.
type Error struct {
	Op     string
	Err    error
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %v: %s", e.Op, e.Err, e.Detail)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func opError(op string, err error, format string, args ...any) error {
	return &Error{Op: op, Err: err, Detail: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a refused mutation: bad geometry, a page
// limit, or removal of the last page.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidElement) ||
		errors.Is(err, ErrDuplicateID) ||
		errors.Is(err, ErrMaxPages) ||
		errors.Is(err, ErrLastPage)
}

// IsNotFound reports whether err refers to a missing page or element.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPageNotFound) || errors.Is(err, ErrElementNotFound)
}
