package errors

import "fmt"

/*
Error is the shared base for the typed configuration errors in this
package. Each wrapper embeds it, so callers can branch on the concrete
type with errors.As while the rendered message stays a single line.
*/
type Error struct {
	Msg string
}

func (err *Error) Error() string {
	return err.Msg
}

func newBase(format string, args ...any) *Error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}
