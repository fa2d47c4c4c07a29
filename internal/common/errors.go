package common

import "github.com/cockroachdb/errors"

// Error classes surfaced by the column and batch layers. Callers classify
// with errors.Is; the concrete error usually carries more context.
var (
	ErrOutOfRange      = errors.New("index out of range")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrCorrupt         = errors.New("corruption")
	ErrEngineFailure   = errors.New("engine failure")

	ErrNotFound = errors.New("not found")
	ErrReleased = errors.New("column set already released")
	ErrClosed   = errors.New("database is closed")
)

// classified tags a cause with one of the classes above. Both the class and
// the cause match under errors.Is.
type classified struct {
	class error
	cause error
}

func (e *classified) Error() string { return e.cause.Error() }

func (e *classified) Unwrap() error { return e.cause }

func (e *classified) Is(target error) bool { return target == e.class }

// InvalidArgumentf builds an error classified as ErrInvalidArgument.
func InvalidArgumentf(format string, args ...interface{}) error {
	return &classified{class: ErrInvalidArgument, cause: errors.Newf(format, args...)}
}

// EngineFailure marks err as coming from the storage engine. nil stays nil.
func EngineFailure(err error, op string) error {
	if err == nil {
		return nil
	}
	return &classified{class: ErrEngineFailure, cause: errors.Wrap(err, op)}
}
