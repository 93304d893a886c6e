package kernel

import "errors"

// Caller errors. Wrapped kinds also match their tier with errors.Is:
// ErrStackTooSmall, ErrProcTableFull, ErrInvalidHandle and ErrMessageTooLarge
// are all ErrInvalidArgument; ErrSlotsExhausted is ErrWouldBlock.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrStackTooSmall   = wrapErr(ErrInvalidArgument, "stack size below minimum")
	ErrProcTableFull   = wrapErr(ErrInvalidArgument, "process table full")
	ErrInvalidHandle   = wrapErr(ErrInvalidArgument, "invalid mailbox handle")
	ErrMessageTooLarge = wrapErr(ErrInvalidArgument, "message too large")

	ErrOutOfSlots     = errors.New("no free process slot")
	ErrNoChildren     = errors.New("no children to join")
	ErrOutOfMailboxes = errors.New("mailbox table full")

	ErrWouldBlock     = errors.New("operation would block")
	ErrSlotsExhausted = wrapErr(ErrWouldBlock, "message slot pool exhausted")

	ErrReleased = errors.New("mailbox released")
)

type kindError struct {
	kind error
	msg  string
}

func wrapErr(kind error, msg string) error { return &kindError{kind: kind, msg: msg} }

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }
