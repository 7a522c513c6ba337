package kernel

// ErrorKind classifies an Error so that callers can tell recoverable
// conditions apart without comparing against every error value exported by a
// package.
type ErrorKind uint8

const (
	// KindInvalidArg is reported when a request is rejected before any state
	// is touched (misaligned address, zero size, illegal capabilities).
	KindInvalidArg ErrorKind = iota

	// KindNoMem is reported when no slot, region or block is large enough.
	// The request may succeed after something is released.
	KindNoMem

	// KindNotFound is reported when a lookup does not match any live entry.
	KindNotFound

	// KindConflict is reported when a mapping request collides with an
	// existing mapping. The conflicting address is returned alongside.
	KindConflict

	// KindInvalidState is reported when an entry is not in the state an
	// operation requires (freeing a mapped block, initializing twice).
	KindInvalidState

	// KindFatal marks errors that leave the hardware in a state that cannot
	// be rolled back.
	KindFatal
)

// String implements fmt.Stringer for ErrorKind.
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidArg:
		return "invalid argument"
	case KindNoMem:
		return "no memory"
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindInvalidState:
		return "invalid state"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error describes a kernel error. All kernel errors are defined as global
// variables that are pointers to the Error structure so they can be compared
// by identity and returned from critical sections without allocating.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string

	// Kind classifies the error.
	Kind ErrorKind
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Fatal returns true if the error cannot be recovered from.
func (e *Error) Fatal() bool {
	return e != nil && e.Kind == KindFatal
}
