package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Exception kinds
// ---------------------------------------------------------------------------

// Kind classifies a user-visible failure. A Kind is itself an error so that
// callers can write errors.Is(err, vm.TypeError).
type Kind uint8

const (
	TypeError Kind = iota + 1
	AttributeError
	NameError
	UnboundLocalError
	ZeroDivisionError
	OverflowError
	ValueError
	IndexError
	KeyError
	StopIteration
	RecursionError
	NotImplementedError
)

var kindNames = [...]string{
	TypeError:           "TypeError",
	AttributeError:      "AttributeError",
	NameError:           "NameError",
	UnboundLocalError:   "UnboundLocalError",
	ZeroDivisionError:   "ZeroDivisionError",
	OverflowError:       "OverflowError",
	ValueError:          "ValueError",
	IndexError:          "IndexError",
	KeyError:            "KeyError",
	StopIteration:       "StopIteration",
	RecursionError:      "RecursionError",
	NotImplementedError: "NotImplementedError",
}

// String returns the conventional name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Error makes a Kind usable as an errors.Is target.
func (k Kind) Error() string { return k.String() }

// ---------------------------------------------------------------------------
// Exception: user-visible failure
// ---------------------------------------------------------------------------

// Exception is an ordinary runtime failure. It unwinds frame by frame to the
// caller of Eval and may in future be caught by handler tables.
type Exception struct {
	Kind    Kind
	Message string
}

// NewException creates an exception of the given kind with a formatted message.
func NewException(kind Kind, format string, args ...any) *Exception {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Exception{Kind: kind, Message: msg}
}

func (e *Exception) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Message
}

// Is matches a Kind sentinel.
func (e *Exception) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// AsException extracts a user-visible exception from err.
func AsException(err error) (*Exception, bool) {
	var e *Exception
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// InternalError: engine invariant violated
// ---------------------------------------------------------------------------

// InternalError reports a broken engine invariant or malformed input from
// the loader. It is deliberately not an *Exception: no handler search may
// ever treat it as recoverable.
type InternalError struct {
	Message string
	Cause   error
}

func internalErrorf(format string, args ...any) *InternalError {
	return &InternalError{Message: fmt.Sprintf(format, args...)}
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return "internal error: " + e.Message + ": " + e.Cause.Error()
	}
	return "internal error: " + e.Message
}

func (e *InternalError) Unwrap() error { return e.Cause }

// IsInternal reports whether err carries an InternalError.
func IsInternal(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}

// ---------------------------------------------------------------------------
// Message helpers
// ---------------------------------------------------------------------------

func typeErrorf(format string, args ...any) *Exception {
	return NewException(TypeError, format, args...)
}

func attributeErrorf(format string, args ...any) *Exception {
	return NewException(AttributeError, format, args...)
}

// noAttributeError is the standard "no attribute" failure.
func noAttributeError(obj Value, name string) *Exception {
	return attributeErrorf("'%.50s' object has no attribute '%.50s'", TypeOf(obj).Name(), name)
}

func readonlyAttributeError(obj Value, name string) *Exception {
	return attributeErrorf("'%.50s' object attribute '%.50s' is read-only", TypeOf(obj).Name(), name)
}

func mandatoryAttributeError(obj Value, name string) *Exception {
	return attributeErrorf("'%.50s' object attribute '%.50s' cannot be deleted", TypeOf(obj).Name(), name)
}

func returnTypeError(method, expected string, res Value) *Exception {
	return typeErrorf("%.200s returned non-%.200s (type %.200s)", method, expected, TypeOf(res).Name())
}

// ordinal renders 1 as "1st", 2 as "2nd" and so on.
func ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

// argumentTypeError names the function, argument ordinal and expected kind.
func argumentTypeError(fn string, n int, expected string, got Value) *Exception {
	return typeErrorf("%s() %s argument must be %s, not '%.200s'", fn, ordinal(n), expected, TypeOf(got).Name())
}
