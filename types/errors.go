package types

import (
	"errors"
	"fmt"
)

// Recoverable errors. Operations return them so contract logic can branch on them.
var (
	// ErrNotFound is returned when a storage or runtime storage entry is absent.
	ErrNotFound = errors.New("entry not found")
	// ErrDecode is matched by every *DecodeError.
	ErrDecode = errors.New("decode error")

	ErrCalleeTrapped         = errors.New("callee trapped")
	ErrInvalidAddress        = errors.New("invalid callee address")
	ErrInsufficientEndowment = errors.New("insufficient endowment")
	ErrInvalidArguments      = errors.New("invalid arguments")
	ErrOutOfGas              = errors.New("out of gas")
	ErrInvalidCodeHash       = errors.New("invalid code hash")

	// ErrUnsupported is reported by environments that cannot serve an operation.
	ErrUnsupported = errors.New("operation not supported by environment")
	// ErrHostFailure reports a host malfunction. The instance treats it as fatal.
	ErrHostFailure = errors.New("host failure")
)

// DecodeError reports bytes that do not decode into the requested type.
type DecodeError struct {
	Target string
	Err    error
}

var _ error = (*DecodeError)(nil)

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Target, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrDecode) hold for any DecodeError.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// IsCallError reports whether err belongs to the error taxonomy of
// invoke, evaluate and instantiate.
func IsCallError(err error) bool {
	for _, target := range []error{
		ErrCalleeTrapped,
		ErrInvalidAddress,
		ErrInsufficientEndowment,
		ErrInvalidArguments,
		ErrOutOfGas,
		ErrInvalidCodeHash,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// OutOfGasError is panicked by metering hosts when the executing contract
// exhausts its own gas. It aborts the invocation; the caller observes ErrOutOfGas.
type OutOfGasError struct {
	Descriptor string
}

var _ error = OutOfGasError{}

func (e OutOfGasError) Error() string {
	if e.Descriptor == "" {
		return "out of gas"
	}
	return "out of gas: " + e.Descriptor
}

func (e OutOfGasError) Is(target error) bool {
	return target == ErrOutOfGas
}

// FatalKind classifies protocol violations.
type FatalKind uint8

const (
	// FatalOrdering: an ordering invariant was broken (input not first, anything after output).
	FatalOrdering FatalKind = iota + 1
	// FatalDecode: required data from the host did not decode.
	FatalDecode
	// FatalEncode: a value handed to the host could not be encoded.
	FatalEncode
	// FatalHost: the host reported a malfunction.
	FatalHost
	// FatalReentrant: an operation started while another one was in flight.
	FatalReentrant
)

func (k FatalKind) String() string {
	switch k {
	case FatalOrdering:
		return "ordering"
	case FatalDecode:
		return "decode"
	case FatalEncode:
		return "encode"
	case FatalHost:
		return "host"
	case FatalReentrant:
		return "reentrancy"
	default:
		return fmt.Sprintf("fatal(%d)", uint8(k))
	}
}

// ErrFatal is matched by every *FatalError.
var ErrFatal = errors.New("fatal environment violation")

// FatalError is the panic value of a protocol violation. There is no way to
// continue the invocation after one; instance.Run turns it back into an error
// for the surrounding harness.
type FatalError struct {
	Op   string
	Kind FatalKind
	Err  error
}

var _ error = (*FatalError)(nil)

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal %s violation in %s: %v", e.Kind, e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func (e *FatalError) Is(target error) bool {
	return target == ErrFatal
}
