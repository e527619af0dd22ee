// Package guest runs contracts compiled to WebAssembly (GOOS=wasip1) against
// the host module "seal0" served by package wasmhost.
//
// A contract exports its entry points and hands them to Main:
//
//	//go:wasmexport call
//	func call() uint32 {
//		return uint32(guest.Main(counter.Contract{}.Call))
//	}
//
// Outside of wasip1 builds the environment reports types.ErrUnsupported for
// every operation.
package guest

import (
	"errors"

	"github.com/wasmenv/contractenv/instance"
	"github.com/wasmenv/contractenv/types"
)

var _ types.Environment = (*Environment)(nil)

// Main runs entry on a fresh instance over the environment of this module
// and returns the code the exported entry point reports to the host.
func Main(entry func(*instance.Instance) error, opts ...instance.Option) types.ReturnCode {
	return ExitCode(instance.Run(NewEnvironment(), entry, opts...))
}

// ExitCode maps the outcome of an invocation onto the code seen by the
// caller of the contract. Only gas exhaustion and rejected arguments are
// reported as such; fatal violations and any other error trap.
func ExitCode(err error) types.ReturnCode {
	switch {
	case err == nil:
		return types.ReturnSuccess
	case errors.Is(err, types.ErrFatal):
		return types.ReturnCalleeTrapped
	case errors.Is(err, types.ErrOutOfGas):
		return types.ReturnOutOfGas
	case errors.Is(err, types.ErrInvalidArguments):
		return types.ReturnInvalidArguments
	default:
		return types.ReturnCalleeTrapped
	}
}
