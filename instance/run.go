package instance

import (
	"github.com/wasmenv/contractenv/types"
)

// Run creates the instance of one invocation, runs entry on it and discards
// it. Fatal violations and gas exhaustion abort entry; Run returns them as a
// *types.FatalError or a types.OutOfGasError. Other panics propagate.
func Run(env types.Environment, entry func(*Instance) error, opts ...Option) (err error) {
	inst := New(env, opts...)
	defer func() {
		if r := recover(); r != nil {
			rerr := Recovered(r)
			if rerr == nil {
				panic(r)
			}
			err = rerr
		}
	}()
	return entry(inst)
}

// Recovered converts a recovered panic value raised by an Instance or by a
// metering host into an error. It returns nil for any other value.
func Recovered(r any) error {
	switch v := r.(type) {
	case *types.FatalError:
		return v
	case types.OutOfGasError:
		return v
	default:
		return nil
	}
}
