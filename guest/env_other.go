//go:build !wasip1

package guest

import (
	"github.com/wasmenv/contractenv/types"
)

// Environment stands in for the host module outside of wasip1 builds. Every
// operation fails with types.ErrUnsupported.
type Environment struct{}

// NewEnvironment returns the environment of this module.
func NewEnvironment() *Environment {
	return &Environment{}
}

func (*Environment) GetProperty(types.Property, []byte) ([]byte, error) {
	return nil, types.ErrUnsupported
}

func (*Environment) SetProperty(types.Property, []byte, []byte) error {
	return types.ErrUnsupported
}

func (*Environment) GetStorage(types.Key, []byte) ([]byte, bool, error) {
	return nil, false, types.ErrUnsupported
}

func (*Environment) SetStorage(types.Key, []byte) error { return types.ErrUnsupported }
func (*Environment) ClearStorage(types.Key) error       { return types.ErrUnsupported }

func (*Environment) Invoke([]byte, types.CallRequest) error {
	return types.ErrUnsupported
}

func (*Environment) Evaluate([]byte, types.CallRequest) ([]byte, error) {
	return nil, types.ErrUnsupported
}

func (*Environment) Instantiate([]byte, types.CreateRequest) (types.AccountID, error) {
	return types.AccountID{}, types.ErrUnsupported
}

func (*Environment) EmitEvent([]byte, []byte, []types.Hash) error {
	return types.ErrUnsupported
}

func (*Environment) Random([]byte, []byte) (types.Hash, error) {
	return types.Hash{}, types.ErrUnsupported
}

func (*Environment) Println(string) {}

func (*Environment) GetRuntimeValue([]byte, []byte) ([]byte, bool, error) {
	return nil, false, types.ErrUnsupported
}

func (*Environment) SetReturnValue([]byte, []byte) error {
	return types.ErrUnsupported
}
