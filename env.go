package contractenv

import (
	"github.com/wasmenv/contractenv/call"
	"github.com/wasmenv/contractenv/instance"
	"github.com/wasmenv/contractenv/types"
)

// Free function form of the contract surface. Each function takes the
// instance of the current invocation and behaves exactly like the Access
// method of the same name.

func Caller(inst *Instance) types.AccountID           { return inst.Caller() }
func TransferredBalance(inst *Instance) types.Balance { return inst.TransferredBalance() }
func GasPrice(inst *Instance) types.Balance           { return inst.GasPrice() }
func GasLeft(inst *Instance) types.Balance            { return inst.GasLeft() }
func NowInMs(inst *Instance) types.Moment             { return inst.NowInMs() }
func Address(inst *Instance) types.AccountID          { return inst.Address() }
func Balance(inst *Instance) types.Balance            { return inst.Balance() }
func RentAllowance(inst *Instance) types.Balance      { return inst.RentAllowance() }
func BlockNumber(inst *Instance) types.BlockNumber    { return inst.BlockNumber() }
func MinimumBalance(inst *Instance) types.Balance     { return inst.MinimumBalance() }

func SetRentAllowance(inst *Instance, b types.Balance) {
	inst.SetRentAllowance(b)
}

// ReadInput returns the call data. It must be the first interaction.
func ReadInput(inst *Instance) types.CallData {
	return inst.ReadInput()
}

// WriteOutput sets the return value. It must be the last interaction.
func WriteOutput(inst *Instance, v any) {
	inst.WriteOutput(v)
}

// GetStorage decodes the value at key as a T.
func GetStorage[T any](inst *Instance, key types.Key) (T, error) {
	return instance.GetStorage[T](inst, key)
}

func SetStorage(inst *Instance, key types.Key, v any) {
	inst.SetStorage(key, v)
}

func ClearStorage(inst *Instance, key types.Key) {
	inst.ClearStorage(key)
}

func Invoke(inst *Instance, p call.Params[call.Unit]) error {
	return inst.Invoke(p)
}

// Evaluate calls another contract and decodes its result as an R.
func Evaluate[R any](inst *Instance, p call.Params[R]) (R, error) {
	return instance.Evaluate(inst, p)
}

func Instantiate(inst *Instance, p call.CreateParams) (types.AccountID, error) {
	return inst.Instantiate(p)
}

func EmitEvent(inst *Instance, ev types.Event) {
	inst.EmitEvent(ev)
}

func Random(inst *Instance, subject []byte) types.Hash {
	return inst.Random(subject)
}

func Println(inst *Instance, text string) {
	inst.Println(text)
}

// GetRuntimeValue decodes a value of the host's own storage as a T.
func GetRuntimeValue[T any](inst *Instance, key []byte) (T, error) {
	return instance.GetRuntimeValue[T](inst, key)
}
