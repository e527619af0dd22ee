package contractenv

import (
	"github.com/wasmenv/contractenv/call"
	"github.com/wasmenv/contractenv/instance"
	"github.com/wasmenv/contractenv/types"
)

// Access is the method form of the contract surface. It is a handle on the
// instance of the current invocation and must not outlive it.
type Access struct {
	inst *instance.Instance
}

// NewAccess wraps the instance of an invocation.
func NewAccess(inst *instance.Instance) Access {
	return Access{inst: inst}
}

// Instance returns the wrapped instance, e.g. for the generic helpers.
func (a Access) Instance() *instance.Instance { return a.inst }

func (a Access) Caller() types.AccountID             { return a.inst.Caller() }
func (a Access) TransferredBalance() types.Balance   { return a.inst.TransferredBalance() }
func (a Access) GasPrice() types.Balance             { return a.inst.GasPrice() }
func (a Access) GasLeft() types.Balance              { return a.inst.GasLeft() }
func (a Access) NowInMs() types.Moment               { return a.inst.NowInMs() }
func (a Access) Address() types.AccountID            { return a.inst.Address() }
func (a Access) Balance() types.Balance              { return a.inst.Balance() }
func (a Access) RentAllowance() types.Balance        { return a.inst.RentAllowance() }
func (a Access) BlockNumber() types.BlockNumber      { return a.inst.BlockNumber() }
func (a Access) MinimumBalance() types.Balance       { return a.inst.MinimumBalance() }
func (a Access) SetRentAllowance(b types.Balance)    { a.inst.SetRentAllowance(b) }
func (a Access) Property(p types.Property) any       { return a.inst.Property(p) }
func (a Access) SetProperty(p types.Property, v any) { a.inst.SetProperty(p, v) }

// ReadInput returns the call data. It must be the first interaction.
func (a Access) ReadInput() types.CallData { return a.inst.ReadInput() }

// WriteOutput sets the return value. It must be the last interaction.
func (a Access) WriteOutput(v any) { a.inst.WriteOutput(v) }

func (a Access) GetStorageInto(key types.Key, out any) error {
	return a.inst.GetStorageInto(key, out)
}

func (a Access) SetStorage(key types.Key, v any) { a.inst.SetStorage(key, v) }
func (a Access) ClearStorage(key types.Key)      { a.inst.ClearStorage(key) }

func (a Access) Invoke(p call.Params[call.Unit]) error {
	return a.inst.Invoke(p)
}

func (a Access) Instantiate(p call.CreateParams) (types.AccountID, error) {
	return a.inst.Instantiate(p)
}

func (a Access) EmitEvent(ev types.Event)         { a.inst.EmitEvent(ev) }
func (a Access) Random(subject []byte) types.Hash { return a.inst.Random(subject) }
func (a Access) Println(text string)              { a.inst.Println(text) }

func (a Access) GetRuntimeValueInto(key []byte, out any) error {
	return a.inst.GetRuntimeValueInto(key, out)
}

func (a Access) HasInteracted() bool    { return a.inst.HasInteracted() }
func (a Access) HasReturnedValue() bool { return a.inst.HasReturnedValue() }
