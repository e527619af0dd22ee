// Package call builds the descriptors of cross-contract calls and
// instantiations.
//
// A descriptor is an immutable value. The type parameter of Params records
// what the callee returns so that instance.Evaluate can decode the result
// without the caller naming the type twice.
package call

import (
	"github.com/wasmenv/contractenv/codec"
	"github.com/wasmenv/contractenv/types"
)

// Unit is the return type of calls that produce no value.
type Unit = types.Unit

// ReturnType is a zero-size marker for the return type of a call.
type ReturnType[R any] struct{}

// Params describes a message call whose callee returns an R.
type Params[R any] struct {
	callee    types.AccountID
	gasLimit  types.Gas
	endowment types.Balance
	selector  types.Selector
	args      [][]byte
	_         ReturnType[R]
}

// Callee is the account being called.
func (p Params[R]) Callee() types.AccountID { return p.callee }

// GasLimit is the gas forwarded to the callee; 0 forwards all gas left.
func (p Params[R]) GasLimit() types.Gas { return p.gasLimit }

// Endowment is the value transferred with the call.
func (p Params[R]) Endowment() types.Balance { return p.endowment }

// Selector identifies the called function.
func (p Params[R]) Selector() types.Selector { return p.selector }

// Args returns the encoded arguments. The slices are borrowed from the builder.
func (p Params[R]) Args() [][]byte { return p.args }

// Input is the call data the callee will read.
func (p Params[R]) Input() types.CallData {
	return types.NewCallData(p.selector, p.args...)
}

// Request converts the descriptor to its wire form.
func (p Params[R]) Request() types.CallRequest {
	return types.CallRequest{
		Callee:    p.callee,
		GasLimit:  p.gasLimit,
		Endowment: p.endowment,
		Selector:  p.selector,
		Args:      cloneArgs(p.args),
	}
}

// CreateParams describes the instantiation of a contract from uploaded code.
type CreateParams struct {
	codeHash  types.Hash
	gasLimit  types.Gas
	endowment types.Balance
	selector  types.Selector
	args      [][]byte
}

func (p CreateParams) CodeHash() types.Hash     { return p.codeHash }
func (p CreateParams) GasLimit() types.Gas      { return p.gasLimit }
func (p CreateParams) Endowment() types.Balance { return p.endowment }
func (p CreateParams) Selector() types.Selector { return p.selector }
func (p CreateParams) Args() [][]byte           { return p.args }
func (p CreateParams) Input() types.CallData    { return types.NewCallData(p.selector, p.args...) }

// Request converts the descriptor to its wire form.
func (p CreateParams) Request() types.CreateRequest {
	return types.CreateRequest{
		CodeHash:  p.codeHash,
		GasLimit:  p.gasLimit,
		Endowment: p.endowment,
		Selector:  p.selector,
		Args:      cloneArgs(p.args),
	}
}

// Builder accumulates the selector and arguments of a message call. Methods
// return a new Builder; a Builder can be shared as a template.
type Builder struct {
	callee    types.AccountID
	gasLimit  types.Gas
	endowment types.Balance
	selector  types.Selector
	args      [][]byte
}

// New starts a call to callee.
func New(callee types.AccountID, gasLimit types.Gas, endowment types.Balance) Builder {
	return Builder{callee: callee, gasLimit: gasLimit, endowment: endowment}
}

// Selector sets the called function.
func (b Builder) Selector(sel types.Selector) Builder {
	b.selector = sel
	return b
}

// PushArg appends an already encoded argument.
func (b Builder) PushArg(encoded []byte) Builder {
	b.args = appendArg(b.args, encoded)
	return b
}

// PushValue encodes v with c and appends it.
func (b Builder) PushValue(c codec.Codec, v any) (Builder, error) {
	bz, err := c.Encode(v)
	if err != nil {
		return b, err
	}
	return b.PushArg(bz), nil
}

// Invoke finalizes a call whose result is ignored.
func Invoke(b Builder) Params[Unit] {
	return Returning[Unit](b)
}

// Returning finalizes a call whose callee returns an R.
func Returning[R any](b Builder) Params[R] {
	return Params[R]{
		callee:    b.callee,
		gasLimit:  b.gasLimit,
		endowment: b.endowment,
		selector:  b.selector,
		args:      b.args,
	}
}

// CreateBuilder accumulates the constructor selector and arguments of an instantiation.
type CreateBuilder struct {
	codeHash  types.Hash
	gasLimit  types.Gas
	endowment types.Balance
	selector  types.Selector
	args      [][]byte
}

// NewCreate starts an instantiation of the code identified by codeHash.
func NewCreate(codeHash types.Hash, gasLimit types.Gas, endowment types.Balance) CreateBuilder {
	return CreateBuilder{codeHash: codeHash, gasLimit: gasLimit, endowment: endowment}
}

func (b CreateBuilder) Selector(sel types.Selector) CreateBuilder {
	b.selector = sel
	return b
}

func (b CreateBuilder) PushArg(encoded []byte) CreateBuilder {
	b.args = appendArg(b.args, encoded)
	return b
}

func (b CreateBuilder) PushValue(c codec.Codec, v any) (CreateBuilder, error) {
	bz, err := c.Encode(v)
	if err != nil {
		return b, err
	}
	return b.PushArg(bz), nil
}

// Create finalizes the instantiation.
func (b CreateBuilder) Create() CreateParams {
	return CreateParams{
		codeHash:  b.codeHash,
		gasLimit:  b.gasLimit,
		endowment: b.endowment,
		selector:  b.selector,
		args:      b.args,
	}
}

// appendArg never writes into a backing array shared with another builder.
func appendArg(args [][]byte, arg []byte) [][]byte {
	out := make([][]byte, len(args), len(args)+1)
	copy(out, args)
	return append(out, arg)
}

func cloneArgs(args [][]byte) [][]byte {
	if len(args) == 0 {
		return nil
	}
	out := make([][]byte, len(args))
	copy(out, args)
	return out
}
