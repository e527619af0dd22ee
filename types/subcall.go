package types

import (
	"fmt"

	"github.com/shamaton/msgpack/v2"

	"github.com/wasmenv/contractenv/codec"
)

// CallRequest is the wire form of a message call to another contract.
// GasLimit 0 forwards all gas left to the callee.
type CallRequest struct {
	Callee    AccountID
	GasLimit  Gas
	Endowment Balance
	Selector  Selector
	Args      [][]byte
}

// CreateRequest is the wire form of a contract instantiation.
type CreateRequest struct {
	CodeHash  Hash
	GasLimit  Gas
	Endowment Balance
	Selector  Selector
	Args      [][]byte
}

// Input returns the call data the callee will read: selector followed by the arguments.
func (r CallRequest) Input() CallData {
	return NewCallData(r.Selector, r.Args...)
}

// Input returns the call data the constructor will read.
func (r CreateRequest) Input() CallData {
	return NewCallData(r.Selector, r.Args...)
}

type requestWire struct {
	Target    []byte   `msgpack:"target"`
	GasLimit  uint64   `msgpack:"gas_limit"`
	Endowment uint64   `msgpack:"endowment"`
	Selector  []byte   `msgpack:"selector"`
	Args      [][]byte `msgpack:"args"`
}

// Encode serializes the request for hosts that receive it as bytes.
func (r CallRequest) Encode() ([]byte, error) {
	return msgpack.Marshal(requestWire{
		Target:    r.Callee[:],
		GasLimit:  r.GasLimit,
		Endowment: uint64(r.Endowment),
		Selector:  r.Selector[:],
		Args:      r.Args,
	})
}

// Encode serializes the request for hosts that receive it as bytes.
func (r CreateRequest) Encode() ([]byte, error) {
	return msgpack.Marshal(requestWire{
		Target:    r.CodeHash[:],
		GasLimit:  r.GasLimit,
		Endowment: uint64(r.Endowment),
		Selector:  r.Selector[:],
		Args:      r.Args,
	})
}

// DecodeCallRequest is the inverse of CallRequest.Encode.
func DecodeCallRequest(bz []byte) (CallRequest, error) {
	w, err := decodeRequestWire(bz)
	if err != nil {
		return CallRequest{}, fmt.Errorf("call request: %w", err)
	}
	callee, err := NewAccountID(w.Target)
	if err != nil {
		return CallRequest{}, fmt.Errorf("call request: %w", err)
	}
	return CallRequest{
		Callee:    callee,
		GasLimit:  w.GasLimit,
		Endowment: Balance(w.Endowment),
		Selector:  Selector(w.Selector),
		Args:      w.Args,
	}, nil
}

// DecodeCreateRequest is the inverse of CreateRequest.Encode.
func DecodeCreateRequest(bz []byte) (CreateRequest, error) {
	w, err := decodeRequestWire(bz)
	if err != nil {
		return CreateRequest{}, fmt.Errorf("create request: %w", err)
	}
	codeHash, err := NewHash(w.Target)
	if err != nil {
		return CreateRequest{}, fmt.Errorf("create request: %w", err)
	}
	return CreateRequest{
		CodeHash:  codeHash,
		GasLimit:  w.GasLimit,
		Endowment: Balance(w.Endowment),
		Selector:  Selector(w.Selector),
		Args:      w.Args,
	}, nil
}

func decodeRequestWire(bz []byte) (requestWire, error) {
	var w requestWire
	if len(bz) == 0 {
		return w, fmt.Errorf("%w: empty request", ErrDecode)
	}
	if err := (codec.Msgpack{}).Decode(bz, &w); err != nil {
		return w, &DecodeError{Target: "request", Err: err}
	}
	if len(w.Selector) != SelectorLen {
		return w, &DecodeError{Target: "request", Err: fmt.Errorf("selector of %d bytes", len(w.Selector))}
	}
	return w, nil
}
