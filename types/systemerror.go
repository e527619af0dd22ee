package types

import (
	"errors"
	"fmt"
)

// ReturnCode is the status a host function reports across the Wasm ABI.
type ReturnCode uint32

const (
	ReturnSuccess ReturnCode = iota
	ReturnCalleeTrapped
	ReturnInvalidAddress
	ReturnInsufficientEndowment
	ReturnInvalidArguments
	ReturnOutOfGas
	ReturnInvalidCodeHash
	ReturnKeyNotFound
	// ReturnBufferTooSmall: the output did not fit the guest buffer. The host
	// stores the required length in the length slot and keeps the output for
	// take_output.
	ReturnBufferTooSmall
	ReturnDecodeFailed
	ReturnUnsupported
	ReturnHostFailure
)

var returnCodeErrors = map[ReturnCode]error{
	ReturnCalleeTrapped:         ErrCalleeTrapped,
	ReturnInvalidAddress:        ErrInvalidAddress,
	ReturnInsufficientEndowment: ErrInsufficientEndowment,
	ReturnInvalidArguments:      ErrInvalidArguments,
	ReturnOutOfGas:              ErrOutOfGas,
	ReturnInvalidCodeHash:       ErrInvalidCodeHash,
	ReturnKeyNotFound:           ErrNotFound,
	ReturnDecodeFailed:          ErrDecode,
	ReturnUnsupported:           ErrUnsupported,
	ReturnHostFailure:           ErrHostFailure,
}

// Err returns the error a code stands for, nil for ReturnSuccess.
func (c ReturnCode) Err() error {
	if c == ReturnSuccess {
		return nil
	}
	if err, ok := returnCodeErrors[c]; ok {
		return err
	}
	if c == ReturnBufferTooSmall {
		return errBufferTooSmall
	}
	return fmt.Errorf("%w: unknown return code %d", ErrHostFailure, uint32(c))
}

func (c ReturnCode) String() string {
	switch c {
	case ReturnSuccess:
		return "success"
	case ReturnBufferTooSmall:
		return "buffer too small"
	}
	if err, ok := returnCodeErrors[c]; ok {
		return err.Error()
	}
	return fmt.Sprintf("return code %d", uint32(c))
}

var errBufferTooSmall = errors.New("output buffer too small")

// ReturnCodeOf maps an error onto its ABI code. Errors outside the taxonomy
// become ReturnHostFailure.
func ReturnCodeOf(err error) ReturnCode {
	if err == nil {
		return ReturnSuccess
	}
	// order matters: a DecodeError may wrap another taxonomy error
	for _, code := range []ReturnCode{
		ReturnOutOfGas,
		ReturnCalleeTrapped,
		ReturnInvalidAddress,
		ReturnInsufficientEndowment,
		ReturnInvalidArguments,
		ReturnInvalidCodeHash,
		ReturnKeyNotFound,
		ReturnDecodeFailed,
		ReturnUnsupported,
	} {
		if errors.Is(err, returnCodeErrors[code]) {
			return code
		}
	}
	return ReturnHostFailure
}
