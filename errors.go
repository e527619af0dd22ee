package contractenv

import "github.com/wasmenv/contractenv/types"

// Errors contract code branches on, re-exported from types.
var (
	ErrNotFound              = types.ErrNotFound
	ErrDecode                = types.ErrDecode
	ErrCalleeTrapped         = types.ErrCalleeTrapped
	ErrInvalidAddress        = types.ErrInvalidAddress
	ErrInsufficientEndowment = types.ErrInsufficientEndowment
	ErrInvalidArguments      = types.ErrInvalidArguments
	ErrOutOfGas              = types.ErrOutOfGas
	ErrInvalidCodeHash       = types.ErrInvalidCodeHash
)
