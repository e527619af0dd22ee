package offchain

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/wasmenv/contractenv/instance"
	"github.com/wasmenv/contractenv/types"
)

var errBusy = errors.New("offchain: an execution is already running")

// frame is one contract execution.
type frame struct {
	caller  types.AccountID
	address types.AccountID
	value   types.Balance
	input   types.CallData

	gasLimit types.Gas
	gasUsed  types.Gas

	// nonce is the instantiation counter as seen by this frame. It reaches
	// the chain state only when the outermost frame commits.
	nonce  uint64
	writes *overlay
	events []Event
	output []byte
}

func (f *frame) gasLeft() types.Gas {
	return f.gasLimit - f.gasUsed
}

// charge consumes gas. Exhaustion aborts the execution of the frame.
func (f *frame) charge(amount types.Gas, descriptor string) {
	if amount > f.gasLeft() {
		f.gasUsed = f.gasLimit
		panic(types.OutOfGasError{Descriptor: descriptor})
	}
	f.gasUsed += amount
}

// childGas is the limit of a nested execution. 0 forwards everything left.
func (f *frame) childGas(requested types.Gas) types.Gas {
	left := f.gasLeft()
	if requested == 0 || requested > left {
		return left
	}
	return requested
}

// Call sends a message with value from caller to the contract at callee and
// returns the encoded return value. A gasLimit of 0 uses the default limit
// of the gas schedule. Errors wrap the call taxonomy of types.
func (e *Engine) Call(caller, callee types.AccountID, value types.Balance, gasLimit types.Gas, input types.CallData) ([]byte, error) {
	if len(e.frames) > 0 {
		return nil, errBusy
	}
	if gasLimit == 0 {
		gasLimit = e.cfg.Gas.DefaultLimit
	}
	out, used, err := e.call(caller, callee, value, gasLimit, input)
	e.lastGasUsed = used
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", callee, err)
	}
	return out, nil
}

// Instantiate creates a contract account from uploaded code, transfers value
// to it and runs its constructor with input.
func (e *Engine) Instantiate(caller types.AccountID, codeHash types.Hash, value types.Balance, gasLimit types.Gas, input types.CallData) (types.AccountID, error) {
	if len(e.frames) > 0 {
		return types.AccountID{}, errBusy
	}
	if gasLimit == 0 {
		gasLimit = e.cfg.Gas.DefaultLimit
	}
	addr, used, err := e.instantiate(caller, codeHash, value, gasLimit, input)
	e.lastGasUsed = used
	if err != nil {
		return types.AccountID{}, fmt.Errorf("instantiate %s: %w", codeHash, err)
	}
	return addr, nil
}

func (e *Engine) call(caller, callee types.AccountID, value types.Balance, gasLimit types.Gas, input types.CallData) ([]byte, types.Gas, error) {
	if len(e.frames) >= maxCallDepth {
		return nil, 0, fmt.Errorf("%w: call depth %d exceeded", types.ErrCalleeTrapped, maxCallDepth)
	}
	acct, ok, err := e.loadAccount(callee)
	if err != nil {
		return nil, 0, err
	}
	if !ok || !acct.IsContract() {
		return nil, 0, fmt.Errorf("%w: %s is not a contract", types.ErrInvalidAddress, callee)
	}
	code, ok := e.codes[acct.CodeHash]
	if !ok {
		return nil, 0, fmt.Errorf("%w: code %s of %s is not loaded", types.ErrInvalidAddress, acct.CodeHash, callee)
	}

	f := e.push(caller, callee, value, gasLimit, input)
	err = e.transfer(caller, callee, value)
	if err == nil {
		err = e.run(f, code.Call)
	}
	return e.pop(f, err)
}

func (e *Engine) instantiate(caller types.AccountID, codeHash types.Hash, value types.Balance, gasLimit types.Gas, input types.CallData) (types.AccountID, types.Gas, error) {
	if len(e.frames) >= maxCallDepth {
		return types.AccountID{}, 0, fmt.Errorf("%w: call depth %d exceeded", types.ErrCalleeTrapped, maxCallDepth)
	}
	code, ok := e.codes[codeHash]
	if !ok {
		return types.AccountID{}, 0, fmt.Errorf("%w: %s", types.ErrInvalidCodeHash, codeHash)
	}
	if value < e.chain.MinimumBalance {
		return types.AccountID{}, 0, fmt.Errorf("%w: endowment %s below minimum balance %s",
			types.ErrInsufficientEndowment, value, e.chain.MinimumBalance)
	}

	nonce := e.nonce() + 1
	addr := types.AccountID(types.HashOf(codeHash[:], caller[:], uint64Bytes(nonce)))

	f := e.push(caller, addr, value, gasLimit, input)
	f.nonce = nonce
	err := e.storeAccount(addr, Account{CodeHash: codeHash})
	if err == nil {
		err = e.transfer(caller, addr, value)
	}
	if err == nil {
		err = e.run(f, code.Deploy)
	}
	_, used, err := e.pop(f, err)
	return addr, used, err
}

// run executes entry on a fresh instance and maps the outcome onto the call
// taxonomy seen by the caller.
func (e *Engine) run(f *frame, entry func(*instance.Instance) error) (err error) {
	env := &frameEnv{engine: e, frame: f}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: contract panicked: %v", types.ErrCalleeTrapped, r)
		}
	}()
	err = instance.Run(env, entry, instance.WithCodec(e.codec), instance.WithConfig(e.cfg.Buffer))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, types.ErrOutOfGas), errors.Is(err, types.ErrInvalidArguments):
		return err
	default:
		return fmt.Errorf("%w: %v", types.ErrCalleeTrapped, err)
	}
}

func (e *Engine) push(caller, address types.AccountID, value types.Balance, gasLimit types.Gas, input types.CallData) *frame {
	f := &frame{
		caller:   caller,
		address:  address,
		value:    value,
		input:    bytes.Clone(input),
		gasLimit: gasLimit,
		nonce:    e.nonce(),
		writes:   newOverlay(),
	}
	e.frames = append(e.frames, f)
	e.logger.Debug().
		Int("depth", len(e.frames)).
		Stringer("caller", caller).
		Stringer("contract", address).
		Uint64("gas_limit", gasLimit).
		Msg("execution started")
	return f
}

// pop ends the execution of f. Its writes are dropped on failure, merged
// into the parent frame or committed to the database on success.
func (e *Engine) pop(f *frame, err error) ([]byte, types.Gas, error) {
	e.frames = e.frames[:len(e.frames)-1]
	if err != nil {
		e.logger.Debug().
			Err(err).
			Int("depth", len(e.frames)+1).
			Stringer("contract", f.address).
			Uint64("gas_used", f.gasUsed).
			Msg("execution reverted")
		return nil, f.gasUsed, err
	}
	if parent := e.top(); parent != nil {
		f.writes.mergeInto(parent.writes)
		parent.nonce = f.nonce
		parent.events = append(parent.events, f.events...)
		return f.output, f.gasUsed, nil
	}
	if err := e.commit(f); err != nil {
		return nil, f.gasUsed, fmt.Errorf("commit: %w", err)
	}
	return f.output, f.gasUsed, nil
}

func (e *Engine) commit(f *frame) error {
	batch := e.db.NewBatch()
	defer batch.Close()
	if err := f.writes.writeTo(batch); err != nil {
		return err
	}
	chain := e.chain
	chain.Nonce = f.nonce
	bz, err := chain.encode()
	if err != nil {
		return err
	}
	if err := batch.Set(keyChainState, bz); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return err
	}
	e.chain = chain
	e.events = append(e.events, f.events...)
	return nil
}

func (e *Engine) nonce() uint64 {
	if f := e.top(); f != nil {
		return f.nonce
	}
	return e.chain.Nonce
}

func (e *Engine) top() *frame {
	if len(e.frames) == 0 {
		return nil
	}
	return e.frames[len(e.frames)-1]
}

// read looks key up through the frames, innermost first, then the database.
func (e *Engine) read(key []byte) ([]byte, bool, error) {
	for i := len(e.frames) - 1; i >= 0; i-- {
		if v, ok := e.frames[i].writes.get(key); ok {
			return v, v != nil, nil
		}
	}
	v, err := e.db.Get(key)
	if err != nil {
		return nil, false, err
	}
	return v, v != nil, nil
}

func (e *Engine) loadAccount(id types.AccountID) (Account, bool, error) {
	bz, ok, err := e.read(accountKey(id))
	if err != nil || !ok {
		return Account{}, false, err
	}
	a, err := decodeAccount(bz)
	return a, err == nil, err
}

func (e *Engine) storeAccount(id types.AccountID, a Account) error {
	bz, err := encodeAccount(a)
	if err != nil {
		return err
	}
	e.top().writes.set(accountKey(id), bz)
	return nil
}

func (e *Engine) transfer(from, to types.AccountID, value types.Balance) error {
	if value == 0 || from == to {
		return nil
	}
	src, _, err := e.loadAccount(from)
	if err != nil {
		return err
	}
	if src.Balance < value {
		return fmt.Errorf("%w: %s holds %s, needs %s", types.ErrInsufficientEndowment, from, src.Balance, value)
	}
	dst, _, err := e.loadAccount(to)
	if err != nil {
		return err
	}
	src.Balance -= value
	dst.Balance += value
	if err := e.storeAccount(from, src); err != nil {
		return err
	}
	return e.storeAccount(to, dst)
}
