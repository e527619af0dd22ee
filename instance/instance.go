// Package instance implements the per-invocation access point between a
// contract and its host.
//
// An Instance owns the scratch buffer shared by all host calls and enforces
// the calling convention of an invocation: the input is read at most once and
// only as the first interaction, the return value is written exactly once as
// the last one. Violations are fatal: the instance panics with a
// *types.FatalError and Run turns the panic back into an error for the
// harness driving the invocation.
package instance

import (
	"errors"
	"fmt"

	"github.com/wasmenv/contractenv/call"
	"github.com/wasmenv/contractenv/codec"
	"github.com/wasmenv/contractenv/types"
)

const (
	defaultBufferCapacity = 1024
	defaultMaxSize        = 16 * 1024 * 1024
)

// Instance mediates every boundary operation of one contract invocation.
//
// An Instance is not safe for concurrent use. The execution model is a single
// guest running one invocation to completion; hosts that could run guest code
// on several goroutines must create one Instance per invocation and never
// share it.
type Instance struct {
	env     types.Environment
	codec   codec.Codec
	buf     []byte
	maxSize int

	hasInteracted    bool
	hasReturnedValue bool
	busy             bool
}

// Option configures an Instance.
type Option func(*Instance)

// WithCodec replaces the default msgpack codec.
func WithCodec(c codec.Codec) Option {
	return func(i *Instance) {
		i.codec = c
	}
}

// WithBufferCapacity sets the initial capacity of the scratch buffer.
func WithBufferCapacity(n int) Option {
	return func(i *Instance) {
		if n >= 0 {
			i.buf = make([]byte, 0, n)
		}
	}
}

// WithMaxSize bounds every value crossing the boundary.
func WithMaxSize(n int) Option {
	return func(i *Instance) {
		if n > 0 {
			i.maxSize = n
		}
	}
}

// WithConfig applies the buffer settings of cfg.
func WithConfig(cfg types.BufferConfig) Option {
	return func(i *Instance) {
		WithBufferCapacity(cfg.InitialCapacity)(i)
		WithMaxSize(cfg.MaxSize)(i)
	}
}

// New creates the instance of one invocation with an empty scratch buffer and
// both interaction flags cleared.
func New(env types.Environment, opts ...Option) *Instance {
	i := &Instance{
		env:     env,
		codec:   codec.Default,
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.buf == nil {
		i.buf = make([]byte, 0, defaultBufferCapacity)
	}
	return i
}

// HasInteracted reports whether any interaction with the host happened.
func (i *Instance) HasInteracted() bool { return i.hasInteracted }

// HasReturnedValue reports whether the return value has been written.
func (i *Instance) HasReturnedValue() bool { return i.hasReturnedValue }

// Codec returns the codec used for values crossing the boundary.
func (i *Instance) Codec() codec.Codec { return i.codec }

//---------- properties ---------

// Property fetches and decodes a host property. The dynamic type of the
// result is the value type of p (see types.Property). Reading the input
// property is the same as ReadInput.
func (i *Instance) Property(p types.Property) any {
	if p == types.PropertyInput {
		return i.ReadInput()
	}
	const op = "get_property"
	i.requireNotReturned(op)
	defer i.enter(op)()
	if !p.Valid() {
		fatal(op, types.FatalDecode, fmt.Errorf("unknown property %d", uint8(p)))
	}

	i.hasInteracted = true
	raw, err := i.env.GetProperty(p, i.scratch())
	if err != nil {
		i.hostFailure(op, err)
	}
	raw = i.adopt(op, raw)
	v, err := p.Decode(i.codec, raw)
	if err != nil {
		fatal(op, types.FatalDecode, fmt.Errorf("%s: %w", p, err))
	}
	return v
}

// Caller returns the account that called the executed contract.
func (i *Instance) Caller() types.AccountID {
	return i.Property(types.PropertyCaller).(types.AccountID)
}

// TransferredBalance returns the value transferred with the call.
func (i *Instance) TransferredBalance() types.Balance {
	return i.Property(types.PropertyTransferredBalance).(types.Balance)
}

func (i *Instance) GasPrice() types.Balance {
	return i.Property(types.PropertyGasPrice).(types.Balance)
}

func (i *Instance) GasLeft() types.Balance {
	return i.Property(types.PropertyGasLeft).(types.Balance)
}

// NowInMs returns the timestamp of the current block.
func (i *Instance) NowInMs() types.Moment {
	return i.Property(types.PropertyNowInMs).(types.Moment)
}

// Address returns the account of the executed contract.
func (i *Instance) Address() types.AccountID {
	return i.Property(types.PropertyAddress).(types.AccountID)
}

// Balance returns the balance of the executed contract.
func (i *Instance) Balance() types.Balance {
	return i.Property(types.PropertyBalance).(types.Balance)
}

func (i *Instance) RentAllowance() types.Balance {
	return i.Property(types.PropertyRentAllowance).(types.Balance)
}

func (i *Instance) BlockNumber() types.BlockNumber {
	return i.Property(types.PropertyBlockNumber).(types.BlockNumber)
}

func (i *Instance) MinimumBalance() types.Balance {
	return i.Property(types.PropertyMinimumBalance).(types.Balance)
}

// SetProperty sets a mutable property. Only the rent allowance can be set.
func (i *Instance) SetProperty(p types.Property, v any) {
	const op = "set_property"
	i.requireNotReturned(op)
	defer i.enter(op)()
	if !p.Mutable() {
		fatal(op, types.FatalOrdering, fmt.Errorf("property %s is read only", p))
	}
	raw, err := p.Encode(i.codec, v)
	if err != nil {
		fatal(op, types.FatalDecode, err)
	}
	i.checkSize(op, raw)

	i.hasInteracted = true
	if err := i.env.SetProperty(p, i.scratch(), raw); err != nil {
		i.hostFailure(op, err)
	}
}

// SetRentAllowance sets the rent allowance of the executed contract.
func (i *Instance) SetRentAllowance(b types.Balance) {
	i.SetProperty(types.PropertyRentAllowance, b)
}

//---------- input / output ---------

// ReadInput returns the call data of the invocation. It must be the first
// interaction of the invocation and can only happen once.
func (i *Instance) ReadInput() types.CallData {
	const op = "read_input"
	i.requireNotReturned(op)
	defer i.enter(op)()
	if i.hasInteracted {
		fatal(op, types.FatalOrdering, errors.New("input must be read once, before any other interaction"))
	}

	i.hasInteracted = true
	raw, err := i.env.GetProperty(types.PropertyInput, i.scratch())
	if err != nil {
		i.hostFailure(op, err)
	}
	raw = i.adopt(op, raw)
	v, err := types.PropertyInput.Decode(i.codec, raw)
	if err != nil {
		fatal(op, types.FatalDecode, err)
	}
	return v.(types.CallData)
}

// WriteOutput encodes v and hands it to the host as the return value of the
// invocation. It must be the last interaction: every later operation other
// than Println is fatal, including a second WriteOutput.
func (i *Instance) WriteOutput(v any) {
	const op = "write_output"
	i.requireNotReturned(op)
	defer i.enter(op)()

	i.hasReturnedValue = true
	i.hasInteracted = true
	raw := i.encode(op, v)
	if err := i.env.SetReturnValue(i.scratch(), raw); err != nil {
		i.hostFailure(op, err)
	}
}

//---------- storage ---------

// GetStorageInto decodes the value stored at key into out, which must be a
// pointer. An absent key yields types.ErrNotFound, a value of another type a
// *types.DecodeError.
func (i *Instance) GetStorageInto(key types.Key, out any) error {
	const op = "get_storage"
	i.requireNotReturned(op)
	defer i.enter(op)()

	raw, ok, err := i.env.GetStorage(key, i.scratch())
	if err != nil {
		i.hostFailure(op, err)
	}
	raw = i.adopt(op, raw)
	if !ok {
		return fmt.Errorf("storage key %s: %w", key, types.ErrNotFound)
	}
	return i.decode(raw, out)
}

// GetStorage is the typed form of GetStorageInto.
func GetStorage[T any](i *Instance, key types.Key) (T, error) {
	var out T
	err := i.GetStorageInto(key, &out)
	return out, err
}

// SetStorage encodes v and stores it at key.
func (i *Instance) SetStorage(key types.Key, v any) {
	const op = "set_storage"
	i.requireNotReturned(op)
	defer i.enter(op)()

	raw := i.encode(op, v)
	if err := i.env.SetStorage(key, raw); err != nil {
		i.hostFailure(op, err)
	}
}

// ClearStorage removes the entry at key. Clearing an absent key is a no-op.
func (i *Instance) ClearStorage(key types.Key) {
	const op = "clear_storage"
	i.requireNotReturned(op)
	defer i.enter(op)()

	if err := i.env.ClearStorage(key); err != nil {
		i.hostFailure(op, err)
	}
}

// GetRuntimeValueInto decodes a value of the host's own storage into out.
func (i *Instance) GetRuntimeValueInto(key []byte, out any) error {
	const op = "get_runtime_storage"
	i.requireNotReturned(op)
	defer i.enter(op)()

	raw, ok, err := i.env.GetRuntimeValue(key, i.scratch())
	if err != nil {
		i.hostFailure(op, err)
	}
	raw = i.adopt(op, raw)
	if !ok {
		return fmt.Errorf("runtime key %x: %w", key, types.ErrNotFound)
	}
	return i.decode(raw, out)
}

// GetRuntimeValue is the typed form of GetRuntimeValueInto.
func GetRuntimeValue[T any](i *Instance, key []byte) (T, error) {
	var out T
	err := i.GetRuntimeValueInto(key, &out)
	return out, err
}

//---------- calls ---------

// Invoke calls another contract and ignores its result. The returned error
// belongs to the call taxonomy; the interaction flags are left alone.
func (i *Instance) Invoke(p call.Params[call.Unit]) error {
	const op = "invoke"
	i.requireNotReturned(op)
	defer i.enter(op)()

	return i.callResult(op, i.env.Invoke(i.scratch(), p.Request()))
}

// Evaluate calls another contract and decodes its result as an R. A result
// that does not decode is reported as a *types.DecodeError.
func Evaluate[R any](i *Instance, p call.Params[R]) (R, error) {
	const op = "evaluate"
	var out R
	i.requireNotReturned(op)
	defer i.enter(op)()

	raw, err := i.env.Evaluate(i.scratch(), p.Request())
	if err := i.callResult(op, err); err != nil {
		return out, err
	}
	raw = i.adopt(op, raw)
	if _, unit := any(out).(call.Unit); unit {
		return out, nil
	}
	return out, i.decode(raw, &out)
}

// Instantiate creates a contract from uploaded code and returns its account.
func (i *Instance) Instantiate(p call.CreateParams) (types.AccountID, error) {
	const op = "instantiate"
	i.requireNotReturned(op)
	defer i.enter(op)()

	id, err := i.env.Instantiate(i.scratch(), p.Request())
	if err := i.callResult(op, err); err != nil {
		return types.AccountID{}, err
	}
	return id, nil
}

//---------- misc ---------

// EmitEvent encodes ev as the event data and deposits it with its topics.
func (i *Instance) EmitEvent(ev types.Event) {
	const op = "deposit_event"
	i.requireNotReturned(op)
	defer i.enter(op)()

	data := i.encode(op, ev)
	if err := i.env.EmitEvent(i.scratch(), data, ev.Topics()); err != nil {
		i.hostFailure(op, err)
	}
}

// Random returns host randomness salted with subject.
func (i *Instance) Random(subject []byte) types.Hash {
	const op = "random"
	i.requireNotReturned(op)
	defer i.enter(op)()

	i.hasInteracted = true
	h, err := i.env.Random(i.scratch(), subject)
	if err != nil {
		i.hostFailure(op, err)
	}
	return h
}

// Println prints a diagnostic line through the host. It is allowed at any
// time, also after the return value was written.
func (i *Instance) Println(text string) {
	i.env.Println(text)
}

//---------- internals ---------

func fatal(op string, kind types.FatalKind, err error) {
	panic(&types.FatalError{Op: op, Kind: kind, Err: err})
}

func (i *Instance) requireNotReturned(op string) {
	if i.hasReturnedValue {
		fatal(op, types.FatalOrdering, errors.New("return value already written"))
	}
}

// enter marks an operation in flight. The returned func ends it.
func (i *Instance) enter(op string) func() {
	if i.busy {
		fatal(op, types.FatalReentrant, errors.New("another operation is in flight"))
	}
	i.busy = true
	return func() { i.busy = false }
}

// scratch hands the buffer to the host with length zero.
func (i *Instance) scratch() []byte {
	return i.buf[:0]
}

// adopt keeps the slice returned by the host as the new scratch buffer so a
// grown buffer is reused by the next call.
func (i *Instance) adopt(op string, out []byte) []byte {
	if len(out) > i.maxSize {
		fatal(op, types.FatalHost, fmt.Errorf("host value of %d bytes exceeds limit of %d", len(out), i.maxSize))
	}
	if cap(out) > cap(i.buf) && cap(out) <= i.maxSize {
		i.buf = out[:0]
	}
	return out
}

func (i *Instance) checkSize(op string, raw []byte) {
	if len(raw) > i.maxSize {
		fatal(op, types.FatalEncode, fmt.Errorf("value of %d bytes exceeds limit of %d", len(raw), i.maxSize))
	}
}

func (i *Instance) encode(op string, v any) []byte {
	raw, err := i.codec.Encode(v)
	if err != nil {
		fatal(op, types.FatalEncode, fmt.Errorf("%T: %w", v, err))
	}
	i.checkSize(op, raw)
	return raw
}

func (i *Instance) decode(raw []byte, out any) error {
	if err := i.codec.Decode(raw, out); err != nil {
		return &types.DecodeError{Target: fmt.Sprintf("%T", out), Err: err}
	}
	return nil
}

// hostFailure aborts the invocation. A host reporting gas exhaustion aborts it
// the same way a metering host panicking with OutOfGasError does.
func (i *Instance) hostFailure(op string, err error) {
	if errors.Is(err, types.ErrOutOfGas) {
		panic(types.OutOfGasError{Descriptor: op})
	}
	fatal(op, types.FatalHost, err)
}

// callResult passes errors of the call taxonomy to the caller. Anything else
// is a host malfunction.
func (i *Instance) callResult(op string, err error) error {
	if err == nil || types.IsCallError(err) {
		return err
	}
	fatal(op, types.FatalHost, err)
	return nil
}
