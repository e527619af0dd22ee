package instance

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmenv/contractenv/call"
	"github.com/wasmenv/contractenv/codec"
	"github.com/wasmenv/contractenv/types"
)

var (
	alice = types.AccountIDFromName("alice")
	bob   = types.AccountIDFromName("bob")
)

// requireFatal runs fn and requires it to abort with a fatal violation of kind.
func requireFatal(t *testing.T, kind types.FatalKind, fn func()) *types.FatalError {
	t.Helper()
	var recovered any
	func() {
		defer func() { recovered = recover() }()
		fn()
	}()
	require.NotNil(t, recovered, "expected a fatal violation")
	ferr, ok := recovered.(*types.FatalError)
	require.True(t, ok, "unexpected panic value %#v", recovered)
	assert.Equal(t, kind, ferr.Kind, ferr.Error())
	return ferr
}

func mustEncode(t *testing.T, v any) []byte {
	t.Helper()
	bz, err := codec.Default.Encode(v)
	require.NoError(t, err)
	return bz
}

func fullEnv() *mockEnv {
	return newMockEnv().
		setProp(types.PropertyCaller, alice).
		setProp(types.PropertyTransferredBalance, types.Balance(10)).
		setProp(types.PropertyGasPrice, types.Balance(2)).
		setProp(types.PropertyGasLeft, types.Balance(9_000)).
		setProp(types.PropertyNowInMs, types.Moment(1_700_000_000_123)).
		setProp(types.PropertyAddress, bob).
		setProp(types.PropertyBalance, types.Balance(1_000)).
		setProp(types.PropertyRentAllowance, types.Balance(7)).
		setProp(types.PropertyBlockNumber, types.BlockNumber(99)).
		setProp(types.PropertyMinimumBalance, types.Balance(1)).
		setProp(types.PropertyInput, types.CallData{0xAA, 0xBB, 0xCC, 0xDD, 0x91, 0x2a})
}

func TestNewInstance(t *testing.T) {
	inst := New(newMockEnv(), WithBufferCapacity(64))
	assert.False(t, inst.HasInteracted())
	assert.False(t, inst.HasReturnedValue())
	assert.Equal(t, 64, cap(inst.buf))
	assert.Equal(t, codec.Default, inst.Codec())

	inst = New(newMockEnv(), WithConfig(types.DefaultConfig().Buffer))
	assert.Equal(t, types.DefaultConfig().Buffer.InitialCapacity, cap(inst.buf))
	assert.Equal(t, types.DefaultConfig().Buffer.MaxSize, inst.maxSize)
}

func TestReadInputTwiceIsFatal(t *testing.T) {
	inst := New(fullEnv())
	input := inst.ReadInput()
	sel, err := input.Selector()
	require.NoError(t, err)
	assert.Equal(t, types.Selector{0xAA, 0xBB, 0xCC, 0xDD}, sel)

	requireFatal(t, types.FatalOrdering, func() { inst.ReadInput() })
	requireFatal(t, types.FatalOrdering, func() { inst.Property(types.PropertyInput) })
}

func TestReadInputAfterInteractionIsFatal(t *testing.T) {
	interactions := map[string]func(*Instance){
		"property":     func(i *Instance) { i.Caller() },
		"random":       func(i *Instance) { i.Random(nil) },
		"set_property": func(i *Instance) { i.SetRentAllowance(3) },
	}
	for name, interact := range interactions {
		t.Run(name, func(t *testing.T) {
			inst := New(fullEnv())
			interact(inst)
			assert.True(t, inst.HasInteracted())
			requireFatal(t, types.FatalOrdering, func() { inst.ReadInput() })
		})
	}
}

func TestStorageAndCallsDoNotInteract(t *testing.T) {
	env := fullEnv()
	env.evaluate = func(types.CallRequest) ([]byte, error) { return mustEncode(t, uint64(1)), nil }
	env.invoke = func(types.CallRequest) error { return nil }
	inst := New(env)

	key := types.KeyFor("k")
	inst.SetStorage(key, uint64(5))
	_, err := GetStorage[uint64](inst, key)
	require.NoError(t, err)
	inst.ClearStorage(key)
	require.NoError(t, inst.Invoke(call.Invoke(call.New(bob, 0, 0))))
	_, err = Evaluate(inst, call.Returning[uint64](call.New(bob, 0, 0)))
	require.NoError(t, err)
	inst.EmitEvent(transferEvent{From: alice, To: bob, Value: 1})
	inst.Println("hello")
	assert.False(t, inst.HasInteracted())

	// input can still be read first
	assert.NotEmpty(t, inst.ReadInput())
}

func TestEverythingAfterWriteOutputIsFatal(t *testing.T) {
	ops := map[string]func(*Instance){
		"write_output":  func(i *Instance) { i.WriteOutput(uint32(1)) },
		"read_input":    func(i *Instance) { i.ReadInput() },
		"get_property":  func(i *Instance) { i.Balance() },
		"set_property":  func(i *Instance) { i.SetRentAllowance(1) },
		"get_storage":   func(i *Instance) { _ = i.GetStorageInto(types.KeyFor("k"), new(uint64)) },
		"set_storage":   func(i *Instance) { i.SetStorage(types.KeyFor("k"), uint64(1)) },
		"clear_storage": func(i *Instance) { i.ClearStorage(types.KeyFor("k")) },
		"invoke":        func(i *Instance) { _ = i.Invoke(call.Invoke(call.New(bob, 0, 0))) },
		"evaluate": func(i *Instance) {
			_, _ = Evaluate(i, call.Returning[uint64](call.New(bob, 0, 0)))
		},
		"instantiate":   func(i *Instance) { _, _ = i.Instantiate(call.NewCreate(types.Hash{}, 0, 0).Create()) },
		"deposit_event": func(i *Instance) { i.EmitEvent(transferEvent{}) },
		"random":        func(i *Instance) { i.Random([]byte("x")) },
		"runtime":       func(i *Instance) { _ = i.GetRuntimeValueInto([]byte("k"), new(uint64)) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			env := fullEnv()
			inst := New(env)
			inst.WriteOutput(uint32(42))
			calls := len(env.calls)

			ferr := requireFatal(t, types.FatalOrdering, func() { op(inst) })
			assert.ErrorIs(t, ferr, types.ErrFatal)
			assert.Len(t, env.calls, calls, "host must not be reached")
		})
	}
}

func TestWriteOutputTwiceKeepsFirstPayload(t *testing.T) {
	env := fullEnv()
	inst := New(env)
	inst.WriteOutput(uint32(42))
	requireFatal(t, types.FatalOrdering, func() { inst.WriteOutput(uint32(43)) })

	require.Len(t, env.returned, 1)
	var got uint32
	require.NoError(t, codec.Default.Decode(env.returned[0], &got))
	assert.Equal(t, uint32(42), got)
}

func TestWriteOutputEncodeFailureIsFatal(t *testing.T) {
	inst := New(fullEnv())
	requireFatal(t, types.FatalEncode, func() { inst.WriteOutput(make(chan int)) })
	assert.True(t, inst.HasReturnedValue())
}

func TestPropertiesDecodeToTheirType(t *testing.T) {
	str32 := append([]byte{0xd9, 0x20}, []byte("0123456789abcdef0123456789abcdef")...)
	cases := []struct {
		prop      types.Property
		get       func(*Instance) any
		want      any
		malformed [][]byte
	}{
		{types.PropertyCaller, func(i *Instance) any { return i.Caller() }, alice, [][]byte{{0xc4, 0x01, 0x00}, str32}},
		{types.PropertyTransferredBalance, func(i *Instance) any { return i.TransferredBalance() }, types.Balance(10), [][]byte{{0xa1, 'x'}, {0xff}}},
		{types.PropertyGasPrice, func(i *Instance) any { return i.GasPrice() }, types.Balance(2), [][]byte{{0xc0}, {0xd0, 0x9c}}},
		{types.PropertyGasLeft, func(i *Instance) any { return i.GasLeft() }, types.Balance(9_000), [][]byte{{}, {0xd1, 0xff, 0x00}}},
		{types.PropertyNowInMs, func(i *Instance) any { return i.NowInMs() }, types.Moment(1_700_000_000_123), [][]byte{{0xa1, 'x'}, {0xd3, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xfe}}},
		{types.PropertyAddress, func(i *Instance) any { return i.Address() }, bob, [][]byte{{0x2a}, str32}},
		{types.PropertyBalance, func(i *Instance) any { return i.Balance() }, types.Balance(1_000), [][]byte{{0xc3}, {0xff}}},
		{types.PropertyRentAllowance, func(i *Instance) any { return i.RentAllowance() }, types.Balance(7), [][]byte{{0xa1, 'x'}, {0xe0}}},
		{types.PropertyBlockNumber, func(i *Instance) any { return i.BlockNumber() }, types.BlockNumber(99), [][]byte{{0x90}, {0xd0, 0x9c}}},
		{types.PropertyMinimumBalance, func(i *Instance) any { return i.MinimumBalance() }, types.Balance(1), [][]byte{{0xc1}, {0xcb, 0, 0, 0, 0, 0, 0, 0, 0}}},
	}
	for _, tc := range cases {
		t.Run(tc.prop.String(), func(t *testing.T) {
			inst := New(fullEnv())
			got := tc.get(inst)
			assert.Equal(t, tc.want, got)
			assert.IsType(t, tc.want, inst.Property(tc.prop))
			assert.True(t, inst.HasInteracted())

			for _, raw := range tc.malformed {
				inst = New(fullEnv().setRaw(tc.prop, raw))
				requireFatal(t, types.FatalDecode, func() { tc.get(inst) })
			}
		})
	}
}

func TestUnknownPropertyIsFatal(t *testing.T) {
	inst := New(fullEnv())
	requireFatal(t, types.FatalDecode, func() { inst.Property(types.Property(0)) })
	inst = New(fullEnv())
	requireFatal(t, types.FatalDecode, func() { inst.Property(types.Property(200)) })
}

func TestPropertyHostFailureIsFatal(t *testing.T) {
	env := fullEnv()
	env.hostErr = errors.New("disk on fire")
	inst := New(env)
	ferr := requireFatal(t, types.FatalHost, func() { inst.Caller() })
	assert.ErrorContains(t, ferr, "disk on fire")
}

func TestSetProperty(t *testing.T) {
	env := fullEnv()
	inst := New(env)
	inst.SetRentAllowance(500)
	assert.True(t, inst.HasInteracted())
	assert.Equal(t, types.Balance(500), inst.RentAllowance())

	requireFatal(t, types.FatalOrdering, func() { inst.SetProperty(types.PropertyBalance, types.Balance(1)) })
	requireFatal(t, types.FatalDecode, func() { inst.SetProperty(types.PropertyRentAllowance, "lots") })
	_, touched := env.setProps[types.PropertyBalance]
	assert.False(t, touched)
}

func TestGetStorage(t *testing.T) {
	env := fullEnv()
	present := types.KeyFor("present")
	env.store(present, "a string")
	inst := New(env)

	s, err := GetStorage[string](inst, present)
	require.NoError(t, err)
	assert.Equal(t, "a string", s)

	_, err = GetStorage[uint64](inst, types.KeyFor("absent"))
	require.ErrorIs(t, err, types.ErrNotFound)
	assert.NotErrorIs(t, err, types.ErrDecode)

	_, err = GetStorage[uint64](inst, present)
	require.ErrorIs(t, err, types.ErrDecode)
	assert.NotErrorIs(t, err, types.ErrNotFound)
	var derr *types.DecodeError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "*uint64", derr.Target)

	wide, negative := types.KeyFor("wide"), types.KeyFor("negative")
	env.store(wide, uint64(300))
	env.store(negative, int64(-5))
	_, err = GetStorage[uint8](inst, wide)
	require.ErrorIs(t, err, types.ErrDecode)
	_, err = GetStorage[uint64](inst, negative)
	require.ErrorIs(t, err, types.ErrDecode)
	n, err := GetStorage[int8](inst, negative)
	require.NoError(t, err)
	assert.Equal(t, int8(-5), n)
}

func TestSetAndClearStorage(t *testing.T) {
	env := fullEnv()
	inst := New(env)
	key := types.KeyFor("counter")

	inst.SetStorage(key, uint64(7))
	v, err := GetStorage[uint64](inst, key)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), v)

	inst.ClearStorage(key)
	_, err = GetStorage[uint64](inst, key)
	require.ErrorIs(t, err, types.ErrNotFound)

	requireFatal(t, types.FatalEncode, func() { inst.SetStorage(key, func() {}) })
}

func TestStorageHostFailures(t *testing.T) {
	env := fullEnv()
	env.hostErr = errors.New("broken")
	inst := New(env)
	requireFatal(t, types.FatalHost, func() { inst.SetStorage(types.KeyFor("k"), 1) })

	env.hostErr = fmt.Errorf("metering: %w", types.ErrOutOfGas)
	inst = New(env)
	func() {
		defer func() {
			r := recover()
			oog, ok := r.(types.OutOfGasError)
			require.True(t, ok, "unexpected panic %#v", r)
			assert.Equal(t, "set_storage", oog.Descriptor)
		}()
		inst.SetStorage(types.KeyFor("k"), 1)
	}()
}

func TestRuntimeValue(t *testing.T) {
	env := fullEnv()
	env.runtime["chain/version"] = mustEncode(t, "v1")
	inst := New(env)

	v, err := GetRuntimeValue[string](inst, []byte("chain/version"))
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	_, err = GetRuntimeValue[string](inst, []byte("missing"))
	require.ErrorIs(t, err, types.ErrNotFound)
	_, err = GetRuntimeValue[uint64](inst, []byte("chain/version"))
	require.ErrorIs(t, err, types.ErrDecode)
	assert.False(t, inst.HasInteracted())
}

// The scenario of a full invocation: input first, properties, output last.
func TestInvocationScenario(t *testing.T) {
	env := fullEnv()
	inst := New(env)

	input := inst.ReadInput()
	assert.Equal(t, types.CallData{0xAA, 0xBB, 0xCC, 0xDD, 0x91, 0x2a}, input)
	var args struct{ N uint8 }
	require.NoError(t, input.DecodeArgs(&args))
	assert.Equal(t, uint8(42), args.N)

	assert.Equal(t, alice, inst.Caller())
	assert.Equal(t, types.Balance(1_000), inst.Balance())
	assert.True(t, inst.HasInteracted())

	inst.WriteOutput(uint32(42))
	assert.True(t, inst.HasReturnedValue())

	inst.Println("still here")
	assert.Equal(t, []string{"still here"}, env.printed)

	requireFatal(t, types.FatalOrdering, func() { inst.Caller() })
	assert.Equal(t, []string{"get_property", "get_property", "get_property", "return_value", "println"}, env.calls)
}

func TestEvaluateOutOfGasKeepsFlags(t *testing.T) {
	env := fullEnv()
	var seen types.CallRequest
	env.evaluate = func(req types.CallRequest) ([]byte, error) {
		seen = req
		return nil, types.ErrOutOfGas
	}
	inst := New(env)

	_, err := Evaluate(inst, call.Returning[uint64](call.New(bob, 0, 0)))
	require.ErrorIs(t, err, types.ErrOutOfGas)
	assert.False(t, inst.HasInteracted())
	assert.False(t, inst.HasReturnedValue())
	assert.Equal(t, bob, seen.Callee)
	assert.Equal(t, types.Gas(0), seen.GasLimit)
}

func TestEvaluateDecodesResult(t *testing.T) {
	env := fullEnv()
	env.evaluate = func(req types.CallRequest) ([]byte, error) {
		var args struct{ N uint64 }
		if err := req.Input().DecodeArgs(&args); err != nil {
			return nil, err
		}
		return mustEncode(t, args.N*2), nil
	}
	inst := New(env)

	b, err := call.New(bob, 100, 0).Selector(types.SelectorFromName("double")).PushValue(codec.Default, uint64(21))
	require.NoError(t, err)
	v, err := Evaluate(inst, call.Returning[uint64](b))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), v)

	_, err = Evaluate(inst, call.Returning[string](b))
	require.ErrorIs(t, err, types.ErrDecode)

	_, err = Evaluate(inst, call.Returning[uint64](call.New(bob, 0, 0)))
	require.ErrorIs(t, err, types.ErrInvalidArguments)

	_, err = Evaluate(inst, call.Invoke(b))
	require.NoError(t, err)
}

func TestCallErrorTaxonomy(t *testing.T) {
	for _, want := range []error{
		types.ErrCalleeTrapped,
		types.ErrInvalidAddress,
		types.ErrInsufficientEndowment,
		types.ErrInvalidArguments,
		types.ErrOutOfGas,
	} {
		t.Run(want.Error(), func(t *testing.T) {
			env := fullEnv()
			env.invoke = func(types.CallRequest) error { return fmt.Errorf("nested: %w", want) }
			env.instantiate = func(types.CreateRequest) (types.AccountID, error) { return types.AccountID{}, want }
			inst := New(env)

			require.ErrorIs(t, inst.Invoke(call.Invoke(call.New(bob, 0, 0))), want)
			_, err := inst.Instantiate(call.NewCreate(types.Hash{}, 0, 0).Create())
			require.ErrorIs(t, err, want)
		})
	}

	inst := New(fullEnv())
	_, err := inst.Instantiate(call.NewCreate(types.HashOf([]byte("nope")), 0, 0).Create())
	require.ErrorIs(t, err, types.ErrInvalidCodeHash)
}

func TestCallHostMalfunctionIsFatal(t *testing.T) {
	env := fullEnv()
	env.invoke = func(types.CallRequest) error { return errors.New("socket closed") }
	inst := New(env)
	requireFatal(t, types.FatalHost, func() { _ = inst.Invoke(call.Invoke(call.New(bob, 0, 0))) })
}

func TestInstantiate(t *testing.T) {
	env := fullEnv()
	code := types.HashOf([]byte("counter"))
	env.instantiate = func(req types.CreateRequest) (types.AccountID, error) {
		if req.CodeHash != code {
			return types.AccountID{}, types.ErrInvalidCodeHash
		}
		if req.Endowment < 10 {
			return types.AccountID{}, types.ErrInsufficientEndowment
		}
		return types.AccountIDFromName("child"), nil
	}
	inst := New(env)

	id, err := inst.Instantiate(call.NewCreate(code, 0, 10).Selector(types.SelectorFromName("new")).Create())
	require.NoError(t, err)
	assert.Equal(t, types.AccountIDFromName("child"), id)

	_, err = inst.Instantiate(call.NewCreate(code, 0, 1).Create())
	require.ErrorIs(t, err, types.ErrInsufficientEndowment)
}

type transferEvent struct {
	From  types.AccountID
	To    types.AccountID
	Value types.Balance
}

func (e transferEvent) Topics() []types.Hash {
	return []types.Hash{types.HashOf([]byte("Transfer")), types.HashOf(e.From[:])}
}

func TestEmitEvent(t *testing.T) {
	env := fullEnv()
	inst := New(env)
	ev := transferEvent{From: alice, To: bob, Value: 3}
	inst.EmitEvent(ev)

	require.Len(t, env.events, 1)
	assert.Equal(t, ev.Topics(), env.events[0].topics)
	var got transferEvent
	require.NoError(t, codec.Default.Decode(env.events[0].data, &got))
	assert.Equal(t, ev, got)
}

func TestRandom(t *testing.T) {
	env := fullEnv()
	inst := New(env)
	h := inst.Random([]byte("lottery"))
	assert.Equal(t, types.HashOf([]byte("seed"), []byte("lottery")), h)
	assert.True(t, inst.HasInteracted())
	assert.Equal(t, [][]byte{[]byte("lottery")}, env.subjects)
}

func TestReentrancyIsFatal(t *testing.T) {
	env := fullEnv()
	inst := New(env)
	env.hook = func(method string) {
		if method == "get_storage" {
			inst.Balance()
		}
	}
	requireFatal(t, types.FatalReentrant, func() { _ = inst.GetStorageInto(types.KeyFor("k"), new(uint64)) })
}

func TestScratchBufferIsReused(t *testing.T) {
	env := fullEnv()
	big := make([]byte, 4096)
	env.store(types.KeyFor("big"), big)
	env.store(types.KeyFor("small"), uint64(1))
	inst := New(env, WithBufferCapacity(16))

	v, err := GetStorage[[]byte](inst, types.KeyFor("big"))
	require.NoError(t, err)
	assert.Len(t, v, 4096)
	grown := cap(inst.buf)
	assert.GreaterOrEqual(t, grown, 4096)

	_, err = GetStorage[uint64](inst, types.KeyFor("small"))
	require.NoError(t, err)
	assert.Equal(t, 16, env.scratches[0])
	assert.Equal(t, grown, env.scratches[1])

	// decoded values never alias the scratch buffer
	inst.buf = inst.buf[:cap(inst.buf)]
	for i := range inst.buf {
		inst.buf[i] = 0xff
	}
	assert.Equal(t, big, v)
}

func TestMaxSize(t *testing.T) {
	env := fullEnv()
	env.store(types.KeyFor("big"), make([]byte, 256))
	inst := New(env, WithMaxSize(64))

	requireFatal(t, types.FatalHost, func() { _ = inst.GetStorageInto(types.KeyFor("big"), new([]byte)) })
	inst = New(env, WithMaxSize(64))
	requireFatal(t, types.FatalEncode, func() { inst.SetStorage(types.KeyFor("k"), make([]byte, 128)) })
}

func TestRun(t *testing.T) {
	err := Run(fullEnv(), func(i *Instance) error {
		i.ReadInput()
		i.WriteOutput(uint32(1))
		return nil
	})
	require.NoError(t, err)

	err = Run(fullEnv(), func(i *Instance) error {
		i.ReadInput()
		i.ReadInput()
		return nil
	})
	require.ErrorIs(t, err, types.ErrFatal)
	var ferr *types.FatalError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "read_input", ferr.Op)

	err = Run(fullEnv(), func(i *Instance) error {
		panic(types.OutOfGasError{Descriptor: "loop"})
	})
	require.ErrorIs(t, err, types.ErrOutOfGas)

	want := errors.New("contract said no")
	err = Run(fullEnv(), func(i *Instance) error { return want })
	require.ErrorIs(t, err, want)

	assert.PanicsWithValue(t, "unrelated", func() {
		_ = Run(fullEnv(), func(i *Instance) error { panic("unrelated") })
	})
}
