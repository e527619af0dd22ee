package instance

import (
	"bytes"
	"fmt"

	"github.com/wasmenv/contractenv/codec"
	"github.com/wasmenv/contractenv/types"
)

/*** Mock Environment ****/

// mockEnv is a scripted host. Property values are stored encoded; every
// method appends its output to the scratch buffer like a real host.
type mockEnv struct {
	props   map[types.Property][]byte
	storage map[types.Key][]byte
	runtime map[string][]byte

	invoke      func(req types.CallRequest) error
	evaluate    func(req types.CallRequest) ([]byte, error)
	instantiate func(req types.CreateRequest) (types.AccountID, error)

	// hook runs at the start of every method except Println.
	hook func(method string)

	calls     []string
	scratches []int // capacity of the scratch buffer seen by each call
	returned  [][]byte
	events    []mockEvent
	printed   []string
	subjects  [][]byte
	setProps  map[types.Property][]byte

	hostErr error
}

type mockEvent struct {
	data   []byte
	topics []types.Hash
}

var _ types.Environment = (*mockEnv)(nil)

func newMockEnv() *mockEnv {
	return &mockEnv{
		props:    make(map[types.Property][]byte),
		storage:  make(map[types.Key][]byte),
		runtime:  make(map[string][]byte),
		setProps: make(map[types.Property][]byte),
	}
}

// setProp encodes v the way a host does and panics on mismatching types.
func (m *mockEnv) setProp(p types.Property, v any) *mockEnv {
	raw, err := p.Encode(codec.Default, v)
	if err != nil {
		panic(err)
	}
	m.props[p] = raw
	return m
}

func (m *mockEnv) setRaw(p types.Property, raw []byte) *mockEnv {
	m.props[p] = raw
	return m
}

func (m *mockEnv) store(key types.Key, v any) {
	raw, err := codec.Default.Encode(v)
	if err != nil {
		panic(err)
	}
	m.storage[key] = raw
}

func (m *mockEnv) record(method string, scratch []byte) {
	m.calls = append(m.calls, method)
	m.scratches = append(m.scratches, cap(scratch))
	if m.hook != nil {
		m.hook(method)
	}
}

func (m *mockEnv) GetProperty(p types.Property, scratch []byte) ([]byte, error) {
	m.record("get_property", scratch)
	if m.hostErr != nil {
		return nil, m.hostErr
	}
	raw, ok := m.props[p]
	if !ok {
		return nil, fmt.Errorf("%w: property %s not scripted", types.ErrHostFailure, p)
	}
	return append(scratch, raw...), nil
}

func (m *mockEnv) SetProperty(p types.Property, scratch []byte, value []byte) error {
	m.record("set_property", scratch)
	if m.hostErr != nil {
		return m.hostErr
	}
	m.setProps[p] = bytes.Clone(value)
	m.props[p] = bytes.Clone(value)
	return nil
}

func (m *mockEnv) GetStorage(key types.Key, scratch []byte) ([]byte, bool, error) {
	m.record("get_storage", scratch)
	if m.hostErr != nil {
		return nil, false, m.hostErr
	}
	raw, ok := m.storage[key]
	if !ok {
		return scratch, false, nil
	}
	return append(scratch, raw...), true, nil
}

func (m *mockEnv) SetStorage(key types.Key, value []byte) error {
	m.record("set_storage", nil)
	if m.hostErr != nil {
		return m.hostErr
	}
	m.storage[key] = bytes.Clone(value)
	return nil
}

func (m *mockEnv) ClearStorage(key types.Key) error {
	m.record("clear_storage", nil)
	if m.hostErr != nil {
		return m.hostErr
	}
	delete(m.storage, key)
	return nil
}

func (m *mockEnv) Invoke(scratch []byte, req types.CallRequest) error {
	m.record("invoke", scratch)
	if m.invoke == nil {
		return types.ErrInvalidAddress
	}
	return m.invoke(req)
}

func (m *mockEnv) Evaluate(scratch []byte, req types.CallRequest) ([]byte, error) {
	m.record("evaluate", scratch)
	if m.evaluate == nil {
		return nil, types.ErrInvalidAddress
	}
	out, err := m.evaluate(req)
	if err != nil {
		return nil, err
	}
	return append(scratch, out...), nil
}

func (m *mockEnv) Instantiate(scratch []byte, req types.CreateRequest) (types.AccountID, error) {
	m.record("instantiate", scratch)
	if m.instantiate == nil {
		return types.AccountID{}, types.ErrInvalidCodeHash
	}
	return m.instantiate(req)
}

func (m *mockEnv) EmitEvent(scratch []byte, data []byte, topics []types.Hash) error {
	m.record("deposit_event", scratch)
	if m.hostErr != nil {
		return m.hostErr
	}
	m.events = append(m.events, mockEvent{data: bytes.Clone(data), topics: append([]types.Hash(nil), topics...)})
	return nil
}

func (m *mockEnv) Random(scratch []byte, subject []byte) (types.Hash, error) {
	m.record("random", scratch)
	if m.hostErr != nil {
		return types.Hash{}, m.hostErr
	}
	m.subjects = append(m.subjects, bytes.Clone(subject))
	return types.HashOf([]byte("seed"), subject), nil
}

func (m *mockEnv) Println(text string) {
	m.calls = append(m.calls, "println")
	m.printed = append(m.printed, text)
}

func (m *mockEnv) GetRuntimeValue(key []byte, scratch []byte) ([]byte, bool, error) {
	m.record("get_runtime_storage", scratch)
	if m.hostErr != nil {
		return nil, false, m.hostErr
	}
	raw, ok := m.runtime[string(key)]
	if !ok {
		return scratch, false, nil
	}
	return append(scratch, raw...), true, nil
}

func (m *mockEnv) SetReturnValue(scratch []byte, data []byte) error {
	m.record("return_value", scratch)
	if m.hostErr != nil {
		return m.hostErr
	}
	m.returned = append(m.returned, bytes.Clone(data))
	return nil
}
