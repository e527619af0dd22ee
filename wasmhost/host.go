// Package wasmhost exposes a types.Environment to WebAssembly guests as the
// host module "seal0".
//
// Every function returns a types.ReturnCode. Outputs go to a guest buffer
// described by (outPtr, outLenPtr): on entry *outLenPtr holds the capacity of
// the buffer, on exit the length written. When the output does not fit,
// *outLenPtr receives the required length, the call returns
// ReturnBufferTooSmall and the output is kept back for take_output, so the
// guest can grow its buffer without the host running the operation again.
//
// Out of bounds pointers trap the guest.
package wasmhost

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wasmenv/contractenv/codec"
	"github.com/wasmenv/contractenv/types"
)

// ModuleName is the import module guests link against.
const ModuleName = "seal0"

// DefaultMaxSize bounds the inputs the host reads out of guest memory.
const DefaultMaxSize = 16 << 20

// Option configures the host module.
type Option func(*host)

// WithLogger sets the logger host functions report failures to.
func WithLogger(l zerolog.Logger) Option {
	return func(h *host) {
		h.logger = l
	}
}

// WithMaxSize bounds the inputs the host reads out of guest memory.
func WithMaxSize(n uint32) Option {
	return func(h *host) {
		h.maxSize = n
	}
}

type sessionKey struct{}

// session is the state of one guest invocation.
type session struct {
	env     types.Environment
	scratch []byte
	// pending is output kept back by a ReturnBufferTooSmall reply.
	pending    []byte
	hasPending bool
}

// WithEnvironment returns a context that routes the host functions called
// by a guest to env. Use it for every call into the guest module.
func WithEnvironment(ctx context.Context, env types.Environment) context.Context {
	return context.WithValue(ctx, sessionKey{}, &session{env: env})
}

type host struct {
	logger  zerolog.Logger
	maxSize uint32
}

func newHost(opts ...Option) *host {
	h := &host{
		logger:  zerolog.Nop(),
		maxSize: DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With().Str("module", ModuleName).Logger()
	return h
}

// Instantiate builds the host module and instantiates it in r. Guests
// importing ModuleName must be instantiated afterwards.
func Instantiate(ctx context.Context, r wazero.Runtime, opts ...Option) (api.Module, error) {
	h := newHost(opts...)
	b := r.NewHostModuleBuilder(ModuleName)
	h.export(b)
	mod, err := b.Instantiate(ctx)
	if err != nil {
		return nil, fmt.Errorf("instantiate %s: %w", ModuleName, err)
	}
	return mod, nil
}

func (h *host) export(b wazero.HostModuleBuilder) {
	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, prop, outPtr, outLenPtr uint32) uint32 {
			return h.getProperty(ctx, m.Memory(), prop, outPtr, outLenPtr)
		}).
		WithParameterNames("property", "out_ptr", "out_len_ptr").
		Export("get_property")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, prop, valuePtr, valueLen uint32) uint32 {
			return h.setProperty(ctx, m.Memory(), prop, valuePtr, valueLen)
		}).
		WithParameterNames("property", "value_ptr", "value_len").
		Export("set_property")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, keyPtr, outPtr, outLenPtr uint32) uint32 {
			return h.getStorage(ctx, m.Memory(), keyPtr, outPtr, outLenPtr)
		}).
		WithParameterNames("key_ptr", "out_ptr", "out_len_ptr").
		Export("get_storage")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, keyPtr, valuePtr, valueLen uint32) uint32 {
			return h.setStorage(ctx, m.Memory(), keyPtr, valuePtr, valueLen)
		}).
		WithParameterNames("key_ptr", "value_ptr", "value_len").
		Export("set_storage")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, keyPtr uint32) uint32 {
			return h.clearStorage(ctx, m.Memory(), keyPtr)
		}).
		WithParameterNames("key_ptr").
		Export("clear_storage")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, reqPtr, reqLen uint32) uint32 {
			return h.invoke(ctx, m.Memory(), reqPtr, reqLen)
		}).
		WithParameterNames("request_ptr", "request_len").
		Export("call")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, reqPtr, reqLen, outPtr, outLenPtr uint32) uint32 {
			return h.evaluate(ctx, m.Memory(), reqPtr, reqLen, outPtr, outLenPtr)
		}).
		WithParameterNames("request_ptr", "request_len", "out_ptr", "out_len_ptr").
		Export("evaluate")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, reqPtr, reqLen, addrPtr uint32) uint32 {
			return h.instantiate(ctx, m.Memory(), reqPtr, reqLen, addrPtr)
		}).
		WithParameterNames("request_ptr", "request_len", "address_ptr").
		Export("instantiate")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, dataPtr, dataLen, topicsPtr, topicsLen uint32) uint32 {
			return h.depositEvent(ctx, m.Memory(), dataPtr, dataLen, topicsPtr, topicsLen)
		}).
		WithParameterNames("data_ptr", "data_len", "topics_ptr", "topics_len").
		Export("deposit_event")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, subjectPtr, subjectLen, outPtr uint32) uint32 {
			return h.random(ctx, m.Memory(), subjectPtr, subjectLen, outPtr)
		}).
		WithParameterNames("subject_ptr", "subject_len", "out_ptr").
		Export("random")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, textPtr, textLen uint32) {
			h.println(ctx, m.Memory(), textPtr, textLen)
		}).
		WithParameterNames("text_ptr", "text_len").
		Export("println")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, keyPtr, keyLen, outPtr, outLenPtr uint32) uint32 {
			return h.getRuntimeStorage(ctx, m.Memory(), keyPtr, keyLen, outPtr, outLenPtr)
		}).
		WithParameterNames("key_ptr", "key_len", "out_ptr", "out_len_ptr").
		Export("get_runtime_storage")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, dataPtr, dataLen uint32) uint32 {
			return h.returnValue(ctx, m.Memory(), dataPtr, dataLen)
		}).
		WithParameterNames("data_ptr", "data_len").
		Export("return_value")

	b.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, outPtr, outLenPtr uint32) uint32 {
			return h.takeOutput(ctx, m.Memory(), outPtr, outLenPtr)
		}).
		WithParameterNames("out_ptr", "out_len_ptr").
		Export("take_output")
}

//---------- dispatch ---------

// do runs fn against the session of ctx. Gas exhaustion of the environment is
// reported as ReturnOutOfGas; a guest memory fault traps.
func (h *host) do(ctx context.Context, op string, fn func(s *session) (types.ReturnCode, error)) (code uint32) {
	s, ok := ctx.Value(sessionKey{}).(*session)
	if !ok {
		panic(fmt.Errorf("wasmhost: %s called without an environment in the context", op))
	}
	defer func() {
		if r := recover(); r != nil {
			oog, ok := r.(types.OutOfGasError)
			if !ok {
				panic(r)
			}
			h.logger.Debug().Str("op", op).Str("descriptor", oog.Descriptor).Msg("out of gas")
			code = uint32(types.ReturnOutOfGas)
		}
	}()
	rc, err := fn(s)
	if err != nil {
		panic(fmt.Errorf("%s: %w", op, err))
	}
	return uint32(rc)
}

// status maps an error of the environment onto its return code.
func (h *host) status(op string, err error) types.ReturnCode {
	rc := types.ReturnCodeOf(err)
	if rc == types.ReturnHostFailure {
		h.logger.Warn().Err(err).Str("op", op).Msg("environment failure")
	}
	return rc
}

func (h *host) read(mem api.Memory, ptr, length uint32) ([]byte, error) {
	if length > h.maxSize {
		return nil, fmt.Errorf("input of %d bytes exceeds the limit of %d", length, h.maxSize)
	}
	return readMemory(mem, ptr, length)
}

func readKey(mem api.Memory, ptr uint32) (types.Key, error) {
	raw, err := readMemory(mem, ptr, types.KeyLen)
	if err != nil {
		return types.Key{}, err
	}
	return types.NewKey(raw)
}

// output delivers data to the guest buffer or keeps it for take_output.
func (s *session) output(mem api.Memory, data []byte, outPtr, outLenPtr uint32) (types.ReturnCode, error) {
	capacity, err := readUint32(mem, outLenPtr)
	if err != nil {
		return 0, err
	}
	if uint32(len(data)) > capacity {
		s.pending = bytes.Clone(data)
		s.hasPending = true
		return types.ReturnBufferTooSmall, writeUint32(mem, outLenPtr, uint32(len(data)))
	}
	s.pending, s.hasPending = nil, false
	if err := writeMemory(mem, outPtr, data); err != nil {
		return 0, err
	}
	return types.ReturnSuccess, writeUint32(mem, outLenPtr, uint32(len(data)))
}

//---------- host functions ---------

func (h *host) getProperty(ctx context.Context, mem api.Memory, prop, outPtr, outLenPtr uint32) uint32 {
	return h.do(ctx, "get_property", func(s *session) (types.ReturnCode, error) {
		p := types.Property(prop)
		if prop > 0xff || !p.Valid() {
			return types.ReturnUnsupported, nil
		}
		out, err := s.env.GetProperty(p, s.scratch[:0])
		if err != nil {
			return h.status("get_property", err), nil
		}
		s.scratch = out
		return s.output(mem, out, outPtr, outLenPtr)
	})
}

func (h *host) setProperty(ctx context.Context, mem api.Memory, prop, valuePtr, valueLen uint32) uint32 {
	return h.do(ctx, "set_property", func(s *session) (types.ReturnCode, error) {
		p := types.Property(prop)
		if prop > 0xff || !p.Valid() {
			return types.ReturnUnsupported, nil
		}
		value, err := h.read(mem, valuePtr, valueLen)
		if err != nil {
			return 0, err
		}
		return h.status("set_property", s.env.SetProperty(p, s.scratch[:0], value)), nil
	})
}

func (h *host) getStorage(ctx context.Context, mem api.Memory, keyPtr, outPtr, outLenPtr uint32) uint32 {
	return h.do(ctx, "get_storage", func(s *session) (types.ReturnCode, error) {
		key, err := readKey(mem, keyPtr)
		if err != nil {
			return 0, err
		}
		out, ok, err := s.env.GetStorage(key, s.scratch[:0])
		if err != nil {
			return h.status("get_storage", err), nil
		}
		if !ok {
			return types.ReturnKeyNotFound, nil
		}
		s.scratch = out
		return s.output(mem, out, outPtr, outLenPtr)
	})
}

func (h *host) setStorage(ctx context.Context, mem api.Memory, keyPtr, valuePtr, valueLen uint32) uint32 {
	return h.do(ctx, "set_storage", func(s *session) (types.ReturnCode, error) {
		key, err := readKey(mem, keyPtr)
		if err != nil {
			return 0, err
		}
		value, err := h.read(mem, valuePtr, valueLen)
		if err != nil {
			return 0, err
		}
		return h.status("set_storage", s.env.SetStorage(key, value)), nil
	})
}

func (h *host) clearStorage(ctx context.Context, mem api.Memory, keyPtr uint32) uint32 {
	return h.do(ctx, "clear_storage", func(s *session) (types.ReturnCode, error) {
		key, err := readKey(mem, keyPtr)
		if err != nil {
			return 0, err
		}
		return h.status("clear_storage", s.env.ClearStorage(key)), nil
	})
}

func (h *host) invoke(ctx context.Context, mem api.Memory, reqPtr, reqLen uint32) uint32 {
	return h.do(ctx, "call", func(s *session) (types.ReturnCode, error) {
		raw, err := h.read(mem, reqPtr, reqLen)
		if err != nil {
			return 0, err
		}
		req, err := types.DecodeCallRequest(raw)
		if err != nil {
			return types.ReturnDecodeFailed, nil
		}
		return h.status("call", s.env.Invoke(s.scratch[:0], req)), nil
	})
}

func (h *host) evaluate(ctx context.Context, mem api.Memory, reqPtr, reqLen, outPtr, outLenPtr uint32) uint32 {
	return h.do(ctx, "evaluate", func(s *session) (types.ReturnCode, error) {
		raw, err := h.read(mem, reqPtr, reqLen)
		if err != nil {
			return 0, err
		}
		req, err := types.DecodeCallRequest(raw)
		if err != nil {
			return types.ReturnDecodeFailed, nil
		}
		out, err := s.env.Evaluate(s.scratch[:0], req)
		if err != nil {
			return h.status("evaluate", err), nil
		}
		s.scratch = out
		return s.output(mem, out, outPtr, outLenPtr)
	})
}

func (h *host) instantiate(ctx context.Context, mem api.Memory, reqPtr, reqLen, addrPtr uint32) uint32 {
	return h.do(ctx, "instantiate", func(s *session) (types.ReturnCode, error) {
		raw, err := h.read(mem, reqPtr, reqLen)
		if err != nil {
			return 0, err
		}
		req, err := types.DecodeCreateRequest(raw)
		if err != nil {
			return types.ReturnDecodeFailed, nil
		}
		addr, err := s.env.Instantiate(s.scratch[:0], req)
		if err != nil {
			return h.status("instantiate", err), nil
		}
		return types.ReturnSuccess, writeMemory(mem, addrPtr, addr[:])
	})
}

func (h *host) depositEvent(ctx context.Context, mem api.Memory, dataPtr, dataLen, topicsPtr, topicsLen uint32) uint32 {
	return h.do(ctx, "deposit_event", func(s *session) (types.ReturnCode, error) {
		data, err := h.read(mem, dataPtr, dataLen)
		if err != nil {
			return 0, err
		}
		raw, err := h.read(mem, topicsPtr, topicsLen)
		if err != nil {
			return 0, err
		}
		var topics []types.Hash
		if err := codec.Default.Decode(raw, &topics); err != nil {
			return types.ReturnDecodeFailed, nil
		}
		return h.status("deposit_event", s.env.EmitEvent(s.scratch[:0], data, topics)), nil
	})
}

func (h *host) random(ctx context.Context, mem api.Memory, subjectPtr, subjectLen, outPtr uint32) uint32 {
	return h.do(ctx, "random", func(s *session) (types.ReturnCode, error) {
		subject, err := h.read(mem, subjectPtr, subjectLen)
		if err != nil {
			return 0, err
		}
		hash, err := s.env.Random(s.scratch[:0], subject)
		if err != nil {
			return h.status("random", err), nil
		}
		return types.ReturnSuccess, writeMemory(mem, outPtr, hash[:])
	})
}

func (h *host) println(ctx context.Context, mem api.Memory, textPtr, textLen uint32) {
	h.do(ctx, "println", func(s *session) (types.ReturnCode, error) {
		text, err := h.read(mem, textPtr, textLen)
		if err != nil {
			return 0, err
		}
		s.env.Println(string(text))
		return types.ReturnSuccess, nil
	})
}

func (h *host) getRuntimeStorage(ctx context.Context, mem api.Memory, keyPtr, keyLen, outPtr, outLenPtr uint32) uint32 {
	return h.do(ctx, "get_runtime_storage", func(s *session) (types.ReturnCode, error) {
		key, err := h.read(mem, keyPtr, keyLen)
		if err != nil {
			return 0, err
		}
		out, ok, err := s.env.GetRuntimeValue(key, s.scratch[:0])
		if err != nil {
			return h.status("get_runtime_storage", err), nil
		}
		if !ok {
			return types.ReturnKeyNotFound, nil
		}
		s.scratch = out
		return s.output(mem, out, outPtr, outLenPtr)
	})
}

func (h *host) returnValue(ctx context.Context, mem api.Memory, dataPtr, dataLen uint32) uint32 {
	return h.do(ctx, "return_value", func(s *session) (types.ReturnCode, error) {
		data, err := h.read(mem, dataPtr, dataLen)
		if err != nil {
			return 0, err
		}
		return h.status("return_value", s.env.SetReturnValue(s.scratch[:0], data)), nil
	})
}

func (h *host) takeOutput(ctx context.Context, mem api.Memory, outPtr, outLenPtr uint32) uint32 {
	return h.do(ctx, "take_output", func(s *session) (types.ReturnCode, error) {
		if !s.hasPending {
			h.logger.Warn().Msg("take_output without kept back output")
			return types.ReturnHostFailure, nil
		}
		return s.output(mem, s.pending, outPtr, outLenPtr)
	})
}
