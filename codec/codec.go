// Package codec implements the binary encoding used for every value crossing
// the contract/host boundary.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"

	"github.com/shamaton/msgpack/v2"
)

// Codec encodes and decodes boundary values.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

// Msgpack encodes values as MessagePack. Structs are encoded as maps keyed by
// field name, or as arrays when AsArray is set.
type Msgpack struct {
	AsArray bool
}

// Default is the codec instances use unless configured otherwise.
var Default Codec = Msgpack{}

var _ Codec = Msgpack{}

var (
	errNoData = errors.New("msgpack: no data")
	errNilFor = errors.New("msgpack: nil for non-nullable value")
)

const msgpackNil = 0xc0

// Encode returns a freshly allocated encoding of v.
func (m Msgpack) Encode(v any) ([]byte, error) {
	if m.AsArray {
		return msgpack.MarshalAsArray(v)
	}
	return msgpack.Marshal(v)
}

// Decode decodes data into out, which must be a non-nil pointer. The decoded
// value never aliases data, so callers may reuse the buffer right away.
// A nil encoding is rejected for scalars, arrays and structs instead of being
// decoded into the zero value, and integers that do not fit the target type
// or a str where bin is expected fail instead of being converted.
func (m Msgpack) Decode(data []byte, out any) (err error) {
	if len(data) == 0 {
		return errNoData
	}
	if data[0] == msgpackNil && len(data) == 1 && !nullable(out) {
		return fmt.Errorf("%w %T", errNilFor, out)
	}
	data = bytes.Clone(data)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("msgpack: malformed input: %v", r)
		}
	}()
	if rt := reflect.TypeOf(out); rt != nil && rt.Kind() == reflect.Pointer {
		var generic any
		if err := m.unmarshal(data, &generic); err != nil {
			return err
		}
		if err := conform(generic, rt.Elem()); err != nil {
			return err
		}
	}
	return m.unmarshal(data, out)
}

func (m Msgpack) unmarshal(data []byte, out any) error {
	if m.AsArray {
		return msgpack.UnmarshalAsArray(data, out)
	}
	return msgpack.Unmarshal(data, out)
}

func nullable(out any) bool {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return true
	}
	switch rv.Elem().Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return true
	default:
		return false
	}
}

// EncodeAll encodes each value separately, e.g. to build call arguments.
func EncodeAll(c Codec, values ...any) ([][]byte, error) {
	out := make([][]byte, 0, len(values))
	for i, v := range values {
		bz, err := c.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("encode value %d (%T): %w", i, v, err)
		}
		out = append(out, bz)
	}
	return out, nil
}
