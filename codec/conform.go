package codec

import (
	"errors"
	"fmt"
	"math"
	"reflect"
)

var errMismatch = errors.New("msgpack: type mismatch")

// conform checks a generically decoded value against the Go type it is about
// to be decoded into. msgpack itself converts between integer widths and signs
// and between str and bin without complaint; conform rejects every such
// conversion that would change the value.
func conform(v any, t reflect.Type) error {
	if v == nil {
		return nil
	}
	switch t.Kind() {
	case reflect.Pointer:
		return conform(v, t.Elem())
	case reflect.Interface:
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		u, i, unsigned, ok := widen(v)
		if !ok {
			return mismatch(v, t)
		}
		if unsigned {
			if u > math.MaxInt64 {
				return overflow(u, t)
			}
			i = int64(u)
		}
		if reflect.Zero(t).OverflowInt(i) {
			return overflow(i, t)
		}
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u, i, unsigned, ok := widen(v)
		if !ok {
			return mismatch(v, t)
		}
		if !unsigned {
			if i < 0 {
				return fmt.Errorf("%w: negative %d into %s", errMismatch, i, t)
			}
			u = uint64(i)
		}
		if reflect.Zero(t).OverflowUint(u) {
			return overflow(u, t)
		}
		return nil
	case reflect.Bool:
		if _, ok := v.(bool); !ok {
			return mismatch(v, t)
		}
		return nil
	case reflect.String:
		if _, ok := v.(string); !ok {
			return mismatch(v, t)
		}
		return nil
	case reflect.Slice, reflect.Array:
		return conformSeq(v, t)
	case reflect.Map:
		m, ok := v.(map[any]any)
		if !ok {
			return mismatch(v, t)
		}
		for k, e := range m {
			if err := conform(k, t.Key()); err != nil {
				return err
			}
			if err := conform(e, t.Elem()); err != nil {
				return err
			}
		}
		return nil
	case reflect.Struct:
		return conformStruct(v, t)
	default:
		return nil
	}
}

func conformSeq(v any, t reflect.Type) error {
	fixed := t.Kind() == reflect.Array
	switch s := v.(type) {
	case []byte:
		if t.Elem().Kind() != reflect.Uint8 {
			return mismatch(v, t)
		}
		if fixed && len(s) != t.Len() {
			return fmt.Errorf("%w: %d bytes into %s", errMismatch, len(s), t)
		}
		return nil
	case []any:
		if fixed && len(s) != t.Len() {
			return fmt.Errorf("%w: %d elements into %s", errMismatch, len(s), t)
		}
		for _, e := range s {
			if err := conform(e, t.Elem()); err != nil {
				return err
			}
		}
		return nil
	default:
		return mismatch(v, t)
	}
}

// conformStruct follows the field naming msgpack uses: exported fields, named
// by their msgpack tag when present, skipped when tagged "-".
func conformStruct(v any, t reflect.Type) error {
	var fields []reflect.StructField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Name[0] < 'A' || f.Name[0] > 'Z' || f.Tag.Get("msgpack") == "-" {
			continue
		}
		fields = append(fields, f)
	}
	switch s := v.(type) {
	case map[any]any:
		for _, f := range fields {
			name := f.Name
			if tag := f.Tag.Get("msgpack"); tag != "" {
				name = tag
			}
			e, ok := s[name]
			if !ok {
				continue
			}
			if err := conform(e, f.Type); err != nil {
				return fmt.Errorf("field %s: %w", f.Name, err)
			}
		}
	case []any:
		for i, f := range fields {
			if i >= len(s) {
				break
			}
			if err := conform(s[i], f.Type); err != nil {
				return fmt.Errorf("field %s: %w", f.Name, err)
			}
		}
	}
	// anything else is an extension type such as time.Time, left to msgpack
	return nil
}

// widen reports a decoded msgpack integer as either an unsigned or a signed 64 bit value.
func widen(v any) (u uint64, i int64, unsigned, ok bool) {
	switch n := v.(type) {
	case uint8:
		return uint64(n), 0, true, true
	case uint16:
		return uint64(n), 0, true, true
	case uint32:
		return uint64(n), 0, true, true
	case uint64:
		return n, 0, true, true
	case int8:
		return 0, int64(n), false, true
	case int16:
		return 0, int64(n), false, true
	case int32:
		return 0, int64(n), false, true
	case int64:
		return 0, n, false, true
	}
	return 0, 0, false, false
}

func mismatch(v any, t reflect.Type) error {
	return fmt.Errorf("%w: %T into %s", errMismatch, v, t)
}

func overflow(n any, t reflect.Type) error {
	return fmt.Errorf("%w: %d overflows %s", errMismatch, n, t)
}
