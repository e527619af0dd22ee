package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"reflect"
	"strings"

	"github.com/wasmenv/contractenv/codec"
)

// SelectorLen is the width of a function selector in bytes.
const SelectorLen = 4

// Selector is the fixed width prefix of call data identifying the called function.
type Selector [SelectorLen]byte

func (s Selector) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

// ParseSelector parses a hex selector such as "0xaabbccdd".
func ParseSelector(s string) (Selector, error) {
	var sel Selector
	if err := decodeFixedHex(sel[:], s); err != nil {
		return sel, fmt.Errorf("selector %q: %w", s, err)
	}
	return sel, nil
}

// SelectorFromName derives the selector of a function from its name: the first
// four bytes of the blake2b-256 digest of the name.
func SelectorFromName(name string) Selector {
	h := HashOf([]byte(name))
	var sel Selector
	copy(sel[:], h[:SelectorLen])
	return sel
}

// CallData is the raw input a contract receives: a selector followed by the
// encoded argument tuple.
//
// The tuple is a MessagePack array whose elements are the individually encoded
// arguments, so a callee can decode it into a struct with DecodeArgs.
type CallData []byte

// NewCallData concatenates a selector, the tuple header and the already encoded arguments.
func NewCallData(sel Selector, args ...[]byte) CallData {
	n := SelectorLen + 5
	for _, a := range args {
		n += len(a)
	}
	data := make(CallData, 0, n)
	data = append(data, sel[:]...)
	data = appendArrayHeader(data, len(args))
	for _, a := range args {
		data = append(data, a...)
	}
	return data
}

func appendArrayHeader(dst []byte, n int) []byte {
	switch {
	case n < 16:
		return append(dst, 0x90|byte(n))
	case n <= 0xffff:
		dst = append(dst, 0xdc)
		return binary.BigEndian.AppendUint16(dst, uint16(n))
	default:
		dst = append(dst, 0xdd)
		return binary.BigEndian.AppendUint32(dst, uint32(n))
	}
}

func readArrayHeader(b []byte) (int, bool) {
	switch {
	case len(b) >= 1 && b[0]&0xf0 == 0x90:
		return int(b[0] & 0x0f), true
	case len(b) >= 3 && b[0] == 0xdc:
		return int(binary.BigEndian.Uint16(b[1:])), true
	case len(b) >= 5 && b[0] == 0xdd:
		return int(binary.BigEndian.Uint32(b[1:])), true
	}
	return 0, false
}

// tupleArity counts the fields msgpack fills when out points to a struct.
func tupleArity(out any) (int, bool) {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return 0, false
	}
	rt := rv.Elem().Type()
	n := 0
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if f.IsExported() && f.Tag.Get("msgpack") != "-" {
			n++
		}
	}
	return n, true
}

// DecodeArgs decodes the argument tuple into out, a pointer to a struct whose
// exported fields line up with the arguments. Failures wrap ErrInvalidArguments.
func (c CallData) DecodeArgs(out any) error {
	args := c.Args()
	n, ok := readArrayHeader(args)
	if !ok {
		return fmt.Errorf("%w: missing argument tuple", ErrInvalidArguments)
	}
	if want, isStruct := tupleArity(out); isStruct && want != n {
		return fmt.Errorf("%w: got %d arguments, want %d", ErrInvalidArguments, n, want)
	}
	if err := (codec.Msgpack{AsArray: true}).Decode(args, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}

// Selector returns the selector prefix. Call data shorter than a selector is
// reported as ErrInvalidArguments.
func (c CallData) Selector() (Selector, error) {
	var sel Selector
	if len(c) < SelectorLen {
		return sel, fmt.Errorf("%w: call data of %d bytes has no selector", ErrInvalidArguments, len(c))
	}
	copy(sel[:], c[:SelectorLen])
	return sel, nil
}

// Args returns the encoded arguments following the selector.
func (c CallData) Args() []byte {
	if len(c) < SelectorLen {
		return nil
	}
	return c[SelectorLen:]
}

func (c CallData) String() string {
	if len(c) < SelectorLen {
		return "0x" + hex.EncodeToString(c)
	}
	var b strings.Builder
	b.WriteString("0x")
	b.WriteString(hex.EncodeToString(c[:SelectorLen]))
	b.WriteString("|")
	b.WriteString(hex.EncodeToString(c[SelectorLen:]))
	return b.String()
}
