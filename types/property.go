package types

import (
	"bytes"
	"fmt"
)

// Property identifies one host supplied value about the current execution.
// The set is closed: a guest can only ask for one of the values below.
type Property uint8

const (
	// PropertyCaller is the account that called the executed contract.
	PropertyCaller Property = iota + 1
	// PropertyTransferredBalance is the value transferred with the call.
	PropertyTransferredBalance
	// PropertyGasPrice is the current price for gas.
	PropertyGasPrice
	// PropertyGasLeft is the gas left for the execution.
	PropertyGasLeft
	// PropertyNowInMs is the current block time in milliseconds.
	PropertyNowInMs
	// PropertyAddress is the account of the executed contract.
	PropertyAddress
	// PropertyBalance is the balance of the executed contract.
	PropertyBalance
	// PropertyRentAllowance is the rent allowance of the executed contract.
	// It is the only property a contract may set.
	PropertyRentAllowance
	// PropertyBlockNumber is the current block number.
	PropertyBlockNumber
	// PropertyMinimumBalance is the minimum balance an account must keep.
	PropertyMinimumBalance
	// PropertyInput is the raw call data: a selector followed by the encoded arguments.
	PropertyInput
)

var propertyNames = [...]string{
	PropertyCaller:             "caller",
	PropertyTransferredBalance: "transferred_balance",
	PropertyGasPrice:           "gas_price",
	PropertyGasLeft:            "gas_left",
	PropertyNowInMs:            "now_in_ms",
	PropertyAddress:            "address",
	PropertyBalance:            "balance",
	PropertyRentAllowance:      "rent_allowance",
	PropertyBlockNumber:        "block_number",
	PropertyMinimumBalance:     "minimum_balance",
	PropertyInput:              "input",
}

func (p Property) String() string {
	if !p.Valid() {
		return fmt.Sprintf("property(%d)", uint8(p))
	}
	return propertyNames[p]
}

// Valid reports whether p is one of the defined properties.
func (p Property) Valid() bool {
	return p >= PropertyCaller && p <= PropertyInput
}

// Mutable reports whether a contract may set the property.
func (p Property) Mutable() bool {
	return p == PropertyRentAllowance
}

// AllProperties lists every property, input last.
func AllProperties() []Property {
	props := make([]Property, 0, len(propertyNames)-1)
	for p := PropertyCaller; p <= PropertyInput; p++ {
		props = append(props, p)
	}
	return props
}

// ParseProperty looks a property up by its name.
func ParseProperty(name string) (Property, error) {
	for p := PropertyCaller; p <= PropertyInput; p++ {
		if propertyNames[p] == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown property %q", name)
}

// Codec is the binary encoding used for values crossing the boundary.
// codec.Msgpack is the implementation used throughout this module.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

// Decode turns the host encoding of the property into its Go value:
// AccountID for caller and address, Balance for the balance like properties,
// Moment, BlockNumber and CallData for input. The returned value never aliases raw.
func (p Property) Decode(c Codec, raw []byte) (any, error) {
	if err := p.checkFormat(raw); err != nil {
		return nil, err
	}
	switch p {
	case PropertyCaller, PropertyAddress:
		var b []byte
		if err := c.Decode(raw, &b); err != nil {
			return nil, err
		}
		return NewAccountID(b)
	case PropertyTransferredBalance, PropertyGasPrice, PropertyGasLeft,
		PropertyBalance, PropertyRentAllowance, PropertyMinimumBalance:
		var v Balance
		if err := c.Decode(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	case PropertyNowInMs:
		var v Moment
		if err := c.Decode(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	case PropertyBlockNumber:
		var v BlockNumber
		if err := c.Decode(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	case PropertyInput:
		return CallData(bytes.Clone(raw)), nil
	default:
		return nil, fmt.Errorf("decode %s: unknown property", p)
	}
}

// MessagePack format bytes the property encodings may start with.
const (
	fmtPositiveFixintMax = 0x7f
	fmtBin8              = 0xc4
	fmtBin32             = 0xc6
	fmtUint8             = 0xcc
	fmtUint64            = 0xcf
)

// checkFormat rejects encodings of the wrong msgpack family before any codec
// gets to convert them: numeric properties are unsigned integers, account
// properties are bin.
func (p Property) checkFormat(raw []byte) error {
	if p == PropertyInput {
		return nil
	}
	if len(raw) == 0 {
		return fmt.Errorf("decode %s: no data", p)
	}
	b := raw[0]
	switch p {
	case PropertyCaller, PropertyAddress:
		if b < fmtBin8 || b > fmtBin32 {
			return fmt.Errorf("decode %s: format 0x%02x is not bin", p, b)
		}
	default:
		if b > fmtPositiveFixintMax && (b < fmtUint8 || b > fmtUint64) {
			return fmt.Errorf("decode %s: format 0x%02x is not an unsigned integer", p, b)
		}
	}
	return nil
}

// Encode is the host side inverse of Decode. The dynamic type of v must be the
// value type associated with p.
func (p Property) Encode(c Codec, v any) ([]byte, error) {
	switch p {
	case PropertyCaller, PropertyAddress:
		id, ok := v.(AccountID)
		if !ok {
			return nil, p.typeMismatch(AccountID{}, v)
		}
		return c.Encode(id[:])
	case PropertyTransferredBalance, PropertyGasPrice, PropertyGasLeft,
		PropertyBalance, PropertyRentAllowance, PropertyMinimumBalance:
		b, ok := v.(Balance)
		if !ok {
			return nil, p.typeMismatch(Balance(0), v)
		}
		return c.Encode(uint64(b))
	case PropertyNowInMs:
		m, ok := v.(Moment)
		if !ok {
			return nil, p.typeMismatch(Moment(0), v)
		}
		return c.Encode(uint64(m))
	case PropertyBlockNumber:
		n, ok := v.(BlockNumber)
		if !ok {
			return nil, p.typeMismatch(BlockNumber(0), v)
		}
		return c.Encode(uint64(n))
	case PropertyInput:
		data, ok := v.(CallData)
		if !ok {
			return nil, p.typeMismatch(CallData(nil), v)
		}
		return bytes.Clone(data), nil
	default:
		return nil, fmt.Errorf("encode %s: unknown property", p)
	}
}

func (p Property) typeMismatch(want, got any) error {
	return fmt.Errorf("property %s holds %T, got %T", p, want, got)
}
