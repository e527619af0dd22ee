package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// HashLen is the length of a Hash in bytes.
const HashLen = 32

// AccountIDLen is the length of an AccountID in bytes.
const AccountIDLen = 32

// KeyLen is the length of a storage Key in bytes.
const KeyLen = 32

// Hash is a 32 byte digest. Code references and host randomness are hashes.
type Hash [HashLen]byte

// AccountID identifies a user or contract account.
type AccountID [AccountIDLen]byte

// Key addresses one entry of a contract's storage.
type Key [KeyLen]byte

var errWrongLength = errors.New("got wrong number of bytes")

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns the hash as a byte slice.
func (h Hash) Bytes() []byte {
	return h[:]
}

// IsZero reports whether all bytes of the hash are zero.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// MarshalText implements encoding.TextMarshaler as lower case hex.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, accepting an optional 0x prefix.
func (h *Hash) UnmarshalText(text []byte) error {
	return decodeFixedHex(h[:], string(text))
}

// NewHash creates a Hash from a byte slice.
// Returns an error if the slice length is not HashLen.
func NewHash(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashLen {
		return h, fmt.Errorf("hash: %w: %d", errWrongLength, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// ForceNewHash creates a Hash from a hex string.
// It panics in case the input is invalid.
func ForceNewHash(input string) Hash {
	var h Hash
	if err := decodeFixedHex(h[:], input); err != nil {
		panic(err)
	}
	return h
}

// HashOf returns the blake2b-256 digest of the concatenated parts.
func HashOf(parts ...[]byte) Hash {
	hasher, err := blake2b.New256(nil)
	if err != nil {
		// only fails for keys longer than 64 bytes
		panic(err)
	}
	for _, p := range parts {
		hasher.Write(p)
	}
	var h Hash
	copy(h[:], hasher.Sum(nil))
	return h
}

func (a AccountID) String() string {
	return hex.EncodeToString(a[:])
}

// Bytes returns the account id as a byte slice.
func (a AccountID) Bytes() []byte {
	return a[:]
}

// IsZero reports whether this is the zero account.
func (a AccountID) IsZero() bool {
	return a == AccountID{}
}

// MarshalText implements encoding.TextMarshaler as lower case hex.
func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, accepting an optional 0x prefix.
func (a *AccountID) UnmarshalText(text []byte) error {
	return decodeFixedHex(a[:], string(text))
}

// NewAccountID creates an AccountID from a byte slice of exactly AccountIDLen bytes.
func NewAccountID(b []byte) (AccountID, error) {
	var a AccountID
	if len(b) != AccountIDLen {
		return a, fmt.Errorf("account id: %w: %d", errWrongLength, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// ParseAccountID parses a hex encoded account id with an optional 0x prefix.
func ParseAccountID(s string) (AccountID, error) {
	var a AccountID
	err := decodeFixedHex(a[:], s)
	return a, err
}

// AccountIDFromName derives a deterministic account id from a human label.
// Handy for tests and the simulator, where accounts have no key pairs.
func AccountIDFromName(name string) AccountID {
	return AccountID(HashOf([]byte("account:"), []byte(name)))
}

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// Bytes returns the key as a byte slice.
func (k Key) Bytes() []byte {
	return k[:]
}

// NewKey creates a Key from a byte slice of exactly KeyLen bytes.
func NewKey(b []byte) (Key, error) {
	var k Key
	if len(b) != KeyLen {
		return k, fmt.Errorf("key: %w: %d", errWrongLength, len(b))
	}
	copy(k[:], b)
	return k, nil
}

// KeyFor derives a storage key from a field name.
func KeyFor(name string) Key {
	return Key(HashOf([]byte(name)))
}

func decodeFixedHex(dst []byte, s string) error {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	data, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(data) != len(dst) {
		return fmt.Errorf("%w: want %d, got %d", errWrongLength, len(dst), len(data))
	}
	copy(dst, data)
	return nil
}
