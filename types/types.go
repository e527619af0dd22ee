// Package types provides the values that cross the boundary between a contract
// and its host: account and hash identifiers, the property taxonomy, call
// descriptors in their wire form, the host capability interface and the error
// taxonomy shared by guests and hosts.
package types

import (
	"strconv"
)

// Balance is the amount of value held by an account or transferred with a call.
type Balance uint64

func (b Balance) String() string {
	return strconv.FormatUint(uint64(b), 10)
}

// Moment is a block timestamp in milliseconds since the unix epoch.
type Moment uint64

func (m Moment) String() string {
	return strconv.FormatUint(uint64(m), 10)
}

// BlockNumber is the height of the block a contract executes in.
type BlockNumber uint64

func (n BlockNumber) String() string {
	return strconv.FormatUint(uint64(n), 10)
}

// Gas represents the amount of computational resources consumed during execution.
type Gas = uint64

// Unit is the return shape of a call that produces no value.
type Unit struct{}
