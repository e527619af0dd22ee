package offchain

import (
	"encoding/binary"
	"fmt"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/google/btree"
	"github.com/shamaton/msgpack/v2"

	"github.com/wasmenv/contractenv/types"
)

// Key layout of the engine database.
var (
	prefixAccount = []byte("acct/")
	prefixStorage = []byte("store/")
	prefixRuntime = []byte("rt/")
	prefixCode    = []byte("code/")
	keyChainState = []byte("chain/state")
)

func accountKey(id types.AccountID) []byte {
	return append(append([]byte{}, prefixAccount...), id[:]...)
}

// storageKey namespaces contract storage by account.
func storageKey(id types.AccountID, key types.Key) []byte {
	out := make([]byte, 0, len(prefixStorage)+types.AccountIDLen+types.KeyLen)
	out = append(out, prefixStorage...)
	out = append(out, id[:]...)
	return append(out, key[:]...)
}

func codeKey(h types.Hash) []byte {
	return append(append([]byte{}, prefixCode...), h[:]...)
}

// Account is the record kept for every account.
type Account struct {
	Balance       types.Balance
	RentAllowance types.Balance
	// CodeHash is zero for accounts without code.
	CodeHash types.Hash
}

// IsContract reports whether the account runs code.
func (a Account) IsContract() bool {
	return !a.CodeHash.IsZero()
}

type accountRecord struct {
	Balance       uint64 `msgpack:"balance"`
	RentAllowance uint64 `msgpack:"rent_allowance"`
	CodeHash      []byte `msgpack:"code_hash,omitempty"`
}

func encodeAccount(a Account) ([]byte, error) {
	rec := accountRecord{
		Balance:       uint64(a.Balance),
		RentAllowance: uint64(a.RentAllowance),
	}
	if a.IsContract() {
		rec.CodeHash = a.CodeHash[:]
	}
	return msgpack.Marshal(rec)
}

func decodeAccount(bz []byte) (Account, error) {
	var rec accountRecord
	if err := msgpack.Unmarshal(bz, &rec); err != nil {
		return Account{}, fmt.Errorf("decode account: %w", err)
	}
	a := Account{
		Balance:       types.Balance(rec.Balance),
		RentAllowance: types.Balance(rec.RentAllowance),
	}
	if len(rec.CodeHash) > 0 {
		h, err := types.NewHash(rec.CodeHash)
		if err != nil {
			return Account{}, fmt.Errorf("decode account: %w", err)
		}
		a.CodeHash = h
	}
	return a, nil
}

// ChainState is the block context shared by all executions.
type ChainState struct {
	Block          types.BlockNumber `msgpack:"block"`
	NowInMs        types.Moment      `msgpack:"now_ms"`
	GasPrice       types.Balance     `msgpack:"gas_price"`
	MinimumBalance types.Balance     `msgpack:"minimum_balance"`
	Nonce          uint64            `msgpack:"nonce"`
	Seed           []byte            `msgpack:"seed"`
}

// BlockTime is how far AdvanceBlock moves the clock.
const BlockTime types.Moment = 6_000

func defaultChainState() ChainState {
	seed := types.HashOf([]byte("contractenv/offchain"))
	return ChainState{
		Block:    1,
		GasPrice: 1,
		Seed:     seed[:],
	}
}

func loadChainState(db dbm.DB) (ChainState, error) {
	bz, err := db.Get(keyChainState)
	if err != nil {
		return ChainState{}, err
	}
	if bz == nil {
		return defaultChainState(), nil
	}
	var cs ChainState
	if err := msgpack.Unmarshal(bz, &cs); err != nil {
		return ChainState{}, fmt.Errorf("decode chain state: %w", err)
	}
	return cs, nil
}

func (cs ChainState) encode() ([]byte, error) {
	return msgpack.Marshal(cs)
}

func uint64Bytes(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

// overlay buffers the writes of one execution frame in key order. A nil
// value is a delete.
type overlay struct {
	tree *btree.BTreeG[write]
}

type write struct {
	key   string
	value []byte
}

func writeLess(a, b write) bool { return a.key < b.key }

func newOverlay() *overlay {
	return &overlay{tree: btree.NewG(overlayDegree, writeLess)}
}

const overlayDegree = 8

func (o *overlay) get(key []byte) (value []byte, ok bool) {
	w, ok := o.tree.Get(write{key: string(key)})
	return w.value, ok
}

func (o *overlay) set(key, value []byte) {
	if value == nil {
		value = []byte{}
	}
	o.tree.ReplaceOrInsert(write{key: string(key), value: value})
}

func (o *overlay) delete(key []byte) {
	o.tree.ReplaceOrInsert(write{key: string(key)})
}

// mergeInto applies o on top of parent.
func (o *overlay) mergeInto(parent *overlay) {
	o.tree.Ascend(func(w write) bool {
		parent.tree.ReplaceOrInsert(w)
		return true
	})
}

// writeTo flushes o into a batch in ascending key order.
func (o *overlay) writeTo(batch dbm.Batch) (err error) {
	o.tree.Ascend(func(w write) bool {
		if w.value == nil {
			err = batch.Delete([]byte(w.key))
		} else {
			err = batch.Set([]byte(w.key), w.value)
		}
		return err == nil
	})
	return err
}
