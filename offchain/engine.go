// Package offchain simulates a contract host in process.
//
// The Engine keeps accounts, contract storage and runtime values in a
// cometbft-db database, runs contracts written against instance.Instance and
// meters their gas with the configured GasSchedule. Every execution runs in a
// frame; the writes of a frame are committed when it succeeds and dropped
// when it fails, so a failed nested call never leaves partial state behind.
package offchain

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/rs/zerolog"

	"github.com/wasmenv/contractenv/codec"
	"github.com/wasmenv/contractenv/types"
)

// maxCallDepth bounds nested calls.
const maxCallDepth = 32

// Event is an event deposited by a contract.
type Event struct {
	Emitter types.AccountID
	Data    []byte
	Topics  []types.Hash
}

// Engine is a simulated host. It is not safe for concurrent use.
type Engine struct {
	cfg    types.Config
	logger zerolog.Logger
	codec  codec.Codec

	db      dbm.DB
	runtime *dbm.PrefixDB

	chain  ChainState
	codes  map[types.Hash]Contract
	frames []*frame

	events      []Event
	printed     []string
	lastGasUsed types.Gas
}

// New opens the database selected by cfg.Storage.
func New(cfg types.Config, logger zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var (
		db  dbm.DB
		err error
	)
	switch cfg.Storage.Backend {
	case types.BackendMemDB:
		db = dbm.NewMemDB()
	default:
		db, err = dbm.NewDB(cfg.Storage.Name, dbm.BackendType(cfg.Storage.Backend), cfg.Storage.Dir)
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Backend, err)
		}
	}
	return NewWithDB(cfg, logger, db)
}

// NewWithDB runs the engine on an already opened database. The engine takes
// ownership of db.
func NewWithDB(cfg types.Config, logger zerolog.Logger, db dbm.DB) (*Engine, error) {
	chain, err := loadChainState(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Engine{
		cfg:     cfg,
		logger:  logger.With().Str("module", "offchain").Logger(),
		codec:   codec.Default,
		db:      db,
		runtime: dbm.NewPrefixDB(db, prefixRuntime),
		chain:   chain,
		codes:   make(map[types.Hash]Contract),
	}, nil
}

// Close closes the underlying database.
func (e *Engine) Close() error {
	return e.db.Close()
}

//---------- code ---------

// UploadCode registers contract code under name and returns its code hash,
// the blake2b-256 digest of name. Uploading the same name twice replaces the
// code. The code is not registered when its name cannot be persisted.
func (e *Engine) UploadCode(name string, c Contract) (types.Hash, error) {
	h := types.HashOf([]byte(name))
	if err := e.db.Set(codeKey(h), []byte(name)); err != nil {
		return types.Hash{}, fmt.Errorf("upload code %s: %w", name, err)
	}
	e.codes[h] = c
	e.logger.Debug().Str("code", name).Stringer("code_hash", h).Msg("code uploaded")
	return h, nil
}

// CodeName returns the name a code hash was uploaded under, also for code
// uploaded by an earlier engine on the same database.
func (e *Engine) CodeName(h types.Hash) (string, bool, error) {
	bz, err := e.db.Get(codeKey(h))
	if err != nil || bz == nil {
		return "", false, err
	}
	return string(bz), true, nil
}

//---------- accounts ---------

// CreateAccount creates a plain account with a balance. Its id is derived
// from name with types.AccountIDFromName.
func (e *Engine) CreateAccount(name string, balance types.Balance) (types.AccountID, error) {
	id := types.AccountIDFromName(name)
	_, exists, err := e.Account(id)
	if err != nil {
		return id, err
	}
	if exists {
		return id, fmt.Errorf("account %s (%s) already exists", name, id)
	}
	return id, e.putAccount(id, Account{Balance: balance})
}

// Account returns the record of id.
func (e *Engine) Account(id types.AccountID) (Account, bool, error) {
	bz, err := e.db.Get(accountKey(id))
	if err != nil || bz == nil {
		return Account{}, false, err
	}
	a, err := decodeAccount(bz)
	return a, err == nil, err
}

// Accounts lists all known accounts in key order.
func (e *Engine) Accounts() ([]types.AccountID, error) {
	it, err := dbm.IteratePrefix(e.db, prefixAccount)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var ids []types.AccountID
	for ; it.Valid(); it.Next() {
		id, err := types.NewAccountID(bytes.TrimPrefix(it.Key(), prefixAccount))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, it.Error()
}

// SetBalance sets the balance of id, creating a plain account if needed.
func (e *Engine) SetBalance(id types.AccountID, b types.Balance) error {
	a, _, err := e.Account(id)
	if err != nil {
		return err
	}
	a.Balance = b
	return e.putAccount(id, a)
}

// BalanceOf returns the balance of id, zero for unknown accounts.
func (e *Engine) BalanceOf(id types.AccountID) (types.Balance, error) {
	a, _, err := e.Account(id)
	return a.Balance, err
}

func (e *Engine) putAccount(id types.AccountID, a Account) error {
	bz, err := encodeAccount(a)
	if err != nil {
		return err
	}
	return e.db.Set(accountKey(id), bz)
}

// Storage returns the raw value a contract stored at key.
func (e *Engine) Storage(id types.AccountID, key types.Key) ([]byte, bool, error) {
	bz, err := e.db.Get(storageKey(id, key))
	if err != nil || bz == nil {
		return nil, false, err
	}
	return bz, true, nil
}

//---------- chain ---------

// Chain returns the current block context.
func (e *Engine) Chain() ChainState {
	return e.chain
}

// SetBlock moves the chain to block number at time nowInMs.
func (e *Engine) SetBlock(number types.BlockNumber, nowInMs types.Moment) error {
	e.chain.Block = number
	e.chain.NowInMs = nowInMs
	return e.saveChain()
}

// AdvanceBlock moves to the next block, BlockTime later.
func (e *Engine) AdvanceBlock() error {
	return e.SetBlock(e.chain.Block+1, e.chain.NowInMs+BlockTime)
}

func (e *Engine) SetGasPrice(p types.Balance) error {
	e.chain.GasPrice = p
	return e.saveChain()
}

func (e *Engine) SetMinimumBalance(b types.Balance) error {
	e.chain.MinimumBalance = b
	return e.saveChain()
}

func (e *Engine) saveChain() error {
	bz, err := e.chain.encode()
	if err != nil {
		return err
	}
	return e.db.Set(keyChainState, bz)
}

// SetRuntimeValue encodes v and stores it in the runtime storage contracts
// read with GetRuntimeValue.
func (e *Engine) SetRuntimeValue(key []byte, v any) error {
	if len(key) == 0 {
		return errors.New("empty runtime key")
	}
	bz, err := e.codec.Encode(v)
	if err != nil {
		return fmt.Errorf("encode runtime value %x: %w", key, err)
	}
	return e.runtime.Set(key, bz)
}

// RuntimeKeys lists the keys of the runtime storage, sorted.
func (e *Engine) RuntimeKeys() ([]string, error) {
	it, err := e.runtime.Iterator(nil, nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var keys []string
	for ; it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}
	sort.Strings(keys)
	return keys, it.Error()
}

//---------- records ---------

// Events returns the events of all committed executions in order.
func (e *Engine) Events() []Event {
	return append([]Event(nil), e.events...)
}

// Printed returns every line printed by contracts, including lines printed
// by executions that were rolled back.
func (e *Engine) Printed() []string {
	return append([]string(nil), e.printed...)
}

// LastGasUsed is the gas consumed by the last top level execution.
func (e *Engine) LastGasUsed() types.Gas {
	return e.lastGasUsed
}
