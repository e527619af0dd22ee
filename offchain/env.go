package offchain

import (
	"bytes"
	"fmt"

	"github.com/wasmenv/contractenv/types"
)

// frameEnv is the types.Environment of one frame.
type frameEnv struct {
	engine *Engine
	frame  *frame
}

var _ types.Environment = (*frameEnv)(nil)

func (fe *frameEnv) schedule() types.GasSchedule {
	return fe.engine.cfg.Gas
}

func (fe *frameEnv) GetProperty(p types.Property, scratch []byte) ([]byte, error) {
	fe.frame.charge(fe.schedule().HostCall, "get_property")
	v, err := fe.property(p)
	if err != nil {
		return nil, err
	}
	raw, err := p.Encode(fe.engine.codec, v)
	if err != nil {
		return nil, err
	}
	return append(scratch, raw...), nil
}

func (fe *frameEnv) property(p types.Property) (any, error) {
	f, chain := fe.frame, fe.engine.chain
	switch p {
	case types.PropertyCaller:
		return f.caller, nil
	case types.PropertyTransferredBalance:
		return f.value, nil
	case types.PropertyGasPrice:
		return chain.GasPrice, nil
	case types.PropertyGasLeft:
		return types.Balance(f.gasLeft()), nil
	case types.PropertyNowInMs:
		return chain.NowInMs, nil
	case types.PropertyAddress:
		return f.address, nil
	case types.PropertyBalance, types.PropertyRentAllowance:
		acct, _, err := fe.engine.loadAccount(f.address)
		if err != nil {
			return nil, err
		}
		if p == types.PropertyBalance {
			return acct.Balance, nil
		}
		return acct.RentAllowance, nil
	case types.PropertyBlockNumber:
		return chain.Block, nil
	case types.PropertyMinimumBalance:
		return chain.MinimumBalance, nil
	case types.PropertyInput:
		return f.input, nil
	default:
		return nil, fmt.Errorf("%w: property %s", types.ErrUnsupported, p)
	}
}

func (fe *frameEnv) SetProperty(p types.Property, _ []byte, value []byte) error {
	fe.frame.charge(fe.schedule().HostCall, "set_property")
	if p != types.PropertyRentAllowance {
		return fmt.Errorf("%w: property %s is read only", types.ErrUnsupported, p)
	}
	v, err := p.Decode(fe.engine.codec, value)
	if err != nil {
		return err
	}
	acct, _, err := fe.engine.loadAccount(fe.frame.address)
	if err != nil {
		return err
	}
	acct.RentAllowance = v.(types.Balance)
	return fe.engine.storeAccount(fe.frame.address, acct)
}

func (fe *frameEnv) GetStorage(key types.Key, scratch []byte) ([]byte, bool, error) {
	v, ok, err := fe.engine.read(storageKey(fe.frame.address, key))
	if err != nil {
		return nil, false, err
	}
	fe.frame.charge(fe.schedule().StorageReadCost().TotalCost(uint64(len(v))), "get_storage")
	return append(scratch, v...), ok, nil
}

func (fe *frameEnv) SetStorage(key types.Key, value []byte) error {
	fe.frame.charge(fe.schedule().StorageWriteCost().TotalCost(uint64(len(value))), "set_storage")
	fe.engine.top().writes.set(storageKey(fe.frame.address, key), bytes.Clone(value))
	return nil
}

func (fe *frameEnv) ClearStorage(key types.Key) error {
	fe.frame.charge(fe.schedule().StorageWrite, "clear_storage")
	fe.engine.top().writes.delete(storageKey(fe.frame.address, key))
	return nil
}

func (fe *frameEnv) Invoke(_ []byte, req types.CallRequest) error {
	_, err := fe.nested(req)
	return err
}

func (fe *frameEnv) Evaluate(scratch []byte, req types.CallRequest) ([]byte, error) {
	out, err := fe.nested(req)
	if err != nil {
		return nil, err
	}
	return append(scratch, out...), nil
}

func (fe *frameEnv) nested(req types.CallRequest) ([]byte, error) {
	fe.frame.charge(fe.schedule().Call, "call")
	limit := fe.frame.childGas(req.GasLimit)
	out, used, err := fe.engine.call(fe.frame.address, req.Callee, req.Endowment, limit, req.Input())
	fe.frame.gasUsed += used
	if err != nil {
		fe.engine.logger.Debug().Err(err).Stringer("caller", fe.frame.address).Stringer("callee", req.Callee).Msg("nested call failed")
		return nil, err
	}
	return out, nil
}

func (fe *frameEnv) Instantiate(_ []byte, req types.CreateRequest) (types.AccountID, error) {
	fe.frame.charge(fe.schedule().Instantiate, "instantiate")
	limit := fe.frame.childGas(req.GasLimit)
	addr, used, err := fe.engine.instantiate(fe.frame.address, req.CodeHash, req.Endowment, limit, req.Input())
	fe.frame.gasUsed += used
	if err != nil {
		fe.engine.logger.Debug().Err(err).Stringer("caller", fe.frame.address).Stringer("code_hash", req.CodeHash).Msg("nested instantiation failed")
		return types.AccountID{}, err
	}
	return addr, nil
}

func (fe *frameEnv) EmitEvent(_ []byte, data []byte, topics []types.Hash) error {
	size := len(data) + len(topics)*types.HashLen
	fe.frame.charge(fe.schedule().EventCost().TotalCost(uint64(size)), "deposit_event")
	fe.frame.events = append(fe.frame.events, Event{
		Emitter: fe.frame.address,
		Data:    bytes.Clone(data),
		Topics:  append([]types.Hash(nil), topics...),
	})
	return nil
}

// Random derives randomness from the chain seed, the block number and subject.
func (fe *frameEnv) Random(_ []byte, subject []byte) (types.Hash, error) {
	fe.frame.charge(fe.schedule().HostCall, "random")
	chain := fe.engine.chain
	return types.HashOf(chain.Seed, uint64Bytes(uint64(chain.Block)), subject), nil
}

func (fe *frameEnv) Println(text string) {
	fe.engine.printed = append(fe.engine.printed, text)
	fe.engine.logger.Info().Stringer("contract", fe.frame.address).Msg(text)
}

func (fe *frameEnv) GetRuntimeValue(key []byte, scratch []byte) ([]byte, bool, error) {
	fe.frame.charge(fe.schedule().StorageRead, "get_runtime_storage")
	if len(key) == 0 {
		return scratch, false, nil
	}
	v, err := fe.engine.runtime.Get(key)
	if err != nil {
		return nil, false, err
	}
	return append(scratch, v...), v != nil, nil
}

func (fe *frameEnv) SetReturnValue(_ []byte, data []byte) error {
	fe.frame.output = bytes.Clone(data)
	return nil
}
