package offchain

import (
	"github.com/wasmenv/contractenv/instance"
)

// Contract is code the engine can execute. Deploy runs once when an account
// is instantiated from the code, Call for every message sent to it. Both get
// a fresh Instance for the invocation.
type Contract interface {
	Deploy(inst *instance.Instance) error
	Call(inst *instance.Instance) error
}

// ContractFuncs adapts plain functions to Contract. A nil DeployFunc
// deploys without running any code.
type ContractFuncs struct {
	DeployFunc func(inst *instance.Instance) error
	CallFunc   func(inst *instance.Instance) error
}

var _ Contract = ContractFuncs{}

func (c ContractFuncs) Deploy(inst *instance.Instance) error {
	if c.DeployFunc == nil {
		return nil
	}
	return c.DeployFunc(inst)
}

func (c ContractFuncs) Call(inst *instance.Instance) error {
	if c.CallFunc == nil {
		return nil
	}
	return c.CallFunc(inst)
}
