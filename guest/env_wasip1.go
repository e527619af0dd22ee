//go:build wasip1

package guest

import (
	"runtime"
	"unsafe"

	"github.com/wasmenv/contractenv/codec"
	"github.com/wasmenv/contractenv/types"
)

//go:wasmimport seal0 get_property
func sealGetProperty(prop, outPtr, outLenPtr uint32) uint32

//go:wasmimport seal0 set_property
func sealSetProperty(prop, valuePtr, valueLen uint32) uint32

//go:wasmimport seal0 get_storage
func sealGetStorage(keyPtr, outPtr, outLenPtr uint32) uint32

//go:wasmimport seal0 set_storage
func sealSetStorage(keyPtr, valuePtr, valueLen uint32) uint32

//go:wasmimport seal0 clear_storage
func sealClearStorage(keyPtr uint32) uint32

//go:wasmimport seal0 call
func sealCall(reqPtr, reqLen uint32) uint32

//go:wasmimport seal0 evaluate
func sealEvaluate(reqPtr, reqLen, outPtr, outLenPtr uint32) uint32

//go:wasmimport seal0 instantiate
func sealInstantiate(reqPtr, reqLen, addrPtr uint32) uint32

//go:wasmimport seal0 deposit_event
func sealDepositEvent(dataPtr, dataLen, topicsPtr, topicsLen uint32) uint32

//go:wasmimport seal0 random
func sealRandom(subjectPtr, subjectLen, outPtr uint32) uint32

//go:wasmimport seal0 println
func sealPrintln(textPtr, textLen uint32)

//go:wasmimport seal0 get_runtime_storage
func sealGetRuntimeStorage(keyPtr, keyLen, outPtr, outLenPtr uint32) uint32

//go:wasmimport seal0 return_value
func sealReturnValue(dataPtr, dataLen uint32) uint32

//go:wasmimport seal0 take_output
func sealTakeOutput(outPtr, outLenPtr uint32) uint32

// Environment calls the host module. It has no state of its own: outputs
// land in the scratch buffer of the instance.
type Environment struct{}

// NewEnvironment returns the environment of this module.
func NewEnvironment() *Environment {
	return &Environment{}
}

func ptrOf(b []byte) uint32 {
	if cap(b) == 0 {
		return 0
	}
	return uint32(uintptr(unsafe.Pointer(unsafe.SliceData(b))))
}

// receive lets fn fill scratch, fetching the output with take_output when
// the host reports that scratch is too small.
func receive(scratch []byte, fn func(outPtr, outLenPtr uint32) uint32) ([]byte, types.ReturnCode) {
	buf := scratch[:cap(scratch)]
	n := uint32(len(buf))
	rc := types.ReturnCode(fn(ptrOf(buf), uint32(uintptr(unsafe.Pointer(&n)))))
	if rc == types.ReturnBufferTooSmall {
		buf = make([]byte, n)
		rc = types.ReturnCode(sealTakeOutput(ptrOf(buf), uint32(uintptr(unsafe.Pointer(&n)))))
	}
	runtime.KeepAlive(&n)
	if rc != types.ReturnSuccess {
		return nil, rc
	}
	return buf[:n], rc
}

func (*Environment) GetProperty(p types.Property, scratch []byte) ([]byte, error) {
	out, rc := receive(scratch, func(outPtr, outLenPtr uint32) uint32 {
		return sealGetProperty(uint32(p), outPtr, outLenPtr)
	})
	return out, rc.Err()
}

func (*Environment) SetProperty(p types.Property, _ []byte, value []byte) error {
	rc := sealSetProperty(uint32(p), ptrOf(value), uint32(len(value)))
	runtime.KeepAlive(value)
	return types.ReturnCode(rc).Err()
}

func (*Environment) GetStorage(key types.Key, scratch []byte) ([]byte, bool, error) {
	out, rc := receive(scratch, func(outPtr, outLenPtr uint32) uint32 {
		return sealGetStorage(ptrOf(key[:]), outPtr, outLenPtr)
	})
	runtime.KeepAlive(&key)
	if rc == types.ReturnKeyNotFound {
		return scratch, false, nil
	}
	return out, true, rc.Err()
}

func (*Environment) SetStorage(key types.Key, value []byte) error {
	rc := sealSetStorage(ptrOf(key[:]), ptrOf(value), uint32(len(value)))
	runtime.KeepAlive(&key)
	runtime.KeepAlive(value)
	return types.ReturnCode(rc).Err()
}

func (*Environment) ClearStorage(key types.Key) error {
	rc := sealClearStorage(ptrOf(key[:]))
	runtime.KeepAlive(&key)
	return types.ReturnCode(rc).Err()
}

func (*Environment) Invoke(_ []byte, req types.CallRequest) error {
	bz, err := req.Encode()
	if err != nil {
		return err
	}
	rc := sealCall(ptrOf(bz), uint32(len(bz)))
	runtime.KeepAlive(bz)
	return types.ReturnCode(rc).Err()
}

func (*Environment) Evaluate(scratch []byte, req types.CallRequest) ([]byte, error) {
	bz, err := req.Encode()
	if err != nil {
		return nil, err
	}
	out, rc := receive(scratch, func(outPtr, outLenPtr uint32) uint32 {
		return sealEvaluate(ptrOf(bz), uint32(len(bz)), outPtr, outLenPtr)
	})
	runtime.KeepAlive(bz)
	return out, rc.Err()
}

func (*Environment) Instantiate(_ []byte, req types.CreateRequest) (types.AccountID, error) {
	bz, err := req.Encode()
	if err != nil {
		return types.AccountID{}, err
	}
	var addr types.AccountID
	rc := sealInstantiate(ptrOf(bz), uint32(len(bz)), ptrOf(addr[:]))
	runtime.KeepAlive(bz)
	if err := types.ReturnCode(rc).Err(); err != nil {
		return types.AccountID{}, err
	}
	return addr, nil
}

func (*Environment) EmitEvent(_ []byte, data []byte, topics []types.Hash) error {
	if topics == nil {
		topics = []types.Hash{}
	}
	encoded, err := codec.Default.Encode(topics)
	if err != nil {
		return err
	}
	rc := sealDepositEvent(ptrOf(data), uint32(len(data)), ptrOf(encoded), uint32(len(encoded)))
	runtime.KeepAlive(data)
	runtime.KeepAlive(encoded)
	return types.ReturnCode(rc).Err()
}

func (*Environment) Random(_ []byte, subject []byte) (types.Hash, error) {
	var h types.Hash
	rc := sealRandom(ptrOf(subject), uint32(len(subject)), ptrOf(h[:]))
	runtime.KeepAlive(subject)
	if err := types.ReturnCode(rc).Err(); err != nil {
		return types.Hash{}, err
	}
	return h, nil
}

func (*Environment) Println(text string) {
	b := []byte(text)
	sealPrintln(ptrOf(b), uint32(len(b)))
	runtime.KeepAlive(b)
}

func (*Environment) GetRuntimeValue(key []byte, scratch []byte) ([]byte, bool, error) {
	out, rc := receive(scratch, func(outPtr, outLenPtr uint32) uint32 {
		return sealGetRuntimeStorage(ptrOf(key), uint32(len(key)), outPtr, outLenPtr)
	})
	runtime.KeepAlive(key)
	if rc == types.ReturnKeyNotFound {
		return scratch, false, nil
	}
	return out, true, rc.Err()
}

func (*Environment) SetReturnValue(_ []byte, data []byte) error {
	rc := sealReturnValue(ptrOf(data), uint32(len(data)))
	runtime.KeepAlive(data)
	return types.ReturnCode(rc).Err()
}
