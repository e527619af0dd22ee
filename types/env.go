package types

//---------- Environment ---------

// Environment is the capability a host implements once per target. The
// instance funnels every boundary operation through it.
//
// Every method that produces bytes receives the instance's scratch buffer with
// length zero. Implementations append their output to it and return the
// result; the returned slice becomes the instance's scratch buffer, so it must
// not be retained or shared by the host.
//
// Errors returned by Invoke, Evaluate and Instantiate must belong to the call
// taxonomy (see IsCallError). Any other error is a host malfunction.
type Environment interface {
	GetProperty(p Property, scratch []byte) ([]byte, error)
	SetProperty(p Property, scratch []byte, value []byte) error

	// GetStorage reports ok=false for an absent key.
	GetStorage(key Key, scratch []byte) (value []byte, ok bool, err error)
	SetStorage(key Key, value []byte) error
	ClearStorage(key Key) error

	Invoke(scratch []byte, req CallRequest) error
	Evaluate(scratch []byte, req CallRequest) ([]byte, error)
	Instantiate(scratch []byte, req CreateRequest) (AccountID, error)

	EmitEvent(scratch []byte, data []byte, topics []Hash) error
	Random(scratch []byte, subject []byte) (Hash, error)
	Println(text string)

	// GetRuntimeValue reads the host's own storage, outside of any contract.
	GetRuntimeValue(key []byte, scratch []byte) (value []byte, ok bool, err error)

	// SetReturnValue hands the encoded return value of the invocation to the host.
	SetReturnValue(scratch []byte, data []byte) error
}

// Event is anything a contract can emit. The event value itself is encoded as
// the event data; Topics lists the indexed topics.
type Event interface {
	Topics() []Hash
}
