package types

// GasSchedule prices host operations for metering hosts.
type GasSchedule struct {
	// DefaultLimit is used for top level calls that pass a gas limit of zero.
	DefaultLimit Gas `yaml:"default_limit" json:"default_limit" validate:"gt=0"`
	// HostCall is charged for every host function.
	HostCall Gas `yaml:"host_call" json:"host_call"`
	// PerByte is charged for every byte read from or written to storage or events.
	PerByte      Gas `yaml:"per_byte" json:"per_byte"`
	StorageRead  Gas `yaml:"storage_read" json:"storage_read"`
	StorageWrite Gas `yaml:"storage_write" json:"storage_write"`
	Call         Gas `yaml:"call" json:"call"`
	Instantiate  Gas `yaml:"instantiate" json:"instantiate"`
	Event        Gas `yaml:"event" json:"event"`
}

// GasCost represents a gas cost with base and per-unit components
type GasCost struct {
	BaseCost Gas
	PerUnit  Gas
}

// TotalCost calculates total gas cost for an operation
func (g GasCost) TotalCost(units uint64) Gas {
	return g.BaseCost + (g.PerUnit * units)
}

// DefaultGasSchedule returns the schedule used by the simulator.
func DefaultGasSchedule() GasSchedule {
	return GasSchedule{
		DefaultLimit: 10_000_000,
		HostCall:     100,
		PerByte:      1,
		StorageRead:  1_000,
		StorageWrite: 5_000,
		Call:         10_000,
		Instantiate:  50_000,
		Event:        2_000,
	}
}

// StorageReadCost is the cost of reading n bytes from storage.
func (s GasSchedule) StorageReadCost() GasCost {
	return GasCost{BaseCost: s.StorageRead, PerUnit: s.PerByte}
}

// StorageWriteCost is the cost of writing n bytes to storage.
func (s GasSchedule) StorageWriteCost() GasCost {
	return GasCost{BaseCost: s.StorageWrite, PerUnit: s.PerByte}
}

// EventCost is the cost of emitting an event of n bytes.
func (s GasSchedule) EventCost() GasCost {
	return GasCost{BaseCost: s.Event, PerUnit: s.PerByte}
}
