package types

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// validate is shared; validator.New is expensive and the result is safe to reuse.
var validate = validator.New()

// Config configures instances and the simulated host.
type Config struct {
	Buffer  BufferConfig  `yaml:"buffer" json:"buffer"`
	Gas     GasSchedule   `yaml:"gas" json:"gas"`
	Storage StorageConfig `yaml:"storage" json:"storage"`
	Log     LogConfig     `yaml:"log" json:"log"`
}

// BufferConfig sizes the scratch buffer of an instance.
type BufferConfig struct {
	// InitialCapacity is allocated once when the instance is created.
	InitialCapacity int `yaml:"initial_capacity" json:"initial_capacity" validate:"gte=0"`
	// MaxSize bounds any single value crossing the Wasm boundary.
	MaxSize int `yaml:"max_size" json:"max_size" validate:"gt=0,gtefield=InitialCapacity"`
}

// Storage backends understood by the simulator.
const (
	BackendMemDB     = "memdb"
	BackendGoLevelDB = "goleveldb"
)

type StorageConfig struct {
	Backend string `yaml:"backend" json:"backend" validate:"oneof=memdb goleveldb"`
	Dir     string `yaml:"dir" json:"dir" validate:"required_if=Backend goleveldb"`
	Name    string `yaml:"name" json:"name" validate:"required"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `yaml:"format" json:"format" validate:"oneof=console json"`
}

// DefaultConfig returns a configuration backed by an in-memory store.
func DefaultConfig() Config {
	return Config{
		Buffer: BufferConfig{
			InitialCapacity: 1024,
			MaxSize:         16 * 1024 * 1024,
		},
		Gas: DefaultGasSchedule(),
		Storage: StorageConfig{
			Backend: BackendMemDB,
			Name:    "contractenv",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the configuration against its validation tags.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// LoadConfig reads a YAML file on top of DefaultConfig and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	bz, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(bz, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}
