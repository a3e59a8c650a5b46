package frontend

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrInvalidConfig is wrapped by every front end validation failure.
var ErrInvalidConfig = errors.New("invalid front end config")

// Config holds the front end parameters.
type Config struct {
	// Depth is the number of branches a thread may keep in flight before the
	// oldest one resolves. Default: 8.
	Depth int `json:"depth"`

	// MispredictPenalty is the number of cycles charged per misprediction.
	// Default: 12.
	MispredictPenalty uint64 `json:"mispredict_penalty"`

	// BTBSize is the number of entries in the target presence table. It must
	// be a power of two; 0 disables the table. Default: 256.
	BTBSize uint32 `json:"btb_size"`
}

// DefaultConfig returns the default front end configuration.
func DefaultConfig() *Config {
	return &Config{
		Depth:             8,
		MispredictPenalty: 12,
		BTBSize:           256,
	}
}

// LoadConfig loads a Config from a JSON file. Fields absent from the file
// keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read front end config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse front end config: %w", err)
	}

	return config, nil
}

// Validate checks the window depth and presence table size.
func (c *Config) Validate() error {
	if c.Depth < 1 {
		return fmt.Errorf("%w: depth must be > 0", ErrInvalidConfig)
	}
	if c.BTBSize&(c.BTBSize-1) != 0 {
		return fmt.Errorf("%w: btb_size must be a power of two", ErrInvalidConfig)
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
