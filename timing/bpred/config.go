package bpred

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid branch predictor config")

// Predictor types accepted in Config.Type.
const (
	TypeGAs     = "gas"
	TypeBimodal = "bimodal"
)

// Config holds the construction parameters of a branch predictor. It is
// fixed once the predictor is built.
type Config struct {
	// Type selects the predictor strategy: "gas" or "bimodal".
	// Default: "gas".
	Type string `json:"type"`

	// CounterBits is the width of every pattern history table entry.
	// Default: 2.
	CounterBits uint8 `json:"counter_bits"`

	// HistoryBits is the width of each thread's global history register.
	// Every pattern history table holds 2^HistoryBits entries.
	// Default: 12.
	HistoryBits uint `json:"history_bits"`

	// TableBits selects 2^TableBits pattern history tables by address.
	// The bimodal predictor uses it as its table size exponent.
	// Default: 4.
	TableBits uint `json:"table_bits"`

	// NumThreads is the number of hardware threads, one history register each.
	// Default: 1.
	NumThreads int `json:"num_threads"`

	// InstShiftAmt is the instruction alignment; address bits below it never
	// select a table. Default: 2 (4-byte ARM64 instructions).
	InstShiftAmt uint `json:"inst_shift_amt"`
}

// DefaultConfig returns the default GAs configuration.
func DefaultConfig() *Config {
	return &Config{
		Type:         TypeGAs,
		CounterBits:  2,
		HistoryBits:  12,
		TableBits:    4,
		NumThreads:   1,
		InstShiftAmt: 2,
	}
}

// LoadConfig loads a Config from a JSON file. Fields absent from the file
// keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read predictor config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse predictor config: %w", err)
	}

	return config, nil
}

// SaveConfig writes the Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize predictor config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write predictor config file: %w", err)
	}

	return nil
}

// Validate rejects configurations whose index masks or prediction test
// would degenerate.
func (c *Config) Validate() error {
	switch c.Type {
	case TypeGAs, TypeBimodal:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidConfig, c.Type)
	}
	if c.CounterBits == 0 || c.CounterBits > 8 {
		return fmt.Errorf("%w: counter_bits must be in [1, 8]", ErrInvalidConfig)
	}
	if c.HistoryBits == 0 || c.HistoryBits > 32 {
		return fmt.Errorf("%w: history_bits must be in [1, 32]", ErrInvalidConfig)
	}
	if c.TableBits == 0 || c.TableBits > 24 {
		return fmt.Errorf("%w: table_bits must be in [1, 24]", ErrInvalidConfig)
	}
	if c.Type == TypeGAs && c.HistoryBits+c.TableBits > 32 {
		return fmt.Errorf("%w: history_bits + table_bits must be <= 32", ErrInvalidConfig)
	}
	if c.NumThreads < 1 {
		return fmt.Errorf("%w: num_threads must be > 0", ErrInvalidConfig)
	}
	if c.InstShiftAmt > 63 {
		return fmt.Errorf("%w: inst_shift_amt must be < 64", ErrInvalidConfig)
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
