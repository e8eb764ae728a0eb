// Package config carries the build-time kernel configuration contract: the
// tick rate, priority count, and heap scheme a kernel build is compiled
// with. The rtos layer validates task priorities and converts durations
// against these values, so they must match the kernel image exactly.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"keel/kernel"
)

// Timer configures the software timer service task.
type Timer struct {
	// TaskPriority is the priority of the timer daemon task. Callbacks run
	// at this priority, so it is normally near the top of the range.
	TaskPriority uint8 `yaml:"task_priority"`
	// QueueLen sizes the timer command queue.
	QueueLen int `yaml:"queue_len"`
	// TaskStackBytes sizes the daemon task stack.
	TaskStackBytes int `yaml:"task_stack_bytes"`
}

// Config mirrors the configuration header a kernel build is produced from.
type Config struct {
	TickRateHz    int   `yaml:"tick_rate_hz"`
	MaxPriorities uint8 `yaml:"max_priorities"`
	HeapBytes     int   `yaml:"heap_bytes"`
	MinStackBytes int   `yaml:"min_stack_bytes"`
	Timer         Timer `yaml:"timer"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		TickRateHz:    1000,
		MaxPriorities: 8,
		HeapBytes:     64 << 10,
		MinStackBytes: 512,
		Timer: Timer{
			TaskPriority:   7,
			QueueLen:       16,
			TaskStackBytes: 1024,
		},
	}
}

// Load reads a YAML configuration file. Fields left unset fall back to
// Default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	if c.TickRateHz <= 0 || c.TickRateHz > kernel.MaxTickRateHz {
		return fmt.Errorf("config: tick_rate_hz must be in 1..%d, got %d",
			kernel.MaxTickRateHz, c.TickRateHz)
	}
	if c.MaxPriorities < 1 || c.MaxPriorities > kernel.MaxSupportedPriorities {
		return fmt.Errorf("config: max_priorities must be in 1..%d, got %d",
			kernel.MaxSupportedPriorities, c.MaxPriorities)
	}
	if c.HeapBytes <= 0 {
		return fmt.Errorf("config: heap_bytes must be positive, got %d", c.HeapBytes)
	}
	if c.MinStackBytes <= 0 {
		return fmt.Errorf("config: min_stack_bytes must be positive, got %d", c.MinStackBytes)
	}
	if c.Timer.TaskPriority >= c.MaxPriorities {
		return fmt.Errorf("config: timer task_priority %d out of range (max_priorities %d)",
			c.Timer.TaskPriority, c.MaxPriorities)
	}
	if c.Timer.QueueLen <= 0 {
		return fmt.Errorf("config: timer queue_len must be positive, got %d", c.Timer.QueueLen)
	}
	if c.Timer.TaskStackBytes <= 0 {
		return fmt.Errorf("config: timer task_stack_bytes must be positive, got %d", c.Timer.TaskStackBytes)
	}
	return nil
}

// Kernel converts the contract into the kernel build parameters.
func (c Config) Kernel() kernel.Config {
	return kernel.Config{
		MaxPriorities: c.MaxPriorities,
		TickRateHz:    c.TickRateHz,
		HeapBytes:     c.HeapBytes,
		MinStackBytes: c.MinStackBytes,
	}
}
