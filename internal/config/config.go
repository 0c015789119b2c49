package config

import "fmt"

// Config carries the launch geometry for the sampling kernels and the
// runtime knobs of the surrounding harness.
type Config struct {
	// ThreadgroupSize is the number of lock-step workers per
	// threadgroup. Must be a multiple of SimdWidth.
	ThreadgroupSize int

	// SimdWidth is the cluster width used by the cross-lane
	// reduction primitives.
	SimdWidth int

	// MaxThreadgroups caps how many tiles a score vector is split
	// into. The categorical-sample kernel resolves one partial sum
	// per worker, so this may not exceed ThreadgroupSize.
	MaxThreadgroups int

	// MaxConcurrentThreadgroups bounds how many tiles run at once.
	// Zero means one per CPU.
	MaxConcurrentThreadgroups int

	VocabSize   int
	Temperature float32
	Seed        uint64

	// ListenAddr enables the health/metrics endpoint when non-empty.
	ListenAddr string

	// TracePath enables the Arrow sampling trace when non-empty.
	TracePath string

	LogLevel  string
	LogFormat string
}

func (c *Config) Validate() error {
	if c.ThreadgroupSize <= 0 {
		return fmt.Errorf("invalid threadgroup_size: %d (must be positive)", c.ThreadgroupSize)
	}
	if c.SimdWidth <= 0 {
		return fmt.Errorf("invalid simd_width: %d (must be positive)", c.SimdWidth)
	}
	if c.ThreadgroupSize%c.SimdWidth != 0 {
		return fmt.Errorf("threadgroup_size %d is not a multiple of simd_width %d", c.ThreadgroupSize, c.SimdWidth)
	}
	if c.MaxThreadgroups <= 0 {
		return fmt.Errorf("invalid max_threadgroups: %d (must be positive)", c.MaxThreadgroups)
	}
	if c.MaxThreadgroups > c.ThreadgroupSize {
		return fmt.Errorf("max_threadgroups %d exceeds threadgroup_size %d", c.MaxThreadgroups, c.ThreadgroupSize)
	}
	if c.MaxConcurrentThreadgroups < 0 {
		return fmt.Errorf("invalid max_concurrent_threadgroups: %d (must be non-negative)", c.MaxConcurrentThreadgroups)
	}
	if c.VocabSize <= 0 {
		return fmt.Errorf("invalid vocab_size: %d (must be positive)", c.VocabSize)
	}
	if c.Temperature < 0 {
		return fmt.Errorf("invalid temperature: %f (must be non-negative)", c.Temperature)
	}
	return nil
}

func Default() Config {
	return Config{
		ThreadgroupSize: 128,
		SimdWidth:       32,
		MaxThreadgroups: 128,
		VocabSize:       32768,
		Temperature:     1.0,
		LogLevel:        "INFO",
		LogFormat:       "console",
	}
}
