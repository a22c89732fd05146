// Package config defines the configuration inputs consumed by the
// provider, buffer pools, and server runtime.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package config

// Flavor selects the concrete Async I/O Provider implementation.
type Flavor string

const (
	FlavorRIO      Flavor = "rio"
	FlavorIOURing  Flavor = "iouring"
	FlavorEpoll    Flavor = "epoll"
	FlavorKqueue   Flavor = "kqueue"
)

// BufferPoolConfig sizes a slab.Pool.
type BufferPoolConfig struct {
	SlotSize int
	PoolSize int
}

// Config collects every configuration input enumerated by the provider
// contract.
type Config struct {
	QueueDepth    int
	MaxConcurrent int

	BufferPool BufferPoolConfig
	SendPool   BufferPoolConfig

	ProviderFlavor Flavor
}

// DefaultConfig returns the documented defaults: queue depth 1024, 128
// max concurrent requests, 64 KiB slots sized for peak concurrent
// recv/send traffic.
func DefaultConfig() *Config {
	return &Config{
		QueueDepth:    1024,
		MaxConcurrent: 128,
		BufferPool: BufferPoolConfig{
			SlotSize: 65536,
			PoolSize: 256,
		},
		SendPool: BufferPoolConfig{
			SlotSize: 65536,
			PoolSize: 256,
		},
		ProviderFlavor: defaultFlavor(),
	}
}

// Option mutates a Config during construction.
type Option func(*Config)

// WithQueueDepth overrides the completion queue depth.
func WithQueueDepth(n int) Option { return func(c *Config) { c.QueueDepth = n } }

// WithMaxConcurrent overrides the max in-flight request count.
func WithMaxConcurrent(n int) Option { return func(c *Config) { c.MaxConcurrent = n } }

// WithBufferPool overrides the recv buffer pool sizing.
func WithBufferPool(slotSize, poolSize int) Option {
	return func(c *Config) { c.BufferPool = BufferPoolConfig{SlotSize: slotSize, PoolSize: poolSize} }
}

// WithSendPool overrides the send buffer pool sizing.
func WithSendPool(slotSize, poolSize int) Option {
	return func(c *Config) { c.SendPool = BufferPoolConfig{SlotSize: slotSize, PoolSize: poolSize} }
}

// WithFlavor overrides the provider flavor selected at build time.
func WithFlavor(f Flavor) Option { return func(c *Config) { c.ProviderFlavor = f } }

// New builds a Config starting from DefaultConfig and applying opts.
func New(opts ...Option) *Config {
	c := DefaultConfig()
	for _, o := range opts {
		o(c)
	}
	if c.QueueDepth < c.MaxConcurrent {
		c.QueueDepth = c.MaxConcurrent
	}
	return c
}
