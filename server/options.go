// File: server/options.go
// Package server defines functional options for Server and PacketServer.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/momentics/hioload-sock/pool"
	"go.uber.org/zap"
)

type options struct {
	cfg        *Config
	logger     *zap.Logger
	middleware []Middleware
	pool       *pool.BytePool
}

func buildOptions(opts []Option) *options {
	o := &options{cfg: DefaultConfig(), logger: zap.NewNop()}
	for _, fn := range opts {
		fn(o)
	}
	if o.pool == nil {
		o.pool = pool.NewBytePool(o.cfg.BufferSize, o.cfg.PoolLimit)
	}
	return o
}

// Option customizes server initialization.
type Option func(*options)

// WithConfig replaces the default tuning.
func WithConfig(cfg *Config) Option {
	return func(o *options) {
		if cfg != nil {
			o.cfg = cfg
		}
	}
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMiddleware attaches middleware in FIFO order.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) {
		o.middleware = append(o.middleware, mw...)
	}
}

// WithBufferPool shares a buffer pool between servers.
func WithBufferPool(p *pool.BytePool) Option {
	return func(o *options) {
		o.pool = p
	}
}
