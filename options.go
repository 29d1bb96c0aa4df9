/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package dataprovider

import (
	"github.com/suparena/dataprovider/metrics"
	"github.com/suparena/dataprovider/pagination"
	"go.uber.org/zap"
)

type options struct {
	cursors *pagination.Store
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func defaultOptions() options {
	return options{
		cursors: pagination.NewStore(),
		logger:  zap.NewNop(),
	}
}

// Option configures a Provider.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCursorStore shares a cursor store between providers. Cursors are
// keyed by query name, arguments and page size, so providers sharing a
// store must not register the same query name for different backends.
func WithCursorStore(store *pagination.Store) Option {
	return func(o *options) {
		if store != nil {
			o.cursors = store
		}
	}
}

// WithMetrics records backend calls, out-of-range pages and batch failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}
