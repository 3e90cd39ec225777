package service

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"semsearch/internal/domain"
)

// Option configures the service components.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger. A nil logger keeps the no-op default.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// unavailable tags err as ErrServiceUnavailable while keeping the cause matchable.
func unavailable(op string, err error) error {
	if errors.Is(err, domain.ErrServiceUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrServiceUnavailable, op, err)
}
