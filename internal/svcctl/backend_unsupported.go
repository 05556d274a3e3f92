//go:build !windows && !linux

package svcctl

import (
	"context"

	"go.uber.org/zap"
)

// NewBackend на прочих платформах управление службами недоступно
func NewBackend(ctx context.Context, logger *zap.Logger) (Backend, error) {
	return nil, ErrUnsupported
}
