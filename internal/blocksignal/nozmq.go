//go:build !zmq

// Package blocksignal turns bitcoind ZMQ block notifications into wakeups.
package blocksignal

import (
	"context"

	"go.uber.org/zap"
)

// Start without zmq support: callers fall back to polling.
func Start(_ context.Context, addr string, logger *zap.Logger) (<-chan struct{}, error) {
	if addr != "" {
		logger.Warn("zmq block signal requested but binary built without zmq tag, polling instead", zap.String("addr", addr))
	}
	return nil, nil
}
