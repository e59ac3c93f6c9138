//go:build zmq

// Package blocksignal turns bitcoind ZMQ block notifications into wakeups.
package blocksignal

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/pebbe/zmq4"
	"go.uber.org/zap"
)

// Start subscribes to hashblock notifications at addr. Bursts coalesce into
// one pending wakeup. An empty addr returns a nil channel.
func Start(ctx context.Context, addr string, logger *zap.Logger) (<-chan struct{}, error) {
	if addr == "" {
		return nil, nil
	}

	sub, err := zmq4.NewSocket(zmq4.SUB)
	if err != nil {
		return nil, fmt.Errorf("zmq socket: %w", err)
	}
	if err := sub.SetSubscribe("hashblock"); err != nil {
		sub.Close()
		return nil, fmt.Errorf("zmq subscribe: %w", err)
	}
	// Bounded receive so cancellation is noticed between blocks.
	if err := sub.SetRcvtimeo(time.Second); err != nil {
		sub.Close()
		return nil, fmt.Errorf("zmq receive timeout: %w", err)
	}
	if err := sub.Connect(addr); err != nil {
		sub.Close()
		return nil, fmt.Errorf("connect zmq %s: %w", addr, err)
	}

	notify := make(chan struct{}, 1)
	go func() {
		defer sub.Close()
		for ctx.Err() == nil {
			parts, err := sub.RecvMessageBytes(0)
			if err != nil {
				if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
					continue
				}
				logger.Warn("zmq recv failed", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
			if len(parts) < 2 {
				logger.Warn("skip malformed zmq message", zap.Int("parts", len(parts)))
				continue
			}
			select {
			case notify <- struct{}{}:
			default:
			}
		}
	}()

	logger.Info("listening for blocks", zap.String("addr", addr))
	return notify, nil
}
