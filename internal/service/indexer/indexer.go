// Package indexer follows the node tip and writes every block's outputs and
// inputs to the chain index that unspent-output lookups read.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/sealtransfer/internal/clock"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
	"github.com/goodnatureofminers/sealtransfer/internal/repository/clickhouse"
	"github.com/goodnatureofminers/sealtransfer/pkg/safe"
	"github.com/goodnatureofminers/sealtransfer/pkg/workerpool"
	"go.uber.org/zap"
)

// ErrDiscontinuity is returned when a fetched block does not extend the last
// indexed one. The next step detects the reorg and rewinds.
var ErrDiscontinuity = errors.New("block does not extend the indexed chain")

// Config tunes the indexer loop.
type Config struct {
	// StartHeight is the first height indexed into an empty index.
	StartHeight uint64
	Workers     int
	// BatchSize caps the number of blocks fetched per step.
	BatchSize    int
	Interval     time.Duration
	IdleInterval time.Duration
}

// Service indexes blocks in height order.
type Service struct {
	node        Node
	repo        Repository
	metrics     Metrics
	network     model.Network
	params      *chaincfg.Params
	cfg         Config
	logger      *zap.Logger
	sleep       func(context.Context, time.Duration) error
	blockSignal <-chan struct{}
}

// New builds a Service. blockSignal may be nil.
func New(
	node Node,
	repo Repository,
	metrics Metrics,
	network model.Network,
	cfg Config,
	logger *zap.Logger,
	blockSignal <-chan struct{},
) (*Service, error) {
	if metrics == nil {
		return nil, errors.New("indexer metrics is required")
	}
	params, err := network.Params()
	if err != nil {
		return nil, err
	}
	if cfg.Workers < 1 {
		cfg.Workers = defaultWorkerCount
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Interval <= 0 {
		cfg.Interval = sleepDuration
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = longSleepDuration
	}
	return &Service{
		node:        node,
		repo:        repo,
		metrics:     metrics,
		network:     network,
		params:      params,
		cfg:         cfg,
		logger:      logger.Named("indexer").With(zap.String("network", string(network))),
		sleep:       clock.SleepWithContext,
		blockSignal: blockSignal,
	}, nil
}

// Run indexes until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		indexed, err := s.Step(ctx)
		if err != nil {
			s.logger.Warn("index step failed, backing off", zap.Error(err), zap.Duration("sleep", s.cfg.Interval))
			if sleepErr := s.wait(ctx, s.cfg.Interval); sleepErr != nil {
				return sleepErr
			}
			continue
		}
		if indexed == s.cfg.BatchSize {
			continue
		}
		d := s.cfg.Interval
		if indexed == 0 {
			d = s.cfg.IdleInterval
		}
		if err := s.wait(ctx, d); err != nil {
			return err
		}
	}
}

// Step indexes at most one batch of blocks past the last indexed one and
// returns how many were written. A stale last block is rewound instead.
func (s *Service) Step(ctx context.Context) (int, error) {
	network := string(s.network)
	last, found, err := s.repo.LastIndexedBlock(ctx, network)
	if err != nil {
		return 0, fmt.Errorf("last indexed block: %w", err)
	}
	count, err := s.node.GetBlockCount()
	if err != nil {
		return 0, fmt.Errorf("block count: %w", err)
	}
	tip, err := safe.Uint64(count)
	if err != nil {
		return 0, fmt.Errorf("block count: %w", err)
	}

	next := s.cfg.StartHeight
	if found {
		stale, err := s.stale(last, tip)
		if err != nil {
			return 0, err
		}
		if stale {
			if err := s.repo.RewindFrom(ctx, network, last.Height); err != nil {
				return 0, fmt.Errorf("rewind from %d: %w", last.Height, err)
			}
			s.metrics.ObserveRewind(last.Height)
			s.logger.Warn("indexed block left the best chain, rewound",
				zap.Uint64("height", last.Height),
				zap.String("hash", last.Hash),
			)
			return 0, nil
		}
		next = last.Height + 1
	}
	if next > tip {
		s.logger.Debug("index is at the tip", zap.Uint64("tip", tip))
		return 0, nil
	}

	end := min(tip, next+uint64(s.cfg.BatchSize)-1)
	heights := make([]uint64, 0, end-next+1)
	for h := next; h <= end; h++ {
		heights = append(heights, h)
	}
	blocks, err := workerpool.Map(ctx, s.cfg.Workers, heights, s.fetch)
	if err != nil {
		return 0, err
	}

	prev := last.Hash
	for i, block := range blocks {
		height := heights[i]
		started := time.Now()
		err := s.insert(ctx, height, block, found || i > 0, prev)
		s.metrics.ObserveBlock(err, height, started)
		if err != nil {
			return i, err
		}
		prev = block.BlockHash().String()
	}
	s.logger.Info("blocks indexed", zap.Uint64("from", next), zap.Uint64("to", end), zap.Uint64("tip", tip))
	return len(blocks), nil
}

// stale reports whether the node no longer has last on its best chain.
func (s *Service) stale(last clickhouse.IndexedBlock, tip uint64) (bool, error) {
	if last.Height > tip {
		return true, nil
	}
	hash, err := s.node.GetBlockHash(int64(last.Height))
	if err != nil {
		return false, fmt.Errorf("block hash at %d: %w", last.Height, err)
	}
	return hash.String() != last.Hash, nil
}

func (s *Service) fetch(ctx context.Context, height uint64) (*wire.MsgBlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hash, err := s.node.GetBlockHash(int64(height))
	if err != nil {
		return nil, fmt.Errorf("block hash at %d: %w", height, err)
	}
	block, err := s.node.GetBlock(hash)
	if err != nil {
		return nil, fmt.Errorf("block %s: %w", hash, err)
	}
	return block, nil
}

func (s *Service) insert(ctx context.Context, height uint64, block *wire.MsgBlock, linked bool, prev string) error {
	if linked && block.Header.PrevBlock.String() != prev {
		return fmt.Errorf("%w: block %d builds on %s, indexed %s", ErrDiscontinuity, height, block.Header.PrevBlock, prev)
	}
	indexed, err := convertBlock(string(s.network), s.params, height, block)
	if err != nil {
		return fmt.Errorf("convert block %d: %w", height, err)
	}
	if err := s.repo.InsertIndexedBlock(ctx, indexed); err != nil {
		return fmt.Errorf("insert block %d: %w", height, err)
	}
	return nil
}

func (s *Service) wait(ctx context.Context, d time.Duration) error {
	if s.blockSignal == nil {
		return s.sleep(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.blockSignal:
		return nil
	case <-timer.C:
		return nil
	}
}
