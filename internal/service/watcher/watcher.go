// Package watcher keeps the witness status of stored anchors in step with the chain.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/sealtransfer/internal/clock"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
	"github.com/goodnatureofminers/sealtransfer/pkg/workerpool"
	"go.uber.org/zap"
)

// Config tunes the watcher loop.
type Config struct {
	// SafetyDepth is the confirmation count at which an anchor is settled.
	SafetyDepth uint32
	Workers     int
	// Interval is the pause between cycles while anchors are pending.
	Interval time.Duration
	// IdleInterval is the pause when nothing is pending.
	IdleInterval time.Duration
}

// Service re-checks pending anchors against the chain.
type Service struct {
	store       AnchorStore
	oracle      ChainOracle
	metrics     Metrics
	cfg         Config
	logger      *zap.Logger
	sleep       func(context.Context, time.Duration) error
	blockSignal <-chan struct{}
}

// New builds a Service. blockSignal may be nil; when set, every signal
// starts a new cycle without waiting for the interval.
func New(
	store AnchorStore,
	oracle ChainOracle,
	metrics Metrics,
	network model.Network,
	cfg Config,
	logger *zap.Logger,
	blockSignal <-chan struct{},
) (*Service, error) {
	if metrics == nil {
		return nil, errors.New("watcher metrics is required")
	}
	if cfg.SafetyDepth == 0 {
		cfg.SafetyDepth = defaultSafetyDepth
	}
	if cfg.Workers < 1 {
		cfg.Workers = defaultWorkerCount
	}
	if cfg.Interval <= 0 {
		cfg.Interval = sleepDuration
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = longSleepDuration
	}
	return &Service{
		store:       store,
		oracle:      oracle,
		metrics:     metrics,
		cfg:         cfg,
		logger:      logger.Named("watcher").With(zap.String("network", string(network))),
		sleep:       clock.SleepWithContext,
		blockSignal: blockSignal,
	}, nil
}

// Run refreshes anchors until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		pending, err := s.Refresh(ctx)
		if err != nil {
			s.logger.Warn("refresh failed, backing off", zap.Error(err), zap.Duration("sleep", s.cfg.Interval))
			if sleepErr := s.wait(ctx, s.cfg.Interval); sleepErr != nil {
				return sleepErr
			}
			continue
		}
		d := s.cfg.Interval
		if pending == 0 {
			d = s.cfg.IdleInterval
		}
		if err := s.wait(ctx, d); err != nil {
			return err
		}
	}
}

type observed struct {
	height uint32
	mined  bool
}

// Refresh runs one cycle and returns how many anchors remain pending.
func (s *Service) Refresh(ctx context.Context) (pending int, err error) {
	started := time.Now()
	defer func() { s.metrics.ObserveCycle(err, pending, started) }()

	anchors, err := s.store.PendingAnchors()
	if err != nil {
		return 0, fmt.Errorf("pending anchors: %w", err)
	}
	if len(anchors) == 0 {
		s.logger.Debug("no pending anchors")
		return 0, nil
	}

	tip, err := s.oracle.TipHeight(ctx)
	if err != nil {
		return len(anchors), fmt.Errorf("tip height: %w", err)
	}

	txids := uniqueTxids(anchors)
	results, err := workerpool.Map(ctx, s.cfg.Workers, txids, func(ctx context.Context, txid chainhash.Hash) (observed, error) {
		height, mined, err := s.oracle.GetConfirmationHeight(ctx, txid)
		if err != nil {
			return observed{}, fmt.Errorf("confirmation of %s: %w", txid, err)
		}
		return observed{height: height, mined: mined}, nil
	})
	if err != nil {
		return len(anchors), err
	}
	byTxid := make(map[chainhash.Hash]observed, len(txids))
	for i, txid := range txids {
		byTxid[txid] = results[i]
	}

	for _, anchor := range anchors {
		seen := byTxid[anchor.Txid]
		status := model.WitnessStatus{Mined: seen.mined, Height: seen.height}
		settled := seen.mined && tip >= seen.height && tip-seen.height+1 >= s.cfg.SafetyDepth

		kind := transition(anchor.Status, status)
		if kind == "" && !settled {
			pending++
			continue
		}
		if err := s.store.UpdateAnchorStatus(anchor.ContractID, anchor.Txid, status, settled); err != nil {
			return pending, fmt.Errorf("update anchor %s: %w", anchor.Txid, err)
		}
		if kind != "" {
			s.metrics.ObserveStatusChange(kind)
			s.logger.Info("witness status changed",
				zap.Stringer("contract", anchor.ContractID),
				zap.Stringer("txid", anchor.Txid),
				zap.Stringer("from", anchor.Status),
				zap.Stringer("to", status),
			)
		}
		if settled {
			s.metrics.ObserveStatusChange("settled")
		} else {
			pending++
		}
	}
	return pending, nil
}

// transition names a status change, or returns "" when nothing changed.
func transition(from, to model.WitnessStatus) string {
	switch {
	case from == to:
		return ""
	case !from.Mined:
		return "mined"
	default:
		return string(model.WarnReorg)
	}
}

func uniqueTxids(anchors []model.Anchor) []chainhash.Hash {
	seen := make(map[chainhash.Hash]struct{}, len(anchors))
	out := make([]chainhash.Hash, 0, len(anchors))
	for _, a := range anchors {
		if _, ok := seen[a.Txid]; ok {
			continue
		}
		seen[a.Txid] = struct{}{}
		out = append(out, a.Txid)
	}
	return out
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
