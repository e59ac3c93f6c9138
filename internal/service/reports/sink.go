// Package reports ships validation outcomes to the ClickHouse report table.
package reports

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/goodnatureofminers/sealtransfer/internal/model"
	"github.com/goodnatureofminers/sealtransfer/internal/repository/clickhouse"
	"github.com/goodnatureofminers/sealtransfer/internal/validator"
	"github.com/goodnatureofminers/sealtransfer/pkg/batcher"
	"github.com/goodnatureofminers/sealtransfer/pkg/safe"
	"go.uber.org/zap"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

// Repository persists report rows.
type Repository interface {
	InsertValidationReports(ctx context.Context, reports []clickhouse.ValidationReport) error
}

const (
	defaultFlushSize     = 500
	defaultFlushInterval = 5 * time.Second
	defaultRPS           = 10
)

// Sink batches reports. It satisfies validator.ReportSink.
type Sink struct {
	network model.Network
	batcher *batcher.Batcher[clickhouse.ValidationReport]
}

var _ validator.ReportSink = (*Sink)(nil)

// NewSink builds a Sink; Start must be called before Submit.
func NewSink(repo Repository, network model.Network, cfg batcher.Config, logger *zap.Logger) *Sink {
	if cfg.FlushSize == 0 {
		cfg.FlushSize = defaultFlushSize
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if cfg.RPS == 0 {
		cfg.RPS = defaultRPS
	}
	return &Sink{
		network: network,
		batcher: batcher.New(logger.Named("reports"), repo.InsertValidationReports, cfg),
	}
}

// Start runs the flush loop until ctx is done or Stop is called.
func (s *Sink) Start(ctx context.Context) {
	s.batcher.Start(ctx)
}

// Stop flushes queued reports.
func (s *Sink) Stop() {
	s.batcher.Stop()
}

// Submit queues a report.
func (s *Sink) Submit(ctx context.Context, report validator.Report) error {
	if err := s.batcher.Add(ctx, Row(s.network, report)); err != nil {
		return fmt.Errorf("queue report: %w", err)
	}
	return nil
}

// Row converts a report into its table row.
func Row(network model.Network, report validator.Report) clickhouse.ValidationReport {
	row := clickhouse.ValidationReport{
		Network:     string(network),
		ContractID:  report.ContractID.String(),
		Kind:        report.Kind.String(),
		Status:      report.Status.String(),
		ValidatedAt: report.ValidatedAt.UTC(),
	}
	if ops, err := safe.Uint32(report.Operations); err == nil {
		row.Operations = ops
	} else {
		row.Operations = math.MaxUint32
	}
	if report.Failure != nil {
		row.FailureStep = report.Failure.Step.String()
		row.Failure = report.Failure.Error()
	}
	for _, w := range report.Warnings {
		row.Warnings = append(row.Warnings, string(w.Kind))
	}
	for _, t := range report.Terminals {
		row.Terminals = append(row.Terminals, t.String())
	}
	return row
}
