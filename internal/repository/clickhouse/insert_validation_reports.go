package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ValidationReport is one row of seal_validation_reports.
type ValidationReport struct {
	ID          uuid.UUID
	Network     string
	ContractID  string
	Kind        string
	Status      string
	FailureStep string
	Failure     string
	Warnings    []string
	Operations  uint32
	Terminals   []string
	ValidatedAt time.Time
}

// InsertValidationReports stores validation outcomes. Rows without an id get a random one.
func (r *Repository) InsertValidationReports(ctx context.Context, reports []ValidationReport) (err error) {
	start := time.Now()
	defer func() {
		network := ""
		if len(reports) > 0 {
			network = reports[0].Network
		}
		r.metrics.Observe("insert_validation_reports", network, err, start)
	}()

	if len(reports) == 0 {
		return nil
	}

	const query = `
INSERT INTO seal_validation_reports (
	id,
	network,
	contract_id,
	kind,
	status,
	failure_step,
	failure,
	warnings,
	operations,
	terminals,
	validated_at
) VALUES`

	batch, err := r.conn.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare validation reports batch: %w", err)
	}

	for _, report := range reports {
		id := report.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		if err = batch.Append(
			id,
			report.Network,
			report.ContractID,
			report.Kind,
			report.Status,
			report.FailureStep,
			report.Failure,
			nonNil(report.Warnings),
			report.Operations,
			nonNil(report.Terminals),
			report.ValidatedAt,
		); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append validation report: %w", err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("insert validation reports: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
