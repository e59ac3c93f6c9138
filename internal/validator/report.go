package validator

import (
	"fmt"
	"time"

	"github.com/goodnatureofminers/sealtransfer/internal/consignment"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
)

// Status is the outcome of a validation.
type Status uint8

const (
	Valid Status = iota + 1
	ValidWithWarnings
	Invalid
	// Indeterminate means chain data could not be obtained. Nothing is accepted.
	Indeterminate
)

func (s Status) String() string {
	switch s {
	case Valid:
		return "valid"
	case ValidWithWarnings:
		return "valid_with_warnings"
	case Invalid:
		return "invalid"
	case Indeterminate:
		return "indeterminate"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Accepted reports whether the consignment was appended to the store.
func (s Status) Accepted() bool {
	return s == Valid || s == ValidWithWarnings
}

// Step names the validation stage a failure was found in.
type Step uint8

const (
	StepSchema Step = iota + 1
	StepRules
	StepSeals
	StepAnchors
	StepWitness
)

func (s Step) String() string {
	switch s {
	case StepSchema:
		return "schema"
	case StepRules:
		return "rules"
	case StepSeals:
		return "seals"
	case StepAnchors:
		return "anchors"
	case StepWitness:
		return "witness"
	default:
		return fmt.Sprintf("step(%d)", uint8(s))
	}
}

// Failure is the first violation found.
type Failure struct {
	Step Step
	Op   model.OpID
	Err  error
}

func (f *Failure) Error() string {
	if f.Op.IsZero() {
		return fmt.Sprintf("%s: %v", f.Step, f.Err)
	}
	return fmt.Sprintf("%s: operation %s: %v", f.Step, f.Op, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Report is the result of validating one consignment.
type Report struct {
	ContractID model.ContractID
	Kind       consignment.Kind
	Status     Status
	Failure    *Failure
	Warnings   []model.Warning
	// Allocations are the terminal assignments of a transfer, or the genesis
	// assignments of a contract consignment, once accepted.
	Allocations []model.Allocation
	Terminals   []model.Terminal
	// Operations counts the operations that were not in the store before.
	Operations  int
	ValidatedAt time.Time
}

// Err returns the failure as an error, or nil for accepted consignments.
func (r Report) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}
