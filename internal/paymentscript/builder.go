package paymentscript

import (
	"errors"
	"fmt"
	"time"

	"github.com/goodnatureofminers/sealtransfer/internal/invoice"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
	"github.com/goodnatureofminers/sealtransfer/internal/schema"
	"github.com/goodnatureofminers/sealtransfer/pkg/safe"
)

var (
	ErrInvoiceExpired         = errors.New("invoice expired")
	ErrNoContract             = errors.New("invoice names no contract")
	ErrUnknownContract        = errors.New("unknown contract")
	ErrUnknownInterface       = schema.ErrUnknownInterface
	ErrAssignmentTypeMismatch = errors.New("requested state does not fit the assignment type")
	ErrInsufficientState      = errors.New("insufficient owned state")
)

// ContractInfo is what the builder needs to know about a contract the payer holds.
type ContractInfo struct {
	Schema  model.SchemaID
	Network model.Network
}

// Inventory is the payer's known contracts and unspent allocations.
type Inventory struct {
	Contracts   map[model.ContractID]ContractInfo
	Allocations []model.Allocation
}

// Builder validates invoices against the payer inventory and produces a Script.
type Builder struct {
	registry *schema.Registry
	now      func() time.Time
}

// NewBuilder constructs a Builder. now defaults to time.Now.
func NewBuilder(registry *schema.Registry, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{registry: registry, now: now}
}

// Build converts invoices into a merged script.
func (b *Builder) Build(invoices []invoice.Invoice, inv Inventory) (Script, error) {
	var script Script
	now := b.now()
	for i, in := range invoices {
		entry, err := b.entry(i, in, inv, now)
		if err != nil {
			return Script{}, fmt.Errorf("invoice %d: %w", i, err)
		}
		script = script.Merge(Script{Entries: []Entry{entry}})
	}
	if err := checkCoverage(script, inv); err != nil {
		return Script{}, err
	}
	return script, nil
}

func (b *Builder) entry(pos int, in invoice.Invoice, inv Inventory, now time.Time) (Entry, error) {
	if in.Expired(now) {
		return Entry{}, fmt.Errorf("%w at %s", ErrInvoiceExpired, in.Expiry.Format(time.RFC3339))
	}
	if in.Contract == nil {
		return Entry{}, ErrNoContract
	}
	info, ok := inv.Contracts[*in.Contract]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownContract, in.Contract)
	}
	if in.Network != "" && in.Network != info.Network {
		return Entry{}, fmt.Errorf("%w: contract on %s, invoice for %s", invoice.ErrNetworkMismatch, info.Network, in.Network)
	}

	sch, err := b.registry.Schema(info.Schema)
	if err != nil {
		return Entry{}, err
	}
	iface, err := b.registry.Interface(in.Interface, info.Schema)
	if err != nil {
		return Entry{}, err
	}
	transition, err := iface.Operation(in.Operation)
	if err != nil {
		return Entry{}, err
	}
	assignment, err := iface.Assignment(in.Assignment)
	if err != nil {
		return Entry{}, err
	}
	kind, _ := sch.Kind(assignment)

	p := Payment{Invoice: pos, Assignment: assignment, Kind: kind, Beneficiary: in.Beneficiary}
	switch {
	case kind == schema.Fungible && in.State.Kind == invoice.StateAmount:
		p.Amount = in.State.Amount
	case kind == schema.Data && in.State.Kind == invoice.StateData:
		p.Data = in.State.Data
	default:
		return Entry{}, fmt.Errorf("%w: %s slot cannot take the requested state", ErrAssignmentTypeMismatch, kind)
	}

	return Entry{
		ContractID: *in.Contract,
		Schema:     info.Schema,
		Transition: transition,
		Payments:   []Payment{p},
	}, nil
}

type slot struct {
	contract   model.ContractID
	assignment model.AssignmentType
}

// checkCoverage verifies the inventory holds enough state for every merged entry.
func checkCoverage(script Script, inv Inventory) error {
	available := map[slot]uint64{}
	tokens := map[slot]map[string]int{}
	for _, a := range inv.Allocations {
		k := slot{contract: a.ContractID, assignment: a.Opout.Type}
		if len(a.Data) > 0 {
			if tokens[k] == nil {
				tokens[k] = map[string]int{}
			}
			tokens[k][string(a.Data)]++
			continue
		}
		sum, err := safe.Add64(available[k], a.Amount)
		if err != nil {
			return err
		}
		available[k] = sum
	}

	required := map[slot]uint64{}
	for _, e := range script.Entries {
		for _, p := range e.Payments {
			k := slot{contract: e.ContractID, assignment: p.Assignment}
			if p.Kind == schema.Data {
				if tokens[k][string(p.Data)] == 0 {
					return fmt.Errorf("%w: token %x of %s not owned", ErrInsufficientState, p.Data, e.ContractID)
				}
				tokens[k][string(p.Data)]--
				continue
			}
			sum, err := safe.Add64(required[k], p.Amount)
			if err != nil {
				return err
			}
			required[k] = sum
		}
	}
	for k, need := range required {
		if have := available[k]; have < need {
			return fmt.Errorf("%w: %s needs %d, holds %d", ErrInsufficientState, k.contract, need, have)
		}
	}
	return nil
}
