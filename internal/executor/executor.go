// Package executor turns a payment script into an unsigned witness
// transaction skeleton and the bundle of operations it will anchor.
package executor

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/sealtransfer/internal/invoice"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
	"github.com/goodnatureofminers/sealtransfer/internal/paymentscript"
	"github.com/goodnatureofminers/sealtransfer/internal/prefab"
	"github.com/goodnatureofminers/sealtransfer/internal/schema"
	"github.com/goodnatureofminers/sealtransfer/pkg/safe"
	"go.uber.org/zap"
)

// DefaultDustValue is the value of outputs appended for address beneficiaries.
const DefaultDustValue int64 = 546

var (
	ErrInsufficientState  = paymentscript.ErrInsufficientState
	ErrUnknownContract    = paymentscript.ErrUnknownContract
	ErrStateImbalance     = schema.ErrStateImbalance
	ErrNoChangeOutput     = errors.New("no change output for leftover state")
	ErrInvalidBeneficiary = errors.New("invalid beneficiary")
	ErrDuplicateContract  = errors.New("contract appears in more than one script entry")
)

// Output is a wallet-provided candidate output of the witness transaction.
type Output struct {
	Value    int64
	PkScript []byte
	Change   bool
	// TapretKey marks the tapret commitment host with its x-only internal key.
	TapretKey []byte
}

// Wallet is what the external wallet contributes to the witness transaction.
type Wallet struct {
	Outputs       []Output
	FundingInputs []wire.OutPoint
}

// Config tunes an Executor.
type Config struct {
	Method    model.CloseMethod
	DustValue int64
	Strategy  Strategy
	// Params, when set, restricts beneficiary addresses to one chain.
	Params *chaincfg.Params
}

// PaymentTerminal is the assignment created for one scripted payment.
type PaymentTerminal struct {
	Invoice    int
	ContractID model.ContractID
	Terminal   model.Terminal
}

// Result is the executor output.
type Result struct {
	Skeleton  *prefab.Skeleton
	Bundle    *prefab.Bundle
	Terminals []PaymentTerminal
}

// Executor builds skeletons and bundles.
type Executor struct {
	registry *schema.Registry
	cfg      Config
	logger   *zap.Logger
}

// New constructs an Executor, filling config defaults.
func New(registry *schema.Registry, cfg Config, logger *zap.Logger) *Executor {
	if cfg.Method == 0 {
		cfg.Method = model.OpretFirst
	}
	if cfg.DustValue == 0 {
		cfg.DustValue = DefaultDustValue
	}
	if cfg.Strategy == nil {
		cfg.Strategy = ExactThenSmallest{}
	}
	return &Executor{registry: registry, cfg: cfg, logger: logger.Named("executor")}
}

// Execute runs script against the payer inventory and wallet outputs.
func (e *Executor) Execute(script paymentscript.Script, inv paymentscript.Inventory, wallet Wallet) (*Result, error) {
	if !e.cfg.Method.Valid() {
		return nil, fmt.Errorf("close method %d", e.cfg.Method)
	}
	allocations := groupAllocations(inv.Allocations)

	seen := map[model.ContractID]struct{}{}
	spent := &outpointSet{index: map[wire.OutPoint]int{}}
	for _, entry := range script.Entries {
		if _, dup := seen[entry.ContractID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateContract, entry.ContractID)
		}
		seen[entry.ContractID] = struct{}{}
		if _, ok := inv.Contracts[entry.ContractID]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownContract, entry.ContractID)
		}
		if err := e.selectSeals(entry, allocations[entry.ContractID], spent); err != nil {
			return nil, fmt.Errorf("contract %s: %w", entry.ContractID, err)
		}
	}

	entries := append([]paymentscript.Entry(nil), script.Entries...)
	entries = append(entries, blankEntries(inv, allocations, spent, seen)...)

	plan := newOutputPlan(wallet.Outputs, e.cfg)
	bundle := &prefab.Bundle{Method: e.cfg.Method, Inputs: map[wire.OutPoint][]model.OpID{}}
	var (
		terminals []PaymentTerminal
		consumed  = map[model.OpID][]model.Allocation{}
	)
	for _, entry := range entries {
		inputs := spentAllocations(allocations[entry.ContractID], spent)
		op, paid, err := e.buildOperation(entry, inputs, plan)
		if err != nil {
			return nil, fmt.Errorf("contract %s: %w", entry.ContractID, err)
		}
		id := op.ID()
		bundle.Operations = append(bundle.Operations, op)
		consumed[id] = inputs
		for _, in := range inputs {
			ids := bundle.Inputs[in.Outpoint]
			if len(ids) == 0 || ids[len(ids)-1] != id {
				bundle.Inputs[in.Outpoint] = append(ids, id)
			}
		}
		for i, p := range entry.Payments {
			terminals = append(terminals, PaymentTerminal{
				Invoice:    p.Invoice,
				ContractID: entry.ContractID,
				Terminal:   model.Terminal(model.Opout{Op: id, Type: p.Assignment, No: paid[i]}),
			})
		}
		e.logger.Debug("operation built",
			zap.Stringer("contract", entry.ContractID),
			zap.Stringer("op", id),
			zap.Uint16("transition", uint16(entry.Transition)),
			zap.Int("inputs", len(inputs)),
			zap.Int("assignments", len(op.Assignments)),
		)
	}

	skeleton, err := e.skeleton(spent, wallet.FundingInputs, plan, bundle, consumed)
	if err != nil {
		return nil, err
	}
	return &Result{Skeleton: skeleton, Bundle: bundle, Terminals: terminals}, nil
}

// selectSeals adds the outpoints needed to cover entry's payments to spent.
func (e *Executor) selectSeals(entry paymentscript.Entry, allocs []model.Allocation, spent *outpointSet) error {
	targets := map[model.AssignmentType]uint64{}
	var tokens []paymentscript.Payment
	for _, p := range entry.Payments {
		if p.Kind == schema.Data {
			tokens = append(tokens, p)
			continue
		}
		sum, err := safe.Add64(targets[p.Assignment], p.Amount)
		if err != nil {
			return err
		}
		targets[p.Assignment] = sum
	}

	types := make([]model.AssignmentType, 0, len(targets))
	for t := range targets {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	for _, t := range types {
		var (
			covered    uint64
			candidates []model.Allocation
		)
		for _, a := range allocs {
			if a.Opout.Type != t || len(a.Data) > 0 {
				continue
			}
			if spent.has(a.Outpoint) {
				covered += a.Amount
				continue
			}
			candidates = append(candidates, a)
		}
		if covered >= targets[t] {
			continue
		}
		picked, err := e.cfg.Strategy.Select(candidates, targets[t]-covered)
		if err != nil {
			return err
		}
		for _, a := range picked {
			spent.add(a.Outpoint)
		}
	}

	used := map[model.Opout]struct{}{}
	for _, p := range tokens {
		found := false
		for _, a := range allocs {
			if _, taken := used[a.Opout]; taken || a.Opout.Type != p.Assignment || !bytes.Equal(a.Data, p.Data) {
				continue
			}
			used[a.Opout] = struct{}{}
			spent.add(a.Outpoint)
			found = true
			break
		}
		if !found {
			return fmt.Errorf("%w: token %x", ErrInsufficientState, p.Data)
		}
	}
	return nil
}

// blankEntries moves state of unscripted contracts that sits on spent outpoints.
func blankEntries(inv paymentscript.Inventory, allocations map[model.ContractID][]model.Allocation, spent *outpointSet, scripted map[model.ContractID]struct{}) []paymentscript.Entry {
	var contracts []model.ContractID
	for contract, allocs := range allocations {
		if _, ok := scripted[contract]; ok {
			continue
		}
		for _, a := range allocs {
			if spent.has(a.Outpoint) {
				contracts = append(contracts, contract)
				break
			}
		}
	}
	sort.Slice(contracts, func(i, j int) bool { return contracts[i].Compare(contracts[j]) < 0 })

	out := make([]paymentscript.Entry, 0, len(contracts))
	for _, c := range contracts {
		out = append(out, paymentscript.Entry{
			ContractID: c,
			Schema:     inv.Contracts[c].Schema,
			Transition: model.BlankTransition,
		})
	}
	return out
}

// buildOperation assigns payments and change. paid[i] is the assignment index of payment i.
func (e *Executor) buildOperation(entry paymentscript.Entry, inputs []model.Allocation, plan *outputPlan) (model.Operation, []uint16, error) {
	sch, err := e.registry.Schema(entry.Schema)
	if err != nil {
		return model.Operation{}, nil, err
	}

	op := model.Operation{
		Kind:       model.KindTransition,
		ContractID: entry.ContractID,
		Transition: entry.Transition,
	}
	inputState := make([]model.Assignment, 0, len(inputs))
	seed := [][]byte{entry.ContractID[:]}
	available := map[model.AssignmentType]uint64{}
	tokens := map[model.AssignmentType][][]byte{}
	for _, a := range inputs {
		op.Inputs = append(op.Inputs, a.Opout)
		inputState = append(inputState, model.Assignment{Type: a.Opout.Type, Seal: a.Seal, Amount: a.Amount, Data: a.Data})
		seed = append(seed, a.Opout.Op[:])
		if len(a.Data) > 0 {
			tokens[a.Opout.Type] = append(tokens[a.Opout.Type], a.Data)
			continue
		}
		sum, err := safe.Add64(available[a.Opout.Type], a.Amount)
		if err != nil {
			return model.Operation{}, nil, err
		}
		available[a.Opout.Type] = sum
	}
	blinding := func(n int) uint64 {
		return model.DeriveBlinding(append(seed, []byte{byte(n >> 8), byte(n)})...)
	}

	paid := make([]uint16, 0, len(entry.Payments))
	for _, p := range entry.Payments {
		n := len(op.Assignments)
		no, err := safe.Uint16(n)
		if err != nil {
			return model.Operation{}, nil, fmt.Errorf("payment assignment index: %w", err)
		}
		seal, err := plan.seal(p.Beneficiary, blinding(n))
		if err != nil {
			return model.Operation{}, nil, err
		}
		a := model.Assignment{Type: p.Assignment, Seal: seal}
		if p.Kind == schema.Data {
			rest, ok := takeToken(tokens[p.Assignment], p.Data)
			if !ok {
				return model.Operation{}, nil, fmt.Errorf("%w: token %x", ErrInsufficientState, p.Data)
			}
			tokens[p.Assignment] = rest
			a.Data = p.Data
		} else {
			if available[p.Assignment] < p.Amount {
				return model.Operation{}, nil, fmt.Errorf("%w: type %d", ErrInsufficientState, p.Assignment)
			}
			available[p.Assignment] -= p.Amount
			a.Amount = p.Amount
		}
		op.Assignments = append(op.Assignments, a)
		paid = append(paid, no)
	}

	for _, t := range sortedTypes(available, tokens) {
		if available[t] > 0 {
			seal, err := plan.change(blinding(len(op.Assignments)))
			if err != nil {
				return model.Operation{}, nil, err
			}
			op.Assignments = append(op.Assignments, model.Assignment{Type: t, Seal: seal, Amount: available[t]})
		}
		leftover := tokens[t]
		sort.Slice(leftover, func(i, j int) bool { return bytes.Compare(leftover[i], leftover[j]) < 0 })
		for _, data := range leftover {
			seal, err := plan.change(blinding(len(op.Assignments)))
			if err != nil {
				return model.Operation{}, nil, err
			}
			op.Assignments = append(op.Assignments, model.Assignment{Type: t, Seal: seal, Data: data})
		}
	}

	if err := sch.Conform(op); err != nil {
		return model.Operation{}, nil, err
	}
	if err := schema.Conserve(sch, inputState, op.Assignments); err != nil {
		return model.Operation{}, nil, err
	}
	return op, paid, nil
}

func (e *Executor) skeleton(spent *outpointSet, funding []wire.OutPoint, plan *outputPlan, bundle *prefab.Bundle, consumed map[model.OpID][]model.Allocation) (*prefab.Skeleton, error) {
	tx := wire.NewMsgTx(2)
	for _, op := range spent.list {
		op := op
		tx.AddTxIn(wire.NewTxIn(&op, nil, nil))
	}
	for _, op := range funding {
		if spent.has(op) {
			continue
		}
		op := op
		spent.add(op)
		tx.AddTxIn(wire.NewTxIn(&op, nil, nil))
	}
	for _, out := range plan.outputs {
		tx.AddTxOut(wire.NewTxOut(out.Value, out.PkScript))
	}

	sk, err := prefab.NewSkeleton(tx)
	if err != nil {
		return nil, err
	}
	if e.cfg.Method == model.TapretFirst {
		for i, out := range plan.outputs {
			if len(out.TapretKey) == 0 {
				continue
			}
			if err := sk.MarkTapretHost(uint32(i), out.TapretKey); err != nil {
				return nil, err
			}
			break
		}
	}
	for _, op := range bundle.Operations {
		if err := sk.AddOperation(op); err != nil {
			return nil, err
		}
		id := op.ID()
		marked := map[int]struct{}{}
		for _, a := range consumed[id] {
			idx := spent.index[a.Outpoint]
			if _, ok := marked[idx]; ok {
				continue
			}
			marked[idx] = struct{}{}
			if err := sk.MarkConsumed(idx, op.ContractID, id); err != nil {
				return nil, err
			}
		}
	}
	return sk, nil
}

type outputPlan struct {
	outputs  []Output
	reserved int
	changeAt int
	method   model.CloseMethod
	dust     int64
	params   *chaincfg.Params
}

func newOutputPlan(outputs []Output, cfg Config) *outputPlan {
	p := &outputPlan{
		outputs:  append([]Output(nil), outputs...),
		reserved: len(outputs),
		changeAt: -1,
		method:   cfg.Method,
		dust:     cfg.DustValue,
		params:   cfg.Params,
	}
	for i, o := range outputs {
		if o.Change {
			p.changeAt = i
			break
		}
	}
	return p
}

func (p *outputPlan) seal(b invoice.Beneficiary, blinding uint64) (model.Seal, error) {
	switch b.Kind {
	case invoice.BeneficiaryAddress:
		if b.Address == nil || (p.params != nil && !b.Address.IsForNet(p.params)) {
			return model.Seal{}, fmt.Errorf("%w: address not for this network", ErrInvalidBeneficiary)
		}
		script, err := txscript.PayToAddrScript(b.Address)
		if err != nil {
			return model.Seal{}, fmt.Errorf("%w: %v", ErrInvalidBeneficiary, err)
		}
		for i, o := range p.outputs {
			if !o.Change && bytes.Equal(o.PkScript, script) {
				return model.WitnessSeal(p.method, uint32(i), blinding), nil
			}
		}
		p.outputs = append(p.outputs, Output{Value: p.dust, PkScript: script})
		return model.WitnessSeal(p.method, uint32(len(p.outputs)-1), blinding), nil
	case invoice.BeneficiaryWitnessOutput:
		if int(b.Vout) >= p.reserved || p.outputs[b.Vout].Change {
			return model.Seal{}, fmt.Errorf("%w: witness output %d is not a reserved beneficiary output", ErrInvalidBeneficiary, b.Vout)
		}
		return model.WitnessSeal(p.method, b.Vout, blinding), nil
	case invoice.BeneficiaryOutpoint:
		return model.OutpointSeal(p.method, b.Outpoint, blinding), nil
	default:
		return model.Seal{}, fmt.Errorf("%w: kind %d", ErrInvalidBeneficiary, b.Kind)
	}
}

func (p *outputPlan) change(blinding uint64) (model.Seal, error) {
	if p.changeAt < 0 {
		return model.Seal{}, ErrNoChangeOutput
	}
	return model.WitnessSeal(p.method, uint32(p.changeAt), blinding), nil
}

type outpointSet struct {
	list  []wire.OutPoint
	index map[wire.OutPoint]int
}

func (s *outpointSet) has(op wire.OutPoint) bool {
	_, ok := s.index[op]
	return ok
}

func (s *outpointSet) add(op wire.OutPoint) {
	if s.has(op) {
		return
	}
	s.index[op] = len(s.list)
	s.list = append(s.list, op)
}

func groupAllocations(allocs []model.Allocation) map[model.ContractID][]model.Allocation {
	out := map[model.ContractID][]model.Allocation{}
	for _, a := range allocs {
		out[a.ContractID] = append(out[a.ContractID], a)
	}
	for _, list := range out {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Order != list[j].Order {
				return list[i].Order < list[j].Order
			}
			return list[i].Opout.Compare(list[j].Opout) < 0
		})
	}
	return out
}

func spentAllocations(allocs []model.Allocation, spent *outpointSet) []model.Allocation {
	var out []model.Allocation
	seen := map[model.Opout]struct{}{}
	for _, a := range allocs {
		if !spent.has(a.Outpoint) {
			continue
		}
		if _, dup := seen[a.Opout]; dup {
			continue
		}
		seen[a.Opout] = struct{}{}
		out = append(out, a)
	}
	return out
}

func takeToken(tokens [][]byte, data []byte) ([][]byte, bool) {
	for i, t := range tokens {
		if bytes.Equal(t, data) {
			rest := append(append([][]byte(nil), tokens[:i]...), tokens[i+1:]...)
			return rest, true
		}
	}
	return tokens, false
}

func sortedTypes(amounts map[model.AssignmentType]uint64, tokens map[model.AssignmentType][][]byte) []model.AssignmentType {
	set := map[model.AssignmentType]struct{}{}
	for t := range amounts {
		set[t] = struct{}{}
	}
	for t := range tokens {
		set[t] = struct{}{}
	}
	out := make([]model.AssignmentType, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
