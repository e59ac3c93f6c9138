// Package validator replays a consignment against its schema, the seals it
// closes and the chain, and appends accepted history to the store.
package validator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/sealtransfer/internal/clock"
	"github.com/goodnatureofminers/sealtransfer/internal/commit"
	"github.com/goodnatureofminers/sealtransfer/internal/consignment"
	"github.com/goodnatureofminers/sealtransfer/internal/history"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
	"github.com/goodnatureofminers/sealtransfer/internal/schema"
	"github.com/goodnatureofminers/sealtransfer/pkg/workerpool"
	"go.uber.org/zap"
)

var (
	ErrSealReuse       = errors.New("seal closed by more than one operation")
	ErrTopology        = errors.New("operation history is not connected")
	ErrUnanchored      = errors.New("transition has no anchor")
	ErrWitnessMismatch = errors.New("witness transaction does not close the seal")
	ErrNetworkMismatch = errors.New("contract belongs to another network")
	ErrIndeterminate   = errors.New("chain data unavailable")
)

const (
	defaultWorkers     = 4
	defaultSafetyDepth = 6
)

// Config tunes chain checks.
type Config struct {
	// Network, when set, rejects contracts of other networks.
	Network model.Network
	// FromHeight is the reorg floor: claimed heights below it are re-checked.
	FromHeight uint32
	// SafetyDepth is the confirmation count below which a warning is raised.
	SafetyDepth uint32
	Workers     int
	Retry       clock.Backoff
}

// Validator checks consignments. It is safe for concurrent use when its
// store and oracle are.
type Validator struct {
	registry *schema.Registry
	store    Store
	oracle   Oracle
	sink     ReportSink
	metrics  Metrics
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// New constructs a Validator. sink may be nil.
func New(registry *schema.Registry, store Store, oracle Oracle, sink ReportSink, metrics Metrics, cfg Config, logger *zap.Logger) *Validator {
	if cfg.Workers < 1 {
		cfg.Workers = defaultWorkers
	}
	if cfg.SafetyDepth == 0 {
		cfg.SafetyDepth = defaultSafetyDepth
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = clock.Backoff{Attempts: 3, Initial: 200 * time.Millisecond, Max: 2 * time.Second}
	}
	return &Validator{
		registry: registry,
		store:    store,
		oracle:   oracle,
		sink:     sink,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger.Named("validator"),
		now:      time.Now,
	}
}

// Validate runs the checks in order and stops at the first failure. A valid
// consignment is appended to the store; an invalid or indeterminate one
// leaves the store untouched. The returned error is reserved for store faults.
func (v *Validator) Validate(ctx context.Context, c *consignment.Consignment) (Report, error) {
	started := v.now()
	r, err := v.newRun(c)
	if err != nil {
		v.metrics.ObserveValidation("error", 0, started)
		return Report{}, err
	}

	rep := Report{
		ContractID: c.ContractID,
		Kind:       c.Kind,
		Terminals:  c.Terminals,
		Operations: len(r.fresh),
	}
	failure, warnings, err := r.check(ctx)
	if err != nil {
		v.metrics.ObserveValidation("error", len(r.fresh), started)
		return Report{}, err
	}
	rep.Warnings = warnings

	switch {
	case failure != nil && errors.Is(failure.Err, ErrIndeterminate):
		rep.Status, rep.Failure = Indeterminate, failure
	case failure != nil:
		rep.Status, rep.Failure = Invalid, failure
	default:
		err := v.store.Append(r.closure)
		switch {
		case errors.Is(err, history.ErrSealConflict):
			rep.Status = Invalid
			rep.Failure = &Failure{Step: StepSeals, Err: fmt.Errorf("%w: %v", ErrSealReuse, err)}
		case err != nil:
			v.metrics.ObserveValidation("error", len(r.fresh), started)
			return Report{}, fmt.Errorf("append closure: %w", err)
		default:
			rep.Status = Valid
			if len(warnings) > 0 {
				rep.Status = ValidWithWarnings
			}
			rep.Allocations = r.allocations()
		}
	}
	rep.ValidatedAt = v.now()

	v.metrics.ObserveValidation(rep.Status.String(), rep.Operations, started)
	for _, w := range rep.Warnings {
		v.metrics.ObserveWarning(string(w.Kind))
	}
	fields := []zap.Field{
		zap.Stringer("contract", rep.ContractID),
		zap.Stringer("kind", rep.Kind),
		zap.Stringer("status", rep.Status),
		zap.Int("operations", rep.Operations),
		zap.Int("warnings", len(rep.Warnings)),
	}
	if rep.Failure != nil {
		fields = append(fields, zap.Error(rep.Failure))
	}
	v.logger.Info("consignment validated", fields...)

	if v.sink != nil {
		if err := v.sink.Submit(ctx, rep); err != nil {
			v.logger.Warn("submit validation report", zap.Error(err))
		}
	}
	return rep, nil
}

// run holds the state of one validation.
type run struct {
	v        *Validator
	c        *consignment.Consignment
	closure  model.Closure
	schema   *schema.Schema
	byID     map[model.OpID]model.Operation
	position map[model.OpID]int
	// fresh lists the closure operations the store does not hold yet, in replay order.
	fresh []model.Operation
	// inputs holds the assignments spent by each fresh transition.
	inputs map[model.OpID][]model.Assignment
	// closes holds the outpoints closed by each fresh transition.
	closes map[model.OpID][]wire.OutPoint
	// used lists the anchors of fresh transitions in closure order.
	used []int
}

func (v *Validator) newRun(c *consignment.Consignment) (*run, error) {
	closure := c.Closure()
	closure.Anchors = append([]model.Anchor(nil), closure.Anchors...)
	r := &run{
		v:        v,
		c:        c,
		closure:  closure,
		byID:     make(map[model.OpID]model.Operation, len(closure.Operations)),
		position: make(map[model.OpID]int, len(closure.Operations)),
		inputs:   map[model.OpID][]model.Assignment{},
		closes:   map[model.OpID][]wire.OutPoint{},
	}
	for i, op := range closure.Operations {
		id := op.ID()
		if _, dup := r.byID[id]; dup {
			continue
		}
		r.byID[id] = op
		r.position[id] = i
		known, err := v.store.Has(id)
		if err != nil {
			return nil, fmt.Errorf("look up operation %s: %w", id, err)
		}
		if !known {
			r.fresh = append(r.fresh, op)
		}
	}
	return r, nil
}

func (r *run) check(ctx context.Context) (*Failure, []model.Warning, error) {
	if f := r.conform(); f != nil {
		return f, nil, nil
	}
	deferred, f, err := r.rules()
	if err != nil || f != nil {
		return f, nil, err
	}
	if deferred != nil {
		return deferred, nil, nil
	}
	if f, err := r.seals(); err != nil || f != nil {
		return f, nil, err
	}
	if f := r.anchors(ctx); f != nil {
		return f, nil, nil
	}
	return r.witnesses(ctx)
}

func (r *run) conform() *Failure {
	genesis := r.c.Genesis
	s, err := r.v.registry.Schema(genesis.Schema)
	if err != nil {
		return &Failure{Step: StepSchema, Op: genesis.ID(), Err: err}
	}
	r.schema = s
	if r.v.cfg.Network != "" && genesis.Network != r.v.cfg.Network {
		return &Failure{Step: StepSchema, Op: genesis.ID(), Err: fmt.Errorf("%w: %s, want %s", ErrNetworkMismatch, genesis.Network, r.v.cfg.Network)}
	}
	for _, op := range r.fresh {
		if err := s.Conform(op); err != nil {
			return &Failure{Step: StepSchema, Op: op.ID(), Err: err}
		}
	}
	return nil
}

// rules checks each fresh operation against its schema rules. Inputs that
// cannot be resolved are reported as a deferred seal-step failure so that
// rule violations elsewhere still win.
func (r *run) rules() (deferred, failure *Failure, err error) {
	for _, op := range r.fresh {
		id := op.ID()
		var (
			inputs []model.Assignment
			broken bool
		)
		for _, in := range op.Inputs {
			parent, ok, err := r.lookup(in.Op)
			if err != nil {
				return nil, nil, err
			}
			var a model.Assignment
			if ok && parent.Contract() == r.c.ContractID {
				a, ok = parent.Assignment(in)
			} else {
				ok = false
			}
			if !ok {
				if deferred == nil {
					deferred = &Failure{Step: StepSeals, Op: id, Err: fmt.Errorf("%w: input %s is unknown", ErrTopology, in)}
				}
				broken = true
				continue
			}
			inputs = append(inputs, a)
		}
		if broken {
			continue
		}
		if err := r.schema.Check(op, inputs); err != nil {
			return nil, &Failure{Step: StepRules, Op: id, Err: err}, nil
		}
		r.inputs[id] = inputs
	}
	return deferred, nil, nil
}

func (r *run) seals() (*Failure, error) {
	closed := map[wire.OutPoint]model.OpID{}
	for _, op := range r.fresh {
		id := op.ID()
		for _, in := range op.Inputs {
			if pos, ok := r.position[in.Op]; ok && pos >= r.position[id] {
				return &Failure{Step: StepSeals, Op: id, Err: fmt.Errorf("%w: input %s replays after its spender", ErrTopology, in)}, nil
			}
		}

		for i, in := range op.Inputs {
			witness, err := r.witness(in.Op)
			if err != nil {
				return nil, err
			}
			outpoint, err := r.inputs[id][i].Seal.Resolve(witness)
			if err != nil {
				return &Failure{Step: StepSeals, Op: id, Err: fmt.Errorf("input %s: %w", in, err)}, nil
			}
			if prev, ok := closed[outpoint]; ok && prev != id {
				return &Failure{Step: StepSeals, Op: id, Err: fmt.Errorf("%w: %s also closed by %s", ErrSealReuse, outpoint, prev)}, nil
			}
			closer, found, err := r.v.store.OperationClosing(r.c.ContractID, outpoint)
			if err != nil {
				return nil, fmt.Errorf("look up seal %s: %w", outpoint, err)
			}
			if found && closer != id {
				return &Failure{Step: StepSeals, Op: id, Err: fmt.Errorf("%w: %s already closed by %s", ErrSealReuse, outpoint, closer)}, nil
			}
			if _, ok := closed[outpoint]; !ok {
				closed[outpoint] = id
				r.closes[id] = append(r.closes[id], outpoint)
			}
		}
	}

	for _, t := range r.c.Terminals {
		op, ok := r.byID[t.Op]
		if !ok {
			return &Failure{Step: StepSeals, Op: t.Op, Err: fmt.Errorf("%w: terminal %s is outside the history", ErrTopology, t)}, nil
		}
		if _, ok := op.Assignment(t.Opout()); !ok {
			return &Failure{Step: StepSeals, Op: t.Op, Err: fmt.Errorf("%w: terminal %s names no assignment", ErrTopology, t)}, nil
		}
	}
	return nil, nil
}

func (r *run) anchors(ctx context.Context) *Failure {
	members := map[int][]model.OpID{}
	for _, op := range r.fresh {
		if op.IsGenesis() {
			continue
		}
		id := op.ID()
		idx := r.anchorIndex(id)
		if idx < 0 {
			return &Failure{Step: StepAnchors, Op: id, Err: ErrUnanchored}
		}
		if _, ok := members[idx]; !ok {
			r.used = append(r.used, idx)
		}
		members[idx] = append(members[idx], id)
	}
	sort.Ints(r.used)

	for _, idx := range r.used {
		anchor := &r.closure.Anchors[idx]
		if anchor.Tx == nil {
			var tx *wire.MsgTx
			err := clock.Retry(ctx, r.v.cfg.Retry, func(ctx context.Context) error {
				var err error
				tx, err = r.v.oracle.GetTransaction(ctx, anchor.Txid)
				return err
			})
			if err != nil {
				return &Failure{Step: StepAnchors, Err: fmt.Errorf("%w: fetch %s: %v", ErrIndeterminate, anchor.Txid, err)}
			}
			if tx == nil {
				return &Failure{Step: StepAnchors, Err: fmt.Errorf("%w: transaction %s is unknown", ErrIndeterminate, anchor.Txid)}
			}
			anchor.Tx = tx
		}
		if err := commit.Verify(*anchor, anchor.Tx); err != nil {
			return &Failure{Step: StepAnchors, Op: members[idx][0], Err: err}
		}

		spends := make(map[wire.OutPoint]struct{}, len(anchor.Tx.TxIn))
		for _, in := range anchor.Tx.TxIn {
			spends[in.PreviousOutPoint] = struct{}{}
		}
		for _, id := range members[idx] {
			for _, a := range r.inputs[id] {
				if a.Seal.Method != anchor.Method {
					return &Failure{Step: StepAnchors, Op: id, Err: fmt.Errorf("%w: seal %s closed with %s", ErrWitnessMismatch, a.Seal, anchor.Method)}
				}
			}
			for _, outpoint := range r.closes[id] {
				if _, ok := spends[outpoint]; !ok {
					return &Failure{Step: StepAnchors, Op: id, Err: fmt.Errorf("%w: %s does not spend %s", ErrWitnessMismatch, anchor.Txid, outpoint)}
				}
				closer, ok := anchor.Closer(outpoint)
				if !ok {
					return &Failure{Step: StepAnchors, Op: id, Err: fmt.Errorf("%w: %s is missing from the committed inputs", ErrWitnessMismatch, outpoint)}
				}
				if closer != id {
					return &Failure{Step: StepAnchors, Op: id, Err: fmt.Errorf("%w: %s is committed as closed by %s", ErrSealReuse, outpoint, closer)}
				}
			}
		}
	}
	return nil
}

type confirmation struct {
	height uint32
	mined  bool
}

func (r *run) witnesses(ctx context.Context) (*Failure, []model.Warning, error) {
	if len(r.used) == 0 {
		return nil, nil, nil
	}
	var tip uint32
	err := clock.Retry(ctx, r.v.cfg.Retry, func(ctx context.Context) error {
		var err error
		tip, err = r.v.oracle.TipHeight(ctx)
		return err
	})
	if err != nil {
		return &Failure{Step: StepWitness, Err: fmt.Errorf("%w: tip height: %v", ErrIndeterminate, err)}, nil, nil
	}

	txids := make([]chainhash.Hash, len(r.used))
	for i, idx := range r.used {
		txids[i] = r.closure.Anchors[idx].Txid
	}
	confirmations, err := workerpool.Map(ctx, r.v.cfg.Workers, txids, func(ctx context.Context, txid chainhash.Hash) (confirmation, error) {
		var c confirmation
		err := clock.Retry(ctx, r.v.cfg.Retry, func(ctx context.Context) error {
			var err error
			c.height, c.mined, err = r.v.oracle.GetConfirmationHeight(ctx, txid)
			return err
		})
		if err != nil {
			return confirmation{}, fmt.Errorf("confirmation of %s: %w", txid, err)
		}
		return c, nil
	})
	if err != nil {
		return &Failure{Step: StepWitness, Err: fmt.Errorf("%w: %v", ErrIndeterminate, err)}, nil, nil
	}

	terminals := map[model.OpID]struct{}{}
	for _, t := range r.c.Terminals {
		terminals[t.Op] = struct{}{}
	}

	var warnings []model.Warning
	for i, idx := range r.used {
		anchor := &r.closure.Anchors[idx]
		seen := confirmations[i]
		claimed := anchor.Status

		if claimed.Mined && claimed.Height < r.v.cfg.FromHeight && (!seen.mined || seen.height != claimed.Height) {
			warnings = append(warnings, model.Warning{
				Kind:    model.WarnReorg,
				Txid:    anchor.Txid,
				Message: fmt.Sprintf("claimed %s, chain reports %s", claimed, model.WitnessStatus{Mined: seen.mined, Height: seen.height}),
			})
		}
		anchor.Status = model.WitnessStatus{Mined: seen.mined, Height: seen.height}

		if !seen.mined {
			kind := model.WarnUnminedWitness
			for _, id := range anchor.BundleOps {
				if _, ok := terminals[id]; ok {
					kind = model.WarnUnminedTerminal
					break
				}
			}
			warnings = append(warnings, model.Warning{Kind: kind, Txid: anchor.Txid, Message: "witness transaction is not mined"})
			continue
		}
		var depth uint32
		if tip >= seen.height {
			depth = tip - seen.height + 1
		}
		if depth < r.v.cfg.SafetyDepth {
			warnings = append(warnings, model.Warning{
				Kind:    model.WarnShallowConfirmation,
				Txid:    anchor.Txid,
				Message: fmt.Sprintf("%d of %d confirmations", depth, r.v.cfg.SafetyDepth),
			})
		}
	}
	return nil, warnings, nil
}

func (r *run) lookup(id model.OpID) (model.Operation, bool, error) {
	if op, ok := r.byID[id]; ok {
		return op, true, nil
	}
	op, err := r.v.store.Operation(id)
	if errors.Is(err, history.ErrNotFound) {
		return model.Operation{}, false, nil
	}
	if err != nil {
		return model.Operation{}, false, fmt.Errorf("load operation %s: %w", id, err)
	}
	return op, true, nil
}

// witness returns the witness txid of a transition, or nil for genesis and
// for transitions that are neither anchored here nor stored.
func (r *run) witness(id model.OpID) (*chainhash.Hash, error) {
	if id == model.OpID(r.c.ContractID) {
		return nil, nil
	}
	if idx := r.anchorIndex(id); idx >= 0 {
		txid := r.closure.Anchors[idx].Txid
		return &txid, nil
	}
	txid, found, err := r.v.store.WitnessOf(id)
	if err != nil {
		return nil, fmt.Errorf("look up witness of %s: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return &txid, nil
}

func (r *run) anchorIndex(id model.OpID) int {
	for i, a := range r.closure.Anchors {
		if a.Covers(id) {
			return i
		}
	}
	return -1
}

// allocations resolves the assignments the consignment hands over.
func (r *run) allocations() []model.Allocation {
	var opouts []model.Opout
	switch r.c.Kind {
	case consignment.KindTransfer:
		for _, t := range r.c.Terminals {
			opouts = append(opouts, t.Opout())
		}
	default:
		for n := range r.c.Genesis.Assignments {
			opouts = append(opouts, r.c.Genesis.Opout(n))
		}
	}

	out := make([]model.Allocation, 0, len(opouts))
	for i, o := range opouts {
		op := r.byID[o.Op]
		a, ok := op.Assignment(o)
		if !ok {
			continue
		}
		witness, err := r.witness(o.Op)
		if err != nil {
			r.v.logger.Warn("resolve allocation witness", zap.Stringer("opout", o), zap.Error(err))
			continue
		}
		outpoint, err := a.Seal.Resolve(witness)
		if err != nil {
			continue
		}
		out = append(out, model.Allocation{
			ContractID: r.c.ContractID,
			Opout:      o,
			Seal:       a.Seal,
			Outpoint:   outpoint,
			Amount:     a.Amount,
			Data:       a.Data,
			Order:      uint64(i),
		})
	}
	return out
}
