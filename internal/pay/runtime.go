// Package pay wires the payment pipeline and the validator around one
// history store and one network.
package pay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/sealtransfer/internal/commit"
	"github.com/goodnatureofminers/sealtransfer/internal/consignment"
	"github.com/goodnatureofminers/sealtransfer/internal/executor"
	"github.com/goodnatureofminers/sealtransfer/internal/history"
	"github.com/goodnatureofminers/sealtransfer/internal/invoice"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
	"github.com/goodnatureofminers/sealtransfer/internal/paymentscript"
	"github.com/goodnatureofminers/sealtransfer/internal/prefab"
	"github.com/goodnatureofminers/sealtransfer/internal/schema"
	"github.com/goodnatureofminers/sealtransfer/internal/validator"
	"go.uber.org/zap"
)

var (
	// ErrNoInvoices is returned by Pay when there is nothing to pay.
	ErrNoInvoices = errors.New("no invoices")
	// ErrNoOracle is returned by Accept on a runtime built without a chain oracle.
	ErrNoOracle = errors.New("no chain oracle configured")
)

// Store is the history the runtime reads and appends to.
type Store interface {
	validator.Store
	consignment.Source
	AppendAll(closures ...model.Closure) error
	Contracts() ([]history.Contract, error)
	Allocations(contract model.ContractID, outpoints ...wire.OutPoint) ([]model.Allocation, error)
}

// Config selects the network and tunes the pipeline.
type Config struct {
	Network   model.Network
	Method    model.CloseMethod
	Strategy  executor.Strategy
	DustValue int64
	// Validation tunes Accept. Its Network is always Config.Network.
	Validation validator.Config
	Now        func() time.Time
}

// Deps are the collaborators of a Runtime. Sink may be nil.
type Deps struct {
	Registry *schema.Registry
	Store    Store
	Oracle   Oracle
	Sink     validator.ReportSink
	Metrics  validator.Metrics
}

// Wallet is the payer's side of the witness transaction.
type Wallet struct {
	// Owned lists the outpoints the wallet can spend. Only state on them is used.
	Owned []wire.OutPoint
	executor.Wallet
}

// Payment is everything a payer needs after Pay: the skeleton to sign and
// broadcast, and one consignment per paid contract for the recipients.
type Payment struct {
	Skeleton     *prefab.Skeleton
	Bundle       *prefab.Bundle
	Commitment   *commit.Commitment
	Terminals    []executor.PaymentTerminal
	Consignments map[model.ContractID]*consignment.Consignment
	Warnings     []model.Warning
}

// Runtime is the explicit context for paying and accepting.
type Runtime struct {
	cfg          Config
	registry     *schema.Registry
	store        Store
	scripts      *paymentscript.Builder
	executor     *executor.Executor
	consignments *consignment.Builder
	validator    *validator.Validator
	canAccept    bool
	logger       *zap.Logger
}

// New builds a Runtime.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Runtime, error) {
	params, err := cfg.Network.Params()
	if err != nil {
		return nil, err
	}
	if deps.Registry == nil {
		deps.Registry = schema.Default()
	}
	if deps.Store == nil {
		return nil, errors.New("pay runtime requires a store")
	}
	if deps.Metrics == nil {
		return nil, errors.New("pay runtime requires validator metrics")
	}
	logger = logger.Named("pay").With(zap.String("network", string(cfg.Network)))

	validation := cfg.Validation
	validation.Network = cfg.Network
	return &Runtime{
		cfg:      cfg,
		registry: deps.Registry,
		store:    deps.Store,
		scripts:  paymentscript.NewBuilder(deps.Registry, cfg.Now),
		executor: executor.New(deps.Registry, executor.Config{
			Method:    cfg.Method,
			DustValue: cfg.DustValue,
			Strategy:  cfg.Strategy,
			Params:    params,
		}, logger),
		consignments: consignment.NewBuilder(deps.Store, logger),
		validator:    validator.New(deps.Registry, deps.Store, deps.Oracle, deps.Sink, deps.Metrics, validation, logger),
		canAccept:    deps.Oracle != nil,
		logger:       logger,
	}, nil
}

// Issue creates a contract and stores its genesis.
func (r *Runtime) Issue(req schema.IssueRequest) (*consignment.Consignment, error) {
	if req.Network == "" {
		req.Network = string(r.cfg.Network)
	}
	genesis, err := r.registry.Issue(req)
	if err != nil {
		return nil, err
	}
	if genesis.Network != r.cfg.Network {
		return nil, fmt.Errorf("%w: %s", validator.ErrNetworkMismatch, genesis.Network)
	}
	contract := genesis.Contract()
	if err := r.store.Append(model.Closure{ContractID: contract, Operations: []model.Operation{genesis}}); err != nil {
		return nil, fmt.Errorf("store genesis: %w", err)
	}
	r.logger.Info("contract issued", zap.Stringer("contract", contract), zap.String("schema", string(genesis.Schema)))
	return r.consignments.Contract(contract)
}

// Pay turns invoices into a committed skeleton, records the payer's own
// bundle in the store and builds the consignments for the recipients.
func (r *Runtime) Pay(ctx context.Context, invoices []invoice.Invoice, wallet Wallet) (*Payment, error) {
	if len(invoices) == 0 {
		return nil, ErrNoInvoices
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inv, err := r.inventory(wallet.Owned)
	if err != nil {
		return nil, err
	}
	script, err := r.scripts.Build(invoices, inv)
	if err != nil {
		return nil, fmt.Errorf("build payment script: %w", err)
	}
	result, err := r.executor.Execute(script, inv, wallet.Wallet)
	if err != nil {
		return nil, fmt.Errorf("execute payment script: %w", err)
	}
	commitment, err := commit.Commit(result.Skeleton, result.Bundle)
	if err != nil {
		return nil, fmt.Errorf("commit bundle: %w", err)
	}

	byBundle := result.Bundle.ByContract()
	closures := make([]model.Closure, 0, len(byBundle))
	for contract, ops := range byBundle {
		closures = append(closures, model.Closure{
			ContractID: contract,
			Operations: ops,
			Anchors:    []model.Anchor{commitment.Anchors[contract]},
		})
	}
	if err := r.store.AppendAll(closures...); err != nil {
		return nil, fmt.Errorf("store own bundle: %w", err)
	}

	payment := &Payment{
		Skeleton:     result.Skeleton,
		Bundle:       result.Bundle,
		Commitment:   commitment,
		Terminals:    result.Terminals,
		Consignments: map[model.ContractID]*consignment.Consignment{},
	}
	byContract := map[model.ContractID][]model.Terminal{}
	var order []model.ContractID
	for _, t := range result.Terminals {
		if _, ok := byContract[t.ContractID]; !ok {
			order = append(order, t.ContractID)
		}
		byContract[t.ContractID] = append(byContract[t.ContractID], t.Terminal)
	}
	for _, contract := range order {
		c, warnings, err := r.consignments.Transfer(contract, byContract[contract], nil)
		if err != nil {
			return nil, fmt.Errorf("build consignment for %s: %w", contract, err)
		}
		payment.Consignments[contract] = c
		payment.Warnings = append(payment.Warnings, warnings...)
	}

	r.logger.Info("payment prepared",
		zap.Stringer("txid", commitment.Txid),
		zap.Int("invoices", len(invoices)),
		zap.Int("contracts", len(order)),
		zap.Int("operations", len(result.Bundle.Operations)),
	)
	return payment, nil
}

// Accept validates a consignment received from a payer.
func (r *Runtime) Accept(ctx context.Context, c *consignment.Consignment) (validator.Report, error) {
	if !r.canAccept {
		return validator.Report{}, ErrNoOracle
	}
	return r.validator.Validate(ctx, c)
}

func (r *Runtime) inventory(owned []wire.OutPoint) (paymentscript.Inventory, error) {
	contracts, err := r.store.Contracts()
	if err != nil {
		return paymentscript.Inventory{}, fmt.Errorf("list contracts: %w", err)
	}
	inv := paymentscript.Inventory{Contracts: map[model.ContractID]paymentscript.ContractInfo{}}
	for _, c := range contracts {
		if c.Network != r.cfg.Network {
			continue
		}
		inv.Contracts[c.ID] = paymentscript.ContractInfo{Schema: c.Schema, Network: c.Network}
		if len(owned) == 0 {
			continue
		}
		allocs, err := r.store.Allocations(c.ID, owned...)
		if err != nil {
			return paymentscript.Inventory{}, fmt.Errorf("allocations of %s: %w", c.ID, err)
		}
		inv.Allocations = append(inv.Allocations, allocs...)
	}
	return inv, nil
}
