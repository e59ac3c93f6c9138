// Package consignment builds, orders and serializes the history closure a
// payer hands to a recipient.
package consignment

import (
	"errors"
	"fmt"

	"github.com/goodnatureofminers/sealtransfer/internal/model"
	"go.uber.org/zap"
)

var (
	ErrMalformed        = model.ErrMalformed
	ErrChecksumMismatch = model.ErrChecksumMismatch
	ErrCycle            = errors.New("operations do not form an acyclic history")
	ErrNoTerminals      = errors.New("transfer consignment without terminals")
)

// Kind distinguishes a bare contract from a transfer.
type Kind uint8

const (
	KindContract Kind = iota + 1
	KindTransfer
)

func (k Kind) String() string {
	switch k {
	case KindContract:
		return "contract"
	case KindTransfer:
		return "transfer"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "contract":
		return KindContract, nil
	case "transfer":
		return KindTransfer, nil
	default:
		return 0, fmt.Errorf("%w: consignment type %q", ErrMalformed, s)
	}
}

// Consignment is a contract genesis plus the transitions and anchors leading
// to its terminals.
type Consignment struct {
	Kind       Kind
	ContractID model.ContractID
	Genesis    model.Operation
	// Operations holds transitions in topological order.
	Operations []model.Operation
	Anchors    []model.Anchor
	Terminals  []model.Terminal
}

// Closure returns the genesis and transitions as one closure.
func (c *Consignment) Closure() model.Closure {
	ops := make([]model.Operation, 0, len(c.Operations)+1)
	ops = append(ops, c.Genesis)
	ops = append(ops, c.Operations...)
	return model.Closure{ContractID: c.ContractID, Operations: ops, Anchors: c.Anchors}
}

// Source is the history the builder reads from.
type Source interface {
	Genesis(contract model.ContractID) (model.Operation, error)
	AncestorsOf(contract model.ContractID, terminals []model.Opout, checkpoints map[model.OpID]struct{}) (model.Closure, error)
}

// Builder computes minimal consignments from a history source.
type Builder struct {
	source Source
	logger *zap.Logger
}

// NewBuilder constructs a Builder.
func NewBuilder(source Source, logger *zap.Logger) *Builder {
	return &Builder{source: source, logger: logger.Named("consignment")}
}

// Contract returns a consignment carrying only the genesis of contract.
func (b *Builder) Contract(contract model.ContractID) (*Consignment, error) {
	genesis, err := b.source.Genesis(contract)
	if err != nil {
		return nil, fmt.Errorf("load genesis: %w", err)
	}
	return &Consignment{Kind: KindContract, ContractID: contract, Genesis: genesis}, nil
}

// Transfer returns the operations reachable backwards from terminals, stopping
// at genesis or at checkpoints the recipient already holds. The genesis is
// always included. A terminal whose witness is unmined yields a warning.
func (b *Builder) Transfer(contract model.ContractID, terminals []model.Terminal, checkpoints []model.OpID) (*Consignment, []model.Warning, error) {
	if len(terminals) == 0 {
		return nil, nil, ErrNoTerminals
	}
	opouts := make([]model.Opout, len(terminals))
	for i, t := range terminals {
		opouts[i] = t.Opout()
	}
	known := make(map[model.OpID]struct{}, len(checkpoints))
	for _, id := range checkpoints {
		if id != model.OpID(contract) {
			known[id] = struct{}{}
		}
	}

	closure, err := b.source.AncestorsOf(contract, opouts, known)
	if err != nil {
		return nil, nil, fmt.Errorf("collect ancestors: %w", err)
	}

	c := &Consignment{
		Kind:       KindTransfer,
		ContractID: contract,
		Anchors:    closure.Anchors,
		Terminals:  append([]model.Terminal(nil), terminals...),
	}
	var transitions []model.Operation
	for _, op := range closure.Operations {
		if op.IsGenesis() {
			c.Genesis = op
			continue
		}
		transitions = append(transitions, op)
	}
	if c.Genesis.Kind == 0 {
		if c.Genesis, err = b.source.Genesis(contract); err != nil {
			return nil, nil, fmt.Errorf("load genesis: %w", err)
		}
	}
	if c.Operations, err = Order(transitions); err != nil {
		return nil, nil, err
	}

	var warnings []model.Warning
	for _, t := range terminals {
		if t.Op == model.OpID(contract) {
			continue
		}
		anchor, ok := closure.AnchorFor(t.Op)
		if ok && !anchor.Status.Mined {
			warnings = append(warnings, model.Warning{
				Kind:    model.WarnUnminedTerminal,
				Txid:    anchor.Txid,
				Message: fmt.Sprintf("terminal %s is not mined yet", t),
			})
		}
	}

	b.logger.Debug("transfer consignment built",
		zap.Stringer("contract", contract),
		zap.Int("operations", len(c.Operations)),
		zap.Int("anchors", len(c.Anchors)),
		zap.Int("checkpoints", len(known)),
		zap.Int("warnings", len(warnings)),
	)
	return c, warnings, nil
}
