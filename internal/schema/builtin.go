package schema

import (
	"encoding/binary"
	"fmt"

	"github.com/goodnatureofminers/sealtransfer/internal/model"
	"github.com/goodnatureofminers/sealtransfer/pkg/safe"
)

const (
	GlobalTicker       model.GlobalType = 2000
	GlobalName         model.GlobalType = 2001
	GlobalPrecision    model.GlobalType = 2002
	GlobalIssuedSupply model.GlobalType = 2003

	AssetOwner model.AssignmentType = 4000

	TransitionTransfer model.TransitionType = 10000

	FungibleSchemaID    model.SchemaID = "NIA"
	CollectibleSchemaID model.SchemaID = "UDA"

	FungibleInterface    = "RGB20"
	CollectibleInterface = "RGB21"

	// MaxPrecision bounds the number of decimal places a fungible asset declares.
	MaxPrecision = 18
)

// FungibleSchema is a non-inflatable asset: fixed supply issued at genesis.
func FungibleSchema() *Schema {
	return &Schema{
		ID:   FungibleSchemaID,
		Name: "NonInflatableAsset",
		Globals: map[model.GlobalType]GlobalDef{
			GlobalTicker:       {Name: "ticker", Min: 1, Max: 1, Text: true},
			GlobalName:         {Name: "name", Min: 1, Max: 1, Text: true},
			GlobalPrecision:    {Name: "precision", Min: 1, Max: 1, Size: 1},
			GlobalIssuedSupply: {Name: "issuedSupply", Min: 1, Max: 1, Size: 8},
		},
		Assignments: map[model.AssignmentType]AssignmentDef{
			AssetOwner: {Name: "assetOwner", Kind: Fungible},
		},
		Transitions: map[model.TransitionType]string{
			TransitionTransfer: "transfer",
		},
		genesis: fungibleGenesis,
		rules: map[model.TransitionType]TransitionRule{
			TransitionTransfer: conservingTransfer,
		},
	}
}

// CollectibleSchema is a unique digital asset whose tokens move as opaque data.
func CollectibleSchema() *Schema {
	return &Schema{
		ID:   CollectibleSchemaID,
		Name: "UniqueDigitalAsset",
		Globals: map[model.GlobalType]GlobalDef{
			GlobalTicker: {Name: "ticker", Min: 1, Max: 1, Text: true},
			GlobalName:   {Name: "name", Min: 1, Max: 1, Text: true},
		},
		Assignments: map[model.AssignmentType]AssignmentDef{
			AssetOwner: {Name: "assetOwner", Kind: Data},
		},
		Transitions: map[model.TransitionType]string{
			TransitionTransfer: "transfer",
		},
		genesis: collectibleGenesis,
		rules: map[model.TransitionType]TransitionRule{
			TransitionTransfer: conservingTransfer,
		},
	}
}

// EncodeSupply is the issuedSupply global value.
func EncodeSupply(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

func fungibleGenesis(_ *Schema, op model.Operation) error {
	precision := op.Global(GlobalPrecision)
	if len(precision) != 1 || len(precision[0]) != 1 || precision[0][0] > MaxPrecision {
		return fmt.Errorf("%w: precision must be one byte up to %d", ErrRuleViolation, MaxPrecision)
	}
	supplies := op.Global(GlobalIssuedSupply)
	if len(supplies) != 1 || len(supplies[0]) != 8 {
		return fmt.Errorf("%w: issued supply missing", ErrRuleViolation)
	}

	supply := binary.BigEndian.Uint64(supplies[0])
	var issued uint64
	for _, a := range op.Assignments {
		sum, err := safe.Add64(issued, a.Amount)
		if err != nil {
			return fmt.Errorf("%w: issued amounts: %v", ErrRuleViolation, err)
		}
		issued = sum
	}
	if issued != supply {
		return fmt.Errorf("%w: genesis allocates %d, declares supply %d", ErrStateImbalance, issued, supply)
	}
	return nil
}

func collectibleGenesis(_ *Schema, op model.Operation) error {
	seen := make(map[string]struct{}, len(op.Assignments))
	for _, a := range op.Assignments {
		if _, dup := seen[string(a.Data)]; dup {
			return fmt.Errorf("%w: token %x issued twice", ErrRuleViolation, a.Data)
		}
		seen[string(a.Data)] = struct{}{}
	}
	if len(seen) == 0 {
		return fmt.Errorf("%w: no tokens issued", ErrRuleViolation)
	}
	return nil
}

func conservingTransfer(s *Schema, op model.Operation, inputs []model.Assignment) error {
	if len(op.Assignments) == 0 {
		return fmt.Errorf("%w: transfer burns every input", ErrRuleViolation)
	}
	return Conserve(s, inputs, op.Assignments)
}
