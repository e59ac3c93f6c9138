package schema

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/goodnatureofminers/sealtransfer/internal/model"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// IssueRequest describes a new contract, usually loaded from a YAML file.
type IssueRequest struct {
	Schema      string            `yaml:"schema"`
	Network     string            `yaml:"network"`
	Ticker      string            `yaml:"ticker"`
	Name        string            `yaml:"name"`
	Precision   uint8             `yaml:"precision,omitempty"`
	Allocations []IssueAllocation `yaml:"allocations"`
	// Nonce distinguishes otherwise identical issuances.
	Nonce uint64 `yaml:"nonce,omitempty"`
}

// IssueAllocation places initial state on an existing outpoint.
type IssueAllocation struct {
	// Seal is "<method>:<txid>:<vout>".
	Seal   string `yaml:"seal"`
	Amount uint64 `yaml:"amount,omitempty"`
	// Data is hex-encoded token data for collectible schemas.
	Data string `yaml:"data,omitempty"`
}

// LoadIssueRequest decodes YAML, rejecting unknown fields.
func LoadIssueRequest(r io.Reader) (IssueRequest, error) {
	var req IssueRequest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&req); err != nil {
		return IssueRequest{}, fmt.Errorf("decode issue request: %w", err)
	}
	return req, nil
}

// Issue builds and validates a genesis for req.
func (r *Registry) Issue(req IssueRequest) (model.Operation, error) {
	s, err := r.Schema(model.SchemaID(req.Schema))
	if err != nil {
		return model.Operation{}, err
	}
	network, err := model.ParseNetwork(req.Network)
	if err != nil {
		return model.Operation{}, err
	}

	ticker := norm.NFC.String(req.Ticker)
	genesis := model.Operation{
		Kind:    model.KindGenesis,
		Schema:  s.ID,
		Network: network,
		Nonce:   req.Nonce,
		Globals: []model.GlobalState{
			{Type: GlobalTicker, Value: []byte(ticker)},
			{Type: GlobalName, Value: []byte(norm.NFC.String(req.Name))},
		},
	}

	var supply uint64
	nonce := binary.BigEndian.AppendUint64(nil, req.Nonce)
	for i, alloc := range req.Allocations {
		seal, err := model.ParseSeal(alloc.Seal)
		if err != nil {
			return model.Operation{}, fmt.Errorf("allocation %d: %w", i, err)
		}
		if seal.Witness {
			return model.Operation{}, fmt.Errorf("allocation %d: genesis seals must name an existing outpoint", i)
		}
		seal.Blinding = model.DeriveBlinding([]byte(ticker), []byte(alloc.Seal), nonce, binary.BigEndian.AppendUint32(nil, uint32(i)))

		a := model.Assignment{Type: AssetOwner, Seal: seal, Amount: alloc.Amount}
		if alloc.Data != "" {
			if a.Data, err = hex.DecodeString(alloc.Data); err != nil {
				return model.Operation{}, fmt.Errorf("allocation %d data: %w", i, err)
			}
		}
		supply += alloc.Amount
		genesis.Assignments = append(genesis.Assignments, a)
	}

	if s.ID == FungibleSchemaID {
		genesis.Globals = append(genesis.Globals,
			model.GlobalState{Type: GlobalPrecision, Value: []byte{req.Precision}},
			model.GlobalState{Type: GlobalIssuedSupply, Value: EncodeSupply(supply)},
		)
	}

	if err := s.Conform(genesis); err != nil {
		return model.Operation{}, err
	}
	if err := s.Check(genesis, nil); err != nil {
		return model.Operation{}, err
	}
	return genesis, nil
}
