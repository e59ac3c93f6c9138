package paymentscript

import (
	"errors"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/sealtransfer/internal/invoice"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
	"github.com/goodnatureofminers/sealtransfer/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fungible    = model.ContractID{0x01}
	collectible = model.ContractID{0x02}
	now         = time.Unix(1_700_000_000, 0)
)

func inventory() Inventory {
	alloc := func(contract model.ContractID, vout uint32, amount uint64, data []byte) model.Allocation {
		return model.Allocation{
			ContractID: contract,
			Opout:      model.Opout{Op: model.OpID{byte(vout)}, Type: schema.AssetOwner},
			Outpoint:   wire.OutPoint{Hash: chainhash.Hash{0xee}, Index: vout},
			Amount:     amount,
			Data:       data,
			Order:      uint64(vout),
		}
	}
	return Inventory{
		Contracts: map[model.ContractID]ContractInfo{
			fungible:    {Schema: schema.FungibleSchemaID, Network: model.Regtest},
			collectible: {Schema: schema.CollectibleSchemaID, Network: model.Regtest},
		},
		Allocations: []model.Allocation{
			alloc(fungible, 0, 600, nil),
			alloc(fungible, 1, 400, nil),
			alloc(collectible, 2, 0, []byte("token-a")),
		},
	}
}

func amountInvoice(contract model.ContractID, amount uint64, vout uint32) invoice.Invoice {
	c := contract
	return invoice.Invoice{
		Contract:    &c,
		Interface:   schema.FungibleInterface,
		State:       invoice.State{Kind: invoice.StateAmount, Amount: amount},
		Beneficiary: invoice.Beneficiary{Kind: invoice.BeneficiaryWitnessOutput, Vout: vout},
	}
}

func TestBuild(t *testing.T) {
	past := now.Add(-time.Hour)
	unknown := model.ContractID{0x99}

	tests := []struct {
		name     string
		invoices func() []invoice.Invoice
		wantErr  error
		check    func(t *testing.T, s Script)
	}{
		{
			name:     "single transfer uses interface defaults",
			invoices: func() []invoice.Invoice { return []invoice.Invoice{amountInvoice(fungible, 1_000, 0)} },
			check: func(t *testing.T, s Script) {
				require.Len(t, s.Entries, 1)
				e := s.Entries[0]
				assert.Equal(t, schema.TransitionTransfer, e.Transition)
				require.Len(t, e.Payments, 1)
				assert.Equal(t, schema.AssetOwner, e.Payments[0].Assignment)
				assert.EqualValues(t, 1_000, e.Payments[0].Amount)
			},
		},
		{
			name: "same contract invoices merge",
			invoices: func() []invoice.Invoice {
				return []invoice.Invoice{amountInvoice(fungible, 300, 0), amountInvoice(fungible, 200, 1)}
			},
			check: func(t *testing.T, s Script) {
				require.Len(t, s.Entries, 1)
				require.Len(t, s.Entries[0].Payments, 2)
				assert.Equal(t, 1, s.Entries[0].Payments[1].Invoice)
			},
		},
		{
			name: "data token",
			invoices: func() []invoice.Invoice {
				c := collectible
				return []invoice.Invoice{{
					Contract:    &c,
					State:       invoice.State{Kind: invoice.StateData, Data: []byte("token-a")},
					Beneficiary: invoice.Beneficiary{Kind: invoice.BeneficiaryWitnessOutput},
				}}
			},
			check: func(t *testing.T, s Script) {
				require.Len(t, s.Entries, 1)
				assert.Equal(t, schema.Data, s.Entries[0].Payments[0].Kind)
			},
		},
		{
			name: "expired",
			invoices: func() []invoice.Invoice {
				inv := amountInvoice(fungible, 1, 0)
				inv.Expiry = &past
				return []invoice.Invoice{inv}
			},
			wantErr: ErrInvoiceExpired,
		},
		{
			name: "no contract",
			invoices: func() []invoice.Invoice {
				inv := amountInvoice(fungible, 1, 0)
				inv.Contract = nil
				return []invoice.Invoice{inv}
			},
			wantErr: ErrNoContract,
		},
		{
			name:     "unknown contract",
			invoices: func() []invoice.Invoice { return []invoice.Invoice{amountInvoice(unknown, 1, 0)} },
			wantErr:  ErrUnknownContract,
		},
		{
			name: "interface of another schema",
			invoices: func() []invoice.Invoice {
				inv := amountInvoice(fungible, 1, 0)
				inv.Interface = schema.CollectibleInterface
				return []invoice.Invoice{inv}
			},
			wantErr: ErrUnknownInterface,
		},
		{
			name: "amount for data slot",
			invoices: func() []invoice.Invoice {
				inv := amountInvoice(collectible, 1, 0)
				inv.Interface = ""
				return []invoice.Invoice{inv}
			},
			wantErr: ErrAssignmentTypeMismatch,
		},
		{
			name: "void state",
			invoices: func() []invoice.Invoice {
				inv := amountInvoice(fungible, 1, 0)
				inv.State = invoice.State{}
				return []invoice.Invoice{inv}
			},
			wantErr: ErrAssignmentTypeMismatch,
		},
		{
			name: "merged amount exceeds holdings",
			invoices: func() []invoice.Invoice {
				return []invoice.Invoice{amountInvoice(fungible, 600, 0), amountInvoice(fungible, 401, 1)}
			},
			wantErr: ErrInsufficientState,
		},
		{
			name: "token not owned",
			invoices: func() []invoice.Invoice {
				c := collectible
				return []invoice.Invoice{{
					Contract:    &c,
					State:       invoice.State{Kind: invoice.StateData, Data: []byte("token-b")},
					Beneficiary: invoice.Beneficiary{Kind: invoice.BeneficiaryWitnessOutput},
				}}
			},
			wantErr: ErrInsufficientState,
		},
		{
			name: "network mismatch",
			invoices: func() []invoice.Invoice {
				inv := amountInvoice(fungible, 1, 0)
				inv.Network = model.Mainnet
				return []invoice.Invoice{inv}
			},
			wantErr: invoice.ErrNetworkMismatch,
		},
	}

	b := NewBuilder(schema.Default(), func() time.Time { return now })
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := b.Build(tt.invoices(), inventory())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Build() error = %v, want %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, s)
			}
		})
	}
}

func TestScriptMerge(t *testing.T) {
	a := Script{Entries: []Entry{
		{ContractID: fungible, Transition: schema.TransitionTransfer, Payments: []Payment{{Amount: 1}}},
	}}
	b := Script{Entries: []Entry{
		{ContractID: collectible, Transition: schema.TransitionTransfer, Payments: []Payment{{Data: []byte("x")}}},
		{ContractID: fungible, Transition: schema.TransitionTransfer, Payments: []Payment{{Amount: 2}}},
	}}

	merged := a.Merge(b)
	require.Len(t, merged.Entries, 2)
	assert.Equal(t, fungible, merged.Entries[0].ContractID)
	assert.Len(t, merged.Entries[0].Payments, 2)
	assert.Equal(t, []model.ContractID{fungible, collectible}, merged.Contracts())
	assert.Len(t, a.Entries[0].Payments, 1, "merge must not alias the receiver")
}
