package executor

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/sealtransfer/internal/invoice"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
	"github.com/goodnatureofminers/sealtransfer/internal/paymentscript"
	"github.com/goodnatureofminers/sealtransfer/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	fundedOutpoint = wire.OutPoint{Hash: chainhash.Hash{0x01}, Index: 0}
	payeeScript    = append([]byte{0x00, 0x14}, bytes.Repeat([]byte{0xaa}, 20)...)
	changeScript   = append([]byte{0x00, 0x14}, bytes.Repeat([]byte{0xcc}, 20)...)
)

func issue(t *testing.T, ticker string, amount uint64) model.Operation {
	t.Helper()
	genesis, err := schema.Default().Issue(schema.IssueRequest{
		Schema:      string(schema.FungibleSchemaID),
		Network:     "regtest",
		Ticker:      ticker,
		Name:        ticker + " asset",
		Precision:   8,
		Allocations: []schema.IssueAllocation{{Seal: "opret1st:" + fundedOutpoint.Hash.String() + ":0", Amount: amount}},
	})
	require.NoError(t, err)
	return genesis
}

func inventoryOf(ops ...model.Operation) paymentscript.Inventory {
	inv := paymentscript.Inventory{Contracts: map[model.ContractID]paymentscript.ContractInfo{}}
	for i, op := range ops {
		inv.Contracts[op.Contract()] = paymentscript.ContractInfo{Schema: op.Schema, Network: op.Network}
		for n, a := range op.Assignments {
			outpoint, _ := a.Seal.Resolve(nil)
			inv.Allocations = append(inv.Allocations, model.Allocation{
				ContractID: op.Contract(),
				Opout:      op.Opout(n),
				Seal:       a.Seal,
				Outpoint:   outpoint,
				Amount:     a.Amount,
				Data:       a.Data,
				Order:      uint64(i),
			})
		}
	}
	return inv
}

func transfer(contract model.ContractID, amount uint64, b invoice.Beneficiary) paymentscript.Script {
	return paymentscript.Script{Entries: []paymentscript.Entry{{
		ContractID: contract,
		Schema:     schema.FungibleSchemaID,
		Transition: schema.TransitionTransfer,
		Payments: []paymentscript.Payment{{
			Assignment:  schema.AssetOwner,
			Kind:        schema.Fungible,
			Beneficiary: b,
			Amount:      amount,
		}},
	}}}
}

func defaultWallet() Wallet {
	return Wallet{Outputs: []Output{
		{Value: 1_000, PkScript: payeeScript},
		{Value: 50_000, PkScript: changeScript, Change: true},
	}}
}

func newExecutor() *Executor {
	return New(schema.Default(), Config{Params: &chaincfg.RegressionNetParams}, zap.NewNop())
}

func TestStrategies(t *testing.T) {
	candidates := []model.Allocation{
		{Amount: 50, Order: 1},
		{Amount: 20, Order: 2},
		{Amount: 30, Order: 3},
		{Amount: 5, Order: 4},
	}
	amounts := func(allocs []model.Allocation) []uint64 {
		var out []uint64
		for _, a := range allocs {
			out = append(out, a.Amount)
		}
		return out
	}

	tests := []struct {
		name     string
		strategy Strategy
		target   uint64
		want     []uint64
		wantErr  error
	}{
		{name: "exact match", strategy: ExactThenSmallest{}, target: 30, want: []uint64{30}},
		{name: "smallest covering sum", strategy: ExactThenSmallest{}, target: 25, want: []uint64{20, 5}},
		{name: "fewer inputs on equal sum", strategy: ExactThenSmallest{}, target: 45, want: []uint64{50}},
		{name: "smallest sum over several", strategy: ExactThenSmallest{}, target: 70, want: []uint64{50, 20}},
		{name: "smallest sum above every single", strategy: ExactThenSmallest{}, target: 101, want: []uint64{50, 20, 30, 5}},
		{name: "exact then smallest insufficient", strategy: ExactThenSmallest{}, target: 106, wantErr: ErrInsufficientState},
		{name: "aggregate oldest first", strategy: Aggregate{}, target: 60, want: []uint64{50, 20}},
		{name: "small size", strategy: SmallSize{}, target: 25, want: []uint64{50}},
		{name: "insufficient", strategy: Aggregate{}, target: 500, wantErr: ErrInsufficientState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.strategy.Select(candidates, tt.target)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, amounts(got))
		})
	}
}

func TestExactThenSmallestPrefersSmallestSum(t *testing.T) {
	tests := []struct {
		name       string
		candidates []model.Allocation
		target     uint64
		wantOrders []uint64
	}{
		{
			name:       "pair beats larger pair",
			candidates: []model.Allocation{{Amount: 5, Order: 1}, {Amount: 5, Order: 2}, {Amount: 8, Order: 3}},
			target:     10,
			wantOrders: []uint64{1, 2},
		},
		{
			name:       "oldest on tie",
			candidates: []model.Allocation{{Amount: 5, Order: 1}, {Amount: 8, Order: 2}, {Amount: 5, Order: 3}, {Amount: 5, Order: 4}},
			target:     10,
			wantOrders: []uint64{1, 3},
		},
		{
			name:       "single covering beats larger pair",
			candidates: []model.Allocation{{Amount: 7, Order: 1}, {Amount: 7, Order: 2}, {Amount: 12, Order: 3}},
			target:     11,
			wantOrders: []uint64{3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExactThenSmallest{}.Select(tt.candidates, tt.target)
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			var orders []uint64
			for _, a := range got {
				orders = append(orders, a.Order)
			}
			assert.Equal(t, tt.wantOrders, orders)
		})
	}
}

func TestExecuteRejectsAssignmentIndexOverflow(t *testing.T) {
	genesis := issue(t, "USDT", 100_000_000)
	script := transfer(genesis.Contract(), 1, invoice.Beneficiary{Kind: invoice.BeneficiaryWitnessOutput, Vout: 0})
	payment := script.Entries[0].Payments[0]
	for len(script.Entries[0].Payments) < math.MaxUint16+2 {
		script.Entries[0].Payments = append(script.Entries[0].Payments, payment)
	}

	_, err := newExecutor().Execute(script, inventoryOf(genesis), defaultWallet())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of uint16 range")
}

func TestParseStrategy(t *testing.T) {
	for _, name := range []string{"", "exact-then-smallest", "Aggregate", "small-size"} {
		if _, err := ParseStrategy(name); err != nil {
			t.Fatalf("ParseStrategy(%q) error = %v", name, err)
		}
	}
	if _, err := ParseStrategy("random"); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}

func TestExecuteTransfer(t *testing.T) {
	genesis := issue(t, "USDT", 100_000_000)
	contract := genesis.Contract()

	res, err := newExecutor().Execute(
		transfer(contract, 1_000, invoice.Beneficiary{Kind: invoice.BeneficiaryWitnessOutput, Vout: 0}),
		inventoryOf(genesis),
		defaultWallet(),
	)
	require.NoError(t, err)

	require.Len(t, res.Bundle.Operations, 1)
	op := res.Bundle.Operations[0]
	assert.Equal(t, []model.Opout{genesis.Opout(0)}, op.Inputs)
	require.Len(t, op.Assignments, 2)
	assert.Equal(t, uint64(1_000), op.Assignments[0].Amount)
	assert.Equal(t, uint32(0), op.Assignments[0].Seal.Vout)
	assert.Equal(t, uint64(99_999_000), op.Assignments[1].Amount)
	assert.Equal(t, uint32(1), op.Assignments[1].Seal.Vout)
	assert.True(t, op.Assignments[1].Seal.Witness)
	assert.NotEqual(t, op.Assignments[0].Seal.Blinding, op.Assignments[1].Seal.Blinding)

	require.Len(t, res.Terminals, 1)
	assert.Equal(t, model.Terminal(op.Opout(0)), res.Terminals[0].Terminal)

	tx := res.Skeleton.Tx()
	require.Len(t, tx.TxIn, 1)
	assert.Equal(t, fundedOutpoint, tx.TxIn[0].PreviousOutPoint)
	assert.Len(t, tx.TxOut, 2)
	assert.Equal(t, []model.OpID{op.ID()}, res.Skeleton.Consumed(0))
	assert.Equal(t, []model.OpID{op.ID()}, res.Bundle.Inputs[fundedOutpoint])
}

func TestExecuteAddressBeneficiaryAppendsOutput(t *testing.T) {
	genesis := issue(t, "USDT", 10_000)
	addr, err := btcutil.NewAddressWitnessPubKeyHash(bytes.Repeat([]byte{0x42}, 20), &chaincfg.RegressionNetParams)
	require.NoError(t, err)

	res, err := newExecutor().Execute(
		transfer(genesis.Contract(), 10_000, invoice.Beneficiary{Kind: invoice.BeneficiaryAddress, Address: addr}),
		inventoryOf(genesis),
		defaultWallet(),
	)
	require.NoError(t, err)

	tx := res.Skeleton.Tx()
	require.Len(t, tx.TxOut, 3)
	want, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)
	assert.Equal(t, want, tx.TxOut[2].PkScript)
	assert.Equal(t, DefaultDustValue, tx.TxOut[2].Value)

	op := res.Bundle.Operations[0]
	require.Len(t, op.Assignments, 1, "exact spend leaves no change")
	assert.Equal(t, uint32(2), op.Assignments[0].Seal.Vout)
}

func TestExecuteMovesUnscriptedContractsOnSpentOutpoints(t *testing.T) {
	paid := issue(t, "USDT", 5_000)
	bystander := issue(t, "EURT", 700)

	res, err := newExecutor().Execute(
		transfer(paid.Contract(), 1_000, invoice.Beneficiary{Kind: invoice.BeneficiaryWitnessOutput, Vout: 0}),
		inventoryOf(paid, bystander),
		defaultWallet(),
	)
	require.NoError(t, err)
	require.Len(t, res.Bundle.Operations, 2)

	blank := res.Bundle.ByContract()[bystander.Contract()]
	require.Len(t, blank, 1)
	assert.Equal(t, model.BlankTransition, blank[0].Transition)
	require.Len(t, blank[0].Assignments, 1)
	assert.Equal(t, uint64(700), blank[0].Assignments[0].Amount)
	assert.Equal(t, uint32(1), blank[0].Assignments[0].Seal.Vout)

	assert.Len(t, res.Bundle.Inputs[fundedOutpoint], 2)
	assert.Len(t, res.Skeleton.Consumed(0), 2)
	assert.Len(t, res.Terminals, 1, "blank transitions carry no payments")
}

func TestExecuteErrors(t *testing.T) {
	genesis := issue(t, "USDT", 5_000)
	witness := func(vout uint32) invoice.Beneficiary {
		return invoice.Beneficiary{Kind: invoice.BeneficiaryWitnessOutput, Vout: vout}
	}
	mainnetAddr, err := btcutil.NewAddressWitnessPubKeyHash(bytes.Repeat([]byte{0x42}, 20), &chaincfg.MainNetParams)
	require.NoError(t, err)

	tests := []struct {
		name    string
		script  paymentscript.Script
		wallet  Wallet
		wantErr error
	}{
		{
			name:    "no change output",
			script:  transfer(genesis.Contract(), 1_000, witness(0)),
			wallet:  Wallet{Outputs: []Output{{Value: 1_000, PkScript: payeeScript}}},
			wantErr: ErrNoChangeOutput,
		},
		{
			name:    "beneficiary on change output",
			script:  transfer(genesis.Contract(), 1_000, witness(1)),
			wallet:  defaultWallet(),
			wantErr: ErrInvalidBeneficiary,
		},
		{
			name:    "beneficiary beyond reserved outputs",
			script:  transfer(genesis.Contract(), 1_000, witness(7)),
			wallet:  defaultWallet(),
			wantErr: ErrInvalidBeneficiary,
		},
		{
			name:    "address for another network",
			script:  transfer(genesis.Contract(), 1_000, invoice.Beneficiary{Kind: invoice.BeneficiaryAddress, Address: mainnetAddr}),
			wallet:  defaultWallet(),
			wantErr: ErrInvalidBeneficiary,
		},
		{
			name:    "insufficient state",
			script:  transfer(genesis.Contract(), 6_000, witness(0)),
			wallet:  defaultWallet(),
			wantErr: ErrInsufficientState,
		},
		{
			name:    "unknown contract",
			script:  transfer(model.ContractID{0x99}, 1, witness(0)),
			wallet:  defaultWallet(),
			wantErr: ErrUnknownContract,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newExecutor().Execute(tt.script, inventoryOf(genesis), tt.wallet)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Execute() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestExecuteTapretHost(t *testing.T) {
	genesis := issue(t, "USDT", 5_000)
	key := bytes.Repeat([]byte{0x02}, 32)
	wallet := defaultWallet()
	wallet.Outputs[1].TapretKey = key

	exec := New(schema.Default(), Config{Method: model.TapretFirst}, zap.NewNop())
	res, err := exec.Execute(
		transfer(genesis.Contract(), 1_000, invoice.Beneficiary{Kind: invoice.BeneficiaryWitnessOutput, Vout: 0}),
		inventoryOf(genesis),
		wallet,
	)
	require.NoError(t, err)

	vout, got, ok := res.Skeleton.TapretHost()
	require.True(t, ok)
	assert.Equal(t, uint32(1), vout)
	assert.Equal(t, key, got)
	assert.Equal(t, model.TapretFirst, res.Bundle.Operations[0].Assignments[0].Seal.Method)
}
