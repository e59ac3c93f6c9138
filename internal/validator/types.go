package validator

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// Oracle answers chain questions about witness transactions.
	Oracle interface {
		// GetTransaction returns nil and no error for a transaction the chain does not know.
		GetTransaction(ctx context.Context, txid chainhash.Hash) (*wire.MsgTx, error)
		GetConfirmationHeight(ctx context.Context, txid chainhash.Hash) (uint32, bool, error)
		TipHeight(ctx context.Context) (uint32, error)
	}
	Store interface {
		Has(id model.OpID) (bool, error)
		Operation(id model.OpID) (model.Operation, error)
		WitnessOf(id model.OpID) (chainhash.Hash, bool, error)
		OperationClosing(contract model.ContractID, outpoint wire.OutPoint) (model.OpID, bool, error)
		Append(closure model.Closure) error
	}
	ReportSink interface {
		Submit(ctx context.Context, report Report) error
	}
	Metrics interface {
		ObserveValidation(status string, operations int, started time.Time)
		ObserveWarning(kind string)
	}
)
