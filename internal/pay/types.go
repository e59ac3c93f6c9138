package pay

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// Oracle is the chain view used when accepting consignments.
	Oracle interface {
		GetTransaction(ctx context.Context, txid chainhash.Hash) (*wire.MsgTx, error)
		GetConfirmationHeight(ctx context.Context, txid chainhash.Hash) (uint32, bool, error)
		TipHeight(ctx context.Context) (uint32, error)
	}
)
