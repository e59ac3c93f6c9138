package oracle

import (
	"context"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// RPCClient is the node API the oracle reads from.
	RPCClient interface {
		GetBlockCount() (int64, error)
		GetRawTransaction(txHash *chainhash.Hash) (*btcutil.Tx, error)
		GetRawTransactionVerbose(txHash *chainhash.Hash) (*btcjson.TxRawResult, error)
		GetBlockHeaderVerbose(blockHash *chainhash.Hash) (*btcjson.GetBlockHeaderVerboseResult, error)
	}
	// OutputRepository looks up unspent outputs in the chain index.
	OutputRepository interface {
		UnspentOutputs(ctx context.Context, network model.Network, addresses []string) ([]model.UTXO, error)
	}
)
