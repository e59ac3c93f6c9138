// Package oracle answers chain questions for the validator, the watcher and
// the wallet side of a payment.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
	"github.com/goodnatureofminers/sealtransfer/pkg/safe"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

var (
	// ErrUnavailable wraps every failure to reach the node or the index.
	ErrUnavailable = errors.New("chain oracle unavailable")
	// ErrNoIndex is returned by GetUTXOs when no output index is configured.
	ErrNoIndex = errors.New("no output index configured")
)

// Oracle is a rate-limited view of one Bitcoin network. It does not retry;
// callers own their retry policy.
type Oracle struct {
	rpc     RPCClient
	outputs OutputRepository
	network model.Network
	limiter ratelimit.Limiter
	logger  *zap.Logger
}

// New builds an Oracle. outputs may be nil when address lookups are not needed.
func New(rpc RPCClient, outputs OutputRepository, network model.Network, rps int, logger *zap.Logger) *Oracle {
	limiter := ratelimit.NewUnlimited()
	if rps > 0 {
		limiter = ratelimit.New(rps)
	}
	return &Oracle{
		rpc:     rpc,
		outputs: outputs,
		network: network,
		limiter: limiter,
		logger:  logger.Named("oracle").With(zap.String("network", string(network))),
	}
}

// GetTransaction fetches a transaction. An unknown transaction yields (nil, nil).
func (o *Oracle) GetTransaction(ctx context.Context, txid chainhash.Hash) (*wire.MsgTx, error) {
	if err := o.take(ctx); err != nil {
		return nil, err
	}
	tx, err := o.rpc.GetRawTransaction(&txid)
	if err != nil {
		if isNoTxInfo(err) {
			o.logger.Debug("transaction unknown to node", zap.Stringer("txid", txid))
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get transaction %s: %v", ErrUnavailable, txid, err)
	}
	return tx.MsgTx(), nil
}

// GetConfirmationHeight returns the height of the block holding txid, or
// mined=false while the transaction is in the mempool or unknown.
func (o *Oracle) GetConfirmationHeight(ctx context.Context, txid chainhash.Hash) (uint32, bool, error) {
	if err := o.take(ctx); err != nil {
		return 0, false, err
	}
	res, err := o.rpc.GetRawTransactionVerbose(&txid)
	if err != nil {
		if isNoTxInfo(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("%w: get transaction %s: %v", ErrUnavailable, txid, err)
	}
	if res.BlockHash == "" || res.Confirmations == 0 {
		return 0, false, nil
	}

	blockHash, err := chainhash.NewHashFromStr(res.BlockHash)
	if err != nil {
		return 0, false, fmt.Errorf("%w: block hash %q: %v", ErrUnavailable, res.BlockHash, err)
	}
	if err := o.take(ctx); err != nil {
		return 0, false, err
	}
	header, err := o.rpc.GetBlockHeaderVerbose(blockHash)
	if err != nil {
		return 0, false, fmt.Errorf("%w: get block header %s: %v", ErrUnavailable, blockHash, err)
	}
	height, err := safe.Uint32(header.Height)
	if err != nil {
		return 0, false, fmt.Errorf("%w: block height: %v", ErrUnavailable, err)
	}
	return height, true, nil
}

// TipHeight returns the height of the best block.
func (o *Oracle) TipHeight(ctx context.Context) (uint32, error) {
	if err := o.take(ctx); err != nil {
		return 0, err
	}
	count, err := o.rpc.GetBlockCount()
	if err != nil {
		return 0, fmt.Errorf("%w: get block count: %v", ErrUnavailable, err)
	}
	height, err := safe.Uint32(count)
	if err != nil {
		return 0, fmt.Errorf("%w: block count: %v", ErrUnavailable, err)
	}
	return height, nil
}

// GetUTXOs lists unspent outputs paying to addresses.
func (o *Oracle) GetUTXOs(ctx context.Context, addresses []btcutil.Address) ([]model.UTXO, error) {
	if o.outputs == nil {
		return nil, ErrNoIndex
	}
	params, err := o.network.Params()
	if err != nil {
		return nil, err
	}
	encoded := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !addr.IsForNet(params) {
			return nil, fmt.Errorf("address %s is not for %s", addr, o.network)
		}
		encoded = append(encoded, addr.EncodeAddress())
	}
	utxos, err := o.outputs.UnspentOutputs(ctx, o.network, encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: unspent outputs: %v", ErrUnavailable, err)
	}
	return utxos, nil
}

func (o *Oracle) take(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.limiter.Take()
	return ctx.Err()
}

func isNoTxInfo(err error) bool {
	var rpcErr *btcjson.RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == btcjson.ErrRPCNoTxInfo
}
