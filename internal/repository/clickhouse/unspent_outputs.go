package clickhouse

import (
	"context"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
	"github.com/goodnatureofminers/sealtransfer/pkg/safe"
)

const unspentOutputsQuery = `
SELECT
	o.txid,
	o.output_index,
	o.value,
	o.script_hex,
	o.block_height
FROM utxo_transaction_outputs AS o
WHERE o.coin = 'btc' AND o.network = ? AND hasAny(o.addresses, ?)
	AND (o.txid, o.output_index) NOT IN (
		SELECT prev_txid, prev_vout
		FROM utxo_transaction_inputs
		WHERE coin = 'btc' AND network = ?
	)
ORDER BY o.block_height ASC, o.txid ASC, o.output_index ASC`

// UnspentOutputs returns the indexed outputs paying to addresses that no
// indexed input spends, oldest first.
func (r *Repository) UnspentOutputs(ctx context.Context, network model.Network, addresses []string) (utxos []model.UTXO, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("unspent_outputs", string(network), err, start)
	}()

	if len(addresses) == 0 {
		return nil, nil
	}

	rows, err := r.conn.Query(ctx, unspentOutputsQuery, string(network), addresses, string(network))
	if err != nil {
		return nil, fmt.Errorf("query unspent outputs: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close rows: %w", cerr)
		}
	}()

	for rows.Next() {
		var (
			txid      string
			index     uint32
			value     uint64
			scriptHex string
			height    uint64
		)
		if err = rows.Scan(&txid, &index, &value, &scriptHex, &height); err != nil {
			return nil, fmt.Errorf("scan unspent output: %w", err)
		}

		utxo, convErr := toUTXO(txid, index, value, scriptHex, height)
		if convErr != nil {
			err = convErr
			return nil, err
		}
		utxos = append(utxos, utxo)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unspent outputs: %w", err)
	}

	return utxos, nil
}

func toUTXO(txid string, index uint32, value uint64, scriptHex string, height uint64) (model.UTXO, error) {
	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return model.UTXO{}, fmt.Errorf("decode txid %q: %w", txid, err)
	}
	script, err := hex.DecodeString(scriptHex)
	if err != nil {
		return model.UTXO{}, fmt.Errorf("decode script of %s:%d: %w", txid, index, err)
	}
	if value > math.MaxInt64 {
		return model.UTXO{}, fmt.Errorf("value of %s:%d out of range", txid, index)
	}
	h, err := safe.Uint32(height)
	if err != nil {
		return model.UTXO{}, fmt.Errorf("height of %s:%d: %w", txid, index, err)
	}
	return model.UTXO{
		Outpoint: wire.OutPoint{Hash: *hash, Index: index},
		Value:    int64(value),
		PkScript: script,
		Height:   h,
	}, nil
}
