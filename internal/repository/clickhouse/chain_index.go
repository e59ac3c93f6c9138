package clickhouse

import (
	"context"
	"fmt"
	"time"
)

const coinBTC = "btc"

// ChainOutput is one row of utxo_transaction_outputs.
type ChainOutput struct {
	TxID       string
	Index      uint32
	Value      uint64
	ScriptType string
	ScriptHex  string
	ScriptAsm  string
	Addresses  []string
}

// ChainInput is one row of utxo_transaction_inputs. Only the spent outpoint
// matters to the unspent query; value and addresses are left empty.
type ChainInput struct {
	TxID         string
	Index        uint32
	PrevTxID     string
	PrevVout     uint32
	Sequence     uint32
	IsCoinbase   bool
	ScriptSigHex string
	ScriptSigAsm string
	Witness      []string
}

// IndexedBlock is a block whose outputs and inputs are in the index.
type IndexedBlock struct {
	Network   string
	Height    uint64
	Hash      string
	PrevHash  string
	Timestamp time.Time
	Outputs   []ChainOutput
	Inputs    []ChainInput
}

const (
	insertOutputsQuery = `
INSERT INTO utxo_transaction_outputs (
	coin,
	network,
	block_height,
	block_timestamp,
	txid,
	output_index,
	value,
	script_type,
	script_hex,
	script_asm,
	addresses
) VALUES`

	insertInputsQuery = `
INSERT INTO utxo_transaction_inputs (
	coin,
	network,
	block_height,
	block_timestamp,
	txid,
	input_index,
	prev_txid,
	prev_vout,
	sequence,
	is_coinbase,
	value,
	script_sig_hex,
	script_sig_asm,
	witness,
	addresses
) VALUES`

	insertBlockQuery = `
INSERT INTO utxo_indexed_blocks (
	network,
	height,
	hash,
	prev_hash,
	block_timestamp,
	outputs,
	inputs,
	indexed_at
) VALUES`

	lastIndexedBlockQuery = `
SELECT height, hash, prev_hash, block_timestamp
FROM utxo_indexed_blocks FINAL
WHERE network = ?
ORDER BY height DESC
LIMIT 1`
)

// InsertIndexedBlock writes the rows of one block. The block marker is
// written last, so a block without a marker is re-indexed on restart.
func (r *Repository) InsertIndexedBlock(ctx context.Context, block IndexedBlock) (err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("insert_indexed_block", block.Network, err, start)
	}()

	if err = r.sendBatch(ctx, insertOutputsQuery, len(block.Outputs), func(batch Batch, i int) error {
		o := block.Outputs[i]
		return batch.Append(
			coinBTC,
			block.Network,
			block.Height,
			block.Timestamp,
			o.TxID,
			o.Index,
			o.Value,
			o.ScriptType,
			o.ScriptHex,
			o.ScriptAsm,
			nonNil(o.Addresses),
		)
	}); err != nil {
		return fmt.Errorf("insert outputs of block %d: %w", block.Height, err)
	}

	if err = r.sendBatch(ctx, insertInputsQuery, len(block.Inputs), func(batch Batch, i int) error {
		in := block.Inputs[i]
		return batch.Append(
			coinBTC,
			block.Network,
			block.Height,
			block.Timestamp,
			in.TxID,
			in.Index,
			in.PrevTxID,
			in.PrevVout,
			in.Sequence,
			in.IsCoinbase,
			uint64(0),
			in.ScriptSigHex,
			in.ScriptSigAsm,
			nonNil(in.Witness),
			[]string{},
		)
	}); err != nil {
		return fmt.Errorf("insert inputs of block %d: %w", block.Height, err)
	}

	if err = r.sendBatch(ctx, insertBlockQuery, 1, func(batch Batch, _ int) error {
		return batch.Append(
			block.Network,
			block.Height,
			block.Hash,
			block.PrevHash,
			block.Timestamp,
			uint32(len(block.Outputs)),
			uint32(len(block.Inputs)),
			time.Now().UTC(),
		)
	}); err != nil {
		return fmt.Errorf("insert marker of block %d: %w", block.Height, err)
	}
	return nil
}

// LastIndexedBlock returns the highest indexed block of network. The rows
// slices are not loaded.
func (r *Repository) LastIndexedBlock(ctx context.Context, network string) (block IndexedBlock, found bool, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("last_indexed_block", network, err, start)
	}()

	rows, err := r.conn.Query(ctx, lastIndexedBlockQuery, network)
	if err != nil {
		return IndexedBlock{}, false, fmt.Errorf("query last indexed block: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close rows: %w", cerr)
		}
	}()

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return IndexedBlock{}, false, fmt.Errorf("iterate last indexed block: %w", err)
		}
		return IndexedBlock{}, false, nil
	}
	block.Network = network
	if err = rows.Scan(&block.Height, &block.Hash, &block.PrevHash, &block.Timestamp); err != nil {
		return IndexedBlock{}, false, fmt.Errorf("scan last indexed block: %w", err)
	}
	return block, true, nil
}

// RewindFrom deletes every indexed row of network at or above height.
func (r *Repository) RewindFrom(ctx context.Context, network string, height uint64) (err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("rewind_from", network, err, start)
	}()

	// Marker first: an interrupted rewind leaves orphan rows that the next
	// pass over the same height replaces.
	statements := []string{
		`DELETE FROM utxo_indexed_blocks WHERE network = ? AND height >= ?`,
		`DELETE FROM utxo_transaction_outputs WHERE coin = 'btc' AND network = ? AND block_height >= ?`,
		`DELETE FROM utxo_transaction_inputs WHERE coin = 'btc' AND network = ? AND block_height >= ?`,
	}
	for _, stmt := range statements {
		if err = r.conn.Exec(ctx, stmt, network, height); err != nil {
			return fmt.Errorf("rewind from %d: %w", height, err)
		}
	}
	return nil
}

func (r *Repository) sendBatch(ctx context.Context, query string, n int, appendRow func(Batch, int) error) error {
	if n == 0 {
		return nil
	}
	batch, err := r.conn.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for i := 0; i < n; i++ {
		if err := appendRow(batch, i); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append row %d: %w", i, err)
		}
	}
	return batch.Send()
}
