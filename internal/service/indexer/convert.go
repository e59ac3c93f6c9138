package indexer

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/sealtransfer/internal/repository/clickhouse"
	"github.com/goodnatureofminers/sealtransfer/pkg/safe"
)

// convertBlock flattens a block into index rows.
func convertBlock(network string, params *chaincfg.Params, height uint64, block *wire.MsgBlock) (clickhouse.IndexedBlock, error) {
	out := clickhouse.IndexedBlock{
		Network:   network,
		Height:    height,
		Hash:      block.BlockHash().String(),
		PrevHash:  block.Header.PrevBlock.String(),
		Timestamp: block.Header.Timestamp.UTC(),
	}
	for _, tx := range block.Transactions {
		txid := tx.TxHash().String()
		coinbase := blockchain.IsCoinBaseTx(tx)

		for idx, in := range tx.TxIn {
			index, err := safe.Uint32(idx)
			if err != nil {
				return clickhouse.IndexedBlock{}, fmt.Errorf("tx %s input index: %w", txid, err)
			}
			asm, _ := txscript.DisasmString(in.SignatureScript)
			witness := make([]string, 0, len(in.Witness))
			for _, item := range in.Witness {
				witness = append(witness, hex.EncodeToString(item))
			}
			out.Inputs = append(out.Inputs, clickhouse.ChainInput{
				TxID:         txid,
				Index:        index,
				PrevTxID:     in.PreviousOutPoint.Hash.String(),
				PrevVout:     in.PreviousOutPoint.Index,
				Sequence:     in.Sequence,
				IsCoinbase:   coinbase,
				ScriptSigHex: hex.EncodeToString(in.SignatureScript),
				ScriptSigAsm: asm,
				Witness:      witness,
			})
		}

		for idx, txOut := range tx.TxOut {
			index, err := safe.Uint32(idx)
			if err != nil {
				return clickhouse.IndexedBlock{}, fmt.Errorf("tx %s output index: %w", txid, err)
			}
			value, err := safe.Uint64(txOut.Value)
			if err != nil {
				return clickhouse.IndexedBlock{}, fmt.Errorf("tx %s output %d value: %w", txid, idx, err)
			}
			class, addrs, _, err := txscript.ExtractPkScriptAddrs(txOut.PkScript, params)
			if err != nil {
				// Unparseable scripts are still indexed, just without addresses.
				class = txscript.NonStandardTy
			}
			addresses := make([]string, 0, len(addrs))
			for _, addr := range addrs {
				addresses = append(addresses, addr.EncodeAddress())
			}
			asm, _ := txscript.DisasmString(txOut.PkScript)
			out.Outputs = append(out.Outputs, clickhouse.ChainOutput{
				TxID:       txid,
				Index:      index,
				Value:      value,
				ScriptType: class.String(),
				ScriptHex:  hex.EncodeToString(txOut.PkScript),
				ScriptAsm:  asm,
				Addresses:  addresses,
			})
		}
	}
	return out, nil
}
