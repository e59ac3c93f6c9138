package model

import "github.com/btcsuite/btcd/wire"

// UTXO is an unspent bitcoin output known to the chain index.
type UTXO struct {
	Outpoint wire.OutPoint
	Value    int64
	PkScript []byte
	Height   uint32
}
