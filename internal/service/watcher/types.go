package watcher

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// AnchorStore holds anchors and their last known witness status.
	AnchorStore interface {
		PendingAnchors() ([]model.Anchor, error)
		UpdateAnchorStatus(contract model.ContractID, txid chainhash.Hash, status model.WitnessStatus, settled bool) error
	}
	// ChainOracle reports where witness transactions sit on the chain.
	ChainOracle interface {
		GetConfirmationHeight(ctx context.Context, txid chainhash.Hash) (uint32, bool, error)
		TipHeight(ctx context.Context) (uint32, error)
	}
	Metrics interface {
		ObserveCycle(err error, pending int, started time.Time)
		ObserveStatusChange(kind string)
	}
)
