package indexer

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/sealtransfer/internal/repository/clickhouse"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// Node serves raw blocks.
	Node interface {
		GetBlockCount() (int64, error)
		GetBlockHash(height int64) (*chainhash.Hash, error)
		GetBlock(blockHash *chainhash.Hash) (*wire.MsgBlock, error)
	}
	Repository interface {
		LastIndexedBlock(ctx context.Context, network string) (clickhouse.IndexedBlock, bool, error)
		InsertIndexedBlock(ctx context.Context, block clickhouse.IndexedBlock) error
		RewindFrom(ctx context.Context, network string, height uint64) error
	}
	Metrics interface {
		ObserveBlock(err error, height uint64, started time.Time)
		ObserveRewind(height uint64)
	}
)
