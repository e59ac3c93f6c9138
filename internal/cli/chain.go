package cli

import (
	"fmt"

	"github.com/goodnatureofminers/sealtransfer/internal/metrics"
	"github.com/goodnatureofminers/sealtransfer/internal/oracle"
	"github.com/goodnatureofminers/sealtransfer/internal/pkg/btcd/rpcclient"
	"github.com/goodnatureofminers/sealtransfer/internal/repository/clickhouse"
	"github.com/spf13/cobra"
)

// chainOptions are the flags of commands that talk to a node.
type chainOptions struct {
	RPCURL        string
	RPCUser       string
	RPCPassword   string
	RPCRate       int
	ClickhouseDSN string
}

func (c *chainOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.RPCURL, "rpc-url", envOr("SEALCTL_RPC_URL", "http://127.0.0.1:8332"), "Bitcoin RPC URL")
	cmd.Flags().StringVar(&c.RPCUser, "rpc-user", envOr("SEALCTL_RPC_USER", ""), "Bitcoin RPC username")
	cmd.Flags().StringVar(&c.RPCPassword, "rpc-password", envOr("SEALCTL_RPC_PASSWORD", ""), "Bitcoin RPC password")
	cmd.Flags().IntVar(&c.RPCRate, "rpc-rate", 20, "max RPC calls per second, 0 for unlimited")
	cmd.Flags().StringVar(&c.ClickhouseDSN, "clickhouse-dsn", envOr("SEALCTL_CLICKHOUSE_DSN", ""), "ClickHouse DSN of the chain index and report table")
}

// chain is an oracle plus the optional ClickHouse repository behind it.
type chain struct {
	oracle *oracle.Oracle
	repo   *clickhouse.Repository
	rpc    *rpcclient.ObservedClient
}

func (c *chain) Close() {
	c.rpc.Close()
	if c.repo != nil {
		_ = c.repo.Close()
	}
}

func (o *RootOptions) dialChain(c chainOptions) (*chain, error) {
	rpc, err := rpcclient.Dial(c.RPCURL, c.RPCUser, c.RPCPassword, metrics.NewRPCClient(string(o.network)))
	if err != nil {
		return nil, fmt.Errorf("init rpc client: %w", err)
	}
	out := &chain{rpc: rpc}

	var outputs oracle.OutputRepository
	if c.ClickhouseDSN != "" {
		repo, err := clickhouse.NewRepository(c.ClickhouseDSN, metrics.NewClickhouseRepository())
		if err != nil {
			rpc.Close()
			return nil, fmt.Errorf("init repository: %w", err)
		}
		out.repo = repo
		outputs = repo
	}
	out.oracle = oracle.New(rpc, outputs, o.network, c.RPCRate, o.logger)
	return out, nil
}
