// Package cli implements the sealctl operator commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goodnatureofminers/sealtransfer/internal/history"
	"github.com/goodnatureofminers/sealtransfer/internal/metrics"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
	"github.com/goodnatureofminers/sealtransfer/internal/pay"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ValidFormats are the accepted --format values.
var ValidFormats = []string{"text", "json"}

// RootOptions holds the global flags.
type RootOptions struct {
	HistoryPath string
	Network     string
	Format      string
	Verbose     bool

	network model.Network
	logger  *zap.Logger
}

// NewRootCommand builds the sealctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sealctl",
		Short: "Issue, pay, move and validate contract state bound to Bitcoin outputs",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			network, err := model.ParseNetwork(opts.Network)
			if err != nil {
				return err
			}
			opts.network = network
			if opts.Verbose {
				logger, err := zap.NewDevelopment()
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}
				opts.logger = logger
			} else {
				opts.logger = zap.NewNop()
			}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.HistoryPath, "history", envOr("SEALCTL_HISTORY", "sealtransfer.db"), "path to the history database")
	cmd.PersistentFlags().StringVar(&opts.Network, "network", envOr("SEALCTL_NETWORK", string(model.Regtest)), "network name")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging to stderr")

	cmd.AddCommand(NewIssueCommand(opts))
	cmd.AddCommand(NewInvoiceCommand(opts))
	cmd.AddCommand(NewConsignmentCommand(opts))
	cmd.AddCommand(NewContractsCommand(opts))
	cmd.AddCommand(NewPayCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewUTXOsCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// openStore opens the history database. The caller closes it.
func (o *RootOptions) openStore() (*history.Store, error) {
	store, err := history.Open(o.HistoryPath, o.logger, metrics.NewHistoryStore())
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", o.HistoryPath, err)
	}
	return store, nil
}

// runtime builds a pay runtime over store. oracle may be nil for commands
// that never accept consignments.
func (o *RootOptions) runtime(store *history.Store, deps pay.Deps, cfg pay.Config) (*pay.Runtime, error) {
	deps.Store = store
	deps.Metrics = metrics.NewValidator(string(o.network))
	cfg.Network = o.network
	return pay.New(deps, cfg, o.logger)
}

// print writes v as indented JSON, or calls text for the text format.
func (o *RootOptions) print(w io.Writer, v any, text func(io.Writer) error) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}
