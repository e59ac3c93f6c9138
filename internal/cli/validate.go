package cli

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goodnatureofminers/sealtransfer/internal/pay"
	"github.com/goodnatureofminers/sealtransfer/internal/service/reports"
	"github.com/goodnatureofminers/sealtransfer/internal/transport"
	"github.com/goodnatureofminers/sealtransfer/internal/validator"
	"github.com/goodnatureofminers/sealtransfer/pkg/batcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ErrNotAccepted is returned after printing a report whose status rejects the consignment.
var ErrNotAccepted = errors.New("consignment not accepted")

type warningView struct {
	Kind    string `json:"kind"`
	Txid    string `json:"txid"`
	Message string `json:"message"`
}

type reportView struct {
	ContractID  string           `json:"contract_id"`
	Kind        string           `json:"kind"`
	Status      string           `json:"status"`
	Step        string           `json:"step,omitempty"`
	Failure     string           `json:"failure,omitempty"`
	Warnings    []warningView    `json:"warnings,omitempty"`
	Operations  int              `json:"operations"`
	Allocations []allocationView `json:"allocations,omitempty"`
}

type validateOptions struct {
	chain       chainOptions
	safetyDepth uint32
	fromHeight  uint32
	ackEndpoint string
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var opts validateOptions
	cmd := &cobra.Command{
		Use:   "validate <file|->",
		Short: "Validate a received consignment against the chain and store it when valid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd, args[0], opts)
		},
	}
	opts.chain.bind(cmd)
	cmd.Flags().Uint32Var(&opts.safetyDepth, "safety-depth", 6, "confirmations below which a warning is raised")
	cmd.Flags().Uint32Var(&opts.fromHeight, "from-height", 0, "re-check claimed witness heights below this height")
	cmd.Flags().StringVar(&opts.ackEndpoint, "ack", "", "post the verdict to this relay endpoint for every terminal")
	return cmd
}

func runValidate(rootOpts *RootOptions, cmd *cobra.Command, path string, opts validateOptions) error {
	c, err := readConsignment(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}

	store, err := rootOpts.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ch, err := rootOpts.dialChain(opts.chain)
	if err != nil {
		return err
	}
	defer ch.Close()

	deps := pay.Deps{Oracle: ch.oracle}
	if ch.repo != nil {
		sink := reports.NewSink(ch.repo, rootOpts.network, batcher.Config{}, rootOpts.logger)
		sink.Start(cmd.Context())
		defer sink.Stop()
		deps.Sink = sink
	}

	rt, err := rootOpts.runtime(store, deps, pay.Config{
		Validation: validator.Config{
			SafetyDepth: opts.safetyDepth,
			FromHeight:  opts.fromHeight,
		},
	})
	if err != nil {
		return err
	}
	report, err := rt.Accept(cmd.Context(), c)
	if err != nil {
		return err
	}

	if opts.ackEndpoint != "" {
		ack := transport.Ack{Accepted: report.Status.Accepted()}
		if report.Failure != nil {
			ack.Reason = report.Failure.Error()
		}
		client := transport.NewClient(&http.Client{Timeout: relayTimeout})
		for _, t := range report.Terminals {
			if err := client.Acknowledge(cmd.Context(), opts.ackEndpoint, t, ack); err != nil {
				rootOpts.logger.Warn("failed to post ack", zap.Stringer("terminal", t), zap.Error(err))
			}
		}
	}

	v := viewReport(report)
	if err := rootOpts.print(cmd.OutOrStdout(), v, func(w io.Writer) error {
		return printReport(w, v)
	}); err != nil {
		return err
	}
	if !report.Status.Accepted() {
		return ErrNotAccepted
	}
	return nil
}

func viewReport(r validator.Report) reportView {
	v := reportView{
		ContractID: r.ContractID.String(),
		Kind:       r.Kind.String(),
		Status:     r.Status.String(),
		Operations: r.Operations,
	}
	if r.Failure != nil {
		v.Step = r.Failure.Step.String()
		v.Failure = r.Failure.Error()
	}
	for _, w := range r.Warnings {
		v.Warnings = append(v.Warnings, warningView{Kind: string(w.Kind), Txid: w.Txid.String(), Message: w.Message})
	}
	if len(r.Allocations) > 0 {
		v.Allocations = viewContract(r.ContractID, "", "", r.Allocations).Allocations
	}
	return v
}

func printReport(w io.Writer, v reportView) error {
	if _, err := fmt.Fprintf(w, "%s %s: %s (%d new operations)\n", v.Kind, v.ContractID, v.Status, v.Operations); err != nil {
		return err
	}
	if v.Failure != "" {
		if _, err := fmt.Fprintf(w, "failure: %s\n", v.Failure); err != nil {
			return err
		}
	}
	for _, warn := range v.Warnings {
		if _, err := fmt.Fprintf(w, "warning: %s %s: %s\n", warn.Kind, warn.Txid, warn.Message); err != nil {
			return err
		}
	}
	for _, a := range v.Allocations {
		if _, err := fmt.Fprintf(w, "received: %s %d\n", a.Outpoint, a.Amount); err != nil {
			return err
		}
	}
	return nil
}
