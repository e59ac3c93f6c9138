package cli

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/sealtransfer/internal/consignment"
	"github.com/goodnatureofminers/sealtransfer/internal/executor"
	"github.com/goodnatureofminers/sealtransfer/internal/invoice"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
	"github.com/goodnatureofminers/sealtransfer/internal/pay"
	"github.com/goodnatureofminers/sealtransfer/internal/transport"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type payOptions struct {
	invoices  []string
	owned     []string
	funding   []string
	outputs   []string
	change    []string
	tapretKey string
	method    string
	strategy  string
	dust      int64
	outDir    string
	send      bool
}

type paymentView struct {
	Txid         string            `json:"txid"`
	Skeleton     string            `json:"skeleton"`
	Consignments map[string]string `json:"consignments"`
	Terminals    []string          `json:"terminals"`
	Warnings     []warningView     `json:"warnings,omitempty"`
}

// NewPayCommand creates the pay command.
func NewPayCommand(rootOpts *RootOptions) *cobra.Command {
	var opts payOptions
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Pay invoices: write the witness transaction skeleton and the recipients' consignments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPay(rootOpts, cmd, opts)
		},
	}
	cmd.Flags().StringArrayVar(&opts.invoices, "invoice", nil, "invoice to pay, repeatable")
	cmd.Flags().StringSliceVar(&opts.owned, "owned", nil, "outpoints the wallet controls (txid:vout)")
	cmd.Flags().StringSliceVar(&opts.funding, "funding", nil, "extra inputs paying fees (txid:vout)")
	cmd.Flags().StringArrayVar(&opts.outputs, "output", nil, "wallet output as value:script-hex, repeatable")
	cmd.Flags().StringArrayVar(&opts.change, "change", nil, "change output as value:script-hex, repeatable")
	cmd.Flags().StringVar(&opts.tapretKey, "tapret-key", "", "x-only internal key of the first change output for tapret commitments")
	cmd.Flags().StringVar(&opts.method, "method", model.OpretFirst.String(), "close method (opret1st|tapret1st)")
	cmd.Flags().StringVar(&opts.strategy, "strategy", "", "coin selection strategy")
	cmd.Flags().Int64Var(&opts.dust, "dust", executor.DefaultDustValue, "value of outputs created for address beneficiaries")
	cmd.Flags().StringVar(&opts.outDir, "out-dir", ".", "directory for the skeleton and consignments")
	cmd.Flags().BoolVar(&opts.send, "send", false, "post consignments to the invoice endpoints")
	_ = cmd.MarkFlagRequired("invoice")
	return cmd
}

func runPay(rootOpts *RootOptions, cmd *cobra.Command, opts payOptions) error {
	invoices := make([]invoice.Invoice, 0, len(opts.invoices))
	for _, s := range opts.invoices {
		inv, err := invoice.Parse(s)
		if err != nil {
			return err
		}
		invoices = append(invoices, inv)
	}
	method, err := model.ParseCloseMethod(opts.method)
	if err != nil {
		return err
	}
	strategy, err := executor.ParseStrategy(opts.strategy)
	if err != nil {
		return err
	}
	wallet, err := parseWallet(opts)
	if err != nil {
		return err
	}

	store, err := rootOpts.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	rt, err := rootOpts.runtime(store, pay.Deps{}, pay.Config{Method: method, Strategy: strategy, DustValue: opts.dust})
	if err != nil {
		return err
	}
	payment, err := rt.Pay(cmd.Context(), invoices, wallet)
	if err != nil {
		return err
	}

	view, err := writePayment(opts.outDir, payment)
	if err != nil {
		return err
	}
	if opts.send {
		sendPayment(rootOpts, cmd, invoices, payment)
	}
	return rootOpts.print(cmd.OutOrStdout(), view, func(w io.Writer) error {
		if _, err := fmt.Fprintf(w, "witness %s\nskeleton: %s\n", view.Txid, view.Skeleton); err != nil {
			return err
		}
		for contract, file := range view.Consignments {
			if _, err := fmt.Fprintf(w, "consignment %s: %s\n", contract, file); err != nil {
				return err
			}
		}
		for _, warn := range view.Warnings {
			if _, err := fmt.Fprintf(w, "warning: %s %s: %s\n", warn.Kind, warn.Txid, warn.Message); err != nil {
				return err
			}
		}
		return nil
	})
}

func writePayment(dir string, payment *pay.Payment) (paymentView, error) {
	txid := payment.Commitment.Txid.String()
	view := paymentView{
		Txid:         txid,
		Skeleton:     filepath.Join(dir, txid+".psbt"),
		Consignments: map[string]string{},
	}
	var psbt bytes.Buffer
	if err := payment.Skeleton.Serialize(&psbt); err != nil {
		return paymentView{}, fmt.Errorf("serialize skeleton: %w", err)
	}
	if err := os.WriteFile(view.Skeleton, psbt.Bytes(), 0o600); err != nil {
		return paymentView{}, err
	}
	for contract, c := range payment.Consignments {
		data, err := encodeConsignment(c, true)
		if err != nil {
			return paymentView{}, err
		}
		file := filepath.Join(dir, contract.String()+".rgbc")
		if err := os.WriteFile(file, data, 0o600); err != nil {
			return paymentView{}, err
		}
		view.Consignments[contract.String()] = file
	}
	for _, t := range payment.Terminals {
		view.Terminals = append(view.Terminals, t.Terminal.String())
	}
	for _, w := range payment.Warnings {
		view.Warnings = append(view.Warnings, warningView{Kind: string(w.Kind), Txid: w.Txid.String(), Message: w.Message})
	}
	return view, nil
}

// sendPayment posts each consignment to the endpoints of the invoice it pays.
// Failures are logged; the files on disk remain the source of truth.
func sendPayment(rootOpts *RootOptions, cmd *cobra.Command, invoices []invoice.Invoice, payment *pay.Payment) {
	client := transport.NewClient(&http.Client{Timeout: relayTimeout})
	for _, t := range payment.Terminals {
		c := payment.Consignments[t.ContractID]
		data, err := consignment.Marshal(c)
		if err != nil {
			rootOpts.logger.Error("failed to encode consignment", zap.Error(err))
			continue
		}
		for _, endpoint := range invoices[t.Invoice].Endpoints {
			err := client.Post(cmd.Context(), endpoint, t.Terminal, data)
			switch {
			case errors.Is(err, transport.ErrUnsupportedEndpoint):
				rootOpts.logger.Debug("skip endpoint", zap.String("endpoint", endpoint))
			case err != nil:
				rootOpts.logger.Warn("failed to post consignment", zap.String("endpoint", endpoint), zap.Error(err))
			default:
				fmt.Fprintf(cmd.ErrOrStderr(), "posted %s to %s\n", t.Terminal, endpoint)
			}
		}
	}
}

func parseWallet(opts payOptions) (pay.Wallet, error) {
	var wallet pay.Wallet
	for _, s := range opts.owned {
		op, err := wire.NewOutPointFromString(s)
		if err != nil {
			return pay.Wallet{}, fmt.Errorf("owned outpoint %q: %w", s, err)
		}
		wallet.Owned = append(wallet.Owned, *op)
	}
	for _, s := range opts.funding {
		op, err := wire.NewOutPointFromString(s)
		if err != nil {
			return pay.Wallet{}, fmt.Errorf("funding outpoint %q: %w", s, err)
		}
		wallet.FundingInputs = append(wallet.FundingInputs, *op)
	}
	for _, s := range opts.outputs {
		out, err := parseOutput(s)
		if err != nil {
			return pay.Wallet{}, err
		}
		wallet.Outputs = append(wallet.Outputs, out)
	}
	for i, s := range opts.change {
		out, err := parseOutput(s)
		if err != nil {
			return pay.Wallet{}, err
		}
		out.Change = true
		if i == 0 && opts.tapretKey != "" {
			if out.TapretKey, err = hex.DecodeString(opts.tapretKey); err != nil {
				return pay.Wallet{}, fmt.Errorf("tapret key: %w", err)
			}
		}
		wallet.Outputs = append(wallet.Outputs, out)
	}
	return wallet, nil
}

// parseOutput reads "value:script-hex".
func parseOutput(s string) (executor.Output, error) {
	value, script, ok := strings.Cut(s, ":")
	if !ok {
		return executor.Output{}, fmt.Errorf("output %q: want value:script-hex", s)
	}
	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return executor.Output{}, fmt.Errorf("output %q value: %w", s, err)
	}
	pkScript, err := hex.DecodeString(script)
	if err != nil {
		return executor.Output{}, fmt.Errorf("output %q script: %w", s, err)
	}
	return executor.Output{Value: v, PkScript: pkScript}, nil
}
