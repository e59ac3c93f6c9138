package cli

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goodnatureofminers/sealtransfer/internal/invoice"
	"github.com/spf13/cobra"
)

type invoiceView struct {
	Contract    string            `json:"contract,omitempty"`
	Interface   string            `json:"interface,omitempty"`
	Operation   string            `json:"operation,omitempty"`
	Assignment  string            `json:"assignment,omitempty"`
	Amount      *uint64           `json:"amount,omitempty"`
	Data        string            `json:"data,omitempty"`
	Beneficiary string            `json:"beneficiary"`
	Network     string            `json:"network,omitempty"`
	Expiry      *time.Time        `json:"expiry,omitempty"`
	Expired     bool              `json:"expired"`
	Endpoints   []string          `json:"endpoints,omitempty"`
	Unknown     map[string]string `json:"unknown,omitempty"`
	Canonical   string            `json:"canonical"`
}

// NewInvoiceCommand creates the invoice command group.
func NewInvoiceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoice",
		Short: "Work with transfer invoices",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "parse <invoice>",
		Short: "Parse an invoice and print its fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := invoice.Parse(args[0])
			if err != nil {
				return err
			}
			return rootOpts.print(cmd.OutOrStdout(), viewInvoice(inv, time.Now()), func(w io.Writer) error {
				return printInvoice(w, viewInvoice(inv, time.Now()))
			})
		},
	})
	return cmd
}

func viewInvoice(inv invoice.Invoice, now time.Time) invoiceView {
	v := invoiceView{
		Interface:   inv.Interface,
		Operation:   inv.Operation,
		Assignment:  inv.Assignment,
		Beneficiary: inv.Beneficiary.String(),
		Network:     string(inv.Network),
		Expiry:      inv.Expiry,
		Expired:     inv.Expired(now),
		Endpoints:   inv.Endpoints,
		Canonical:   inv.String(),
	}
	if inv.Contract != nil {
		v.Contract = inv.Contract.String()
	}
	switch inv.State.Kind {
	case invoice.StateAmount:
		amount := inv.State.Amount
		v.Amount = &amount
	case invoice.StateData:
		v.Data = hex.EncodeToString(inv.State.Data)
	}
	if len(inv.Unknown) > 0 {
		v.Unknown = make(map[string]string, len(inv.Unknown))
		for _, p := range inv.Unknown {
			v.Unknown[p.Key] = p.Value
		}
	}
	return v
}

func printInvoice(w io.Writer, v invoiceView) error {
	rows := [][2]string{
		{"contract", orAny(v.Contract)},
		{"interface", orAny(v.Interface)},
		{"beneficiary", v.Beneficiary},
	}
	if v.Operation != "" {
		rows = append(rows, [2]string{"operation", v.Operation})
	}
	if v.Assignment != "" {
		rows = append(rows, [2]string{"assignment", v.Assignment})
	}
	if v.Amount != nil {
		rows = append(rows, [2]string{"amount", fmt.Sprint(*v.Amount)})
	}
	if v.Data != "" {
		rows = append(rows, [2]string{"data", v.Data})
	}
	if v.Network != "" {
		rows = append(rows, [2]string{"network", v.Network})
	}
	if v.Expiry != nil {
		rows = append(rows, [2]string{"expiry", v.Expiry.UTC().Format(time.RFC3339)})
		rows = append(rows, [2]string{"expired", fmt.Sprint(v.Expired)})
	}
	if len(v.Endpoints) > 0 {
		rows = append(rows, [2]string{"endpoints", strings.Join(v.Endpoints, ", ")})
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%-12s %s\n", r[0]+":", r[1]); err != nil {
			return err
		}
	}
	return nil
}

func orAny(s string) string {
	if s == "" {
		return "~"
	}
	return s
}
