package cli

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goodnatureofminers/sealtransfer/internal/consignment"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
	"github.com/goodnatureofminers/sealtransfer/internal/transport"
	"github.com/spf13/cobra"
)

const relayTimeout = 30 * time.Second

type anchorView struct {
	Txid       string `json:"txid"`
	Method     string `json:"method"`
	HostVout   uint32 `json:"host_vout"`
	Operations int    `json:"operations"`
	Status     string `json:"status"`
}

type consignmentView struct {
	Kind       string       `json:"kind"`
	ContractID string       `json:"contract_id"`
	Schema     string       `json:"schema"`
	Network    string       `json:"network"`
	Operations int          `json:"operations"`
	Anchors    []anchorView `json:"anchors"`
	Terminals  []string     `json:"terminals,omitempty"`
}

// NewConsignmentCommand creates the consignment command group.
func NewConsignmentCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consignment",
		Short: "Inspect, convert and relay consignments",
	}
	cmd.AddCommand(newInspectCommand(rootOpts))
	cmd.AddCommand(newArmorCommand())
	cmd.AddCommand(newSendCommand(rootOpts))
	cmd.AddCommand(newFetchCommand())
	return cmd
}

func newInspectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file|->",
		Short: "Print a summary of a binary or armored consignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := readConsignment(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			v := viewConsignment(c)
			return rootOpts.print(cmd.OutOrStdout(), v, func(w io.Writer) error {
				return printConsignment(w, v)
			})
		},
	}
}

func newArmorCommand() *cobra.Command {
	var out string
	var binary bool
	cmd := &cobra.Command{
		Use:   "armor <file|->",
		Short: "Convert a consignment to armored text, or back with --binary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := readConsignment(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			data, err := encodeConsignment(c, !binary)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), out, data)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, stdout when empty")
	cmd.Flags().BoolVar(&binary, "binary", false, "write the binary form")
	return cmd
}

func newSendCommand(rootOpts *RootOptions) *cobra.Command {
	var endpoint string
	var terminal string
	cmd := &cobra.Command{
		Use:   "send <file|->",
		Short: "Post a transfer consignment to a relay for one of its terminals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := readConsignment(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			terminals := c.Terminals
			if terminal != "" {
				t, err := model.ParseTerminal(terminal)
				if err != nil {
					return err
				}
				terminals = []model.Terminal{t}
			}
			if len(terminals) == 0 {
				return consignment.ErrNoTerminals
			}
			data, err := consignment.Marshal(c)
			if err != nil {
				return err
			}
			client := transport.NewClient(&http.Client{Timeout: relayTimeout})
			for _, t := range terminals {
				if err := client.Post(cmd.Context(), endpoint, t, data); err != nil {
					return fmt.Errorf("post for %s: %w", t, err)
				}
				if rootOpts.Format == "text" {
					fmt.Fprintf(cmd.OutOrStdout(), "posted %s to %s\n", t, endpoint)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "relay endpoint, e.g. from the invoice endpoints")
	cmd.Flags().StringVar(&terminal, "terminal", "", "post for this terminal only")
	_ = cmd.MarkFlagRequired("endpoint")
	return cmd
}

func newFetchCommand() *cobra.Command {
	var endpoint string
	var out string
	var armored bool
	cmd := &cobra.Command{
		Use:   "fetch <terminal>",
		Short: "Download the consignment a relay holds for a terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := model.ParseTerminal(args[0])
			if err != nil {
				return err
			}
			client := transport.NewClient(&http.Client{Timeout: relayTimeout})
			data, err := client.Fetch(cmd.Context(), endpoint, t)
			if err != nil {
				return err
			}
			if armored {
				c, err := consignment.Load(data)
				if err != nil {
					return err
				}
				if data, err = encodeConsignment(c, true); err != nil {
					return err
				}
			}
			return writeOutput(cmd.OutOrStdout(), out, data)
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "relay endpoint")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, stdout when empty")
	cmd.Flags().BoolVar(&armored, "armor", false, "write armored text")
	_ = cmd.MarkFlagRequired("endpoint")
	return cmd
}

func viewConsignment(c *consignment.Consignment) consignmentView {
	v := consignmentView{
		Kind:       c.Kind.String(),
		ContractID: c.ContractID.String(),
		Schema:     string(c.Genesis.Schema),
		Network:    string(c.Genesis.Network),
		Operations: len(c.Operations),
		Anchors:    make([]anchorView, 0, len(c.Anchors)),
	}
	for _, a := range c.Anchors {
		v.Anchors = append(v.Anchors, anchorView{
			Txid:       a.Txid.String(),
			Method:     a.Method.String(),
			HostVout:   a.HostVout,
			Operations: len(a.BundleOps),
			Status:     a.Status.String(),
		})
	}
	for _, t := range c.Terminals {
		v.Terminals = append(v.Terminals, t.String())
	}
	return v
}

func printConsignment(w io.Writer, v consignmentView) error {
	if _, err := fmt.Fprintf(w, "%s consignment for %s\nschema:     %s\nnetwork:    %s\ntransitions: %d\n",
		v.Kind, v.ContractID, v.Schema, v.Network, v.Operations); err != nil {
		return err
	}
	for _, a := range v.Anchors {
		if _, err := fmt.Fprintf(w, "anchor:     %s %s vout=%d ops=%d %s\n", a.Txid, a.Method, a.HostVout, a.Operations, a.Status); err != nil {
			return err
		}
	}
	for _, t := range v.Terminals {
		if _, err := fmt.Fprintf(w, "terminal:   %s\n", t); err != nil {
			return err
		}
	}
	return nil
}
