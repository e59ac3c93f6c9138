package cli

import (
	"bytes"
	"fmt"
	"io"

	"github.com/goodnatureofminers/sealtransfer/internal/pay"
	"github.com/goodnatureofminers/sealtransfer/internal/schema"
	"github.com/spf13/cobra"
)

type issueResult struct {
	ContractID string `json:"contract_id"`
	Schema     string `json:"schema"`
	Assigned   int    `json:"assignments"`
	Out        string `json:"out,omitempty"`
}

// NewIssueCommand creates the issue command.
func NewIssueCommand(rootOpts *RootOptions) *cobra.Command {
	var out string
	var binary bool

	cmd := &cobra.Command{
		Use:   "issue <contract.yaml>",
		Short: "Create a contract from a YAML issuance file and store its genesis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIssue(rootOpts, cmd, args[0], out, !binary)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the contract consignment here instead of stdout")
	cmd.Flags().BoolVar(&binary, "binary", false, "write the binary form instead of armored text")
	return cmd
}

func runIssue(opts *RootOptions, cmd *cobra.Command, path, out string, armored bool) error {
	if out == "" && opts.Format == "json" {
		return fmt.Errorf("--out is required with --format json")
	}
	data, err := readInput(cmd.InOrStdin(), path)
	if err != nil {
		return fmt.Errorf("read issuance file: %w", err)
	}
	req, err := schema.LoadIssueRequest(bytes.NewReader(data))
	if err != nil {
		return err
	}

	store, err := opts.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	rt, err := opts.runtime(store, pay.Deps{}, pay.Config{})
	if err != nil {
		return err
	}
	c, err := rt.Issue(req)
	if err != nil {
		return fmt.Errorf("issue: %w", err)
	}
	encoded, err := encodeConsignment(c, armored)
	if err != nil {
		return err
	}

	result := issueResult{
		ContractID: c.ContractID.String(),
		Schema:     string(c.Genesis.Schema),
		Assigned:   len(c.Genesis.Assignments),
		Out:        out,
	}
	if out == "" {
		return writeOutput(cmd.OutOrStdout(), "", encoded)
	}
	if err := writeOutput(cmd.OutOrStdout(), out, encoded); err != nil {
		return err
	}
	return opts.print(cmd.OutOrStdout(), result, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "issued %s (%s, %d assignments) -> %s\n", result.ContractID, result.Schema, result.Assigned, out)
		return err
	})
}
