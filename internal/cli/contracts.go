package cli

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/goodnatureofminers/sealtransfer/internal/model"
	"github.com/spf13/cobra"
)

type allocationView struct {
	Outpoint string `json:"outpoint"`
	Terminal string `json:"terminal"`
	Amount   uint64 `json:"amount,omitempty"`
	Data     string `json:"data,omitempty"`
}

type contractView struct {
	ContractID  string           `json:"contract_id"`
	Schema      string           `json:"schema"`
	Network     string           `json:"network"`
	Allocations []allocationView `json:"allocations"`
}

// NewContractsCommand creates the contracts command.
func NewContractsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "contracts [contract-id...]",
		Short: "List stored contracts and their unspent allocations",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			wanted := map[model.ContractID]bool{}
			for _, arg := range args {
				id, err := model.ParseContractID(arg)
				if err != nil {
					return err
				}
				wanted[id] = true
			}

			contracts, err := store.Contracts()
			if err != nil {
				return err
			}
			views := make([]contractView, 0, len(contracts))
			for _, c := range contracts {
				if len(wanted) > 0 && !wanted[c.ID] {
					continue
				}
				allocs, err := store.Allocations(c.ID)
				if err != nil {
					return fmt.Errorf("allocations of %s: %w", c.ID, err)
				}
				views = append(views, viewContract(c.ID, string(c.Schema), string(c.Network), allocs))
			}
			return rootOpts.print(cmd.OutOrStdout(), views, func(w io.Writer) error {
				return printContracts(w, views)
			})
		},
	}
}

func viewContract(id model.ContractID, schemaID, network string, allocs []model.Allocation) contractView {
	v := contractView{
		ContractID:  id.String(),
		Schema:      schemaID,
		Network:     network,
		Allocations: make([]allocationView, 0, len(allocs)),
	}
	for _, a := range allocs {
		av := allocationView{
			Outpoint: a.Outpoint.String(),
			Terminal: model.Terminal(a.Opout).String(),
			Amount:   a.Amount,
		}
		if len(a.Data) > 0 {
			av.Data = hex.EncodeToString(a.Data)
		}
		v.Allocations = append(v.Allocations, av)
	}
	return v
}

func printContracts(w io.Writer, views []contractView) error {
	for _, c := range views {
		if _, err := fmt.Fprintf(w, "%s %s %s\n", c.ContractID, c.Schema, c.Network); err != nil {
			return err
		}
		for _, a := range c.Allocations {
			state := fmt.Sprint(a.Amount)
			if a.Data != "" {
				state = a.Data
			}
			if _, err := fmt.Fprintf(w, "  %s %s\n", a.Outpoint, state); err != nil {
				return err
			}
		}
	}
	return nil
}
