package cli

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/cobra"
)

type utxoView struct {
	Outpoint string `json:"outpoint"`
	Value    int64  `json:"value"`
	PkScript string `json:"pk_script"`
	Height   uint32 `json:"height"`
}

// NewUTXOsCommand creates the utxos command.
func NewUTXOsCommand(rootOpts *RootOptions) *cobra.Command {
	var chainOpts chainOptions
	cmd := &cobra.Command{
		Use:   "utxos <address...>",
		Short: "List unspent outputs of addresses from the ClickHouse chain index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := rootOpts.network.Params()
			if err != nil {
				return err
			}
			addresses := make([]btcutil.Address, 0, len(args))
			for _, arg := range args {
				addr, err := btcutil.DecodeAddress(arg, params)
				if err != nil {
					return fmt.Errorf("address %q: %w", arg, err)
				}
				addresses = append(addresses, addr)
			}

			c, err := rootOpts.dialChain(chainOpts)
			if err != nil {
				return err
			}
			defer c.Close()

			utxos, err := c.oracle.GetUTXOs(cmd.Context(), addresses)
			if err != nil {
				return err
			}
			views := make([]utxoView, 0, len(utxos))
			for _, u := range utxos {
				views = append(views, utxoView{
					Outpoint: u.Outpoint.String(),
					Value:    u.Value,
					PkScript: hex.EncodeToString(u.PkScript),
					Height:   u.Height,
				})
			}
			return rootOpts.print(cmd.OutOrStdout(), views, func(w io.Writer) error {
				for _, v := range views {
					if _, err := fmt.Fprintf(w, "%s %d %d\n", v.Outpoint, v.Value, v.Height); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	chainOpts.bind(cmd)
	return cmd
}
