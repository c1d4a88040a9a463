// Command tonwallet manages a local TON wallet file: generate it, show balances, send TON
// and jettons, and swap against TON/jetton pools.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/AlexZinkM/ton-wallet/internal/model"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		printJSON(os.Stderr, model.NewErrorResponse(err))
		os.Exit(1)
	}
}

type rootFlags struct {
	userID int64
	owner  string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "tonwallet",
		Short:         "Non-custodial TON wallet",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Int64Var(&flags.userID, "user", 1, "ledger user id the wallet belongs to")
	root.PersistentFlags().StringVar(&flags.owner, "owner", "local", "key store owner of the encrypted seed")
	root.PersistentFlags().Bool("metrics", false, "print RPC call counters to stderr when done")

	root.AddCommand(
		newGenerateCmd(flags),
		newAddressCmd(),
		newBalanceCmd(),
		newSendCmd(flags),
		newQuoteCmd(),
		newSwapCmd(flags),
		newHistoryCmd(flags),
		newRekeyCmd(flags),
	)
	return root
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, "failed to encode output:", err)
	}
}
