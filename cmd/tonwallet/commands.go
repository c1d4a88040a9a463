package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/AlexZinkM/ton-wallet/internal/config"
	"github.com/AlexZinkM/ton-wallet/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// withApp wires the app for a command and closes it afterwards.
func withApp(cmd *cobra.Command, userID int64, run func(a *app) error) error {
	a, err := newApp(cmd.Context(), userID)
	if err != nil {
		return err
	}
	defer a.Close()

	err = run(a)
	if showMetrics, _ := cmd.Flags().GetBool("metrics"); showMetrics {
		printMetrics(os.Stderr, a.registry)
	}
	return err
}

// withPassphrase prompts for the wallet passphrase and zeroes it after run.
func withPassphrase(prompt string, run func(passphrase []byte) error) error {
	if err := config.PromptForPassphrase(prompt); err != nil {
		return err
	}
	passphrase, err := config.GetPassphraseBytes()
	if err != nil {
		return err
	}
	defer clear(passphrase)

	return run(passphrase)
}

func newGenerateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Generate a new wallet and save it encrypted to the wallet file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags.userID, func(a *app) error {
				return withPassphrase("New wallet passphrase: ", func(passphrase []byte) error {
					resp, err := a.wallet.Create(cmd.Context(), a.session(flags.userID, flags.owner, passphrase))
					if err != nil {
						if errors.Is(err, os.ErrExist) {
							return fmt.Errorf("wallet file %s already exists: %w", a.cfg.WalletFilePath, err)
						}
						return err
					}
					printJSON(cmd.OutOrStdout(), resp)
					return nil
				})
			})
		},
	}
}

func newAddressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the deposit address from the wallet file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, noUser, func(a *app) error {
				address, err := a.store.ReadAddress()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), address)
				return nil
			})
		},
	}
}

func newBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address]",
		Short: "Show TON, jetton and fiat balances; defaults to the wallet file address",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, noUser, func(a *app) error {
				var address string
				if len(args) == 1 {
					address = args[0]
				} else {
					var err error
					if address, err = a.store.ReadAddress(); err != nil {
						return err
					}
				}

				balances, err := a.wallet.Balances(cmd.Context(), address)
				if err != nil {
					return err
				}
				printJSON(cmd.OutOrStdout(), balances.Response())
				return nil
			})
		},
	}
}

func newSendCmd(flags *rootFlags) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "send <to> <amount>",
		Short: "Send TON or a jetton and wait for confirmation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags.userID, func(a *app) error {
				return withPassphrase("Wallet passphrase: ", func(passphrase []byte) error {
					resp, err := a.wallet.Transfer(cmd.Context(), a.session(flags.userID, flags.owner, passphrase), model.PayRequest{
						ToAddress: args[0],
						Amount:    args[1],
						Token:     token,
					})
					if resp != nil {
						printJSON(cmd.OutOrStdout(), resp)
					}
					return err
				})
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", model.NativeSymbol, "TON or a tracked jetton symbol")
	return cmd
}

func swapDirection(reverse bool) model.SwapDirection {
	if reverse {
		return model.JettonToNative
	}
	return model.NativeToJetton
}

func newQuoteCmd() *cobra.Command {
	var reverse bool

	cmd := &cobra.Command{
		Use:   "quote <token> <amount>",
		Short: "Quote a swap of TON into a jetton, or back with --reverse",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, noUser, func(a *app) error {
				q, err := a.wallet.Quote(cmd.Context(), model.SwapRequest{
					Token:     args[0],
					Amount:    args[1],
					Direction: swapDirection(reverse),
				})
				if err != nil {
					return err
				}
				printJSON(cmd.OutOrStdout(), q)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&reverse, "reverse", false, "swap the jetton into TON")
	return cmd
}

func newSwapCmd(flags *rootFlags) *cobra.Command {
	var reverse bool

	cmd := &cobra.Command{
		Use:   "swap <token> <amount>",
		Short: "Swap TON into a jetton, or back with --reverse, and wait for confirmation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags.userID, func(a *app) error {
				return withPassphrase("Wallet passphrase: ", func(passphrase []byte) error {
					resp, err := a.wallet.Swap(cmd.Context(), a.session(flags.userID, flags.owner, passphrase), model.SwapRequest{
						Token:     args[0],
						Amount:    args[1],
						Direction: swapDirection(reverse),
					})
					if resp != nil {
						printJSON(cmd.OutOrStdout(), resp)
					}
					return err
				})
			})
		},
	}
	cmd.Flags().BoolVar(&reverse, "reverse", false, "swap the jetton into TON")
	return cmd
}

type historyFlags struct {
	txType, status, token string
	from, to              string
	minAmount, maxAmount  string
}

// filter converts flags to a TransactionFilter; empty flags do not filter.
func (f historyFlags) filter() (model.TransactionFilter, error) {
	var filter model.TransactionFilter

	if f.txType != "" {
		t := model.TransactionType(strings.ToUpper(f.txType))
		filter.Type = &t
	}
	if f.status != "" {
		s := model.TransactionStatus(strings.ToUpper(f.status))
		filter.Status = &s
	}
	if f.token != "" {
		filter.Token = &f.token
	}
	for _, d := range []struct {
		value  string
		target **time.Time
	}{{f.from, &filter.From}, {f.to, &filter.To}} {
		if d.value == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, d.value)
		if err != nil {
			return filter, fmt.Errorf("invalid date %q, use RFC 3339: %w", d.value, err)
		}
		*d.target = &ts
	}
	if f.minAmount != "" {
		filter.MinAmount = &f.minAmount
	}
	if f.maxAmount != "" {
		filter.MaxAmount = &f.maxAmount
	}
	return filter, filter.Validate()
}

func newHistoryCmd(flags *rootFlags) *cobra.Command {
	var hf historyFlags

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded transactions (needs DATABASE_URL to outlive a command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := hf.filter()
			if err != nil {
				return err
			}
			return withApp(cmd, flags.userID, func(a *app) error {
				history, err := a.wallet.History(cmd.Context(), a.session(flags.userID, flags.owner, nil), filter)
				if err != nil {
					return err
				}
				printJSON(cmd.OutOrStdout(), history)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&hf.txType, "type", "", "DEPOSIT, WITHDRAWAL or EXCHANGE")
	cmd.Flags().StringVar(&hf.status, "status", "", "PENDING, SUCCESS or FAILED")
	cmd.Flags().StringVar(&hf.token, "token", "", "token symbol")
	cmd.Flags().StringVar(&hf.from, "from", "", "earliest timestamp (RFC 3339)")
	cmd.Flags().StringVar(&hf.to, "to", "", "latest timestamp (RFC 3339)")
	cmd.Flags().StringVar(&hf.minAmount, "min", "", "minimum amount")
	cmd.Flags().StringVar(&hf.maxAmount, "max", "", "maximum amount")
	return cmd
}

func newRekeyCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rekey",
		Short: "Re-encrypt the wallet file under a new passphrase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags.userID, func(a *app) error {
				blob, err := a.store.Get(cmd.Context(), flags.owner)
				if err != nil {
					return err
				}
				return withPassphrase("Current passphrase: ", func(oldPassphrase []byte) error {
					return withPassphrase("New passphrase: ", func(newPassphrase []byte) error {
						rekeyed, err := a.vault.Rekey(blob, oldPassphrase, newPassphrase)
						if err != nil {
							return err
						}
						if err := a.store.Replace(rekeyed); err != nil {
							return err
						}
						fmt.Fprintln(cmd.OutOrStdout(), "Wallet re-encrypted")
						return nil
					})
				})
			})
		},
	}
}

// printMetrics writes the RPC counters gathered during the command.
func printMetrics(w io.Writer, reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		fmt.Fprintln(w, "failed to gather metrics:", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			fmt.Fprintf(w, "%s{%s} %v\n", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue())
		}
	}
}
