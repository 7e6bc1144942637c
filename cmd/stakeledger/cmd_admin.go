package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"StakeLedger/internal/ledger"
	"StakeLedger/internal/notifier"
)

func newInitCmd(f *rootFlags) *cobra.Command {
	var flag struct {
		End      string
		K        uint64
		Treasury string
	}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the pool with the caller as its authority",
		Args:  cobra.NoArgs,
		RunE: withApp(f, func(cmd *cobra.Command, _ []string, a *app) error {
			end := a.cfg.EndDate(time.Now())
			if flag.End != "" {
				t, err := time.Parse(time.RFC3339, flag.End)
				if err != nil {
					return fmt.Errorf("--end: %w", err)
				}
				end = t
			}
			k := a.cfg.Ledger.NormalizationK
			if cmd.Flags().Changed("k") {
				k = flag.K
			}
			treasury := a.cfg.Ledger.Treasury
			if flag.Treasury != "" {
				treasury = flag.Treasury
			}

			pool, err := a.ledger.Initialize(cmd.Context(), a.caller, ledger.InitParams{
				Asset:          a.cfg.Ledger.Asset,
				Treasury:       treasury,
				ProgramEndDate: end.Unix(),
				NormalizationK: k,
			})
			if err != nil {
				return err
			}
			printf(cmd, "pool %s initialized for %s\nauthority %s, treasury %s, K %d\nprogram ends %s\n",
				pool.ID, pool.Asset, pool.Authority, pool.Treasury, pool.NormalizationK,
				time.Unix(pool.ProgramEndDate, 0).UTC().Format(time.RFC3339))
			return nil
		}),
	}
	cmd.Flags().StringVar(&flag.End, "end", "", "Program end date, RFC 3339 (default from config)")
	cmd.Flags().Uint64Var(&flag.K, "k", 0, "Normalization K (default from config)")
	cmd.Flags().StringVar(&flag.Treasury, "treasury", "", "Treasury account (default from config)")
	return cmd
}

func newFundCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "fund <account> <amount>",
		Short: "Credit an account with the asset (authority only)",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(f, func(cmd *cobra.Command, args []string, a *app) error {
			amount, err := parseUint("amount", args[1])
			if err != nil {
				return err
			}
			balance, err := a.ledger.Fund(cmd.Context(), a.caller, args[0], amount)
			if err != nil {
				return err
			}
			printf(cmd, "funded %s with %s, balance %s\n", args[0], notifier.FormatAmount(amount), notifier.FormatAmount(balance))
			return nil
		}),
	}
}

func newSetKCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "set-k <k>",
		Short: "Update the normalization constant (authority only)",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(f, func(cmd *cobra.Command, args []string, a *app) error {
			k, err := parseUint("k", args[0])
			if err != nil {
				return err
			}
			if err := a.ledger.UpdateNormalizationK(cmd.Context(), a.caller, k); err != nil {
				return err
			}
			printf(cmd, "normalization K set to %d\n", k)
			return nil
		}),
	}
}

func newSetRateCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "set-rate <day> <rate>",
		Short: "Override the rate of the current or a future day (authority only)",
		Long:  "Override the rate of the current or a future day. The rate is scaled by 10000, so 10000 is 1.0.",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(f, func(cmd *cobra.Command, args []string, a *app) error {
			day, err := parseUint("day", args[0])
			if err != nil {
				return err
			}
			rate, err := parseUint("rate", args[1])
			if err != nil {
				return err
			}
			if err := a.ledger.SetDailyRate(cmd.Context(), a.caller, int64(day), rate); err != nil {
				return err
			}
			printf(cmd, "day %d rate set to %s\n", day, notifier.FormatRate(rate))
			return nil
		}),
	}
}

func newCloseCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "close",
		Short: "Close the ended program and sweep the reward vault to the treasury",
		Args:  cobra.NoArgs,
		RunE: withApp(f, func(cmd *cobra.Command, _ []string, a *app) error {
			swept, err := a.ledger.CloseProgram(cmd.Context(), a.caller)
			if err != nil {
				return err
			}
			printf(cmd, "program closed, %s swept to the treasury\n", notifier.FormatAmount(swept))
			return nil
		}),
	}
}
