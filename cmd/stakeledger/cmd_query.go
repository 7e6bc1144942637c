package main

import (
	"time"

	"github.com/spf13/cobra"

	"StakeLedger/internal/model"
	"StakeLedger/internal/notifier"
)

func formatUnix(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

func newStatusCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the pool and its vault balances",
		Args:  cobra.NoArgs,
		RunE: withApp(f, func(cmd *cobra.Command, _ []string, a *app) error {
			st, err := a.ledger.Status(cmd.Context())
			if err != nil {
				return err
			}
			p := &st.Pool
			printf(cmd, "pool:          %s (%s)\n", p.ID, p.Asset)
			printf(cmd, "authority:     %s\n", p.Authority)
			printf(cmd, "treasury:      %s\n", p.Treasury)
			printf(cmd, "program:       %s .. %s\n", formatUnix(p.ProgramStartTime), formatUnix(p.ProgramEndDate))
			if st.Day >= 0 {
				printf(cmd, "day:           %d, rate %s\n", st.Day, notifier.FormatRate(st.Rate))
			} else {
				printf(cmd, "day:           outside the rate horizon\n")
			}
			printf(cmd, "K:             %d\n", p.NormalizationK)
			printf(cmd, "total staked:  %s\n", notifier.FormatAmount(p.TotalStaked))
			printf(cmd, "rewards paid:  %s\n", notifier.FormatAmount(p.TotalRewardsDistributed))
			printf(cmd, "stake vault:   %s\n", notifier.FormatAmount(st.Balances[model.StakeVault]))
			printf(cmd, "reward vault:  %s\n", notifier.FormatAmount(st.Balances[model.RewardVault]))
			printf(cmd, "treasury bal:  %s\n", notifier.FormatAmount(st.Balances[p.Treasury]))
			printf(cmd, "closed:        %t\n", p.Closed)
			return nil
		}),
	}
}

func newAccountCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "account [owner]",
		Short: "Show an owner's balance and positions (default: the caller)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(f, func(cmd *cobra.Command, args []string, a *app) error {
			owner := a.caller.Account
			if len(args) == 1 {
				owner = args[0]
			}
			acct, err := a.ledger.Account(cmd.Context(), owner)
			if err != nil {
				return err
			}
			printf(cmd, "%s: balance %s, staked %s, claimed %s, %d positions\n",
				owner,
				notifier.FormatAmount(acct.Balance),
				notifier.FormatAmount(acct.Set.TotalStaked),
				notifier.FormatAmount(acct.Set.TotalClaimed),
				acct.Set.StakeCount)
			for _, p := range acct.Positions {
				printf(cmd, "  %s\n", notifier.FormatPosition(p))
			}
			return nil
		}),
	}
}

func newEventsCmd(f *rootFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List the most recent journal entries",
		Args:  cobra.NoArgs,
		RunE: withApp(f, func(cmd *cobra.Command, _ []string, a *app) error {
			events, err := a.ledger.Events(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, e := range events {
				printf(cmd, "%s  %-24s %-16s idx=%d amount=%d rewards=%d penalty=%d\n",
					formatUnix(e.Timestamp), e.Type, e.Account, e.StakeIndex, e.Amount, e.Rewards, e.Penalty)
			}
			return nil
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show (0 for all)")
	return cmd
}
