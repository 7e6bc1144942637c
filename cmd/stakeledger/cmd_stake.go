package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"StakeLedger/internal/ledger"
	"StakeLedger/internal/model"
	"StakeLedger/internal/notifier"
)

func newStakeCmd(f *rootFlags) *cobra.Command {
	var index int64
	cmd := &cobra.Command{
		Use:   "stake <amount> <months>",
		Short: "Lock tokens for 3, 6, 9 or 12 months",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(f, func(cmd *cobra.Command, args []string, a *app) error {
			amount, err := parseUint("amount", args[0])
			if err != nil {
				return err
			}
			months, err := strconv.ParseUint(args[1], 10, 8)
			if err != nil {
				return fmt.Errorf("months %q is not a lock term", args[1])
			}

			req := ledger.StakeRequest{Amount: amount, DurationMonths: uint8(months)}
			if index >= 0 {
				req.Index = uint64(index)
			} else {
				acct, err := a.ledger.Account(cmd.Context(), a.caller.Account)
				if err != nil {
					return err
				}
				req.Index = acct.Set.StakeCount
			}

			pos, err := a.ledger.Stake(cmd.Context(), a.caller, req)
			if err != nil {
				return err
			}
			printf(cmd, "staked %s\n", notifier.FormatPosition(pos))
			return nil
		}),
	}
	cmd.Flags().Int64Var(&index, "index", -1, "Stake index (default: the next free index)")
	return cmd
}

func newUnstakeCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "unstake <index>",
		Short: "Close a position, settling its rewards and any early-exit penalty",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(f, func(cmd *cobra.Command, args []string, a *app) error {
			index, err := parseUint("index", args[0])
			if err != nil {
				return err
			}
			res, err := a.ledger.Unstake(cmd.Context(), a.caller, index)
			if err != nil {
				return err
			}
			printf(cmd, "unstaked #%d: returned %s, penalty %s (%s), rewards %s\n",
				index,
				notifier.FormatAmount(res.Penalty.ReturnAmount),
				notifier.FormatAmount(res.Penalty.PenaltyAmount),
				notifier.FormatBps(res.Penalty.RateBps),
				notifier.FormatAmount(res.Reward))
			return nil
		}),
	}
}

// refsFor resolves the given indices, or all active positions when none are
// given.
func refsFor(ctx context.Context, a *app, owner string, args []string) ([]model.Ref, error) {
	if len(args) == 0 {
		return a.ledger.ActiveRefs(ctx, owner)
	}
	indices, err := parseIndices(args)
	if err != nil {
		return nil, err
	}
	return a.ledger.Refs(ctx, owner, indices)
}

func printClaim(cmd *cobra.Command, verb string, res *ledger.ClaimResult) {
	for _, p := range res.Positions {
		printf(cmd, "  #%d: %s (%d days)\n", p.StakeIndex, notifier.FormatAmount(p.Reward), p.Days)
	}
	printf(cmd, "%s %s from %d positions\n", verb, notifier.FormatAmount(res.Total), len(res.Positions))
}

func newClaimCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "claim [index...]",
		Short: "Claim the rewards of the given positions (default: all active)",
		RunE: withApp(f, func(cmd *cobra.Command, args []string, a *app) error {
			refs, err := refsFor(cmd.Context(), a, a.caller.Account, args)
			if err != nil {
				return err
			}
			res, err := a.ledger.ClaimAll(cmd.Context(), a.caller, refs)
			if err != nil {
				return err
			}
			printClaim(cmd, "claimed", res)
			return nil
		}),
	}
}

func newPreviewCmd(f *rootFlags) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "preview [index...]",
		Short: "Show the claimable rewards of an owner's positions",
		RunE: withApp(f, func(cmd *cobra.Command, args []string, a *app) error {
			if owner == "" {
				owner = a.caller.Account
			}
			refs, err := refsFor(cmd.Context(), a, owner, args)
			if err != nil {
				return err
			}
			res, err := a.ledger.GetTotalClaimableRewards(cmd.Context(), owner, refs)
			if err != nil {
				return err
			}
			printClaim(cmd, "claimable", res)
			return nil
		}),
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Owner to preview (default: the caller)")
	return cmd
}
