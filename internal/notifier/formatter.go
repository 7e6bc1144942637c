package notifier

import (
	"fmt"
	"html"
	"math/big"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"StakeLedger/internal/calculator"
	"StakeLedger/internal/ledger"
	"StakeLedger/internal/model"
)

// FormatAmount renders a token amount with thousands separators.
func FormatAmount(v uint64) string {
	return humanize.BigComma(new(big.Int).SetUint64(v))
}

// FormatRate renders a scaled daily rate as a decimal.
func FormatRate(rate uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(rate), -4).StringFixed(4)
}

// FormatWeight renders the reward multiplier of a lock term, e.g. "1.5x".
func FormatWeight(months uint8) string {
	w, err := calculator.Weight(months)
	if err != nil {
		return "?"
	}
	return decimal.New(int64(w), -1).StringFixed(1) + "x"
}

// FormatBps renders basis points as a percentage.
func FormatBps(bps uint64) string {
	return decimal.New(int64(bps), -2).StringFixed(2) + "%"
}

func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}

// FormatPoolReport formats the daily pool snapshot.
func FormatPoolReport(pool *model.Pool, snap *model.Snapshot) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>StakeLedger daily report</b> | %s\n\n", formatTime(snap.Timestamp)))
	if snap.Day >= 0 {
		b.WriteString(fmt.Sprintf("Program day: %d / %d\n", snap.Day, model.HorizonDays))
	} else {
		b.WriteString("Program day: outside the rate horizon\n")
	}
	b.WriteString(fmt.Sprintf("Daily rate: %s\n", FormatRate(snap.Rate)))
	b.WriteString(fmt.Sprintf("Normalization K: %d\n\n", snap.NormalizationK))

	b.WriteString("💰 <b>Pool</b>\n")
	b.WriteString(fmt.Sprintf("  Total staked: %s %s\n", FormatAmount(snap.TotalStaked), html.EscapeString(pool.Asset)))
	b.WriteString(fmt.Sprintf("  Rewards paid: %s\n", FormatAmount(snap.TotalRewardsDistributed)))
	b.WriteString(fmt.Sprintf("  Reward vault: %s\n", FormatAmount(snap.RewardVaultBalance)))
	b.WriteString(fmt.Sprintf("  Program ends: %s\n", formatTime(pool.ProgramEndDate)))
	if pool.Closed {
		b.WriteString("\nProgram closed ✅")
	}
	return b.String()
}

// FormatStatus formats the pool status with its vault balances.
func FormatStatus(st *ledger.Status) string {
	var b strings.Builder
	p := &st.Pool

	b.WriteString(fmt.Sprintf("📦 <b>Pool %s</b>\n\n", html.EscapeString(p.Asset)))
	b.WriteString(fmt.Sprintf("Authority: %s\n", html.EscapeString(p.Authority)))
	b.WriteString(fmt.Sprintf("Started: %s\n", formatTime(p.ProgramStartTime)))
	b.WriteString(fmt.Sprintf("Ends: %s\n", formatTime(p.ProgramEndDate)))
	if st.Day >= 0 {
		b.WriteString(fmt.Sprintf("Day %d rate: %s\n", st.Day, FormatRate(st.Rate)))
	}
	b.WriteString(fmt.Sprintf("Normalization K: %d\n", p.NormalizationK))
	b.WriteString(fmt.Sprintf("Total staked: %s\n", FormatAmount(p.TotalStaked)))
	b.WriteString(fmt.Sprintf("Rewards paid: %s\n", FormatAmount(p.TotalRewardsDistributed)))
	b.WriteString(fmt.Sprintf("Stake vault: %s\n", FormatAmount(st.Balances[model.StakeVault])))
	b.WriteString(fmt.Sprintf("Reward vault: %s\n", FormatAmount(st.Balances[model.RewardVault])))
	b.WriteString(fmt.Sprintf("Treasury: %s\n", FormatAmount(st.Balances[p.Treasury])))
	if p.Closed {
		b.WriteString("Closed: yes\n")
	}
	return b.String()
}

// FormatRates lists the effective rates of the n days up to and including
// today.
func FormatRates(pool *model.Pool, today int64, n int) string {
	var b strings.Builder
	b.WriteString("📈 <b>Daily rates</b>\n")
	from := today - int64(n) + 1
	if from < 0 {
		from = 0
	}
	for d := from; d <= today && d < model.HorizonDays; d++ {
		mark := ""
		if pool.DailyRates[d] == 0 {
			mark = " (carried)"
		}
		b.WriteString(fmt.Sprintf("  day %3d: %s%s\n", d, FormatRate(calculator.EffectiveRate(pool, d)), mark))
	}
	return b.String()
}

// FormatPreview formats the claimable rewards of an owner's positions.
func FormatPreview(owner string, res *ledger.ClaimResult) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔎 <b>Claimable for %s</b>\n", html.EscapeString(owner)))
	for _, p := range res.Positions {
		b.WriteString(fmt.Sprintf("  #%d: %s (%d days)\n", p.StakeIndex, FormatAmount(p.Reward), p.Days))
	}
	b.WriteString("  ─────────────────\n")
	b.WriteString(fmt.Sprintf("  Total: %s", FormatAmount(res.Total)))
	return b.String()
}

// FormatPosition formats one stake position.
func FormatPosition(p *model.Position) string {
	state := "active"
	if !p.IsActive {
		state = "closed"
	}
	return fmt.Sprintf("#%d %s %s for %d months (%s), claimed %s, since %s",
		p.StakeIndex, state, FormatAmount(p.Amount), p.DurationMonths, FormatWeight(p.DurationMonths),
		FormatAmount(p.TotalClaimed), formatTime(p.CreatedAt))
}

// FormatEvent formats a ledger event as a receipt. Events without a
// receipt return "".
func FormatEvent(e model.Event) string {
	who := html.EscapeString(e.Account)
	switch e.Type {
	case model.EventStake:
		return fmt.Sprintf("🔒 <b>Stake</b> %s #%d\n%s for %d months (weight %s)",
			who, e.StakeIndex, FormatAmount(e.Amount), e.DurationMonths, FormatWeight(e.DurationMonths))
	case model.EventUnstake:
		return fmt.Sprintf("🔓 <b>Unstake</b> %s #%d\nReturned: %s\nPenalty: %s\nRewards: %s",
			who, e.StakeIndex, FormatAmount(e.Amount), FormatAmount(e.Penalty), FormatAmount(e.Rewards))
	case model.EventClaimAll:
		return fmt.Sprintf("🎁 <b>Claim</b> %s\n%s from %d positions",
			who, FormatAmount(e.Rewards), e.StakesCount)
	case model.EventNormalizationK:
		return fmt.Sprintf("⚙️ <b>Normalization K</b> %d → %d", e.OldValue, e.NewValue)
	case model.EventDailyRateSet:
		return fmt.Sprintf("⚙️ <b>Rate override</b> day %d: %s → %s",
			e.Day, FormatRate(e.OldValue), FormatRate(e.NewValue))
	case model.EventProgramClosed:
		return fmt.Sprintf("🏁 <b>Program closed</b>\n%s swept to %s", FormatAmount(e.Amount), who)
	default:
		return ""
	}
}

// FormatProgramEnded reminds the authority that the pool can be closed.
func FormatProgramEnded(pool *model.Pool, vault uint64) string {
	return fmt.Sprintf("⚠️ <b>Program ended</b> %s\n\nReward vault still holds %s.\n%s can close the program to sweep it to %s.",
		formatTime(pool.ProgramEndDate), FormatAmount(vault),
		html.EscapeString(pool.Authority), html.EscapeString(pool.Treasury))
}

// Help lists the bot commands.
func Help() string {
	return "Available commands:\n" +
		"• /pool – pool status\n" +
		"• /rates – recent daily rates\n" +
		"• /preview &lt;owner&gt; [index...] – claimable rewards\n" +
		"• /help"
}
