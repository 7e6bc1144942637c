package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"

	"StakeLedger/internal/errs"
	"StakeLedger/internal/ledger"
	"StakeLedger/internal/model"
	"StakeLedger/internal/notifier"
)

// Notifier delivers report messages.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler runs the periodic pool reports. It never mutates ledger state
// beyond recording snapshots.
type Scheduler struct {
	Cron     *cron.Cron
	Ledger   *ledger.Manager
	Notifier Notifier // nil disables notifications
	Ctx      context.Context
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, lm *ledger.Manager, n Notifier) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Ledger:   lm,
		Notifier: n,
		Ctx:      ctx,
	}
}

// RegisterAll registers the daily report task.
func (s *Scheduler) RegisterAll(dailyReportCron string) error {
	if _, err := s.Cron.AddFunc(dailyReportCron, s.dailyReport); err != nil {
		return fmt.Errorf("register daily report: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	slog.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for a running report to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	slog.Info("scheduler stopped")
}

// RunDailyReportNow executes the daily report immediately.
func (s *Scheduler) RunDailyReportNow() {
	s.dailyReport()
}

func (s *Scheduler) dailyReport() {
	slog.Info("running daily report")
	snap, err := s.Ledger.RecordSnapshot(s.Ctx)
	if err != nil {
		slog.Error("daily snapshot", "error", err)
		s.trySend(fmt.Sprintf("❌ Daily report failed: %v", err))
		return
	}
	pool, err := s.Ledger.Pool(s.Ctx)
	if err != nil {
		slog.Error("daily report pool", "error", err)
		return
	}

	s.trySend(notifier.FormatPoolReport(pool, snap))

	if snap.Timestamp >= pool.ProgramEndDate && !pool.Closed {
		slog.Warn("program ended but pool is open", "end", pool.ProgramEndDate, "vault", snap.RewardVaultBalance)
		s.trySend(notifier.FormatProgramEnded(pool, snap.RewardVaultBalance))
	}
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.Help()
	}

	switch fields[0] {
	case "/pool":
		st, err := s.Ledger.Status(ctx)
		if err != nil {
			return replyError(err)
		}
		return notifier.FormatStatus(st)

	case "/rates":
		st, err := s.Ledger.Status(ctx)
		if err != nil {
			return replyError(err)
		}
		today := st.Day
		if today < 0 {
			today = model.HorizonDays - 1
		}
		return notifier.FormatRates(&st.Pool, today, 7)

	case "/preview":
		if len(fields) < 2 {
			return "Usage: /preview &lt;owner&gt; [index...]"
		}
		return s.preview(ctx, fields[1], fields[2:])

	default:
		return notifier.Help()
	}
}

func (s *Scheduler) preview(ctx context.Context, owner string, args []string) string {
	var refs []model.Ref
	var err error
	if len(args) == 0 {
		refs, err = s.Ledger.ActiveRefs(ctx, owner)
	} else {
		indices := make([]uint64, len(args))
		for i, a := range args {
			if indices[i], err = strconv.ParseUint(a, 10, 64); err != nil {
				return fmt.Sprintf("❌ Invalid index %q", a)
			}
		}
		refs, err = s.Ledger.Refs(ctx, owner, indices)
	}
	if err != nil {
		return replyError(err)
	}

	res, err := s.Ledger.GetTotalClaimableRewards(ctx, owner, refs)
	if err != nil {
		return replyError(err)
	}
	return notifier.FormatPreview(owner, res)
}

func replyError(err error) string {
	if c := errs.CodeOf(err); c != errs.Unknown {
		return fmt.Sprintf("❌ %s", c)
	}
	slog.Error("command failed", "error", err)
	return "❌ Internal error"
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		slog.Error("send notification", "error", err)
	}
}
