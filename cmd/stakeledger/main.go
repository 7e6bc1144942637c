package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"StakeLedger/internal/config"
	"StakeLedger/internal/ledger"
	"StakeLedger/internal/logging"
	"StakeLedger/internal/notifier"
	"StakeLedger/internal/store"
)

type rootFlags struct {
	ConfigPath string
	As         string
	Memory     bool
}

func defaultConfigPath() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "configs/config.yaml"
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "stakeledger",
		Short:         "Token-custody staking ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.ConfigPath, "config", "c", defaultConfigPath(), "Path to the YAML config file")
	cmd.PersistentFlags().StringVar(&flags.As, "as", "", "Account to act as (default: the configured authority)")
	cmd.PersistentFlags().BoolVar(&flags.Memory, "memory", false, "Use a throwaway in-memory store")

	cmd.AddCommand(
		newServeCmd(flags),
		newInitCmd(flags),
		newFundCmd(flags),
		newSetKCmd(flags),
		newSetRateCmd(flags),
		newCloseCmd(flags),
		newStakeCmd(flags),
		newUnstakeCmd(flags),
		newClaimCmd(flags),
		newPreviewCmd(flags),
		newStatusCmd(flags),
		newAccountCmd(flags),
		newEventsCmd(flags),
	)
	return cmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app is the wiring shared by every command.
type app struct {
	cfg      *config.Config
	store    store.Store
	ledger   *ledger.Manager
	telegram *notifier.TelegramNotifier // nil when notifications are off
	caller   ledger.Caller
}

func (f *rootFlags) open(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	logger, err := logging.Setup(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	var st store.Store
	if f.Memory {
		st = store.NewMemoryStore()
	} else {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		if st, err = store.NewSQLiteStore(cfg.Database.SQLitePath); err != nil {
			return nil, err
		}
	}

	a := &app{cfg: cfg, store: st}
	opts := ledger.Options{
		Store:    st,
		Schedule: cfg.RewardSchedule(),
		Logger:   logger,
	}
	if cfg.NotificationsEnabled() {
		a.telegram = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		opts.Publisher = a.telegram
	}
	a.ledger = ledger.NewManager(opts)

	// The CLI runs with the operator's local identity.
	as := f.As
	if as == "" {
		as = cfg.Ledger.Authority
	}
	a.caller = ledger.Caller{Account: as, Authorized: true}
	return a, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("close store", "error", err)
	}
}

// withApp opens the app for the duration of one command.
func withApp(f *rootFlags, run func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := f.open(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, args, a)
	}
}

func parseUint(name, s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a non-negative integer", name, s)
	}
	return v, nil
}

func parseIndices(args []string) ([]uint64, error) {
	indices := make([]uint64, len(args))
	for i, s := range args {
		v, err := parseUint("index", s)
		if err != nil {
			return nil, err
		}
		indices[i] = v
	}
	return indices, nil
}

func printf(cmd *cobra.Command, format string, args ...interface{}) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
