package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"StakeLedger/internal/calculator"
)

// Config holds all application configuration.
type Config struct {
	Ledger struct {
		Asset           string   `yaml:"asset"`
		Authority       string   `yaml:"authority"`
		Treasury        string   `yaml:"treasury"`
		ProgramEndDate  string   `yaml:"program_end_date"` // RFC 3339; overrides program_days
		ProgramDays     int      `yaml:"program_days"`
		NormalizationK  uint64   `yaml:"normalization_k"`
		TotalRewardPool uint64   `yaml:"total_reward_pool"`
		RewardMonths    int      `yaml:"reward_months"`
		MonthlyBudgets  []uint64 `yaml:"monthly_budgets"` // overrides equal tranches
	} `yaml:"ledger"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		DailyReportCron string `yaml:"daily_report_cron"`
	} `yaml:"schedule"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies .env and environment
// variable overrides and fills in defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// A .env file next to the binary fills unset variables only.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"TELEGRAM_BOT_TOKEN": &c.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":   &c.Telegram.ChatID,
		"HTTPS_PROXY":        &c.Proxy,
		"SQLITE_PATH":        &c.Database.SQLitePath,
		"LEDGER_ASSET":       &c.Ledger.Asset,
		"LEDGER_AUTHORITY":   &c.Ledger.Authority,
		"LEDGER_TREASURY":    &c.Ledger.Treasury,
		"PROGRAM_END_DATE":   &c.Ledger.ProgramEndDate,
		"CRON_DAILY_REPORT":  &c.Schedule.DailyReportCron,
		"LOG_LEVEL":          &c.Log.Level,
		"LOG_FORMAT":         &c.Log.Format,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	uints := map[string]*uint64{
		"NORMALIZATION_K":   &c.Ledger.NormalizationK,
		"TOTAL_REWARD_POOL": &c.Ledger.TotalRewardPool,
	}
	for key, dst := range uints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	ints := map[string]*int{
		"PROGRAM_DAYS":  &c.Ledger.ProgramDays,
		"REWARD_MONTHS": &c.Ledger.RewardMonths,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Ledger.Asset == "" {
		c.Ledger.Asset = "STAKE"
	}
	if c.Ledger.Authority == "" {
		c.Ledger.Authority = "authority"
	}
	if c.Ledger.Treasury == "" {
		c.Ledger.Treasury = "treasury"
	}
	if c.Ledger.ProgramDays == 0 {
		c.Ledger.ProgramDays = 365
	}
	if c.Ledger.NormalizationK == 0 {
		c.Ledger.NormalizationK = 45
	}
	if c.Ledger.TotalRewardPool == 0 {
		c.Ledger.TotalRewardPool = 250_000_000_000_000
	}
	if c.Ledger.RewardMonths == 0 {
		c.Ledger.RewardMonths = 12
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/stake_ledger.db"
	}
	if c.Schedule.DailyReportCron == "" {
		c.Schedule.DailyReportCron = "0 0 9 * * *"
	}
	if c.Log.Level == "" {
		c.Log.Level = "INFO"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks that all fields are usable.
func (c *Config) Validate() error {
	if c.Ledger.Asset == "" {
		return fmt.Errorf("ledger.asset is required")
	}
	if c.Ledger.Authority == "" {
		return fmt.Errorf("ledger.authority is required")
	}
	if c.Ledger.ProgramDays <= 0 {
		return fmt.Errorf("ledger.program_days must be positive")
	}
	if c.Ledger.ProgramEndDate != "" {
		if _, err := time.Parse(time.RFC3339, c.Ledger.ProgramEndDate); err != nil {
			return fmt.Errorf("ledger.program_end_date: %w", err)
		}
	}
	if c.Ledger.RewardMonths <= 0 && len(c.Ledger.MonthlyBudgets) == 0 {
		return fmt.Errorf("ledger.reward_months must be positive")
	}
	if _, err := c.RewardSchedule().Total(); err != nil {
		return fmt.Errorf("ledger.monthly_budgets: %w", err)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	switch strings.ToUpper(c.Log.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("log.level %q is not one of DEBUG, INFO, WARN, ERROR", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q is not text or json", c.Log.Format)
	}
	return nil
}

// RewardSchedule returns the monthly reward budgets: the explicit table when one
// is configured, else the reward pool split into equal tranches.
func (c *Config) RewardSchedule() calculator.RewardSchedule {
	if len(c.Ledger.MonthlyBudgets) > 0 {
		return calculator.RewardSchedule{Budgets: append([]uint64(nil), c.Ledger.MonthlyBudgets...)}
	}
	return calculator.EqualTranches(c.Ledger.TotalRewardPool, c.Ledger.RewardMonths)
}

// EndDate returns the program end for a program starting at start.
func (c *Config) EndDate(start time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339, c.Ledger.ProgramEndDate); err == nil {
		return t
	}
	return start.AddDate(0, 0, c.Ledger.ProgramDays)
}

// NotificationsEnabled reports whether Telegram credentials are configured.
func (c *Config) NotificationsEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}
