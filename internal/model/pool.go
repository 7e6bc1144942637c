package model

// HorizonDays is the number of per-day rate slots a pool carries.
const HorizonDays = 370

// SecondsPerDay is the length of one rate day.
const SecondsPerDay int64 = 86_400

// Well-known custody accounts.
const (
	StakeVault  = "stake_vault"
	RewardVault = "reward_vault"
)

// Pool is the single staking pool for one asset deployment.
type Pool struct {
	ID                      string
	Authority               string
	Asset                   string
	Treasury                string
	TotalStaked             uint64
	TotalRewardsDistributed uint64
	ProgramStartTime        int64 // unix seconds
	ProgramEndDate          int64 // unix seconds, immutable
	LastUpdateTime          int64
	NormalizationK          uint64
	DailyRates              [HorizonDays]uint64 // scaled by fixed.Scale
	RewardBudgets           []uint64            // per 30-day month, fixed at initialization
	Closed                  bool
}

// PositionSet is one owner's running totals for a pool.
type PositionSet struct {
	Owner        string
	Pool         string
	StakeCount   uint64 // next free index
	TotalStaked  uint64 // active positions only
	TotalClaimed uint64 // all-time, active and closed positions
}

// Snapshot is a read-only view of the pool recorded by the daily report.
type Snapshot struct {
	Timestamp               int64
	Day                     int64
	TotalStaked             uint64
	TotalRewardsDistributed uint64
	Rate                    uint64
	NormalizationK          uint64
	RewardVaultBalance      uint64
}
