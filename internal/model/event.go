package model

// EventType names a committed ledger operation.
type EventType string

const (
	EventInitialized    EventType = "INITIALIZED"
	EventStake          EventType = "STAKE"
	EventUnstake        EventType = "UNSTAKE"
	EventClaimAll       EventType = "CLAIM_ALL"
	EventNormalizationK EventType = "NORMALIZATION_K_UPDATED"
	EventDailyRateSet   EventType = "DAILY_RATE_SET"
	EventProgramClosed  EventType = "PROGRAM_CLOSED"
	EventFunded         EventType = "FUNDED"
)

// Event is one entry in the ledger journal. Fields not meaningful for a
// given type are left zero.
type Event struct {
	ID             string
	Type           EventType
	Account        string
	StakeIndex     uint64
	Day            int64 // rate day, for DAILY_RATE_SET
	Amount         uint64 // principal staked, unstaked, swept or funded
	Rewards        uint64
	Penalty        uint64
	DurationMonths uint8
	StakesCount    uint64
	OldValue       uint64
	NewValue       uint64
	Timestamp      int64
}
