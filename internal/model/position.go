package model

// Position is one staking commitment.
type Position struct {
	Address        string // deterministic address of (Owner, Pool, StakeIndex)
	Owner          string
	Pool           string
	StakeIndex     uint64
	Amount         uint64
	DurationMonths uint8
	IsActive       bool
	TotalClaimed   uint64
	CreatedAt      int64 // unix seconds
	LastSettledAt  int64 // unix seconds, advances in whole days
}

// Ref identifies a position by its address. Claim and preview calls take
// refs rather than indices so that forged or foreign entries can be told
// apart from the caller's own.
type Ref string
