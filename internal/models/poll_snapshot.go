package models

import (
	"time"

	"gorm.io/datatypes"
)

// PollSnapshot is the last reconciled view of one poll. Amounts are stored
// as decimal strings in smallest units.
type PollSnapshot struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Chain   string `gorm:"type:varchar(64);not null;uniqueIndex:uniq_poll_snapshot,priority:1;index:idx_snapshot_creator,priority:1"`
	PollID  uint64 `gorm:"not null;uniqueIndex:uniq_poll_snapshot,priority:2"`
	Creator string `gorm:"type:varchar(64);not null;index:idx_snapshot_creator,priority:2"`

	Question         string         `gorm:"type:text"`
	Options          datatypes.JSON `gorm:"type:jsonb"`
	Votes            datatypes.JSON `gorm:"type:jsonb"`
	EndTime          int64          `gorm:"index"`
	IsActive         bool
	TotalFunding     string `gorm:"type:numeric(78,0);not null;default:0"`
	FundingToken     string `gorm:"type:varchar(32)"`
	FundingTokenAddr string `gorm:"type:varchar(64)"`
	DistributionMode string `gorm:"type:varchar(32)"`
	FundingType      string `gorm:"type:varchar(32)"`
	Status           string `gorm:"type:varchar(32);index"`
	VotingType       string `gorm:"type:varchar(32)"`
	TotalVotesBought uint64
	VoterCount       uint64
	Source           string `gorm:"type:varchar(16);comment:LEDGER or INDEXER"`
	RequiresAction   bool   `gorm:"index"`

	PollCreatedAt int64
	ReconciledAt  time.Time `gorm:"type:timestamptz;not null;index"`
	CreatedAt     time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (PollSnapshot) TableName() string {
	return "poll_snapshots"
}
