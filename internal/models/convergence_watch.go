package models

import "time"

// ConvergenceWatch audits one watch from start to outcome.
type ConvergenceWatch struct {
	ID string `gorm:"primaryKey;type:varchar(36)"`

	PollID  uint64 `gorm:"not null;index"`
	Chain   string `gorm:"type:varchar(64);not null"`
	Creator string `gorm:"type:varchar(64);not null"`

	// pending, converged, timeout, cancelled
	Outcome      string `gorm:"type:varchar(16);not null;index"`
	AttemptsMade int
	MaxAttempts  int

	StartedAt  time.Time  `gorm:"type:timestamptz;not null"`
	FinishedAt *time.Time `gorm:"type:timestamptz"`
	CreatedAt  time.Time  `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"type:timestamptz;autoUpdateTime;index"`
}

func (ConvergenceWatch) TableName() string {
	return "convergence_watches"
}
