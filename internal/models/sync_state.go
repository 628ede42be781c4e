package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncState tracks one reconcile scope, keyed "reconcile:<chain>:<creator>".
type SyncState struct {
	Scope         string         `gorm:"primaryKey;type:text;comment:sync scope"`
	Cursor        *string        `gorm:"type:text;comment:highest poll id seen"`
	LastSuccessAt *time.Time     `gorm:"type:timestamptz;comment:last successful run"`
	LastAttemptAt *time.Time     `gorm:"type:timestamptz;comment:last attempt"`
	LastError     *string        `gorm:"type:text;comment:last error message"`
	Degraded      bool           `gorm:"not null;default:false;comment:indexer fallback in effect"`
	StatsJSON     datatypes.JSON `gorm:"type:jsonb;comment:per-run coverage stats"`
}

func (SyncState) TableName() string {
	return "sync_state"
}
