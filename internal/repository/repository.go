package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"pollkeeper/internal/models"
)

type SnapshotRepository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	UpsertPollSnapshotsTx(ctx context.Context, tx *gorm.DB, items []models.PollSnapshot) error
	ListPollSnapshots(ctx context.Context, params ListPollSnapshotsParams) ([]models.PollSnapshot, error)
	CountPollSnapshots(ctx context.Context, params ListPollSnapshotsParams) (int64, error)
	GetSyncState(ctx context.Context, scope string) (*models.SyncState, error)
	SaveSyncStateTx(ctx context.Context, tx *gorm.DB, state *models.SyncState) error
	ListSyncStates(ctx context.Context) ([]models.SyncState, error)
}

type ConvergenceRepository interface {
	InsertConvergenceWatch(ctx context.Context, item *models.ConvergenceWatch) error
	FinishConvergenceWatch(ctx context.Context, id string, outcome string, attempts int, finishedAt time.Time) error
	ListConvergenceWatches(ctx context.Context, params ListConvergenceWatchesParams) ([]models.ConvergenceWatch, error)
}

type SettingsRepository interface {
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	ListSystemSettings(ctx context.Context, params ListSystemSettingsParams) ([]models.SystemSetting, error)
}

// Repository is everything the services and handlers persist through.
type Repository interface {
	SnapshotRepository
	ConvergenceRepository
	SettingsRepository
}

type ListPollSnapshotsParams struct {
	Chain          string
	Creator        string
	RequiresAction *bool
	Limit          int
	Offset         int
	OrderBy        string
	Asc            *bool
}

type ListConvergenceWatchesParams struct {
	PollID  *uint64
	Outcome *string
	Limit   int
	Offset  int
}

type ListSystemSettingsParams struct {
	Prefix  *string
	Limit   int
	Offset  int
	OrderBy string
	Asc     *bool
}
