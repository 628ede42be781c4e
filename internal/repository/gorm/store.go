package gormrepository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pollkeeper/internal/models"
	"pollkeeper/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ repository.Repository = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- snapshots ---------------------------------------------------------------

func (s *Store) UpsertPollSnapshotsTx(ctx context.Context, tx *gorm.DB, items []models.PollSnapshot) error {
	if len(items) == 0 {
		return nil
	}
	if tx == nil {
		if s == nil || s.db == nil {
			return nil
		}
		tx = s.db
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "chain"}, {Name: "poll_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"creator",
			"question",
			"options",
			"votes",
			"end_time",
			"is_active",
			"total_funding",
			"funding_token",
			"funding_token_addr",
			"distribution_mode",
			"funding_type",
			"status",
			"voting_type",
			"total_votes_bought",
			"voter_count",
			"source",
			"requires_action",
			"poll_created_at",
			"reconciled_at",
			"updated_at",
		}),
	}).CreateInBatches(items, 200).Error
}

func (s *Store) ListPollSnapshots(ctx context.Context, params repository.ListPollSnapshotsParams) ([]models.PollSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := snapshotFilter(s.db.WithContext(ctx).Model(&models.PollSnapshot{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "end_time")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.PollSnapshot
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountPollSnapshots(ctx context.Context, params repository.ListPollSnapshotsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := snapshotFilter(s.db.WithContext(ctx).Model(&models.PollSnapshot{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func snapshotFilter(query *gorm.DB, params repository.ListPollSnapshotsParams) *gorm.DB {
	if v := strings.TrimSpace(params.Chain); v != "" {
		query = query.Where("chain = ?", strings.ToLower(v))
	}
	if v := strings.TrimSpace(params.Creator); v != "" {
		query = query.Where("creator = ?", strings.ToLower(v))
	}
	if params.RequiresAction != nil {
		query = query.Where("requires_action = ?", *params.RequiresAction)
	}
	return query
}

// --- sync state --------------------------------------------------------------

func (s *Store) GetSyncState(ctx context.Context, scope string) (*models.SyncState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var state models.SyncState
	err := s.db.WithContext(ctx).First(&state, "scope = ?", scope).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *Store) SaveSyncStateTx(ctx context.Context, tx *gorm.DB, state *models.SyncState) error {
	if state == nil {
		return nil
	}
	if tx == nil {
		if s == nil || s.db == nil {
			return nil
		}
		tx = s.db
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "scope"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"cursor",
			"last_success_at",
			"last_attempt_at",
			"last_error",
			"degraded",
			"stats_json",
		}),
	}).Create(state).Error
}

func (s *Store) ListSyncStates(ctx context.Context) ([]models.SyncState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var states []models.SyncState
	if err := s.db.WithContext(ctx).Order("scope asc").Find(&states).Error; err != nil {
		return nil, err
	}
	return states, nil
}

// --- convergence watches -----------------------------------------------------

func (s *Store) InsertConvergenceWatch(ctx context.Context, item *models.ConvergenceWatch) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) FinishConvergenceWatch(ctx context.Context, id string, outcome string, attempts int, finishedAt time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.ConvergenceWatch{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"outcome":       outcome,
			"attempts_made": attempts,
			"finished_at":   finishedAt,
			"updated_at":    time.Now().UTC(),
		}).Error
}

func (s *Store) ListConvergenceWatches(ctx context.Context, params repository.ListConvergenceWatchesParams) ([]models.ConvergenceWatch, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.ConvergenceWatch{})
	if params.PollID != nil {
		query = query.Where("poll_id = ?", *params.PollID)
	}
	if params.Outcome != nil && strings.TrimSpace(*params.Outcome) != "" {
		query = query.Where("outcome = ?", strings.TrimSpace(*params.Outcome))
	}
	var items []models.ConvergenceWatch
	err := query.Order("started_at desc").
		Limit(normalizeLimit(params.Limit, 100)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- system settings ---------------------------------------------------------

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Key = strings.TrimSpace(item.Key)
	if item.Key == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"value",
			"description",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var item models.SystemSetting
	err := s.db.WithContext(ctx).Model(&models.SystemSetting{}).Where("key = ?", key).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.SystemSetting{})
	if params.Prefix != nil && strings.TrimSpace(*params.Prefix) != "" {
		query = query.Where("key LIKE ?", strings.TrimSpace(*params.Prefix)+"%")
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "key")
	var items []models.SystemSetting
	if err := query.Limit(normalizeLimit(params.Limit, 500)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

var orderColumns = map[string]struct{}{
	"end_time":      {},
	"poll_id":       {},
	"reconciled_at": {},
	"key":           {},
	"updated_at":    {},
}

// applyOrder only accepts known columns; anything else falls back.
func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.ToLower(strings.TrimSpace(orderBy))
	if _, ok := orderColumns[column]; !ok {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
