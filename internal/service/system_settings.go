package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"

	"pollkeeper/internal/models"
	"pollkeeper/internal/repository"
)

const (
	FeatureTrackedSync       = "feature.tracked_sync"
	FeatureResultCache       = "feature.result_cache"
	FeatureConvergenceStream = "feature.convergence_stream"
)

func DefaultFeatureSwitches() map[string]bool {
	return map[string]bool{
		FeatureTrackedSync:       true,
		FeatureResultCache:       true,
		FeatureConvergenceStream: true,
	}
}

// IsFeatureKey reports whether key is one of the known switches.
func IsFeatureKey(key string) bool {
	_, ok := DefaultFeatureSwitches()[strings.TrimSpace(key)]
	return ok
}

type SystemSettingsService struct {
	Repo repository.SettingsRepository
}

// EnsureDefaultSwitches writes missing switches. Stored values are never
// overwritten.
func (s *SystemSettingsService) EnsureDefaultSwitches(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	now := time.Now().UTC()
	for key, enabled := range DefaultFeatureSwitches() {
		existing, err := s.Repo.GetSystemSettingByKey(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		raw, _ := json.Marshal(enabled)
		item := &models.SystemSetting{
			Key:         key,
			Value:       datatypes.JSON(raw),
			Description: "feature switch",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.Repo.UpsertSystemSetting(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *SystemSettingsService) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	if s == nil || s.Repo == nil {
		return fallback
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fallback
	}
	item, err := s.Repo.GetSystemSettingByKey(ctx, key)
	if err != nil || item == nil || len(item.Value) == 0 {
		return fallback
	}
	var enabled bool
	if err := json.Unmarshal(item.Value, &enabled); err != nil {
		return fallback
	}
	return enabled
}

func (s *SystemSettingsService) SetEnabled(ctx context.Context, key string, enabled bool) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	raw, _ := json.Marshal(enabled)
	item := &models.SystemSetting{
		Key:         key,
		Value:       datatypes.JSON(raw),
		Description: "feature switch",
		UpdatedAt:   time.Now().UTC(),
	}
	return s.Repo.UpsertSystemSetting(ctx, item)
}

type Switch struct {
	Key     string `json:"key"`
	Enabled bool   `json:"enabled"`
}

// Switches lists every known switch with its effective value.
func (s *SystemSettingsService) Switches(ctx context.Context) []Switch {
	defaults := DefaultFeatureSwitches()
	out := make([]Switch, 0, len(defaults))
	for key, def := range defaults {
		out = append(out, Switch{Key: key, Enabled: s.IsEnabled(ctx, key, def)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
