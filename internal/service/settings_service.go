package service

import (
	"context"
	"database/sql"
	"strconv"

	"go.uber.org/zap"

	"github.com/brightpath/agency-api/internal/models"
	appErrors "github.com/brightpath/agency-api/pkg/errors"
)

type settingRepository interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
	Upsert(ctx context.Context, key, value string) error
	List(ctx context.Context) ([]models.Setting, error)
}

var knownSettings = map[string]bool{
	models.SettingInvoiceDueDays:       true,
	models.SettingFiscalYearStartMonth: true,
}

// SettingsService exposes the runtime overrides of billing defaults.
type SettingsService struct {
	repo   settingRepository
	logger *zap.Logger
}

// NewSettingsService constructs SettingsService.
func NewSettingsService(repo settingRepository, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{repo: repo, logger: logger}
}

// List returns all stored settings.
func (s *SettingsService) List(ctx context.Context) ([]models.Setting, error) {
	settings, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list settings")
	}
	return settings, nil
}

// Set writes a known setting key.
func (s *SettingsService) Set(ctx context.Context, key, value string) (*models.Setting, error) {
	if !knownSettings[key] {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown setting key")
	}
	if _, err := strconv.Atoi(value); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "setting value must be an integer")
	}
	if err := s.repo.Upsert(ctx, key, value); err != nil {
		return nil, appErrors.Internal(err, "failed to store setting")
	}
	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load setting")
	}
	return setting, nil
}

// IntValue returns a stored integer setting, falling back to the supplied
// default when unset or malformed.
func (s *SettingsService) IntValue(ctx context.Context, key string, fallback int) int {
	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		if err != sql.ErrNoRows {
			s.logger.Warn("setting lookup failed", zap.String("key", key), zap.Error(err))
		}
		return fallback
	}
	value, err := strconv.Atoi(setting.Value)
	if err != nil {
		return fallback
	}
	return value
}
