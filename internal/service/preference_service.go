package service

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-admin-console/internal/models"
	appErrors "github.com/noah-isme/edu-admin-console/pkg/errors"
)

type preferenceRepository interface {
	Get(ctx context.Context, userID string) (models.Preferences, error)
	Save(ctx context.Context, userID string, prefs models.Preferences) error
}

// PreferenceService persists console settings per user. Without a repository,
// or when the repository fails, settings live in process memory.
type PreferenceService struct {
	repo      preferenceRepository
	validator formValidator
	logger    *zap.Logger

	mu       sync.RWMutex
	fallback map[string]models.Preferences
}

// NewPreferenceService constructs the service; repo may be nil.
func NewPreferenceService(repo preferenceRepository, validator formValidator, logger *zap.Logger) *PreferenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validator == nil {
		validator = NewFormValidator()
	}
	return &PreferenceService{
		repo:      repo,
		validator: validator,
		logger:    logger,
		fallback:  make(map[string]models.Preferences),
	}
}

// Get returns the user's settings, defaulting to an expanded sidebar.
func (s *PreferenceService) Get(ctx context.Context, userID string) models.Preferences {
	if s.repo != nil {
		prefs, err := s.repo.Get(ctx, userID)
		if err == nil {
			return prefs
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("load preferences failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fallback[userID]
}

// Update validates and stores new settings.
func (s *PreferenceService) Update(ctx context.Context, userID string, req models.UpdatePreferencesRequest) (models.Preferences, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.Preferences{}, err
	}
	prefs := models.Preferences{SidebarCollapsed: *req.SidebarCollapsed}

	s.mu.Lock()
	s.fallback[userID] = prefs
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.Save(ctx, userID, prefs); err != nil {
			s.logger.Warn("save preferences failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return prefs, nil
}

// Me assembles the profile payload: display claims, settings and the pages
// the role may open.
func (s *PreferenceService) Me(ctx context.Context, claims models.DisplayClaims) models.Me {
	return models.Me{
		Claims:      claims,
		Preferences: s.Get(ctx, claims.UserID),
		Pages:       PagesFor(claims.Role),
	}
}
