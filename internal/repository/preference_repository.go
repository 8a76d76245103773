package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/edu-admin-console/internal/models"
	appErrors "github.com/noah-isme/edu-admin-console/pkg/errors"
)

const (
	preferenceKeyPrefix = "console:prefs:"
	fieldSidebar        = "sidebar_collapsed"
)

// PreferenceRepository keeps per-user console settings in a Redis hash.
type PreferenceRepository struct {
	client redis.UniversalClient
}

// NewPreferenceRepository constructs the repository.
func NewPreferenceRepository(client redis.UniversalClient) *PreferenceRepository {
	return &PreferenceRepository{client: client}
}

// Get loads the user's preferences. Unknown users get ErrCacheMiss.
func (r *PreferenceRepository) Get(ctx context.Context, userID string) (models.Preferences, error) {
	values, err := r.client.HGetAll(ctx, preferenceKeyPrefix+userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Preferences{}, appErrors.ErrCacheMiss
		}
		return models.Preferences{}, fmt.Errorf("redis hgetall prefs %s: %w", userID, err)
	}
	if len(values) == 0 {
		return models.Preferences{}, appErrors.ErrCacheMiss
	}
	collapsed, _ := strconv.ParseBool(values[fieldSidebar])
	return models.Preferences{SidebarCollapsed: collapsed}, nil
}

// Save stores the user's preferences.
func (r *PreferenceRepository) Save(ctx context.Context, userID string, prefs models.Preferences) error {
	if err := r.client.HSet(ctx, preferenceKeyPrefix+userID, fieldSidebar, strconv.FormatBool(prefs.SidebarCollapsed)).Err(); err != nil {
		return fmt.Errorf("redis hset prefs %s: %w", userID, err)
	}
	return nil
}
