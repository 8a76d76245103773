package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/edu-admin-console/pkg/errors"
)

func TestCacheRepositoryWithoutClientIsInert(t *testing.T) {
	repo := NewCacheRepository(nil, "console", nil)
	ctx := context.Background()

	var dest []string
	err := repo.Get(ctx, "lookups:states", &dest)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
	assert.NoError(t, repo.Set(ctx, "lookups:states", []string{"a"}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "lookups:*"))
	assert.NoError(t, repo.Ping(ctx))
	assert.Equal(t, "console:lookups:states", repo.key("lookups:states"))
}
