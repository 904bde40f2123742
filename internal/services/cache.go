package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Cache is the JSON value store used for read-mostly results. A nil Cache disables caching.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

const (
	branchListKey = "branches"
	statsAllKey   = "stats:all"
)

func statsKey(branchID *uint) string {
	if branchID == nil {
		return statsAllKey
	}
	return fmt.Sprintf("stats:branch:%d", *branchID)
}

func branchSettingsKey(id uint) string {
	return fmt.Sprintf("branch:%d:settings", id)
}

// invalidate drops keys; cache failures are logged and never fail the caller.
func invalidate(ctx context.Context, cache Cache, log logrus.FieldLogger, keys ...string) {
	if cache == nil {
		return
	}
	if err := cache.Delete(ctx, keys...); err != nil {
		log.WithError(err).WithField("keys", keys).Warn("cache invalidation failed")
	}
}
