// Package cache holds in-process read-through caches for slow-changing data.
package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/attendance-notifier/internal/domain"
	gocache "github.com/patrickmn/go-cache"
)

// TimetableSource is the lookup being cached.
type TimetableSource interface {
	ListActiveForDay(ctx context.Context, userID string, day int) ([]domain.TimetableEntry, error)
}

// Timetable caches each user's classes per weekday for ttl. Errors are not cached.
type Timetable struct {
	next  TimetableSource
	cache *gocache.Cache
}

func NewTimetable(next TimetableSource, ttl time.Duration) *Timetable {
	return &Timetable{next: next, cache: gocache.New(ttl, 2*ttl)}
}

func (t *Timetable) ListActiveForDay(ctx context.Context, userID string, day int) ([]domain.TimetableEntry, error) {
	key := userID + "|" + strconv.Itoa(day)
	if v, found := t.cache.Get(key); found {
		return v.([]domain.TimetableEntry), nil
	}
	entries, err := t.next.ListActiveForDay(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	t.cache.Set(key, entries, gocache.DefaultExpiration)
	return entries, nil
}
