package core

// placements.go serves the award placement read path.
//
// Placements are read far more often than they change, so each category's
// grouping is cached for a short TTL. The cache belongs to the read path
// only: imports never read from it, they invalidate it when they commit.

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/awardshelf/internal/catalog"
	"github.com/JonMunkholm/awardshelf/internal/metrics"
	"github.com/JonMunkholm/awardshelf/internal/store"
)

// DefaultReadTTL is used when ServiceConfig.ReadTTL is not positive.
const DefaultReadTTL = time.Hour

// YearPlacements groups one category's placements for a single year.
type YearPlacements struct {
	Year       int                 `json:"year"`
	Placements []catalog.Placement `json:"placements"`
}

type placementCache struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	items map[int64]placementItem
}

type placementItem struct {
	years     []YearPlacements
	expiresAt time.Time
}

func newPlacementCache(ttl time.Duration) *placementCache {
	if ttl <= 0 {
		ttl = DefaultReadTTL
	}
	return &placementCache{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[int64]placementItem),
	}
}

func (c *placementCache) get(categoryID int64) ([]YearPlacements, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[categoryID]
	if !ok || c.now().After(item.expiresAt) {
		return nil, false
	}
	return item.years, true
}

func (c *placementCache) set(categoryID int64, years []YearPlacements) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[categoryID] = placementItem{years: years, expiresAt: c.now().Add(c.ttl)}
}

func (c *placementCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[int64]placementItem)
}

// Placements returns a category's placements grouped by year, newest year
// first and ordered by award level within a year.
func (s *Service) Placements(ctx context.Context, categoryID int64) ([]YearPlacements, error) {
	if years, ok := s.placements.get(categoryID); ok {
		metrics.PlacementCacheHits.Inc()
		return years, nil
	}
	metrics.PlacementCacheMisses.Inc()

	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	found := false
	for _, c := range cats {
		if c.ID == categoryID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("category %d: %w", categoryID, store.ErrNotFound)
	}

	rows, err := s.store.ListPlacements(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list placements: %w", err)
	}
	years := groupByYear(rows)
	s.placements.set(categoryID, years)
	return years, nil
}

// groupByYear expects rows already ordered by year.
func groupByYear(rows []catalog.Placement) []YearPlacements {
	var out []YearPlacements
	for _, p := range rows {
		if n := len(out); n == 0 || out[n-1].Year != p.Year {
			out = append(out, YearPlacements{Year: p.Year})
		}
		last := &out[len(out)-1]
		last.Placements = append(last.Placements, p)
	}
	return out
}
