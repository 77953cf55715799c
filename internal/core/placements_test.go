package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/awardshelf/internal/store"
)

func TestService_Placements(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.Import(ctx, "caldecott.tsv", strings.NewReader(tsv(
		owlMoonLine,
		"Flotsam\tDavid\tWiesner\t2007\t3\t1\t\t",
		"Gone Wild\tDavid\tMcLimans\t2007\t3\t2\t\t",
	)), ImportOptions{})
	require.NoError(t, err)

	years, err := svc.Placements(ctx, 3)
	require.NoError(t, err)
	require.Len(t, years, 2)

	assert.Equal(t, 2007, years[0].Year)
	require.Len(t, years[0].Placements, 2)
	assert.Equal(t, "Flotsam", years[0].Placements[0].Title)
	assert.Equal(t, "Honor", years[0].Placements[1].AwardLevel)

	assert.Equal(t, 1988, years[1].Year)
	assert.Equal(t, "Jane Yolen", years[1].Placements[0].AuthorName)
}

func TestService_Placements_UnknownCategory(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{})

	_, err := svc.Placements(context.Background(), 42)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestService_Placements_InvalidatedByImport(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{})
	ctx := context.Background()

	years, err := svc.Placements(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, years)

	_, err = svc.Import(ctx, "caldecott.tsv", strings.NewReader(tsv(owlMoonLine)), ImportOptions{})
	require.NoError(t, err)

	years, err = svc.Placements(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, years, 1)
}

func TestService_Placements_NotInvalidatedByDryRun(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.Placements(ctx, 3)
	require.NoError(t, err)

	_, err = svc.Import(ctx, "dry.tsv", strings.NewReader(tsv(owlMoonLine)), ImportOptions{DryRun: true})
	require.NoError(t, err)

	_, ok := svc.placements.get(3)
	assert.True(t, ok)
}

func TestPlacementCache_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := newPlacementCache(time.Minute)
	c.now = func() time.Time { return now }

	c.set(3, []YearPlacements{{Year: 1988}})
	got, ok := c.get(3)
	require.True(t, ok)
	assert.Equal(t, 1988, got[0].Year)

	now = now.Add(2 * time.Minute)
	_, ok = c.get(3)
	assert.False(t, ok)

	c.set(3, nil)
	c.invalidate()
	_, ok = c.get(3)
	assert.False(t, ok)
}

func TestNewPlacementCache_DefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultReadTTL, newPlacementCache(0).ttl)
}
