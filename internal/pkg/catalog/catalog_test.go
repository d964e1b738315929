package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PerkFox/app/models"
	"github.com/ManuelReschke/PerkFox/app/repository"
	"github.com/ManuelReschke/PerkFox/internal/pkg/database"
)

type memoryCache struct {
	sets  map[uint][]uint
	reads int
}

func (m *memoryCache) Get(_ context.Context, userID uint) (map[uint]struct{}, bool, error) {
	m.reads++
	ids, ok := m.sets[userID]
	if !ok {
		return nil, false, nil
	}
	set := map[uint]struct{}{}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, true, nil
}

func (m *memoryCache) Store(_ context.Context, userID uint, dealIDs []uint) error {
	m.sets[userID] = dealIDs
	return nil
}

type viewCounter struct{ views map[uint]int }

func (v *viewCounter) AddDealView(_ context.Context, dealID uint) error {
	v.views[dealID]++
	return nil
}

func setup(t *testing.T) (*repository.Repositories, *Service, *memoryCache, *viewCounter) {
	t.Helper()
	db, err := database.OpenInMemory(t.Name())
	require.NoError(t, err)
	repos := repository.NewRepositories(db)
	cache := &memoryCache{sets: map[uint][]uint{}}
	views := &viewCounter{views: map[uint]int{}}
	return repos, NewService(repos.Deal, repos.Unlock, cache, views), cache, views
}

func createDeal(t *testing.T, repos *repository.Repositories, slug string, locked, published bool) *models.Deal {
	t.Helper()
	d := &models.Deal{
		Title:           slug,
		Slug:            slug,
		PartnerName:     "Partner",
		Category:        "tools",
		LockedByDefault: locked,
		IsPublished:     published,
		CouponCode:      "SECRET-" + slug,
	}
	require.NoError(t, repos.Deal.Create(context.Background(), d))
	return d
}

func TestListAnnotatesUnlockState(t *testing.T) {
	repos, svc, cache, _ := setup(t)
	ctx := context.Background()

	open := createDeal(t, repos, "open", false, true)
	locked := createDeal(t, repos, "locked", true, true)
	unlocked := createDeal(t, repos, "unlocked", true, true)
	createDeal(t, repos, "draft", true, false)

	_, err := repos.Unlock.Upsert(ctx, &models.Unlock{UserID: 5, DealID: unlocked.ID, Source: models.UnlockSourceManual})
	require.NoError(t, err)

	page, err := svc.List(ctx, 5, Query{PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Deals, 3)

	state := map[uint]bool{}
	for _, d := range page.Deals {
		state[d.ID] = d.IsUnlocked
	}
	assert.True(t, state[open.ID])
	assert.False(t, state[locked.ID])
	assert.True(t, state[unlocked.ID])
	assert.Equal(t, []uint{unlocked.ID}, cache.sets[5])

	// second read is served from the cache
	_, err = svc.List(ctx, 5, Query{PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, cache.reads)

	anon, err := svc.List(ctx, 0, Query{})
	require.NoError(t, err)
	for _, d := range anon.Deals {
		assert.Equal(t, d.IsOpen(), d.IsUnlocked)
	}
}

func TestListPaging(t *testing.T) {
	repos, svc, _, _ := setup(t)
	ctx := context.Background()
	for _, slug := range []string{"a1", "a2", "a3"} {
		createDeal(t, repos, slug, true, true)
	}

	page, err := svc.List(ctx, 0, Query{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Len(t, page.Deals, 1)
	assert.Equal(t, int64(3), page.Total)

	page, err = svc.List(ctx, 0, Query{Category: "none"})
	require.NoError(t, err)
	assert.Empty(t, page.Deals)
}

func TestGetRevealsSecretsOnlyWhenUnlocked(t *testing.T) {
	repos, svc, _, views := setup(t)
	ctx := context.Background()

	locked := createDeal(t, repos, "locked", true, true)
	open := createDeal(t, repos, "open", false, true)
	draft := createDeal(t, repos, "draft", false, false)

	detail, err := svc.Get(ctx, 9, locked.ID)
	require.NoError(t, err)
	assert.False(t, detail.IsUnlocked)
	assert.Nil(t, detail.Secrets)

	_, err = repos.Unlock.Upsert(ctx, &models.Unlock{UserID: 9, DealID: locked.ID, Source: models.UnlockSourceManual})
	require.NoError(t, err)

	detail, err = svc.Get(ctx, 9, locked.ID)
	require.NoError(t, err)
	assert.True(t, detail.IsUnlocked)
	require.NotNil(t, detail.Secrets)
	assert.Equal(t, "SECRET-locked", detail.Secrets.CouponCode)

	detail, err = svc.Get(ctx, 0, open.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Secrets)

	_, err = svc.Get(ctx, 9, draft.ID)
	assert.ErrorIs(t, err, ErrDealNotFound)
	_, err = svc.Get(ctx, 9, 12345)
	assert.ErrorIs(t, err, ErrDealNotFound)

	assert.Equal(t, 2, views.views[locked.ID])
	assert.Equal(t, 1, views.views[open.ID])
}

func TestNormalizePaging(t *testing.T) {
	page, size := normalizePaging(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, models.GetAppSettings().GetDealsPerPage(), size)

	_, size = normalizePaging(3, 1000)
	assert.Equal(t, maxPageSize, size)
}
