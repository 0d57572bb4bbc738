package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/staybook/reservation-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisListingStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisListingStore(client), mr
}

func TestListingSignature(t *testing.T) {
	checkIn, checkOut := day(2025, 6, 1), day(2025, 6, 4)
	base := models.ListingFilter{Country: "Norway", CheckIn: &checkIn, CheckOut: &checkOut, Page: 1, PageSize: 20}
	caller := uuid.New()

	assert.Equal(t, ListingSignature(base, nil), ListingSignature(base, nil))
	assert.Len(t, ListingSignature(base, nil), 64)

	other := base
	other.MinGuests = 2
	assert.NotEqual(t, ListingSignature(base, nil), ListingSignature(other, nil))
	assert.NotEqual(t, ListingSignature(base, nil), ListingSignature(base, &caller), "callers do not share favorites")

	cased := base
	cased.Country = "NORWAY"
	assert.Equal(t, ListingSignature(base, nil), ListingSignature(cased, nil))
}

func TestListingStores(t *testing.T) {
	redisStore, mr := newRedisStore(t)
	stores := map[string]ListingStore{
		"redis":  redisStore,
		"memory": NewMemoryListingStore(),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, ok, err := store.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			id := uuid.New()
			listing := &CachedListing{
				Page:  models.ListingPage{Data: []models.PropertyListItem{{ID: id, Title: "Cabin"}}, Favorites: []uuid.UUID{id}},
				Count: 1,
			}
			require.NoError(t, store.Put(ctx, "sig", listing, time.Minute))

			got, ok, err := store.Get(ctx, "sig")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, 1, got.Count)
			assert.Equal(t, id, got.Page.Data[0].ID)
			assert.Equal(t, []uuid.UUID{id}, got.Page.Favorites)
		})
	}

	t.Run("Redis TTL", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, redisStore.Put(ctx, "ttl", &CachedListing{Count: 1}, time.Minute))
		mr.FastForward(2 * time.Minute)
		_, ok, err := redisStore.Get(ctx, "ttl")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Memory TTL", func(t *testing.T) {
		store := NewMemoryListingStore()
		now := time.Now()
		store.now = func() time.Time { return now }
		require.NoError(t, store.Put(context.Background(), "ttl", &CachedListing{Count: 1}, time.Minute))
		now = now.Add(2 * time.Minute)
		_, ok, err := store.Get(context.Background(), "ttl")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestListingSearch_CountCheck(t *testing.T) {
	catalog := newFakeProperties(testProperty(), testProperty())
	store, _ := newRedisStore(t)
	svc := NewListingService(catalog, store, 5*time.Minute, testQueryTimeout, testLogger())
	f := models.ListingFilter{Country: "Norway"}

	first, err := svc.Search(context.Background(), f, nil)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Len(t, first.Data, 2)
	assert.Equal(t, 2, first.Pagination.Total)
	assert.Equal(t, 20, first.Pagination.PageSize)

	second, err := svc.Search(context.Background(), f, nil)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, catalog.searchHits, "unchanged count serves the cached page")

	added := testProperty()
	catalog.properties[added.ID] = added
	catalog.count = 3

	third, err := svc.Search(context.Background(), f, nil)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Len(t, third.Data, 3)
	assert.Equal(t, 2, catalog.searchHits)
}

func TestListingSearch_Favorites(t *testing.T) {
	property := testProperty()
	catalog := newFakeProperties(property)
	svc := NewListingService(catalog, NewMemoryListingStore(), time.Minute, testQueryTimeout, testLogger())
	caller := uuid.New()

	favorited, err := svc.ToggleFavorite(context.Background(), property.ID, caller)
	require.NoError(t, err)
	assert.True(t, favorited)

	page, err := svc.Search(context.Background(), models.ListingFilter{FavoritesOnly: true}, &caller)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{property.ID}, page.Favorites)

	anon, err := svc.Search(context.Background(), models.ListingFilter{FavoritesOnly: true}, nil)
	require.NoError(t, err)
	assert.False(t, anon.Cached, "anonymous callers get their own cache entry")
	assert.Empty(t, anon.Favorites)

	t.Run("Unknown property", func(t *testing.T) {
		_, err := svc.ToggleFavorite(context.Background(), uuid.New(), caller)
		assert.True(t, models.IsNotFoundError(err))
	})
}

func TestListingSearch_CacheDisabled(t *testing.T) {
	catalog := newFakeProperties(testProperty())
	svc := NewListingService(catalog, nil, time.Minute, testQueryTimeout, testLogger())

	for i := 0; i < 2; i++ {
		page, err := svc.Search(context.Background(), models.ListingFilter{}, nil)
		require.NoError(t, err)
		assert.False(t, page.Cached)
	}
	assert.Equal(t, 2, catalog.searchHits)
}
