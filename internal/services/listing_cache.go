package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/staybook/reservation-engine/internal/models"
)

const listingCacheKeyPrefix = "listing:"

// CachedListing is a stored search result and the row count it was built from
type CachedListing struct {
	Page     models.ListingPage `json:"page"`
	Count    int                `json:"count"`
	CachedAt time.Time          `json:"cached_at"`
}

// ListingStore is a key-value store for search results
type ListingStore interface {
	Get(ctx context.Context, signature string) (*CachedListing, bool, error)
	Put(ctx context.Context, signature string, listing *CachedListing, ttl time.Duration) error
}

// ListingSignature derives the cache key of a search. Favorites differ per
// caller, so the caller identity is part of the key.
func ListingSignature(f models.ListingFilter, callerID *uuid.UUID) string {
	date := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return models.FormatDate(*t)
	}
	landlord := ""
	if f.LandlordID != nil {
		landlord = f.LandlordID.String()
	}
	caller := "anon"
	if callerID != nil {
		caller = callerID.String()
	}

	parts := []string{
		"country=" + strings.ToLower(f.Country),
		"category=" + strings.ToLower(f.Category),
		"checkin=" + date(f.CheckIn),
		"checkout=" + date(f.CheckOut),
		"bedrooms=" + strconv.Itoa(f.MinBedrooms),
		"bathrooms=" + strconv.Itoa(f.MinBathrooms),
		"guests=" + strconv.Itoa(f.MinGuests),
		"favorites=" + strconv.FormatBool(f.FavoritesOnly),
		"landlord=" + landlord,
		"page=" + strconv.Itoa(f.Page),
		"page_size=" + strconv.Itoa(f.PageSize),
		"caller=" + caller,
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// RedisListingStore keeps search results in Redis
type RedisListingStore struct {
	client *redis.Client
}

// NewRedisListingStore creates a Redis-backed listing store
func NewRedisListingStore(client *redis.Client) *RedisListingStore {
	return &RedisListingStore{client: client}
}

// Get returns the cached listing for signature, if any
func (s *RedisListingStore) Get(ctx context.Context, signature string) (*CachedListing, bool, error) {
	raw, err := s.client.Get(ctx, listingCacheKeyPrefix+signature).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read listing cache: %w", err)
	}

	var listing CachedListing
	if err := json.Unmarshal(raw, &listing); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached listing: %w", err)
	}
	return &listing, true, nil
}

// Put stores a listing with the given TTL
func (s *RedisListingStore) Put(ctx context.Context, signature string, listing *CachedListing, ttl time.Duration) error {
	raw, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("failed to encode listing: %w", err)
	}
	if err := s.client.Set(ctx, listingCacheKeyPrefix+signature, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write listing cache: %w", err)
	}
	return nil
}

type memoryEntry struct {
	listing   CachedListing
	expiresAt time.Time
}

// MemoryListingStore is an in-process listing store for single-instance
// deployments without Redis
type MemoryListingStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryListingStore creates an empty in-memory listing store
func NewMemoryListingStore() *MemoryListingStore {
	return &MemoryListingStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns the cached listing for signature, if present and not expired
func (s *MemoryListingStore) Get(_ context.Context, signature string) (*CachedListing, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[signature]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, signature)
		s.mu.Unlock()
		return nil, false, nil
	}

	listing := entry.listing
	return &listing, true, nil
}

// Put stores a copy of listing until ttl elapses
func (s *MemoryListingStore) Put(_ context.Context, signature string, listing *CachedListing, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[signature] = memoryEntry{listing: *listing, expiresAt: s.now().Add(ttl)}
	return nil
}
