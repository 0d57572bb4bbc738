package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/staybook/reservation-engine/internal/models"
	"go.opentelemetry.io/otel/attribute"
)

// PropertyCatalog is the property store used by listing search
type PropertyCatalog interface {
	PropertyReader
	Search(ctx context.Context, f models.ListingFilter, callerID *uuid.UUID) ([]models.Property, error)
	Count(ctx context.Context, f models.ListingFilter, callerID *uuid.UUID) (int, error)
	FavoriteIDs(ctx context.Context, userID uuid.UUID, propertyIDs []uuid.UUID) ([]uuid.UUID, error)
	ToggleFavorite(ctx context.Context, propertyID, userID uuid.UUID) (bool, error)
}

// ListingService serves property search with a result cache.
//
// Staleness check: every read re-counts the rows matching the filter and
// serves the cached page only when the count is unchanged. A change that
// keeps the count (one listing removed, another added) is served stale until
// the TTL expires. The cache is never used for availability decisions, and
// reconciliation does not invalidate it.
type ListingService struct {
	catalog      PropertyCatalog
	store        ListingStore
	ttl          time.Duration
	queryTimeout time.Duration
	logger       *logrus.Logger
}

// NewListingService creates a new listing service. A nil store disables caching.
func NewListingService(catalog PropertyCatalog, store ListingStore, ttl, queryTimeout time.Duration, logger *logrus.Logger) *ListingService {
	return &ListingService{
		catalog:      catalog,
		store:        store,
		ttl:          ttl,
		queryTimeout: queryTimeout,
		logger:       logger,
	}
}

// Search returns one page of properties matching f
func (s *ListingService) Search(ctx context.Context, f models.ListingFilter, callerID *uuid.UUID) (*models.ListingResponse, error) {
	ctx, span := tracer.Start(ctx, "listing.Search")
	defer span.End()

	f.Normalize()
	if callerID == nil {
		f.FavoritesOnly = false
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	count, err := s.catalog.Count(ctx, f, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count properties: %w", err)
	}

	signature := ListingSignature(f, callerID)
	if s.store != nil {
		cached, ok, err := s.store.Get(ctx, signature)
		switch {
		case err != nil:
			s.logger.WithError(err).Warn("Listing cache read failed, querying store")
		case ok && cached.Count == count:
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return &models.ListingResponse{ListingPage: cached.Page, Cached: true}, nil
		case ok:
			s.logger.WithFields(logrus.Fields{
				"cached_count": cached.Count,
				"fresh_count":  count,
			}).Debug("Listing cache stale, recomputing")
		}
	}
	span.SetAttributes(attribute.Bool("cache_hit", false))

	properties, err := s.catalog.Search(ctx, f, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to search properties: %w", err)
	}

	page := models.ListingPage{
		Data:      make([]models.PropertyListItem, 0, len(properties)),
		Favorites: []uuid.UUID{},
		Pagination: models.Pagination{
			Page:     f.Page,
			PageSize: f.PageSize,
			Total:    count,
		},
	}
	ids := make([]uuid.UUID, 0, len(properties))
	for i := range properties {
		page.Data = append(page.Data, properties[i].ToListItem())
		ids = append(ids, properties[i].ID)
	}

	if callerID != nil && len(ids) > 0 {
		favorites, err := s.catalog.FavoriteIDs(ctx, *callerID, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load favorites: %w", err)
		}
		page.Favorites = favorites
	}

	if s.store != nil {
		entry := &CachedListing{Page: page, Count: count, CachedAt: time.Now().UTC()}
		if err := s.store.Put(ctx, signature, entry, s.ttl); err != nil {
			s.logger.WithError(err).Warn("Listing cache write failed")
		}
	}

	return &models.ListingResponse{ListingPage: page}, nil
}

// ToggleFavorite adds or removes a property from the caller's favorites and
// reports whether it is now a favorite
func (s *ListingService) ToggleFavorite(ctx context.Context, propertyID, userID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	property, err := s.catalog.GetByID(ctx, propertyID)
	if err != nil {
		return false, fmt.Errorf("failed to load property: %w", err)
	}
	if property == nil {
		return false, &models.NotFoundError{Resource: "property", ID: propertyID.String()}
	}

	favorited, err := s.catalog.ToggleFavorite(ctx, propertyID, userID)
	if err != nil {
		return false, err
	}

	s.logger.WithFields(logrus.Fields{
		"property_id": propertyID,
		"user_id":     userID,
		"favorited":   favorited,
	}).Debug("Favorite toggled")

	return favorited, nil
}
