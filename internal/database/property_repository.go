package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/staybook/reservation-engine/internal/models"
)

const propertyColumns = `
	p.id, p.title, p.description, p.price_per_night, p.bedrooms, p.bathrooms,
	p.guests, p.country, p.country_code, p.category, p.image_url, p.landlord_id, p.created_at
`

// PropertyRepository reads the property catalog
type PropertyRepository struct {
	db *sqlx.DB
}

// NewPropertyRepository creates a new property repository
func NewPropertyRepository(db *sqlx.DB) *PropertyRepository {
	return &PropertyRepository{db: db}
}

// GetByID returns a property, or nil when it does not exist
func (r *PropertyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties p WHERE p.id = $1`

	var property models.Property
	err := r.db.GetContext(ctx, &property, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get property: %w", err)
	}

	return &property, nil
}

// listingArgs accumulates positional arguments for a dynamic WHERE clause
type listingArgs struct {
	clauses []string
	args    []interface{}
}

func (a *listingArgs) add(clause string, values ...interface{}) {
	// Each %d in the clause is replaced by the next placeholder index
	indexes := make([]interface{}, len(values))
	for i, v := range values {
		a.args = append(a.args, v)
		indexes[i] = len(a.args)
	}
	a.clauses = append(a.clauses, fmt.Sprintf(clause, indexes...))
}

func (a *listingArgs) where() string {
	if len(a.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(a.clauses, " AND ")
}

// buildListingFilter translates a listing filter into SQL. Date filtering
// uses the same paid-overlap predicate as the availability checks.
func buildListingFilter(f models.ListingFilter, callerID *uuid.UUID) *listingArgs {
	a := &listingArgs{}

	if f.LandlordID != nil {
		a.add("p.landlord_id = $%d", *f.LandlordID)
	}
	if f.FavoritesOnly && callerID != nil {
		a.add("EXISTS (SELECT 1 FROM property_favorites pf WHERE pf.property_id = p.id AND pf.user_id = $%d)", *callerID)
	}
	if f.HasDateRange() {
		a.add(`NOT EXISTS (SELECT 1 FROM reservations r WHERE r.property_id = p.id AND `+paidOverlap("r")+`)`,
			*f.CheckOut, *f.CheckIn)
	}
	if f.MinGuests > 0 {
		a.add("p.guests >= $%d", f.MinGuests)
	}
	if f.MinBedrooms > 0 {
		a.add("p.bedrooms >= $%d", f.MinBedrooms)
	}
	if f.MinBathrooms > 0 {
		a.add("p.bathrooms >= $%d", f.MinBathrooms)
	}
	if f.Country != "" {
		a.add("LOWER(p.country) = $%d", strings.ToLower(f.Country))
	}
	if f.Category != "" {
		a.add("LOWER(p.category) = $%d", strings.ToLower(f.Category))
	}

	return a
}

// Search returns one page of properties matching the filter
func (r *PropertyRepository) Search(ctx context.Context, f models.ListingFilter, callerID *uuid.UUID) ([]models.Property, error) {
	a := buildListingFilter(f, callerID)
	query := `SELECT ` + propertyColumns + ` FROM properties p` + a.where() +
		fmt.Sprintf(" ORDER BY p.created_at DESC, p.id LIMIT $%d OFFSET $%d", len(a.args)+1, len(a.args)+2)
	args := append(a.args, f.PageSize, f.Offset())

	var properties []models.Property
	if err := r.db.SelectContext(ctx, &properties, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search properties: %w", err)
	}

	return properties, nil
}

// Count returns the number of properties matching the filter, ignoring pagination
func (r *PropertyRepository) Count(ctx context.Context, f models.ListingFilter, callerID *uuid.UUID) (int, error) {
	a := buildListingFilter(f, callerID)
	query := `SELECT COUNT(*) FROM properties p` + a.where()

	var count int
	if err := r.db.GetContext(ctx, &count, query, a.args...); err != nil {
		return 0, fmt.Errorf("failed to count properties: %w", err)
	}

	return count, nil
}

// FavoriteIDs returns which of the given properties the user has favorited
func (r *PropertyRepository) FavoriteIDs(ctx context.Context, userID uuid.UUID, propertyIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(propertyIDs) == 0 {
		return []uuid.UUID{}, nil
	}

	query, args, err := sqlx.In(`
		SELECT property_id FROM property_favorites
		WHERE user_id = ? AND property_id IN (?)
	`, userID, propertyIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build favorites query: %w", err)
	}
	query = r.db.Rebind(query)

	ids := []uuid.UUID{}
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get favorites: %w", err)
	}

	return ids, nil
}

// ToggleFavorite adds or removes a favorite and reports the new state
func (r *PropertyRepository) ToggleFavorite(ctx context.Context, propertyID, userID uuid.UUID) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM property_favorites WHERE property_id = $1 AND user_id = $2`,
		propertyID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to remove favorite: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	favorited := removed == 0
	if favorited {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO property_favorites (property_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			propertyID, userID); err != nil {
			return false, fmt.Errorf("failed to add favorite: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit favorite toggle: %w", err)
	}

	return favorited, nil
}
