package models

import (
	"time"

	"github.com/google/uuid"
)

// Property is a listing in the catalog. Property CRUD lives in the catalog
// service; the reservation engine only reads it.
type Property struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Title         string    `json:"title" db:"title"`
	Description   string    `json:"description" db:"description"`
	PricePerNight int64     `json:"price_per_night" db:"price_per_night"`
	Bedrooms      int       `json:"bedrooms" db:"bedrooms"`
	Bathrooms     int       `json:"bathrooms" db:"bathrooms"`
	Guests        int       `json:"guests" db:"guests"`
	Country       string    `json:"country" db:"country"`
	CountryCode   string    `json:"country_code" db:"country_code"`
	Category      string    `json:"category" db:"category"`
	ImageURL      string    `json:"image_url" db:"image_url"`
	LandlordID    uuid.UUID `json:"landlord_id" db:"landlord_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// PriceFor returns nights × nightly rate
func (p *Property) PriceFor(nights int) int64 {
	return int64(nights) * p.PricePerNight
}

// ============================================================================
// RESPONSE SHAPES
// ============================================================================

// PropertyListItem is the listing card shape returned by search
type PropertyListItem struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	PricePerNight int64     `json:"price_per_night"`
	ImageURL      string    `json:"image_url"`
	Country       string    `json:"country"`
	Category      string    `json:"category"`
}

// PropertySummary is the property shape embedded in reservation responses
type PropertySummary struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Address  string    `json:"address"`
	ImageURL string    `json:"image_url"`
}

// ToListItem converts a property to its listing card
func (p *Property) ToListItem() PropertyListItem {
	return PropertyListItem{
		ID:            p.ID,
		Title:         p.Title,
		PricePerNight: p.PricePerNight,
		ImageURL:      p.ImageURL,
		Country:       p.Country,
		Category:      p.Category,
	}
}

// ToSummary converts a property to the reservation summary shape
func (p *Property) ToSummary() PropertySummary {
	return PropertySummary{
		ID:       p.ID,
		Name:     p.Title,
		Address:  p.Country,
		ImageURL: p.ImageURL,
	}
}

// ToggleFavoriteResponse is returned by the toggle-favorite endpoint
type ToggleFavoriteResponse struct {
	IsFavorited bool `json:"is_favorited"`
}
