package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultListingPageSize = 20
	MaxListingPageSize     = 100
)

// ListingQuery binds the search query string
type ListingQuery struct {
	Country      string `form:"country"`
	Category     string `form:"category"`
	CheckIn      string `form:"checkIn" binding:"omitempty,isodate"`
	CheckOut     string `form:"checkOut" binding:"omitempty,isodate"`
	NumBedrooms  int    `form:"numBedrooms" binding:"omitempty,min=0"`
	NumBathrooms int    `form:"numBathrooms" binding:"omitempty,min=0"`
	NumGuests    int    `form:"numGuests" binding:"omitempty,min=0"`
	IsFavorites  bool   `form:"is_favorites"`
	LandlordID   string `form:"landlord_id" binding:"omitempty,uuid"`
	Page         int    `form:"page" binding:"omitempty,min=1"`
	PageSize     int    `form:"page_size" binding:"omitempty,min=1"`
}

// ListingFilter is the normalized search filter
type ListingFilter struct {
	Country       string
	Category      string
	CheckIn       *time.Time
	CheckOut      *time.Time
	MinBedrooms   int
	MinBathrooms  int
	MinGuests     int
	FavoritesOnly bool
	LandlordID    *uuid.UUID
	Page          int
	PageSize      int
}

// ToFilter normalizes the query into a filter
func (q *ListingQuery) ToFilter() (ListingFilter, error) {
	f := ListingFilter{
		Country:       strings.TrimSpace(q.Country),
		Category:      strings.TrimSpace(q.Category),
		MinBedrooms:   q.NumBedrooms,
		MinBathrooms:  q.NumBathrooms,
		MinGuests:     q.NumGuests,
		FavoritesOnly: q.IsFavorites,
		Page:          q.Page,
		PageSize:      q.PageSize,
	}

	// Front-ends send the literal "undefined" when no category tab is selected
	if f.Category == "undefined" {
		f.Category = ""
	}

	// Date filtering only applies when both ends are present
	if q.CheckIn != "" && q.CheckOut != "" {
		checkIn, err := ParseDate(q.CheckIn)
		if err != nil {
			return f, NewValidationError(CodeInvalidDateRange, "%s", err.Error())
		}
		checkOut, err := ParseDate(q.CheckOut)
		if err != nil {
			return f, NewValidationError(CodeInvalidDateRange, "%s", err.Error())
		}
		if !checkIn.Before(checkOut) {
			return f, NewValidationError(CodeInvalidDateRange, "checkIn must be before checkOut")
		}
		f.CheckIn = &checkIn
		f.CheckOut = &checkOut
	}

	if q.LandlordID != "" {
		landlordID, err := uuid.Parse(q.LandlordID)
		if err != nil {
			return f, NewValidationError(CodeInvalidPropertyID, "invalid landlord_id")
		}
		f.LandlordID = &landlordID
	}

	f.Normalize()
	return f, nil
}

// Normalize clamps pagination to sane bounds
func (f *ListingFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultListingPageSize
	}
	if f.PageSize > MaxListingPageSize {
		f.PageSize = MaxListingPageSize
	}
}

// Offset returns the row offset for the current page
func (f *ListingFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// HasDateRange reports whether availability filtering applies
func (f *ListingFilter) HasDateRange() bool {
	return f.CheckIn != nil && f.CheckOut != nil
}

// Pagination describes a page of results
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}

// ListingPage is the cached search payload
type ListingPage struct {
	Data       []PropertyListItem `json:"data"`
	Favorites  []uuid.UUID        `json:"favorites"`
	Pagination Pagination         `json:"pagination"`
}

// ListingResponse is returned by GET /properties
type ListingResponse struct {
	ListingPage
	Cached bool `json:"cached"`
}
