package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/staybook/reservation-engine/internal/database"
	"github.com/staybook/reservation-engine/internal/models"
	"github.com/staybook/reservation-engine/internal/services"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// stubProcessor accepts the webhook signature "good_sig" only. Webhook
// bodies are {"id", "type", "session_id"}.
type stubProcessor struct {
	mu       sync.Mutex
	sessions map[string]*services.ProcessorSession
	getErr   error
}

func (p *stubProcessor) CreateSession(_ context.Context, params *services.CreateSessionParams) (*services.ProcessorSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := fmt.Sprintf("cs_test_%d", len(p.sessions)+1)
	session := &services.ProcessorSession{ID: id, URL: "https://checkout.stripe.test/" + id, PaymentStatus: "unpaid", Metadata: params.Metadata}
	p.sessions[id] = session
	return session, nil
}

func (p *stubProcessor) GetSession(_ context.Context, sessionID string) (*services.ProcessorSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getErr != nil {
		return nil, p.getErr
	}
	session, ok := p.sessions[sessionID]
	if !ok {
		return nil, services.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (p *stubProcessor) ParseWebhook(payload []byte, signature string) (*services.WebhookEvent, error) {
	if signature != "good_sig" {
		return nil, services.ErrInvalidSignature
	}
	var body struct {
		ID        string `json:"id"`
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, err
	}
	event := &services.WebhookEvent{ID: body.ID, Type: body.Type}
	if body.Type == services.EventCheckoutSessionCompleted {
		session, err := p.GetSession(context.Background(), body.SessionID)
		if err != nil {
			return nil, err
		}
		event.Session = session
	}
	return event, nil
}

func (p *stubProcessor) pay(id string, property *models.Property, start, end time.Time, payer uuid.UUID) {
	nights := models.NightsBetween(start, end)
	intent := &models.CheckoutIntent{
		PropertyID:     property.ID,
		StartDate:      start,
		EndDate:        end,
		NumberOfNights: nights,
		Guests:         2,
		TotalPrice:     property.PriceFor(nights),
		CreatedBy:      payer,
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[id] = &services.ProcessorSession{
		ID:            id,
		PaymentStatus: "paid",
		AmountTotal:   intent.TotalPrice * 100,
		Currency:      "usd",
		Metadata:      intent.ToMetadata(),
		CustomerEmail: "guest@example.com",
	}
}

// memStore backs every store interface the handlers reach
type memStore struct {
	mu           sync.Mutex
	properties   map[uuid.UUID]*models.Property
	reservations []models.Reservation
	alerts       []models.BookingAlert
	favorites    map[uuid.UUID]bool
}

func newMemStore(properties ...*models.Property) *memStore {
	s := &memStore{properties: map[uuid.UUID]*models.Property{}, favorites: map[uuid.UUID]bool{}}
	for _, p := range properties {
		s.properties[p.ID] = p
	}
	return s
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.properties[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, nil
}

func (s *memStore) Search(_ context.Context, _ models.ListingFilter, _ *uuid.UUID) ([]models.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Property, 0, len(s.properties))
	for _, p := range s.properties {
		out = append(out, *p)
	}
	return out, nil
}

func (s *memStore) Count(_ context.Context, _ models.ListingFilter, _ *uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.properties), nil
}

func (s *memStore) FavoriteIDs(_ context.Context, _ uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []uuid.UUID{}
	for _, id := range ids {
		if s.favorites[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *memStore) ToggleFavorite(_ context.Context, propertyID, _ uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.favorites[propertyID] = !s.favorites[propertyID]
	return s.favorites[propertyID], nil
}

func (s *memStore) HasPaidOverlap(_ context.Context, propertyID uuid.UUID, start, end time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.reservations {
		r := &s.reservations[i]
		if r.PropertyID == propertyID && r.HasPaid && r.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) BlockedPropertyIDs(ctx context.Context, ids []uuid.UUID, start, end time.Time) ([]uuid.UUID, error) {
	var blocked []uuid.UUID
	for _, id := range ids {
		if overlap, _ := s.HasPaidOverlap(ctx, id, start, end); overlap {
			blocked = append(blocked, id)
		}
	}
	return blocked, nil
}

func (s *memStore) Materialize(_ context.Context, res *models.Reservation, _ *models.OutboxMessage) (*database.MaterializeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.reservations {
		if s.reservations[i].SessionID() == res.SessionID() {
			existing := s.reservations[i]
			return &database.MaterializeResult{Reservation: &existing}, nil
		}
	}
	var conflicting []uuid.UUID
	for i := range s.reservations {
		r := &s.reservations[i]
		if r.PropertyID == res.PropertyID && r.HasPaid && r.Overlaps(res.StartDate, res.EndDate) {
			conflicting = append(conflicting, r.ID)
		}
	}
	inserted := *res
	inserted.ConflictFlagged = len(conflicting) > 0
	s.reservations = append(s.reservations, inserted)
	if len(conflicting) > 0 {
		s.alerts = append(s.alerts, *models.NewConflictAlert(&models.BookingConflict{
			ReservationID:  inserted.ID,
			PropertyID:     inserted.PropertyID,
			SessionID:      inserted.SessionID(),
			ConflictingIDs: conflicting,
		}))
	}
	return &database.MaterializeResult{Reservation: &inserted, Created: true, ConflictingIDs: conflicting}, nil
}

func (s *memStore) ListPaidForProperty(_ context.Context, propertyID uuid.UUID) ([]models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Reservation
	for _, r := range s.reservations {
		if r.PropertyID == propertyID && r.HasPaid {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) ListByUser(_ context.Context, userID uuid.UUID, _, _ int) ([]models.ReservationWithProperty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ReservationWithProperty
	for _, r := range s.reservations {
		if r.CreatedBy == userID {
			out = append(out, models.ReservationWithProperty{Reservation: r, PropertyTitle: s.properties[r.PropertyID].Title})
		}
	}
	return out, nil
}

func (s *memStore) Create(_ context.Context, alert *models.BookingAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, *alert)
	return nil
}

func (s *memStore) ExistsForSession(_ context.Context, alertType models.BookingAlertType, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.AlertType == alertType && a.SessionID == sessionID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) ListUnresolved(_ context.Context, _, _ int) ([]models.BookingAlert, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var open []models.BookingAlert
	for _, a := range s.alerts {
		if !a.Resolved {
			open = append(open, a)
		}
	}
	return open, len(open), nil
}

func (s *memStore) Resolve(_ context.Context, id, operator uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID == id && !s.alerts[i].Resolved {
			now := time.Now()
			s.alerts[i].Resolved = true
			s.alerts[i].ResolvedAt = &now
			s.alerts[i].ResolvedBy = &operator
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) CountUnresolvedOlderThan(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

func (s *memStore) reservationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reservations)
}
