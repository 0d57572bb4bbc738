package services

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
)

const testQueryTimeout = time.Second

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fakeProcessor stands in for Stripe. Webhook payloads are
// {"id": ..., "type": ..., "session_id": ...} and only the signature
// "good_sig" verifies.
type fakeProcessor struct {
	mu       sync.Mutex
	sessions map[string]*ProcessorSession
	created  []*CreateSessionParams
	getCalls int
	getErr   error
	createFn func(*CreateSessionParams) (*ProcessorSession, error)
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{sessions: map[string]*ProcessorSession{}}
}

func (p *fakeProcessor) CreateSession(_ context.Context, params *CreateSessionParams) (*ProcessorSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, params)
	if p.createFn != nil {
		return p.createFn(params)
	}
	id := fmt.Sprintf("cs_test_%d", len(p.created))
	session := &ProcessorSession{
		ID:            id,
		URL:           "https://checkout.stripe.test/" + id,
		PaymentStatus: "unpaid",
		Currency:      "usd",
		Metadata:      params.Metadata,
	}
	p.sessions[id] = session
	return session, nil
}

func (p *fakeProcessor) GetSession(_ context.Context, sessionID string) (*ProcessorSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.getCalls++
	if p.getErr != nil {
		return nil, p.getErr
	}
	session, ok := p.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	copied := *session
	return &copied, nil
}

func (p *fakeProcessor) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if signature != "good_sig" {
		return nil, fmt.Errorf("%w: signature mismatch", ErrInvalidSignature)
	}
	var body struct {
		ID        string `json:"id"`
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	event := &WebhookEvent{ID: body.ID, Type: body.Type}
	if body.Type == EventCheckoutSessionCompleted {
		session, err := p.GetSession(context.Background(), body.SessionID)
		if err != nil {
			return nil, err
		}
		event.Session = session
	}
	return event, nil
}

// paySession registers a paid session for property/dates as Stripe would after checkout
func (p *fakeProcessor) paySession(id string, propertyID uuid.UUID, start, end time.Time, guests int, payer uuid.UUID, amount int64) {
	intent := &models.CheckoutIntent{
		PropertyID:     propertyID,
		StartDate:      start,
		EndDate:        end,
		NumberOfNights: models.NightsBetween(start, end),
		Guests:         guests,
		TotalPrice:     amount,
		CreatedBy:      payer,
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[id] = &ProcessorSession{
		ID:            id,
		PaymentStatus: "paid",
		AmountTotal:   amount * 100,
		Currency:      "usd",
		Metadata:      intent.ToMetadata(),
		CustomerEmail: "guest@example.com",
		CustomerName:  "Test Guest",
	}
}

func webhookPayload(sessionID string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_%s","type":"checkout.session.completed","session_id":"%s"}`, sessionID, sessionID))
}

type fakeProperties struct {
	mu         sync.Mutex
	properties map[uuid.UUID]*models.Property
	favorites  map[uuid.UUID]map[uuid.UUID]bool
	searchHits int
	count      int
	countErr   error
}

func newFakeProperties(properties ...*models.Property) *fakeProperties {
	f := &fakeProperties{
		properties: map[uuid.UUID]*models.Property{},
		favorites:  map[uuid.UUID]map[uuid.UUID]bool{},
	}
	for _, p := range properties {
		f.properties[p.ID] = p
	}
	f.count = len(properties)
	return f
}

func (f *fakeProperties) GetByID(_ context.Context, id uuid.UUID) (*models.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.properties[id]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (f *fakeProperties) Search(_ context.Context, _ models.ListingFilter, _ *uuid.UUID) ([]models.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchHits++
	out := make([]models.Property, 0, len(f.properties))
	for _, p := range f.properties {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeProperties) Count(_ context.Context, _ models.ListingFilter, _ *uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, f.countErr
}

func (f *fakeProperties) FavoriteIDs(_ context.Context, userID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []uuid.UUID{}
	for _, id := range ids {
		if f.favorites[userID][id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeProperties) ToggleFavorite(_ context.Context, propertyID, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.favorites[userID] == nil {
		f.favorites[userID] = map[uuid.UUID]bool{}
	}
	f.favorites[userID][propertyID] = !f.favorites[userID][propertyID]
	return f.favorites[userID][propertyID], nil
}

// memReservations is an in-memory reservation store with the same
// insert-if-absent and overlap semantics as the Postgres repository
type memReservations struct {
	mu           sync.Mutex
	reservations []models.Reservation
	outbox       []models.OutboxMessage
	alerts       []models.BookingAlert
	failWith     error
}

func (m *memReservations) addPaid(propertyID uuid.UUID, start, end time.Time, sessionID string) models.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := models.Reservation{
		ID:               uuid.New(),
		PropertyID:       propertyID,
		StartDate:        start,
		EndDate:          end,
		NumberOfNights:   models.NightsBetween(start, end),
		StripeCheckoutID: &sessionID,
		HasPaid:          true,
		CreatedAt:        time.Now(),
	}
	m.reservations = append(m.reservations, res)
	return res
}

func (m *memReservations) HasPaidOverlap(_ context.Context, propertyID uuid.UUID, start, end time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return false, m.failWith
	}
	for i := range m.reservations {
		r := &m.reservations[i]
		if r.PropertyID == propertyID && r.HasPaid && r.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memReservations) BlockedPropertyIDs(ctx context.Context, ids []uuid.UUID, start, end time.Time) ([]uuid.UUID, error) {
	var blocked []uuid.UUID
	for _, id := range ids {
		overlap, err := m.HasPaidOverlap(ctx, id, start, end)
		if err != nil {
			return nil, err
		}
		if overlap {
			blocked = append(blocked, id)
		}
	}
	return blocked, nil
}

func (m *memReservations) Materialize(_ context.Context, res *models.Reservation, outbox *models.OutboxMessage) (*database.MaterializeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}

	for i := range m.reservations {
		if m.reservations[i].SessionID() == res.SessionID() {
			existing := m.reservations[i]
			return &database.MaterializeResult{Reservation: &existing}, nil
		}
	}

	var conflicting []uuid.UUID
	for i := range m.reservations {
		r := &m.reservations[i]
		if r.PropertyID == res.PropertyID && r.HasPaid && r.Overlaps(res.StartDate, res.EndDate) {
			conflicting = append(conflicting, r.ID)
		}
	}

	inserted := *res
	inserted.ConflictFlagged = len(conflicting) > 0
	m.reservations = append(m.reservations, inserted)
	if outbox != nil {
		outbox.AggregateID = inserted.ID
		m.outbox = append(m.outbox, *outbox)
	}
	if len(conflicting) > 0 {
		m.alerts = append(m.alerts, *models.NewConflictAlert(&models.BookingConflict{
			ReservationID:  inserted.ID,
			PropertyID:     inserted.PropertyID,
			SessionID:      inserted.SessionID(),
			ConflictingIDs: conflicting,
		}))
	}

	return &database.MaterializeResult{Reservation: &inserted, Created: true, ConflictingIDs: conflicting}, nil
}

func (m *memReservations) ListPaidForProperty(_ context.Context, propertyID uuid.UUID) ([]models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Reservation
	for _, r := range m.reservations {
		if r.PropertyID == propertyID && r.HasPaid {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memReservations) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]models.ReservationWithProperty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ReservationWithProperty
	for _, r := range m.reservations {
		if r.CreatedBy == userID {
			out = append(out, models.ReservationWithProperty{Reservation: r, PropertyTitle: "Cabin"})
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memReservations) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reservations)
}

type fakeAlerts struct {
	mu     sync.Mutex
	alerts []models.BookingAlert
}

func (f *fakeAlerts) Create(_ context.Context, alert *models.BookingAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, *alert)
	return nil
}

func (f *fakeAlerts) ExistsForSession(_ context.Context, alertType models.BookingAlertType, sessionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.alerts {
		if a.AlertType == alertType && a.SessionID == sessionID {
			return true, nil
		}
	}
	return false, nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []models.PaymentAudit
}

func (m *memAudit) Log(_ context.Context, audit *models.PaymentAudit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *audit)
	return nil
}

func (m *memAudit) eventTypes() []models.PaymentEventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]models.PaymentEventType, 0, len(m.entries))
	for _, e := range m.entries {
		types = append(types, e.EventType)
	}
	return types
}

func testProperty() *models.Property {
	return &models.Property{
		ID:            uuid.New(),
		Title:         "Fjord Cabin",
		PricePerNight: 100,
		Guests:        4,
		Country:       "Norway",
		Category:      "cabins",
		LandlordID:    uuid.New(),
	}
}
