package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/felicity-events/registration-core/internal/ledger"
	"github.com/felicity-events/registration-core/internal/model"
	"github.com/felicity-events/registration-core/internal/repository"
	"github.com/google/uuid"
)

// memLedger is a mutex-guarded in-memory capacity ledger. Seat keys treat
// a zero bound as unlimited, matching the SQL implementation.
type memLedger struct {
	mu     sync.Mutex
	bounds map[ledger.Key]int
	used   map[ledger.Key]int
}

func newMemLedger() *memLedger {
	return &memLedger{
		bounds: make(map[ledger.Key]int),
		used:   make(map[ledger.Key]int),
	}
}

func (l *memLedger) setBound(key ledger.Key, bound int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bounds[key] = bound
}

func (l *memLedger) usedFor(key ledger.Key) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.used[key]
}

func (l *memLedger) Reserve(_ context.Context, key ledger.Key, amount int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	bound, ok := l.bounds[key]
	if !ok {
		return ledger.ErrUnknownKey
	}
	unlimited := key.VariantID == "" && bound == 0
	if !unlimited && l.used[key]+amount > bound {
		return ledger.ErrDenied
	}
	l.used[key] += amount
	return nil
}

func (l *memLedger) Release(_ context.Context, key ledger.Key, amount int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.bounds[key]; !ok {
		return ledger.ErrUnknownKey
	}
	l.used[key] -= amount
	if l.used[key] < 0 {
		l.used[key] = 0
	}
	return nil
}

// fakeRegStore implements RegistrationStore, PaymentStore and CheckInStore
// against a mutex-guarded map. Create enforces the one-live-registration-
// per-user rule under the lock, like the partial unique index does.
type fakeRegStore struct {
	mu   sync.Mutex
	regs map[string]*model.Registration
}

func newFakeRegStore() *fakeRegStore {
	return &fakeRegStore{regs: make(map[string]*model.Registration)}
}

func (s *fakeRegStore) put(reg *model.Registration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *reg
	s.regs[reg.ID] = &cp
}

func (s *fakeRegStore) get(id string) *model.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reg, ok := s.regs[id]; ok {
		cp := *reg
		return &cp
	}
	return nil
}

func (s *fakeRegStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *fakeRegStore) Create(_ context.Context, reg *model.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.regs {
		if existing.EventID == reg.EventID && existing.UserID == reg.UserID &&
			existing.Status != model.StatusRejected {
			return model.ErrAlreadyRegistered
		}
	}
	cp := *reg
	s.regs[reg.ID] = &cp
	return nil
}

func (s *fakeRegStore) FindByEventAndUser(_ context.Context, eventID, userID string) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, reg := range s.regs {
		if reg.EventID == eventID && reg.UserID == userID && reg.Status != model.StatusRejected {
			cp := *reg
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeRegStore) GetByID(_ context.Context, id string) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.regs[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *reg
	return &cp, nil
}

func (s *fakeRegStore) GetByIDForUpdate(ctx context.Context, id string) (*model.Registration, error) {
	return s.GetByID(ctx, id)
}

func (s *fakeRegStore) FindByTicket(_ context.Context, eventID, ticketID string) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, reg := range s.regs {
		if reg.EventID == eventID && reg.TicketID == ticketID {
			cp := *reg
			return &cp, nil
		}
	}
	return nil, model.ErrNotFound
}

func (s *fakeRegStore) SetTicketID(_ context.Context, id, ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.regs[id]
	if !ok {
		return model.ErrNotFound
	}
	reg.TicketID = ticketID
	return nil
}

func (s *fakeRegStore) SetStatus(_ context.Context, id string, status model.RegistrationStatus, attendedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.regs[id]
	if !ok {
		return model.ErrNotFound
	}
	reg.Status = status
	reg.AttendedAt = attendedAt
	return nil
}

func (s *fakeRegStore) MarkAttended(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.regs[id]
	if !ok {
		return false, model.ErrNotFound
	}
	if reg.Status != model.StatusRegistered {
		return false, nil
	}
	reg.Status = model.StatusAttended
	reg.AttendedAt = &at
	return true, nil
}

func (s *fakeRegStore) RecordPaymentReview(_ context.Context, reg *model.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.regs[reg.ID]
	if !ok {
		return model.ErrNotFound
	}
	stored.Status = reg.Status
	stored.PaymentStatus = reg.PaymentStatus
	stored.ReviewedBy = reg.ReviewedBy
	stored.ReviewedAt = reg.ReviewedAt
	stored.PaymentNote = reg.PaymentNote
	return nil
}

func (s *fakeRegStore) ListByEvent(_ context.Context, eventID string) ([]model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Registration
	for _, reg := range s.regs {
		if reg.EventID == eventID {
			out = append(out, *reg)
		}
	}
	return out, nil
}

func (s *fakeRegStore) ListByUser(_ context.Context, userID string) ([]model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Registration
	for _, reg := range s.regs {
		if reg.UserID == userID {
			out = append(out, *reg)
		}
	}
	return out, nil
}

func (s *fakeRegStore) ListPayments(_ context.Context, eventID string) ([]model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Registration
	for _, reg := range s.regs {
		if reg.EventID == eventID && reg.PaymentStatus != model.PaymentNotRequired {
			out = append(out, *reg)
		}
	}
	return out, nil
}

// fakeEventStore implements EventStore and EventGetter.
type fakeEventStore struct {
	mu     sync.Mutex
	events map[string]*model.Event
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{events: make(map[string]*model.Event)}
}

func (s *fakeEventStore) put(e *model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.events[e.ID] = &cp
}

func (s *fakeEventStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *fakeEventStore) Create(_ context.Context, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.events[e.ID] = &cp
	return nil
}

func (s *fakeEventStore) GetByID(_ context.Context, id string) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *fakeEventStore) GetOwned(ctx context.Context, id, organizerID string) (*model.Event, error) {
	e, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.OrganizerID != organizerID {
		return nil, model.ErrNotFound
	}
	return e, nil
}

func (s *fakeEventStore) GetOwnedForUpdate(ctx context.Context, id, organizerID string) (*model.Event, error) {
	return s.GetOwned(ctx, id, organizerID)
}

func (s *fakeEventStore) Update(_ context.Context, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; !ok {
		return model.ErrNotFound
	}
	cp := *e
	s.events[e.ID] = &cp
	return nil
}

func (s *fakeEventStore) ListPublished(_ context.Context, f repository.BrowseFilter) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Event
	for _, e := range s.events {
		if e.Status != model.EventPublished && e.Status != model.EventOngoing {
			continue
		}
		if f.EventType != "" && e.EventType != f.EventType {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(e.Name), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (s *fakeEventStore) ListByOrganizer(_ context.Context, organizerID string) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Event
	for _, e := range s.events {
		if e.OrganizerID == organizerID {
			out = append(out, *e)
		}
	}
	return out, nil
}

// fakeIssuer implements TicketIssuer, handing out sequential ticket ids.
type fakeIssuer struct {
	mu     sync.Mutex
	calls  int
	err    error
	issued []string
}

func (f *fakeIssuer) Issue(_ context.Context, registrationID, eventID, userID, eventName, participantName string) (*model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls++
	ticketID := NewTicketID()
	f.issued = append(f.issued, ticketID)
	return &model.Ticket{
		ID:             uuid.NewString(),
		TicketID:       ticketID,
		RegistrationID: registrationID,
		EventID:        eventID,
		UserID:         userID,
		QRCode:         "data:image/png;base64,dGVzdA==",
	}, nil
}

func (f *fakeIssuer) issueCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeNotifier records outbound notifications synchronously.
type fakeNotifier struct {
	mu       sync.Mutex
	emails   []string // "recipient|subject"
	webhooks []string
}

func (f *fakeNotifier) Notify(email, subject, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emails = append(f.emails, email+"|"+subject)
}

func (f *fakeNotifier) PostWebhook(url string, _ any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.webhooks = append(f.webhooks, url)
}

func (f *fakeNotifier) emailCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.emails)
}

func (f *fakeNotifier) webhookCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.webhooks)
}

// fakeTicketStore implements TicketStore with injectable id collisions.
type fakeTicketStore struct {
	mu         sync.Mutex
	byTicketID map[string]*model.Ticket
	byRegID    map[string]*model.Ticket
	collisions int // fail this many Creates with ErrTicketIDCollision first
}

func newFakeTicketStore() *fakeTicketStore {
	return &fakeTicketStore{
		byTicketID: make(map[string]*model.Ticket),
		byRegID:    make(map[string]*model.Ticket),
	}
}

func (s *fakeTicketStore) Create(_ context.Context, t *model.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collisions > 0 {
		s.collisions--
		return repository.ErrTicketIDCollision
	}
	if _, ok := s.byRegID[t.RegistrationID]; ok {
		return model.ErrAlreadyIssued
	}
	if _, ok := s.byTicketID[t.TicketID]; ok {
		return repository.ErrTicketIDCollision
	}
	cp := *t
	s.byTicketID[t.TicketID] = &cp
	s.byRegID[t.RegistrationID] = &cp
	return nil
}

func (s *fakeTicketStore) GetByTicketID(_ context.Context, ticketID string) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byTicketID[ticketID]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *fakeTicketStore) ListByUser(_ context.Context, userID string) ([]model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Ticket
	for _, t := range s.byTicketID {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}
