package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/felicity-events/registration-core/internal/clock"
	"github.com/felicity-events/registration-core/internal/model"
	"github.com/felicity-events/registration-core/internal/notify"
	"github.com/felicity-events/registration-core/internal/repository"
	"github.com/google/uuid"
)

// EventStore is the persistence the event lifecycle needs.
type EventStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Create(ctx context.Context, e *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	GetOwned(ctx context.Context, id, organizerID string) (*model.Event, error)
	GetOwnedForUpdate(ctx context.Context, id, organizerID string) (*model.Event, error)
	Update(ctx context.Context, e *model.Event) error
	ListPublished(ctx context.Context, f repository.BrowseFilter) ([]model.Event, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]model.Event, error)
}

// EventService owns the event lifecycle: creation in draft, state-gated
// edits, and the published announcement side effect.
type EventService struct {
	store      EventStore
	notifier   notify.Notifier
	clock      clock.Clock
	webhookURL string
}

// NewEventService constructs an EventService. webhookURL may be empty to
// disable publish announcements.
func NewEventService(store EventStore, notifier notify.Notifier, clk clock.Clock, webhookURL string) *EventService {
	return &EventService{store: store, notifier: notifier, clock: clk, webhookURL: webhookURL}
}

// CreateEvent validates the input and creates the event in draft state.
func (s *EventService) CreateEvent(ctx context.Context, organizerID string, e *model.Event) (*model.Event, error) {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return nil, model.NewFieldError("name", "is required")
	}
	if e.EventType != model.EventNormal && e.EventType != model.EventMerchandise {
		return nil, model.NewFieldError("event_type", "must be normal or merchandise")
	}
	if e.Eligibility == "" {
		e.Eligibility = model.EligibilityAll
	}
	if e.RegistrationDeadline.IsZero() || e.StartDate.IsZero() || e.EndDate.IsZero() {
		return nil, model.NewFieldError("registration_deadline", "deadline, start and end dates are required")
	}
	if e.EndDate.Before(e.StartDate) {
		return nil, model.NewFieldError("end_date", "must not be before start date")
	}
	if e.RegistrationLimit < 0 {
		return nil, model.NewFieldError("registration_limit", "must not be negative")
	}
	for i := range e.MerchItems {
		v := &e.MerchItems[i]
		if v.Stock < 0 {
			return nil, model.NewFieldError("merch_items", "variant stock must not be negative")
		}
		if v.PurchaseLimit < 1 {
			return nil, model.NewFieldError("merch_items", "variant purchase limit must be at least 1")
		}
		if v.ID == "" {
			v.ID = uuid.NewString()
		}
		v.Position = i
	}
	for i := range e.CustomForm {
		if e.CustomForm[i].ID == "" {
			e.CustomForm[i].ID = uuid.NewString()
		}
	}

	// Variants belong to merchandise events, forms to normal ones.
	if e.EventType == model.EventNormal {
		e.MerchItems = nil
	} else {
		e.CustomForm = nil
	}

	now := s.clock.Now()
	e.ID = uuid.NewString()
	e.OrganizerID = organizerID
	e.Status = model.EventDraft
	e.RegistrationCount = 0
	e.CreatedAt = now
	e.UpdatedAt = now

	if err := s.store.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return e, nil
}

// UpdateEvent applies a state-gated update on behalf of the owning
// organizer. The update is atomic: any disallowed or invalid field rejects
// the whole request with no fields applied. A transition into published
// fires the announcement webhook after commit, fire-and-forget.
func (s *EventService) UpdateEvent(ctx context.Context, eventID, organizerID string, u model.EventUpdate) (*model.Event, error) {
	var updated *model.Event
	var justPublished bool

	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		e, err := s.store.GetOwnedForUpdate(ctx, eventID, organizerID)
		if err != nil {
			return err
		}

		before := e.Status
		if err := e.ApplyUpdate(u); err != nil {
			return err
		}
		e.UpdatedAt = s.clock.Now()

		if err := s.store.Update(ctx, e); err != nil {
			return err
		}
		justPublished = before != model.EventPublished && e.Status == model.EventPublished
		updated = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	if justPublished {
		s.notifier.PostWebhook(s.webhookURL, map[string]string{
			"content": fmt.Sprintf(
				"New event published: **%s**\nType: %s\nDate: %s\nRegister before: %s",
				updated.Name, updated.EventType,
				updated.StartDate.Format("02 Jan 2006"),
				updated.RegistrationDeadline.Format("02 Jan 2006"),
			),
		})
	}
	return updated, nil
}

// GetEvent returns one event for the public detail view.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	return s.store.GetByID(ctx, id)
}

// GetOwnedEvent returns an event only to its owning organizer.
func (s *EventService) GetOwnedEvent(ctx context.Context, id, organizerID string) (*model.Event, error) {
	return s.store.GetOwned(ctx, id, organizerID)
}

// BrowseEvents lists events open to participants.
func (s *EventService) BrowseEvents(ctx context.Context, f repository.BrowseFilter) ([]model.Event, error) {
	return s.store.ListPublished(ctx, f)
}

// ListMyEvents lists an organizer's own events, any state.
func (s *EventService) ListMyEvents(ctx context.Context, organizerID string) ([]model.Event, error) {
	return s.store.ListByOrganizer(ctx, organizerID)
}
