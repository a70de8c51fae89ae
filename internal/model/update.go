package model

import "time"

// EventUpdate is the set of fields an organizer wants to change. Nil fields
// are untouched. Which fields may be applied depends on the event's
// lifecycle state; any disallowed field fails the whole update.
type EventUpdate struct {
	Name                 *string         `json:"name,omitempty"`
	Description          *string         `json:"description,omitempty"`
	EventType            *EventType      `json:"event_type,omitempty"`
	Eligibility          *Eligibility    `json:"eligibility,omitempty"`
	RegistrationDeadline *time.Time      `json:"registration_deadline,omitempty"`
	StartDate            *time.Time      `json:"start_date,omitempty"`
	EndDate              *time.Time      `json:"end_date,omitempty"`
	RegistrationLimit    *int            `json:"registration_limit,omitempty"`
	RegistrationFee      *int            `json:"registration_fee,omitempty"`
	Tags                 *[]string       `json:"tags,omitempty"`
	Status               *EventStatus    `json:"status,omitempty"`
	CustomForm           *[]FormField    `json:"custom_form,omitempty"`
	MerchItems           *[]MerchVariant `json:"merch_items,omitempty"`
}

// Fields returns the names of the fields present in the update, in a
// stable order, so permission failures can name the offender.
func (u *EventUpdate) Fields() []string {
	var fields []string
	add := func(name string, set bool) {
		if set {
			fields = append(fields, name)
		}
	}
	add("name", u.Name != nil)
	add("description", u.Description != nil)
	add("event_type", u.EventType != nil)
	add("eligibility", u.Eligibility != nil)
	add("registration_deadline", u.RegistrationDeadline != nil)
	add("start_date", u.StartDate != nil)
	add("end_date", u.EndDate != nil)
	add("registration_limit", u.RegistrationLimit != nil)
	add("registration_fee", u.RegistrationFee != nil)
	add("tags", u.Tags != nil)
	add("status", u.Status != nil)
	add("custom_form", u.CustomForm != nil)
	add("merch_items", u.MerchItems != nil)
	return fields
}

// editableFields enumerates, per lifecycle state, which fields an update
// may carry. Draft events are freely editable; published events allow a
// restricted set with extra value rules; ongoing and completed events
// accept status changes only; closed events accept nothing.
var editableFields = map[EventStatus]map[string]bool{
	EventDraft: {
		"name": true, "description": true, "event_type": true,
		"eligibility": true, "registration_deadline": true,
		"start_date": true, "end_date": true, "registration_limit": true,
		"registration_fee": true, "tags": true, "status": true,
		"custom_form": true, "merch_items": true,
	},
	EventPublished: {
		"description": true, "registration_deadline": true,
		"registration_limit": true, "status": true,
	},
	EventOngoing:   {"status": true},
	EventCompleted: {"status": true},
	EventClosed:    {},
}

// statusTransitions is the lifecycle graph. closed is terminal;
// completed allows no further transition.
var statusTransitions = map[EventStatus][]EventStatus{
	EventDraft:     {EventPublished},
	EventPublished: {EventOngoing, EventClosed},
	EventOngoing:   {EventCompleted, EventClosed},
	EventCompleted: {},
	EventClosed:    {},
}

func validTransition(from, to EventStatus) bool {
	if from == to {
		return true
	}
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ApplyUpdate validates the update against the event's lifecycle state and
// applies it in place. It is all-or-nothing: the first violation aborts
// with no fields applied (the caller passes a copy or discards on error).
func (e *Event) ApplyUpdate(u EventUpdate) error {
	if e.Status == EventClosed {
		return ErrEventClosed
	}

	allowed := editableFields[e.Status]
	for _, field := range u.Fields() {
		if !allowed[field] {
			return NewFieldError(field, "not editable while event is "+string(e.Status))
		}
	}

	if u.RegistrationDeadline != nil && e.Status == EventPublished {
		if !u.RegistrationDeadline.After(e.RegistrationDeadline) {
			return NewFieldError("registration_deadline", "may only be extended once published")
		}
	}
	if u.RegistrationLimit != nil && e.Status == EventPublished {
		newLimit := *u.RegistrationLimit
		switch {
		case newLimit == 0:
			// lifting the cap entirely is always an increase
		case e.RegistrationLimit == 0:
			return NewFieldError("registration_limit", "cannot cap an unlimited event once published")
		case newLimit < e.RegistrationLimit:
			return NewFieldError("registration_limit", "may not be lowered once published")
		case newLimit < e.RegistrationCount:
			return NewFieldError("registration_limit", "may not be lowered below the admitted count")
		}
	}
	if u.Status != nil && !validTransition(e.Status, *u.Status) {
		return NewFieldError("status", "cannot transition from "+string(e.Status)+" to "+string(*u.Status))
	}
	if u.RegistrationLimit != nil && *u.RegistrationLimit < 0 {
		return NewFieldError("registration_limit", "must not be negative")
	}
	if u.MerchItems != nil {
		for _, v := range *u.MerchItems {
			if v.Stock < 0 {
				return NewFieldError("merch_items", "variant stock must not be negative")
			}
			if v.PurchaseLimit < 1 {
				return NewFieldError("merch_items", "variant purchase limit must be at least 1")
			}
		}
	}

	start, end := e.StartDate, e.EndDate
	if u.StartDate != nil {
		start = *u.StartDate
	}
	if u.EndDate != nil {
		end = *u.EndDate
	}
	if end.Before(start) {
		return NewFieldError("end_date", "must not be before start date")
	}

	if u.Name != nil {
		e.Name = *u.Name
	}
	if u.Description != nil {
		e.Description = *u.Description
	}
	if u.EventType != nil {
		e.EventType = *u.EventType
	}
	if u.Eligibility != nil {
		e.Eligibility = *u.Eligibility
	}
	if u.RegistrationDeadline != nil {
		e.RegistrationDeadline = *u.RegistrationDeadline
	}
	if u.StartDate != nil {
		e.StartDate = *u.StartDate
	}
	if u.EndDate != nil {
		e.EndDate = *u.EndDate
	}
	if u.RegistrationLimit != nil {
		e.RegistrationLimit = *u.RegistrationLimit
	}
	if u.RegistrationFee != nil {
		e.RegistrationFee = *u.RegistrationFee
	}
	if u.Tags != nil {
		e.Tags = *u.Tags
	}
	if u.Status != nil {
		e.Status = *u.Status
	}
	if u.CustomForm != nil {
		e.CustomForm = *u.CustomForm
	}
	if u.MerchItems != nil {
		e.MerchItems = *u.MerchItems
	}
	return nil
}
