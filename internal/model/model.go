// Package model defines the core domain types for the registration and
// ticketing engine: events with a gated lifecycle, capacity-bounded
// registrations, and the tickets issued against them.
package model

import "time"

// EventStatus is the lifecycle state of an event. It governs which fields
// may be edited and whether registration is open.
type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventOngoing   EventStatus = "ongoing"
	EventCompleted EventStatus = "completed"
	EventClosed    EventStatus = "closed"
)

// EventType distinguishes ordinary events from merchandise sales.
type EventType string

const (
	EventNormal      EventType = "normal"
	EventMerchandise EventType = "merchandise"
)

// Eligibility restricts who may register.
type Eligibility string

const (
	EligibilityAll     Eligibility = "all"
	EligibilityIIIT    Eligibility = "iiit"
	EligibilityNonIIIT Eligibility = "non-iiit"
)

// RegistrationStatus is the state of a single registration.
type RegistrationStatus string

const (
	StatusRegistered RegistrationStatus = "registered"
	StatusCancelled  RegistrationStatus = "cancelled"
	StatusRejected   RegistrationStatus = "rejected"
	StatusAttended   RegistrationStatus = "attended"
)

// PaymentStatus tracks the approval sub-workflow for paid orders.
type PaymentStatus string

const (
	PaymentNotRequired PaymentStatus = "not_required"
	PaymentPending     PaymentStatus = "pending"
	PaymentApproved    PaymentStatus = "approved"
	PaymentRejected    PaymentStatus = "rejected"
)

// MerchVariant is one sellable variant of a merchandise event. Stock is a
// bounded counter owned by the capacity ledger; it never goes negative.
type MerchVariant struct {
	ID            string `json:"id"`
	Size          string `json:"size"`
	Color         string `json:"color"`
	Stock         int    `json:"stock"`
	PurchaseLimit int    `json:"purchase_limit"`
	Position      int    `json:"position"`
}

// FormFieldType enumerates the supported custom form field types.
type FormFieldType string

const (
	FieldText     FormFieldType = "text"
	FieldTextarea FormFieldType = "textarea"
	FieldDropdown FormFieldType = "dropdown"
	FieldCheckbox FormFieldType = "checkbox"
	FieldFile     FormFieldType = "file"
	FieldNumber   FormFieldType = "number"
	FieldEmail    FormFieldType = "email"
)

// FormField is one entry of an event's custom registration form.
type FormField struct {
	ID        string        `json:"id"`
	Label     string        `json:"label"`
	FieldType FormFieldType `json:"field_type"`
	Options   []string      `json:"options,omitempty"`
	Required  bool          `json:"required"`
	Order     int           `json:"order"`
}

// Event is the aggregate root. Variants and form fields are value objects
// owned by the event and mutated only through the gated update operation.
type Event struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	Description          string         `json:"description"`
	EventType            EventType      `json:"event_type"`
	Eligibility          Eligibility    `json:"eligibility"`
	RegistrationDeadline time.Time      `json:"registration_deadline"`
	StartDate            time.Time      `json:"start_date"`
	EndDate              time.Time      `json:"end_date"`
	RegistrationLimit    int            `json:"registration_limit"` // 0 = unlimited
	RegistrationFee      int            `json:"registration_fee"`
	OrganizerID          string         `json:"organizer_id"`
	Tags                 []string       `json:"tags"`
	Status               EventStatus    `json:"status"`
	CustomForm           []FormField    `json:"custom_form,omitempty"`
	MerchItems           []MerchVariant `json:"merch_items,omitempty"`
	RegistrationCount    int            `json:"registration_count"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// Variant returns the merch variant with the given id, or nil.
func (e *Event) Variant(variantID string) *MerchVariant {
	for i := range e.MerchItems {
		if e.MerchItems[i].ID == variantID {
			return &e.MerchItems[i]
		}
	}
	return nil
}

// RegistrationOpen reports whether the lifecycle state admits registrations.
// The deadline is checked separately by the admission pipeline.
func (e *Event) RegistrationOpen() bool {
	return e.Status == EventPublished || e.Status == EventOngoing
}

// Remaining returns available seats, or -1 when the event is unlimited.
func (e *Event) Remaining() int {
	if e.RegistrationLimit == 0 {
		return -1
	}
	return e.RegistrationLimit - e.RegistrationCount
}

// MerchSelection records the variant a merchandise order is placed against.
type MerchSelection struct {
	VariantID string `json:"variant_id"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
}

// Registration links one user to one event. At most one non-rejected
// registration exists per (event, user) pair, enforced by storage.
type Registration struct {
	ID              string             `json:"id"`
	EventID         string             `json:"event_id"`
	UserID          string             `json:"user_id"`
	UserName        string             `json:"user_name"`
	UserEmail       string             `json:"user_email"`
	ParticipantType string             `json:"participant_type"`
	Status          RegistrationStatus `json:"status"`
	PaymentStatus   PaymentStatus      `json:"payment_status"`
	FormResponses   map[string]any     `json:"form_responses,omitempty"`
	Merch           *MerchSelection    `json:"merch_selection,omitempty"`
	ReviewedBy      string             `json:"payment_reviewed_by,omitempty"`
	ReviewedAt      *time.Time         `json:"payment_reviewed_at,omitempty"`
	PaymentNote     string             `json:"payment_note,omitempty"`
	TicketID        string             `json:"ticket_id,omitempty"`
	AttendedAt      *time.Time         `json:"attended_at,omitempty"`
	RegisteredAt    time.Time          `json:"registered_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// Admitted reports whether the registration currently holds a seat.
func (r *Registration) Admitted() bool {
	return r.Status == StatusRegistered || r.Status == StatusAttended
}

// Ticket is issued exactly once per admitted registration. TicketID is the
// human-presentable identifier embedded in the QR code and typed at gates;
// ID is the internal record identifier.
type Ticket struct {
	ID             string    `json:"id"`
	TicketID       string    `json:"ticket_id"`
	RegistrationID string    `json:"registration_id"`
	EventID        string    `json:"event_id"`
	UserID         string    `json:"user_id"`
	QRCode         string    `json:"qr_code"` // base64 PNG data URL
	CreatedAt      time.Time `json:"created_at"`
}

// QRPayload is the JSON document embedded in a ticket's QR code.
type QRPayload struct {
	TicketID    string `json:"ticketId"`
	EventID     string `json:"eventId"`
	UserID      string `json:"userId"`
	EventName   string `json:"eventName"`
	Participant string `json:"participant"`
}

// ScanOutcome classifies the result of a gate scan.
type ScanOutcome string

const (
	ScanSuccess       ScanOutcome = "success"
	ScanInvalidTicket ScanOutcome = "invalid_ticket"
	ScanDuplicate     ScanOutcome = "duplicate_scan"
	ScanNotAdmitted   ScanOutcome = "not_admitted"
)

// ScanResult is returned by the check-in service. For duplicates it carries
// the original check-in time so staff can explain the earlier scan.
type ScanResult struct {
	Outcome         ScanOutcome `json:"outcome"`
	TicketID        string      `json:"ticket_id"`
	ParticipantName string      `json:"participant_name,omitempty"`
	ParticipantMail string      `json:"participant_email,omitempty"`
	AttendedAt      *time.Time  `json:"attended_at,omitempty"`
}

// Principal is the authenticated caller, established by an upstream auth
// layer the core trusts.
type Principal struct {
	UserID          string
	Role            string // "participant" or "organizer"
	ParticipantType string // "iiit" or "non-iiit"
	Name            string
	Email           string
}
