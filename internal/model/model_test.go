package model

import (
	"errors"
	"testing"
	"time"
)

func TestRemaining(t *testing.T) {
	unlimited := &Event{RegistrationLimit: 0, RegistrationCount: 42}
	if got := unlimited.Remaining(); got != -1 {
		t.Errorf("unlimited Remaining() = %d, want -1", got)
	}
	bounded := &Event{RegistrationLimit: 50, RegistrationCount: 42}
	if got := bounded.Remaining(); got != 8 {
		t.Errorf("Remaining() = %d, want 8", got)
	}
}

func TestRegistrationOpen(t *testing.T) {
	open := map[EventStatus]bool{
		EventDraft:     false,
		EventPublished: true,
		EventOngoing:   true,
		EventCompleted: false,
		EventClosed:    false,
	}
	for status, want := range open {
		e := &Event{Status: status}
		if got := e.RegistrationOpen(); got != want {
			t.Errorf("RegistrationOpen() in %s = %v, want %v", status, got, want)
		}
	}
}

func TestVariantLookup(t *testing.T) {
	e := &Event{MerchItems: []MerchVariant{{ID: "v1", Size: "M"}, {ID: "v2", Size: "L"}}}
	if v := e.Variant("v2"); v == nil || v.Size != "L" {
		t.Errorf("Variant(v2) = %+v", v)
	}
	if v := e.Variant("nope"); v != nil {
		t.Errorf("Variant(nope) = %+v, want nil", v)
	}
}

func TestAdmitted(t *testing.T) {
	admitted := map[RegistrationStatus]bool{
		StatusRegistered: true,
		StatusAttended:   true,
		StatusCancelled:  false,
		StatusRejected:   false,
	}
	for status, want := range admitted {
		r := &Registration{Status: status}
		if got := r.Admitted(); got != want {
			t.Errorf("Admitted() in %s = %v, want %v", status, got, want)
		}
	}
}

func TestIsBusinessRejection(t *testing.T) {
	for _, err := range []error{
		ErrCapacityFull, ErrOutOfStock, ErrAlreadyRegistered,
		NewFieldError("name", "is required"),
	} {
		if !IsBusinessRejection(err) {
			t.Errorf("IsBusinessRejection(%v) = false, want true", err)
		}
	}
	if IsBusinessRejection(errors.New("connection refused")) {
		t.Error("infrastructure faults must not classify as rejections")
	}
	if IsBusinessRejection(ErrNotFound) {
		t.Error("not-found is not a business rejection")
	}
}

func TestApplyUpdateIsAllOrNothing(t *testing.T) {
	deadline := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	e := &Event{
		Name:                 "Robowars",
		Status:               EventPublished,
		RegistrationDeadline: deadline,
	}

	name := "Renamed"
	later := deadline.Add(24 * time.Hour)
	err := e.ApplyUpdate(EventUpdate{
		Name:                 &name, // not editable while published
		RegistrationDeadline: &later,
	})
	if err == nil {
		t.Fatal("expected rejection")
	}
	if e.Name != "Robowars" || !e.RegistrationDeadline.Equal(deadline) {
		t.Error("rejected update applied some fields")
	}
}

func TestApplyUpdateFieldsOrder(t *testing.T) {
	name := "x"
	limit := 5
	u := EventUpdate{Name: &name, RegistrationLimit: &limit}
	fields := u.Fields()
	if len(fields) != 2 || fields[0] != "name" || fields[1] != "registration_limit" {
		t.Errorf("Fields() = %v", fields)
	}
}
