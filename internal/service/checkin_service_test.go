package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/felicity-events/registration-core/internal/clock"
	"github.com/felicity-events/registration-core/internal/model"
)

func newCheckInFixture() (*CheckInService, *fakeRegStore) {
	regs := newFakeRegStore()
	return NewCheckInService(regs, clock.NewFixed(testNow)), regs
}

func admittedReg(id, eventID, ticketID string) *model.Registration {
	return &model.Registration{
		ID:        id,
		EventID:   eventID,
		UserID:    "u-" + id,
		UserName:  "Asha",
		UserEmail: "asha@example.com",
		Status:    model.StatusRegistered,
		TicketID:  ticketID,
	}
}

func TestScanSuccess(t *testing.T) {
	svc, regs := newCheckInFixture()
	regs.put(admittedReg("reg-1", "ev-1", "TKT-AAAA1111"))

	result, err := svc.Scan(context.Background(), "ev-1", "TKT-AAAA1111")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if result.Outcome != model.ScanSuccess {
		t.Fatalf("outcome = %s, want success", result.Outcome)
	}
	if result.AttendedAt == nil || !result.AttendedAt.Equal(testNow) {
		t.Errorf("attended at = %v, want %v", result.AttendedAt, testNow)
	}
	stored := regs.get("reg-1")
	if stored.Status != model.StatusAttended {
		t.Errorf("stored status = %s, want attended", stored.Status)
	}
}

func TestScanUnknownTicket(t *testing.T) {
	svc, regs := newCheckInFixture()
	regs.put(admittedReg("reg-1", "ev-1", "TKT-AAAA1111"))

	tests := []struct {
		name     string
		eventID  string
		ticketID string
	}{
		{"nonexistent ticket", "ev-1", "TKT-NOPE0000"},
		{"ticket for another event", "ev-2", "TKT-AAAA1111"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.Scan(context.Background(), tt.eventID, tt.ticketID)
			if err != nil {
				t.Fatalf("Scan: %v", err)
			}
			if result.Outcome != model.ScanInvalidTicket {
				t.Errorf("outcome = %s, want invalid_ticket", result.Outcome)
			}
		})
	}
}

func TestScanDuplicateReportsOriginalCheckIn(t *testing.T) {
	svc, regs := newCheckInFixture()
	earlier := testNow.Add(-30 * time.Minute)
	reg := admittedReg("reg-1", "ev-1", "TKT-AAAA1111")
	reg.Status = model.StatusAttended
	reg.AttendedAt = &earlier
	regs.put(reg)

	result, err := svc.Scan(context.Background(), "ev-1", "TKT-AAAA1111")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if result.Outcome != model.ScanDuplicate {
		t.Fatalf("outcome = %s, want duplicate_scan", result.Outcome)
	}
	if result.AttendedAt == nil || !result.AttendedAt.Equal(earlier) {
		t.Errorf("attended at = %v, want the original %v", result.AttendedAt, earlier)
	}
}

func TestScanCancelledRegistration(t *testing.T) {
	svc, regs := newCheckInFixture()
	reg := admittedReg("reg-1", "ev-1", "TKT-AAAA1111")
	reg.Status = model.StatusCancelled
	regs.put(reg)

	result, err := svc.Scan(context.Background(), "ev-1", "TKT-AAAA1111")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if result.Outcome != model.ScanNotAdmitted {
		t.Errorf("outcome = %s, want not_admitted", result.Outcome)
	}
}

func TestScanConcurrentAdmitsOnce(t *testing.T) {
	svc, regs := newCheckInFixture()
	regs.put(admittedReg("reg-1", "ev-1", "TKT-AAAA1111"))

	const n = 10
	var wg sync.WaitGroup
	outcomes := make([]model.ScanOutcome, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := svc.Scan(context.Background(), "ev-1", "TKT-AAAA1111")
			if err != nil {
				t.Errorf("Scan: %v", err)
				return
			}
			outcomes[i] = result.Outcome
		}(i)
	}
	wg.Wait()

	var wins, dups int
	for _, o := range outcomes {
		switch o {
		case model.ScanSuccess:
			wins++
		case model.ScanDuplicate:
			dups++
		default:
			t.Errorf("unexpected outcome %s", o)
		}
	}
	if wins != 1 || dups != n-1 {
		t.Fatalf("successes = %d, duplicates = %d; want 1 and %d", wins, dups, n-1)
	}
}

func TestManualAttendance(t *testing.T) {
	svc, regs := newCheckInFixture()
	regs.put(admittedReg("reg-1", "ev-1", "TKT-AAAA1111"))
	ctx := context.Background()

	marked, err := svc.ManualAttendance(ctx, "ev-1", "reg-1", ManualMark)
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if marked.Status != model.StatusAttended || marked.AttendedAt == nil {
		t.Fatalf("after mark: status = %s, attendedAt = %v", marked.Status, marked.AttendedAt)
	}

	unmarked, err := svc.ManualAttendance(ctx, "ev-1", "reg-1", ManualUnmark)
	if err != nil {
		t.Fatalf("unmark: %v", err)
	}
	if unmarked.Status != model.StatusRegistered || unmarked.AttendedAt != nil {
		t.Fatalf("after unmark: status = %s, attendedAt = %v", unmarked.Status, unmarked.AttendedAt)
	}
}

func TestManualAttendanceGuards(t *testing.T) {
	svc, regs := newCheckInFixture()
	cancelled := admittedReg("reg-1", "ev-1", "TKT-AAAA1111")
	cancelled.Status = model.StatusCancelled
	regs.put(cancelled)
	regs.put(admittedReg("reg-2", "ev-1", "TKT-BBBB2222"))
	ctx := context.Background()

	if _, err := svc.ManualAttendance(ctx, "ev-1", "reg-1", ManualMark); !errors.Is(err, model.ErrNotAdmitted) {
		t.Errorf("mark cancelled error = %v, want ErrNotAdmitted", err)
	}
	if _, err := svc.ManualAttendance(ctx, "ev-1", "missing", ManualMark); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("mark missing error = %v, want ErrNotFound", err)
	}
	if _, err := svc.ManualAttendance(ctx, "ev-other", "reg-2", ManualMark); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("mark foreign event error = %v, want ErrNotFound", err)
	}
	if frozen := regs.get("reg-2"); frozen.Status != model.StatusRegistered {
		t.Errorf("foreign-event mark mutated status to %s", frozen.Status)
	}

	var fieldErr *model.FieldError
	_, err := svc.ManualAttendance(ctx, "ev-1", "reg-2", ManualAction("bogus"))
	if !errors.As(err, &fieldErr) {
		t.Errorf("bogus action error = %v, want a field error", err)
	}
}

func TestAttendanceSummary(t *testing.T) {
	svc, regs := newCheckInFixture()
	attended := admittedReg("reg-1", "ev-1", "TKT-AAAA1111")
	attended.Status = model.StatusAttended
	attended.AttendedAt = &testNow
	regs.put(attended)
	regs.put(admittedReg("reg-2", "ev-1", "TKT-BBBB2222"))
	cancelled := admittedReg("reg-3", "ev-1", "TKT-CCCC3333")
	cancelled.Status = model.StatusCancelled
	regs.put(cancelled)
	regs.put(admittedReg("reg-4", "ev-other", "TKT-DDDD4444"))

	summary, err := svc.Attendance(context.Background(), "ev-1")
	if err != nil {
		t.Fatalf("Attendance: %v", err)
	}
	if summary.Total != 2 {
		t.Errorf("total = %d, want 2 (cancelled excluded)", summary.Total)
	}
	if summary.Scanned != 1 || len(summary.Attended) != 1 {
		t.Errorf("scanned = %d/%d, want 1", summary.Scanned, len(summary.Attended))
	}
	if summary.NotScanned != 1 || len(summary.Registered) != 1 {
		t.Errorf("not scanned = %d/%d, want 1", summary.NotScanned, len(summary.Registered))
	}
}
