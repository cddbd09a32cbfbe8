package meeting

import (
	"testing"
	"time"
)

func tp(t time.Time) *time.Time { return &t }

func scheduledMeeting(base time.Time) *Meeting {
	return &Meeting{
		ID:           1,
		Name:         "annual general meeting",
		Checkin:      tp(base.Add(1 * time.Hour)),
		Closeout:     tp(base.Add(2 * time.Hour)),
		MeetingOpen:  tp(base.Add(3 * time.Hour)),
		MeetingClose: tp(base.Add(6 * time.Hour)),
		VoteCounting: tp(base.Add(5 * time.Hour)),
	}
}

func TestDerivedPhase(t *testing.T) {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	m := scheduledMeeting(base)

	cases := []struct {
		name string
		at   time.Time
		want Phase
	}{
		{"before checkin", base, PhasePending},
		{"at checkin", base.Add(1 * time.Hour), PhaseRegistrationOpen},
		{"between checkin and open", base.Add(2*time.Hour + 30*time.Minute), PhaseRegistrationOpen},
		{"at meeting open", base.Add(3 * time.Hour), PhaseVotingOpen},
		{"at vote counting", base.Add(5 * time.Hour), PhaseVotingClosed},
		{"at meeting close", base.Add(6 * time.Hour), PhaseConcluded},
		{"long after close", base.Add(48 * time.Hour), PhaseConcluded},
	}

	for _, tc := range cases {
		if got := m.DerivedPhase(tc.at); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestDerivedPhaseDraftHasNone(t *testing.T) {
	base := time.Now()
	m := scheduledMeeting(base.Add(-10 * time.Hour))
	m.Draft = true

	if got := m.DerivedPhase(base); got != 0 {
		t.Fatalf("draft meeting got phase %v, want none", got)
	}
}

func TestDerivedPhaseSkipsUnsetMilestones(t *testing.T) {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	m := &Meeting{
		MeetingOpen:  tp(base),
		MeetingClose: tp(base.Add(2 * time.Hour)),
	}

	if got := m.DerivedPhase(base.Add(time.Hour)); got != PhaseVotingOpen {
		t.Fatalf("got %v, want %v", got, PhaseVotingOpen)
	}
	if got := m.DerivedPhase(base.Add(-time.Hour)); got != PhasePending {
		t.Fatalf("got %v, want %v", got, PhasePending)
	}
}

// The phase of a fixed schedule must never regress as time advances.
func TestDerivedPhaseMonotonic(t *testing.T) {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	m := scheduledMeeting(base)

	prev := Phase(0)
	for minute := 0; minute < 8*60; minute += 7 {
		at := base.Add(time.Duration(minute) * time.Minute)
		got := m.DerivedPhase(at)
		if got < prev {
			t.Fatalf("phase regressed from %v to %v at %v", prev, got, at)
		}
		prev = got
	}
	if prev != PhaseConcluded {
		t.Fatalf("expected schedule to end concluded, got %v", prev)
	}
}
