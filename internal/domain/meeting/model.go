package meeting

import (
	"context"
	"time"
)

// Phase is the time-derived lifecycle stage of a published meeting.
// Drafts carry no phase.
type Phase int

const (
	PhasePending Phase = iota + 1
	PhaseRegistrationOpen
	PhaseVotingOpen
	PhaseVotingClosed
	PhaseConcluded
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseRegistrationOpen:
		return "registration_open"
	case PhaseVotingOpen:
		return "voting_open"
	case PhaseVotingClosed:
		return "voting_closed"
	case PhaseConcluded:
		return "concluded"
	default:
		return "unknown"
	}
}

type Meeting struct {
	ID       int64  `json:"meeting_id"`
	Name     string `json:"meeting_name"`
	Location string `json:"meeting_location,omitempty"`
	URL      string `json:"meeting_url,omitempty"`

	MeetingDate  *time.Time `json:"meeting_date,omitempty"`
	DecisionDate *time.Time `json:"decision_date,omitempty"`
	RecordDate   *time.Time `json:"record_date,omitempty"`
	DeadlineDate *time.Time `json:"deadline_date,omitempty"`

	Checkin      *time.Time `json:"checkin,omitempty"`
	Closeout     *time.Time `json:"closeout,omitempty"`
	MeetingOpen  *time.Time `json:"meeting_open,omitempty"`
	MeetingClose *time.Time `json:"meeting_close,omitempty"`
	VoteCounting *time.Time `json:"vote_counting,omitempty"`

	Annual            bool `json:"annual"`
	Repeated          bool `json:"repeated"`
	InPerson          bool `json:"in_person"`
	EarlyRegistration bool `json:"early_registration"`

	Draft  bool       `json:"is_draft"`
	SentAt *time.Time `json:"sent_at,omitempty"`
	Phase  Phase      `json:"phase,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DerivedPhase walks the milestones from latest to earliest and returns the
// phase the meeting is in at the given instant. Unset milestones are skipped.
func (m *Meeting) DerivedPhase(now time.Time) Phase {
	if m.Draft {
		return 0
	}
	switch {
	case m.MeetingClose != nil && !now.Before(*m.MeetingClose):
		return PhaseConcluded
	case m.VoteCounting != nil && !now.Before(*m.VoteCounting):
		return PhaseVotingClosed
	case m.MeetingOpen != nil && !now.Before(*m.MeetingOpen):
		return PhaseVotingOpen
	case m.Checkin != nil && !now.Before(*m.Checkin):
		return PhaseRegistrationOpen
	default:
		return PhasePending
	}
}

type Question struct {
	ID         int64    `json:"question_id"`
	MeetingID  int64    `json:"-"`
	Position   int      `json:"-"`
	Prompt     string   `json:"question"`
	Decision   string   `json:"decision"`
	Cumulative bool     `json:"cumulative"`
	SeatCount  int      `json:"seat_count"`
	Options    []Option `json:"details"`
}

type Option struct {
	ID         int64  `json:"detail_id"`
	QuestionID int64  `json:"-"`
	Text       string `json:"detail_text"`
}

// seatCount is the number of voteable units of a question. Questions without
// sub-options count as a single block; cumulative only changes how quantities
// are validated, never the count.
func seatCount(q *Question) int {
	if len(q.Options) == 0 {
		return 1
	}
	return len(q.Options)
}

type Repository interface {
	Create(ctx context.Context, m *Meeting, questions []Question) (int64, error)
	GetByID(ctx context.Context, id int64) (*Meeting, error)
	ListPublished(ctx context.Context) ([]Meeting, error)
	ListPublishedForUser(ctx context.Context, userID int64) ([]Meeting, error)
	ListDrafts(ctx context.Context) ([]Meeting, error)
	UpdateDraft(ctx context.Context, m *Meeting) error
	MarkSent(ctx context.Context, id int64, at time.Time) error
	// UpdatePhase persists a freshly derived phase. Implementations must make
	// the write conditional on the stored value actually differing.
	UpdatePhase(ctx context.Context, id int64, p Phase) error
	Agenda(ctx context.Context, meetingID int64) ([]Question, error)
	// ReconcileAgenda applies a full-replace-by-diff of the meeting's agenda
	// inside one transaction: upsert incoming questions and their options,
	// delete whatever is absent from the incoming set.
	ReconcileAgenda(ctx context.Context, meetingID int64, incoming []Question) ([]Question, error)
}
