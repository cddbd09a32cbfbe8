package meeting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMeetingNotFound = errors.New("meeting not found")
	ErrNotDraft        = errors.New("meeting is not a draft")
	ErrAlreadySent     = errors.New("meeting has already been sent")
	ErrEmptyAgenda     = errors.New("cannot send a meeting without an agenda")
	ErrMilestoneOrder  = errors.New("meeting milestones are out of order")
)

// MissingFieldsError reports every required field a draft is missing, so an
// administrator can fix them all in one pass.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("required fields not filled in: %s", strings.Join(e.Fields, ", "))
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Get returns a meeting with its phase refreshed against the clock. The
// derived phase is persisted only when it differs from the stored one.
func (s *Service) Get(ctx context.Context, id int64) (*Meeting, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.refreshPhase(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) refreshPhase(ctx context.Context, m *Meeting) error {
	if m.Draft {
		return nil
	}
	derived := m.DerivedPhase(s.now())
	if derived == m.Phase {
		return nil
	}
	if err := s.repo.UpdatePhase(ctx, m.ID, derived); err != nil {
		return err
	}
	m.Phase = derived
	return nil
}

// ListVisible returns published meetings: all of them for staff, otherwise
// only those the user holds an entitlement for.
func (s *Service) ListVisible(ctx context.Context, userID int64, staff bool) ([]Meeting, error) {
	var (
		meetings []Meeting
		err      error
	)
	if staff {
		meetings, err = s.repo.ListPublished(ctx)
	} else {
		meetings, err = s.repo.ListPublishedForUser(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	for i := range meetings {
		if err := s.refreshPhase(ctx, &meetings[i]); err != nil {
			return nil, err
		}
	}
	return meetings, nil
}

func (s *Service) Drafts(ctx context.Context) ([]Meeting, error) {
	return s.repo.ListDrafts(ctx)
}

func (s *Service) GetDraft(ctx context.Context, id int64) (*Meeting, []Question, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !m.Draft {
		return nil, nil, ErrNotDraft
	}
	agenda, err := s.repo.Agenda(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return m, agenda, nil
}

// CreateDraft stores a new meeting in the draft state together with its
// initial agenda. Seat counts are derived, never taken from the caller.
func (s *Service) CreateDraft(ctx context.Context, m *Meeting, questions []Question) (int64, error) {
	if m.Name == "" {
		return 0, errors.New("meeting name required")
	}
	m.Draft = true
	m.SentAt = nil
	m.Phase = 0
	for i := range questions {
		questions[i].Position = i
		questions[i].SeatCount = seatCount(&questions[i])
	}
	return s.repo.Create(ctx, m, questions)
}

// UpdateDraft replaces a draft's fields and reconciles its agenda against the
// incoming question set. Sent meetings are structurally immutable.
func (s *Service) UpdateDraft(ctx context.Context, m *Meeting, questions []Question) ([]Question, error) {
	stored, err := s.repo.GetByID(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	if !stored.Draft {
		return nil, ErrNotDraft
	}
	m.Draft = true
	m.SentAt = nil
	if err := s.repo.UpdateDraft(ctx, m); err != nil {
		return nil, err
	}
	for i := range questions {
		questions[i].Position = i
		questions[i].SeatCount = seatCount(&questions[i])
	}
	return s.repo.ReconcileAgenda(ctx, m.ID, questions)
}

// Agenda returns the meeting's ordered question set.
func (s *Service) Agenda(ctx context.Context, meetingID int64) ([]Question, error) {
	return s.repo.Agenda(ctx, meetingID)
}

// Send publishes a draft. All scheduling fields must be filled in, milestones
// must be ordered and the agenda must be non-empty; on success the meeting
// stops being a draft and the send time is stamped.
func (s *Service) Send(ctx context.Context, id int64) (*Meeting, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.Draft {
		return nil, ErrAlreadySent
	}

	if missing := missingRequiredFields(m); len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}
	if err := validateMilestoneOrder(m); err != nil {
		return nil, err
	}

	agenda, err := s.repo.Agenda(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(agenda) == 0 {
		return nil, ErrEmptyAgenda
	}

	sentAt := s.now()
	if err := s.repo.MarkSent(ctx, id, sentAt); err != nil {
		return nil, err
	}
	m.Draft = false
	m.SentAt = &sentAt
	if err := s.refreshPhase(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func missingRequiredFields(m *Meeting) []string {
	var missing []string
	check := func(name string, ok bool) {
		if !ok {
			missing = append(missing, name)
		}
	}
	check("meeting_location", m.Location != "")
	check("meeting_date", m.MeetingDate != nil)
	check("decision_date", m.DecisionDate != nil)
	check("record_date", m.RecordDate != nil)
	check("deadline_date", m.DeadlineDate != nil)
	check("checkin", m.Checkin != nil)
	check("closeout", m.Closeout != nil)
	check("meeting_open", m.MeetingOpen != nil)
	check("meeting_close", m.MeetingClose != nil)
	check("vote_counting", m.VoteCounting != nil)
	return missing
}

// validateMilestoneOrder enforces record_date <= deadline_date <= meeting_open
// <= meeting_close <= vote_counting. Phase derivation assumes this holds.
func validateMilestoneOrder(m *Meeting) error {
	ordered := []*time.Time{m.RecordDate, m.DeadlineDate, m.MeetingOpen, m.MeetingClose, m.VoteCounting}
	var prev *time.Time
	for _, t := range ordered {
		if t == nil {
			continue
		}
		if prev != nil && t.Before(*prev) {
			return ErrMilestoneOrder
		}
		prev = t
	}
	if m.Checkin != nil && m.Closeout != nil && m.Closeout.Before(*m.Checkin) {
		return ErrMilestoneOrder
	}
	return nil
}
