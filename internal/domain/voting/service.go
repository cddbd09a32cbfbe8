package voting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"evoting/internal/domain/meeting"
	"evoting/internal/domain/registry"
)

var (
	ErrVotingNotOpen   = errors.New("voting is not open for this meeting")
	ErrEmptyBallot     = errors.New("ballot payload contains no vote instructions")
	ErrNotRegistered   = errors.New("user is not registered for this meeting")
	ErrNoVotingPower   = errors.New("account has no voting power in this meeting")
	ErrAccountMismatch = errors.New("account does not belong to this user")
	ErrAlreadyVoted    = errors.New("a ballot was already cast for this account")
	ErrNoVotesYet      = errors.New("nobody has voted in this meeting yet")
	ErrRecordMissing   = errors.New("vote record not found")
)

// AccountDirectory is the slice of the entitlement ledger the voting core
// consults. Implemented by registry.Service.
type AccountDirectory interface {
	Accounts(ctx context.Context, meetingID, userID int64) ([]registry.Account, error)
	HasAccount(ctx context.Context, meetingID, userID, accountID int64) (bool, error)
	IsRegistered(ctx context.Context, meetingID, userID int64) (bool, error)
	AccountRegistered(ctx context.Context, meetingID, accountID int64) (bool, error)
}

// AgendaSource supplies a meeting's ordered question set. Implemented by
// meeting.Service.
type AgendaSource interface {
	Agenda(ctx context.Context, meetingID int64) ([]meeting.Question, error)
}

type Service struct {
	records  Repository
	accounts AccountDirectory
	agenda   AgendaSource
}

func NewService(records Repository, accounts AccountDirectory, agenda AgendaSource) *Service {
	return &Service{records: records, accounts: accounts, agenda: agenda}
}

// votingAllowed gates submission on the meeting phase. Early voting, when the
// meeting enables it, also admits ballots before the voting window opens.
func votingAllowed(m *meeting.Meeting) bool {
	if m.Phase == meeting.PhaseVotingOpen {
		return true
	}
	return m.EarlyRegistration && m.Phase < meeting.PhaseVotingClosed
}

// Submit validates and records one ballot for (meeting, account, user). The
// payload is persisted exactly as received; the record transitions from empty
// to cast at most once.
func (s *Service) Submit(ctx context.Context, m *meeting.Meeting, accountID, userID int64, raw json.RawMessage) error {
	if !votingAllowed(m) {
		return ErrVotingNotOpen
	}

	payload, err := DecodePayload(raw)
	if err != nil {
		return err
	}
	if len(payload.Details.Instructions) == 0 {
		return ErrEmptyBallot
	}

	registered, err := s.accounts.IsRegistered(ctx, m.ID, userID)
	if err != nil {
		return err
	}
	if !registered && !m.EarlyRegistration {
		return ErrNotRegistered
	}

	accounts, err := s.accounts.Accounts(ctx, m.ID, userID)
	if err != nil {
		return err
	}
	holds := false
	for _, a := range accounts {
		if a.AccountID == accountID {
			holds = true
			break
		}
	}
	if !holds {
		return ErrNoVotingPower
	}

	ok, err := s.accounts.HasAccount(ctx, m.ID, userID, accountID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAccountMismatch
	}

	agenda, err := s.agenda.Agenda(ctx, m.ID)
	if err != nil {
		return err
	}
	if err := ValidateAgainstAgenda(payload, agenda); err != nil {
		return err
	}

	implicitRegister := !registered && m.EarlyRegistration
	return s.records.CastVote(ctx, m.ID, accountID, userID, raw, implicitRegister)
}

// BallotFor returns the ballot and the account's voting power after running
// the read-side guard chain: voting must be allowed, the account must belong
// to the user, the user must be registered (or early voting enabled) and the
// account must not have voted yet.
func (s *Service) BallotFor(ctx context.Context, m *meeting.Meeting, accountID, userID int64) (*Ballot, *registry.VotingPower, error) {
	if !votingAllowed(m) {
		return nil, nil, ErrVotingNotOpen
	}

	accounts, err := s.accounts.Accounts(ctx, m.ID, userID)
	if err != nil {
		return nil, nil, err
	}
	if len(accounts) == 0 {
		return nil, nil, ErrNoVotingPower
	}

	ok, err := s.accounts.HasAccount(ctx, m.ID, userID, accountID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrAccountMismatch
	}

	registered, err := s.accounts.IsRegistered(ctx, m.ID, userID)
	if err != nil {
		return nil, nil, err
	}
	if !registered && !m.EarlyRegistration {
		return nil, nil, ErrNotRegistered
	}

	rec, err := s.records.Get(ctx, m.ID, accountID, userID)
	if err != nil && !errors.Is(err, ErrRecordMissing) {
		return nil, nil, err
	}
	if rec != nil && rec.Cast() {
		return nil, nil, ErrAlreadyVoted
	}

	agenda, err := s.agenda.Agenda(ctx, m.ID)
	if err != nil {
		return nil, nil, err
	}
	ballot := BuildBallot(m, agenda)

	var power *registry.VotingPower
	for i := range accounts {
		if accounts[i].AccountID == accountID {
			power = &registry.VotingPower{
				MeetingID:  m.ID,
				AccountID:  accountID,
				HolderName: accounts[i].HolderName,
				Quantity:   accounts[i].Quantity,
			}
			break
		}
	}
	return &ballot, power, nil
}

// Result returns one account's cast ballot. Staff may query any account;
// everyone else only their own record. Unauthorized lookups are
// indistinguishable from missing ones.
func (s *Service) Result(ctx context.Context, meetingID, accountID, userID int64, staff bool) (*Record, error) {
	registered, err := s.accounts.AccountRegistered(ctx, meetingID, accountID)
	if err != nil {
		return nil, err
	}
	if !registered {
		return nil, ErrRecordMissing
	}

	if staff {
		return s.records.GetForAccount(ctx, meetingID, accountID)
	}
	return s.records.Get(ctx, meetingID, accountID, userID)
}

type OptionTally struct {
	DetailID *int64 `json:"DetailId"`
	For      int64  `json:"For"`
	Against  int64  `json:"Against"`
	Abstain  int64  `json:"Abstain"`
}

type QuestionSummary struct {
	QuestionID int64         `json:"QuestionId"`
	Results    []OptionTally `json:"results"`
}

type tallyKey struct {
	questionID int64
	detailID   int64 // 0 when the vote targets the whole question
}

type tallyCounts struct {
	forQty     int64
	againstQty int64
	abstainQty int64
}

// Summarize folds every cast ballot of the meeting into per-question,
// per-option sums. It reads a snapshot and performs no writes; output is
// ordered by the agenda, with any entries no longer on it appended in
// first-observation order.
func (s *Service) Summarize(ctx context.Context, meetingID int64, agenda []meeting.Question) ([]QuestionSummary, error) {
	records, err := s.records.ListByMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	sums := make(map[tallyKey]*tallyCounts)
	var observed []tallyKey

	cast := false
	for i := range records {
		rec := &records[i]
		if !rec.Cast() {
			continue
		}
		payload, err := DecodePayload(rec.Payload)
		if err != nil {
			return nil, fmt.Errorf("stored ballot for account %d: %w", rec.AccountID, err)
		}
		cast = true
		for _, entry := range payload.Details.Instructions {
			in := entry.Instruction
			choice, qty, err := in.Choice()
			if err != nil {
				return nil, fmt.Errorf("stored ballot for account %d: %w", rec.AccountID, err)
			}
			key := tallyKey{questionID: in.QuestionID}
			if in.DetailID != nil {
				key.detailID = *in.DetailID
			}
			c := sums[key]
			if c == nil {
				c = &tallyCounts{}
				sums[key] = c
				observed = append(observed, key)
			}
			switch choice {
			case ChoiceFor:
				c.forQty += qty
			case ChoiceAgainst:
				c.againstQty += qty
			case ChoiceAbstain:
				c.abstainQty += qty
			}
		}
	}
	if !cast {
		return nil, ErrNoVotesYet
	}

	consumed := make(map[tallyKey]bool, len(sums))
	var out []QuestionSummary

	appendEntry := func(qs *QuestionSummary, key tallyKey) {
		c := sums[key]
		if c == nil || consumed[key] {
			return
		}
		consumed[key] = true
		var detailID *int64
		if key.detailID != 0 {
			id := key.detailID
			detailID = &id
		}
		qs.Results = append(qs.Results, OptionTally{
			DetailID: detailID,
			For:      c.forQty,
			Against:  c.againstQty,
			Abstain:  c.abstainQty,
		})
	}

	for _, q := range agenda {
		qs := QuestionSummary{QuestionID: q.ID}
		appendEntry(&qs, tallyKey{questionID: q.ID})
		for _, o := range q.Options {
			appendEntry(&qs, tallyKey{questionID: q.ID, detailID: o.ID})
		}
		if len(qs.Results) > 0 {
			out = append(out, qs)
		}
	}

	// Ballots cast before an agenda edit may reference entries the current
	// agenda no longer has; keep them rather than dropping quantities.
	for _, key := range observed {
		if consumed[key] {
			continue
		}
		qs := QuestionSummary{QuestionID: key.questionID}
		appendEntry(&qs, key)
		for _, later := range observed {
			if later.questionID == key.questionID && !consumed[later] {
				appendEntry(&qs, later)
			}
		}
		out = append(out, qs)
	}

	return out, nil
}
