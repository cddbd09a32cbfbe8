package registry

import (
	"context"
	"errors"

	"evoting/internal/domain/meeting"
)

var (
	ErrNotEntitled        = errors.New("user holds no entitlement for this meeting")
	ErrAlreadyRegistered  = errors.New("user is already registered for this meeting")
	ErrRegistrationClosed = errors.New("registration is not open for this meeting")
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register checks the user in for a meeting. Valid only while registration is
// open; flips every entitlement row of the user at once.
func (s *Service) Register(ctx context.Context, m *meeting.Meeting, userID int64) error {
	if m.Phase != meeting.PhaseRegistrationOpen {
		return ErrRegistrationClosed
	}

	entitlements, err := s.repo.EntitlementsForUser(ctx, m.ID, userID)
	if err != nil {
		return err
	}
	if len(entitlements) == 0 {
		return ErrNotEntitled
	}

	all := true
	for _, e := range entitlements {
		if !e.Registered {
			all = false
			break
		}
	}
	if all {
		return ErrAlreadyRegistered
	}

	return s.repo.RegisterAll(ctx, m.ID, userID)
}

// Accounts lists the user's entitled accounts with their voting power and
// has-voted flag.
func (s *Service) Accounts(ctx context.Context, meetingID, userID int64) ([]Account, error) {
	return s.repo.AccountsForUser(ctx, meetingID, userID)
}

// HasAccount reports whether the account belongs to the user in this meeting.
func (s *Service) HasAccount(ctx context.Context, meetingID, userID, accountID int64) (bool, error) {
	return s.repo.HasAccount(ctx, meetingID, userID, accountID)
}

// IsRegistered reports whether the user checked in for the meeting.
func (s *Service) IsRegistered(ctx context.Context, meetingID, userID int64) (bool, error) {
	return s.repo.IsRegistered(ctx, meetingID, userID)
}

// AccountRegistered reports whether any registered entitlement exists for the
// account, regardless of the controlling user.
func (s *Service) AccountRegistered(ctx context.Context, meetingID, accountID int64) (bool, error) {
	return s.repo.AccountRegistered(ctx, meetingID, accountID)
}

// VotingPower returns the imported weight of one account, if any.
func (s *Service) VotingPower(ctx context.Context, meetingID, accountID int64) (*VotingPower, error) {
	return s.repo.VotingPower(ctx, meetingID, accountID)
}

// Participants lists registered entitlements with their holder names.
func (s *Service) Participants(ctx context.Context, meetingID int64) ([]Participant, error) {
	return s.repo.RegisteredParticipants(ctx, meetingID)
}

// ImportHolding provisions an account's voting power, its entitlement and the
// vote-record placeholder. Used by the administrative import path.
func (s *Service) ImportHolding(ctx context.Context, power *VotingPower, userID int64) error {
	return s.repo.ImportHolding(ctx, power, userID)
}
