package registry

import (
	"context"
	"encoding/json"
)

// Entitlement links a voting account to the user authorized to vote it,
// scoped to one meeting. (meeting, account, user) is unique.
type Entitlement struct {
	MeetingID  int64 `json:"meeting_id"`
	AccountID  int64 `json:"account_id"`
	UserID     int64 `json:"user_id"`
	Registered bool  `json:"registered"`
}

// VotingPower is the imported, read-only voting weight of one account in one
// meeting. Quantity is the registrar's share breakdown, kept opaque.
type VotingPower struct {
	MeetingID  int64           `json:"meeting_id"`
	AccountID  int64           `json:"account_id"`
	HolderName string          `json:"account_fullname"`
	Quantity   json.RawMessage `json:"json_quantity,omitempty"`
}

// Account is the per-user projection served to the voter UI: one entry per
// entitled account with its power and whether a ballot was already cast.
type Account struct {
	AccountID  int64           `json:"account_id"`
	HolderName string          `json:"account_fullname"`
	Quantity   json.RawMessage `json:"votes,omitempty"`
	Voted      bool            `json:"voted"`
}

// Participant is one registered entitlement, listed for meeting staff.
type Participant struct {
	AccountID  int64  `json:"account_id"`
	HolderName string `json:"account_fullname"`
}

type Repository interface {
	EntitlementsForUser(ctx context.Context, meetingID, userID int64) ([]Entitlement, error)
	// RegisterAll flips registered=true on every entitlement row of the user
	// in one statement, so a partially registered user is never observable.
	RegisterAll(ctx context.Context, meetingID, userID int64) error
	HasAccount(ctx context.Context, meetingID, userID, accountID int64) (bool, error)
	IsRegistered(ctx context.Context, meetingID, userID int64) (bool, error)
	AccountsForUser(ctx context.Context, meetingID, userID int64) ([]Account, error)
	VotingPower(ctx context.Context, meetingID, accountID int64) (*VotingPower, error)
	AccountRegistered(ctx context.Context, meetingID, accountID int64) (bool, error)
	RegisteredParticipants(ctx context.Context, meetingID int64) ([]Participant, error)
	// ImportHolding provisions one holding in a single transaction: the
	// voting-power row, the entitlement and the empty vote-record placeholder.
	ImportHolding(ctx context.Context, power *VotingPower, userID int64) error
}
