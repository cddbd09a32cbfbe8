package voting

import (
	"context"
	"encoding/json"
	"time"
)

// Record is the single vote record per (meeting, account, user). A record is
// provisioned with a nil payload when the entitlement is imported; setting
// the payload is its only permitted mutation.
type Record struct {
	ID        int64           `json:"-"`
	MeetingID int64           `json:"meeting_id"`
	AccountID int64           `json:"account_id"`
	UserID    int64           `json:"user_id"`
	Payload   json.RawMessage `json:"votes,omitempty"`
	CastAt    *time.Time      `json:"cast_at,omitempty"`
}

// Cast reports whether the record already holds a ballot.
func (r *Record) Cast() bool {
	return len(r.Payload) > 0
}

type Repository interface {
	Get(ctx context.Context, meetingID, accountID, userID int64) (*Record, error)
	GetForAccount(ctx context.Context, meetingID, accountID int64) (*Record, error)
	ListByMeeting(ctx context.Context, meetingID int64) ([]Record, error)
	// CastVote performs the nil-to-payload transition as one atomic
	// compare-and-set; implementations must guarantee that two concurrent
	// calls for the same triple cannot both succeed. When implicitRegister is
	// set, the account's entitlement is flipped to registered in the same
	// transaction.
	CastVote(ctx context.Context, meetingID, accountID, userID int64, payload json.RawMessage, implicitRegister bool) error
}
