package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"evoting/internal/domain/voting"
)

type VoteRepo struct {
	db *sql.DB
}

func NewVoteRepo(db *sql.DB) *VoteRepo {
	return &VoteRepo{db: db}
}

func (r *VoteRepo) Get(ctx context.Context, meetingID, accountID, userID int64) (*voting.Record, error) {
	rec := &voting.Record{}
	err := r.db.QueryRowContext(ctx, `
        SELECT voting_result_id, meeting_id, account_id, user_id, payload, cast_at
        FROM vote_records
        WHERE meeting_id = $1 AND account_id = $2 AND user_id = $3
    `, meetingID, accountID, userID).Scan(
		&rec.ID, &rec.MeetingID, &rec.AccountID, &rec.UserID, &rec.Payload, &rec.CastAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, voting.ErrRecordMissing
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *VoteRepo) GetForAccount(ctx context.Context, meetingID, accountID int64) (*voting.Record, error) {
	rec := &voting.Record{}
	err := r.db.QueryRowContext(ctx, `
        SELECT voting_result_id, meeting_id, account_id, user_id, payload, cast_at
        FROM vote_records
        WHERE meeting_id = $1 AND account_id = $2
        ORDER BY voting_result_id
        LIMIT 1
    `, meetingID, accountID).Scan(
		&rec.ID, &rec.MeetingID, &rec.AccountID, &rec.UserID, &rec.Payload, &rec.CastAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, voting.ErrRecordMissing
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *VoteRepo) ListByMeeting(ctx context.Context, meetingID int64) ([]voting.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT voting_result_id, meeting_id, account_id, user_id, payload, cast_at
        FROM vote_records
        WHERE meeting_id = $1
        ORDER BY voting_result_id
    `, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []voting.Record
	for rows.Next() {
		var rec voting.Record
		if err := rows.Scan(&rec.ID, &rec.MeetingID, &rec.AccountID, &rec.UserID, &rec.Payload, &rec.CastAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// CastVote performs the empty-to-cast transition as a conditional update: the
// payload is written only where it is still NULL, so two racing submissions
// for the same triple can never both succeed.
func (r *VoteRepo) CastVote(ctx context.Context, meetingID, accountID, userID int64, payload json.RawMessage, implicitRegister bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
        UPDATE vote_records SET payload = $4, cast_at = now()
        WHERE meeting_id = $1 AND account_id = $2 AND user_id = $3 AND payload IS NULL
    `, meetingID, accountID, userID, payload)
	if err != nil {
		if isUniqueViolation(err) {
			return voting.ErrAlreadyVoted
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		err := tx.QueryRowContext(ctx, `
            SELECT EXISTS (
                SELECT 1 FROM vote_records
                WHERE meeting_id = $1 AND account_id = $2 AND user_id = $3
            )
        `, meetingID, accountID, userID).Scan(&exists)
		if err != nil {
			return err
		}
		if exists {
			return voting.ErrAlreadyVoted
		}
		return voting.ErrRecordMissing
	}

	if implicitRegister {
		_, err = tx.ExecContext(ctx, `
            UPDATE entitlements SET registered = true
            WHERE meeting_id = $1 AND account_id = $2 AND user_id = $3
        `, meetingID, accountID, userID)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
