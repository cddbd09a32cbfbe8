package postgres

import (
	"context"
	"database/sql"
	"errors"

	"evoting/internal/domain/registry"
)

type RegistryRepo struct {
	db *sql.DB
}

func NewRegistryRepo(db *sql.DB) *RegistryRepo {
	return &RegistryRepo{db: db}
}

func (r *RegistryRepo) EntitlementsForUser(ctx context.Context, meetingID, userID int64) ([]registry.Entitlement, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT meeting_id, account_id, user_id, registered
        FROM entitlements
        WHERE meeting_id = $1 AND user_id = $2
        ORDER BY account_id
    `, meetingID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []registry.Entitlement
	for rows.Next() {
		var e registry.Entitlement
		if err := rows.Scan(&e.MeetingID, &e.AccountID, &e.UserID, &e.Registered); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r *RegistryRepo) RegisterAll(ctx context.Context, meetingID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
        UPDATE entitlements SET registered = true
        WHERE meeting_id = $1 AND user_id = $2
    `, meetingID, userID)
	return err
}

func (r *RegistryRepo) HasAccount(ctx context.Context, meetingID, userID, accountID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM entitlements
            WHERE meeting_id = $1 AND user_id = $2 AND account_id = $3
        )
    `, meetingID, userID, accountID).Scan(&exists)
	return exists, err
}

func (r *RegistryRepo) IsRegistered(ctx context.Context, meetingID, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM entitlements
            WHERE meeting_id = $1 AND user_id = $2 AND registered = true
        )
    `, meetingID, userID).Scan(&exists)
	return exists, err
}

func (r *RegistryRepo) AccountRegistered(ctx context.Context, meetingID, accountID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM entitlements
            WHERE meeting_id = $1 AND account_id = $2 AND registered = true
        )
    `, meetingID, accountID).Scan(&exists)
	return exists, err
}

func (r *RegistryRepo) AccountsForUser(ctx context.Context, meetingID, userID int64) ([]registry.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT e.account_id,
               COALESCE(p.account_fullname, ''),
               p.json_quantity,
               EXISTS (
                   SELECT 1 FROM vote_records vr
                   WHERE vr.meeting_id = e.meeting_id
                     AND vr.account_id = e.account_id
                     AND vr.user_id = e.user_id
                     AND vr.payload IS NOT NULL
               ) AS voted
        FROM entitlements e
        LEFT JOIN voting_powers p
          ON p.meeting_id = e.meeting_id AND p.account_id = e.account_id
        WHERE e.meeting_id = $1 AND e.user_id = $2
        ORDER BY e.account_id
    `, meetingID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []registry.Account
	for rows.Next() {
		var a registry.Account
		if err := rows.Scan(&a.AccountID, &a.HolderName, &a.Quantity, &a.Voted); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r *RegistryRepo) VotingPower(ctx context.Context, meetingID, accountID int64) (*registry.VotingPower, error) {
	p := &registry.VotingPower{}
	err := r.db.QueryRowContext(ctx, `
        SELECT meeting_id, account_id, account_fullname, json_quantity
        FROM voting_powers
        WHERE meeting_id = $1 AND account_id = $2
    `, meetingID, accountID).Scan(&p.MeetingID, &p.AccountID, &p.HolderName, &p.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *RegistryRepo) RegisteredParticipants(ctx context.Context, meetingID int64) ([]registry.Participant, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT e.account_id, COALESCE(p.account_fullname, '')
        FROM entitlements e
        LEFT JOIN voting_powers p
          ON p.meeting_id = e.meeting_id AND p.account_id = e.account_id
        WHERE e.meeting_id = $1 AND e.registered = true
        ORDER BY e.account_id
    `, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []registry.Participant
	for rows.Next() {
		var p registry.Participant
		if err := rows.Scan(&p.AccountID, &p.HolderName); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// ImportHolding provisions the voting power, the entitlement and the empty
// vote-record placeholder in one transaction, so a vote record always exists
// by the time the account may vote.
func (r *RegistryRepo) ImportHolding(ctx context.Context, power *registry.VotingPower, userID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO voting_powers (meeting_id, account_id, account_fullname, json_quantity)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (meeting_id, account_id)
        DO UPDATE SET account_fullname = EXCLUDED.account_fullname,
                      json_quantity = EXCLUDED.json_quantity
    `, power.MeetingID, power.AccountID, power.HolderName, power.Quantity)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO entitlements (meeting_id, account_id, user_id, registered)
        VALUES ($1, $2, $3, false)
        ON CONFLICT (meeting_id, account_id, user_id) DO NOTHING
    `, power.MeetingID, power.AccountID, userID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO vote_records (meeting_id, account_id, user_id)
        VALUES ($1, $2, $3)
        ON CONFLICT (meeting_id, account_id, user_id) DO NOTHING
    `, power.MeetingID, power.AccountID, userID)
	if err != nil {
		return err
	}

	return tx.Commit()
}
