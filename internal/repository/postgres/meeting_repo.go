package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"evoting/internal/domain/meeting"
)

type MeetingRepo struct {
	db *sql.DB
}

func NewMeetingRepo(db *sql.DB) *MeetingRepo {
	return &MeetingRepo{db: db}
}

const meetingColumns = `
	meeting_id, meeting_name, meeting_location, meeting_url,
	meeting_date, decision_date, record_date, deadline_date,
	checkin, closeout, meeting_open, meeting_close, vote_counting,
	annual, repeated, in_person, early_registration,
	is_draft, sent_at, phase, created_at, updated_at
`

func scanMeeting(row interface{ Scan(...any) error }) (*meeting.Meeting, error) {
	m := &meeting.Meeting{}
	var phase sql.NullInt64
	err := row.Scan(
		&m.ID, &m.Name, &m.Location, &m.URL,
		&m.MeetingDate, &m.DecisionDate, &m.RecordDate, &m.DeadlineDate,
		&m.Checkin, &m.Closeout, &m.MeetingOpen, &m.MeetingClose, &m.VoteCounting,
		&m.Annual, &m.Repeated, &m.InPerson, &m.EarlyRegistration,
		&m.Draft, &m.SentAt, &phase, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if phase.Valid {
		m.Phase = meeting.Phase(phase.Int64)
	}
	return m, nil
}

func (r *MeetingRepo) Create(ctx context.Context, m *meeting.Meeting, questions []meeting.Question) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
        INSERT INTO meetings (
            meeting_name, meeting_location, meeting_url,
            meeting_date, decision_date, record_date, deadline_date,
            checkin, closeout, meeting_open, meeting_close, vote_counting,
            annual, repeated, in_person, early_registration, is_draft
        )
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,true)
        RETURNING meeting_id, created_at, updated_at
    `,
		m.Name, m.Location, m.URL,
		m.MeetingDate, m.DecisionDate, m.RecordDate, m.DeadlineDate,
		m.Checkin, m.Closeout, m.MeetingOpen, m.MeetingClose, m.VoteCounting,
		m.Annual, m.Repeated, m.InPerson, m.EarlyRegistration,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return 0, err
	}
	m.Draft = true

	for i := range questions {
		questions[i].MeetingID = m.ID
		if err := insertQuestion(ctx, tx, &questions[i]); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return m.ID, nil
}

func insertQuestion(ctx context.Context, tx *sql.Tx, q *meeting.Question) error {
	err := tx.QueryRowContext(ctx, `
        INSERT INTO questions (meeting_id, position, question, decision, cumulative, seat_count)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING question_id
    `, q.MeetingID, q.Position, q.Prompt, q.Decision, q.Cumulative, q.SeatCount).Scan(&q.ID)
	if err != nil {
		return err
	}
	for i := range q.Options {
		q.Options[i].QuestionID = q.ID
		if err := insertOption(ctx, tx, q.MeetingID, &q.Options[i]); err != nil {
			return err
		}
	}
	return nil
}

func insertOption(ctx context.Context, tx *sql.Tx, meetingID int64, o *meeting.Option) error {
	return tx.QueryRowContext(ctx, `
        INSERT INTO question_details (meeting_id, question_id, detail_text)
        VALUES ($1, $2, $3)
        RETURNING detail_id
    `, meetingID, o.QuestionID, o.Text).Scan(&o.ID)
}

func (r *MeetingRepo) GetByID(ctx context.Context, id int64) (*meeting.Meeting, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE meeting_id = $1`, id)
	m, err := scanMeeting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, meeting.ErrMeetingNotFound
	}
	return m, err
}

func (r *MeetingRepo) listMeetings(ctx context.Context, query string, args ...any) ([]meeting.Meeting, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []meeting.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *m)
	}
	return res, rows.Err()
}

func (r *MeetingRepo) ListPublished(ctx context.Context) ([]meeting.Meeting, error) {
	return r.listMeetings(ctx, `
        SELECT `+meetingColumns+` FROM meetings
        WHERE is_draft = false
        ORDER BY meeting_date NULLS LAST, meeting_id
    `)
}

func (r *MeetingRepo) ListPublishedForUser(ctx context.Context, userID int64) ([]meeting.Meeting, error) {
	return r.listMeetings(ctx, `
        SELECT `+meetingColumns+` FROM meetings
        WHERE is_draft = false
          AND meeting_id IN (SELECT meeting_id FROM entitlements WHERE user_id = $1)
        ORDER BY meeting_date NULLS LAST, meeting_id
    `, userID)
}

func (r *MeetingRepo) ListDrafts(ctx context.Context) ([]meeting.Meeting, error) {
	return r.listMeetings(ctx, `
        SELECT `+meetingColumns+` FROM meetings
        WHERE is_draft = true
        ORDER BY meeting_id
    `)
}

func (r *MeetingRepo) UpdateDraft(ctx context.Context, m *meeting.Meeting) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE meetings SET
            meeting_name = $2, meeting_location = $3, meeting_url = $4,
            meeting_date = $5, decision_date = $6, record_date = $7, deadline_date = $8,
            checkin = $9, closeout = $10, meeting_open = $11, meeting_close = $12, vote_counting = $13,
            annual = $14, repeated = $15, in_person = $16, early_registration = $17,
            updated_at = now()
        WHERE meeting_id = $1 AND is_draft = true
    `,
		m.ID, m.Name, m.Location, m.URL,
		m.MeetingDate, m.DecisionDate, m.RecordDate, m.DeadlineDate,
		m.Checkin, m.Closeout, m.MeetingOpen, m.MeetingClose, m.VoteCounting,
		m.Annual, m.Repeated, m.InPerson, m.EarlyRegistration,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return meeting.ErrNotDraft
	}
	return nil
}

func (r *MeetingRepo) MarkSent(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE meetings SET is_draft = false, sent_at = $2, phase = $3, updated_at = now()
        WHERE meeting_id = $1 AND is_draft = true
    `, id, at, int(meeting.PhasePending))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return meeting.ErrAlreadySent
	}
	return nil
}

// UpdatePhase persists a derived phase; the predicate keeps redundant
// recomputations from generating writes.
func (r *MeetingRepo) UpdatePhase(ctx context.Context, id int64, p meeting.Phase) error {
	_, err := r.db.ExecContext(ctx, `
        UPDATE meetings SET phase = $2
        WHERE meeting_id = $1 AND phase IS DISTINCT FROM $2
    `, id, int(p))
	return err
}

func (r *MeetingRepo) Agenda(ctx context.Context, meetingID int64) ([]meeting.Question, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT question_id, meeting_id, position, question, decision, cumulative, seat_count
        FROM questions
        WHERE meeting_id = $1
        ORDER BY position, question_id
    `, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []meeting.Question
	index := make(map[int64]int)
	for rows.Next() {
		var q meeting.Question
		if err := rows.Scan(&q.ID, &q.MeetingID, &q.Position, &q.Prompt, &q.Decision, &q.Cumulative, &q.SeatCount); err != nil {
			return nil, err
		}
		q.Options = []meeting.Option{}
		index[q.ID] = len(questions)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	optRows, err := r.db.QueryContext(ctx, `
        SELECT detail_id, question_id, detail_text
        FROM question_details
        WHERE meeting_id = $1
        ORDER BY detail_id
    `, meetingID)
	if err != nil {
		return nil, err
	}
	defer optRows.Close()

	for optRows.Next() {
		var o meeting.Option
		if err := optRows.Scan(&o.ID, &o.QuestionID, &o.Text); err != nil {
			return nil, err
		}
		if i, ok := index[o.QuestionID]; ok {
			questions[i].Options = append(questions[i].Options, o)
		}
	}
	return questions, optRows.Err()
}

// ReconcileAgenda replaces the stored agenda by diff: present questions and
// options are upserted by id, absent ones deleted, all inside one
// transaction so a concurrent ballot read never observes a partial agenda.
func (r *MeetingRepo) ReconcileAgenda(ctx context.Context, meetingID int64, incoming []meeting.Question) ([]meeting.Question, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	existing, err := questionIDs(ctx, tx, meetingID)
	if err != nil {
		return nil, err
	}

	kept := make(map[int64]bool, len(incoming))
	for i := range incoming {
		q := &incoming[i]
		q.MeetingID = meetingID

		if q.ID != 0 && existing[q.ID] {
			_, err = tx.ExecContext(ctx, `
                UPDATE questions
                SET position = $3, question = $4, decision = $5, cumulative = $6, seat_count = $7
                WHERE meeting_id = $1 AND question_id = $2
            `, meetingID, q.ID, q.Position, q.Prompt, q.Decision, q.Cumulative, q.SeatCount)
			if err != nil {
				return nil, err
			}
			if err := reconcileOptions(ctx, tx, meetingID, q); err != nil {
				return nil, err
			}
		} else {
			if err := insertQuestion(ctx, tx, q); err != nil {
				return nil, err
			}
		}
		kept[q.ID] = true
	}

	for id := range existing {
		if kept[id] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
            DELETE FROM questions WHERE meeting_id = $1 AND question_id = $2
        `, meetingID, id); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return incoming, nil
}

func questionIDs(ctx context.Context, tx *sql.Tx, meetingID int64) (map[int64]bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT question_id FROM questions WHERE meeting_id = $1`, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func reconcileOptions(ctx context.Context, tx *sql.Tx, meetingID int64, q *meeting.Question) error {
	rows, err := tx.QueryContext(ctx, `
        SELECT detail_id FROM question_details WHERE meeting_id = $1 AND question_id = $2
    `, meetingID, q.ID)
	if err != nil {
		return err
	}
	existing := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		existing[id] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	kept := make(map[int64]bool, len(q.Options))
	for i := range q.Options {
		o := &q.Options[i]
		o.QuestionID = q.ID
		if o.ID != 0 && existing[o.ID] {
			if _, err := tx.ExecContext(ctx, `
                UPDATE question_details SET detail_text = $2 WHERE detail_id = $1
            `, o.ID, o.Text); err != nil {
				return err
			}
		} else {
			if err := insertOption(ctx, tx, meetingID, o); err != nil {
				return err
			}
		}
		kept[o.ID] = true
	}

	for id := range existing {
		if kept[id] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM question_details WHERE detail_id = $1`, id); err != nil {
			return err
		}
	}
	return nil
}
