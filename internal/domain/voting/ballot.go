package voting

import (
	"time"

	"evoting/internal/domain/meeting"
)

// Ballot is the canonical projection of what can be voted on in a meeting.
// It carries no voter-specific state; callers merge in voting power or cast
// votes themselves.
type Ballot struct {
	MeetingID    int64              `json:"meeting_id"`
	MeetingName  string             `json:"meeting_name"`
	DeadlineDate *time.Time         `json:"deadline_date"`
	MeetingClose *time.Time         `json:"meeting_close"`
	Agenda       []meeting.Question `json:"agenda"`
}

// BuildBallot assembles the ballot from a meeting and its ordered agenda.
// Pure and side-effect free.
func BuildBallot(m *meeting.Meeting, agenda []meeting.Question) Ballot {
	return Ballot{
		MeetingID:    m.ID,
		MeetingName:  m.Name,
		DeadlineDate: m.DeadlineDate,
		MeetingClose: m.MeetingClose,
		Agenda:       agenda,
	}
}

// Skeleton is an empty vote-instruction template for a ballot: one entry per
// voteable unit, each pre-filled with the given quantity and no vote type.
type Skeleton struct {
	Details SkeletonDetails `json:"VoteDtls"`
}

type SkeletonDetails struct {
	Entries []SkeletonEntry `json:"VoteInstrForAgndRsltn"`
}

type SkeletonEntry struct {
	Instruction SkeletonInstruction `json:"VoteInstr"`
}

type SkeletonInstruction struct {
	DetailID   *int64 `json:"DetailId,omitempty"`
	Quantity   int64  `json:"Quantity"`
	QuestionID int64  `json:"QuestionId"`
}

// EmptySkeleton expands a ballot into the instruction template: questions
// with sub-options produce one entry per option, the rest a single entry.
func EmptySkeleton(b Ballot, quantity int64) Skeleton {
	var entries []SkeletonEntry
	for _, q := range b.Agenda {
		if len(q.Options) == 0 {
			entries = append(entries, SkeletonEntry{Instruction: SkeletonInstruction{
				Quantity:   quantity,
				QuestionID: q.ID,
			}})
			continue
		}
		for _, o := range q.Options {
			detailID := o.ID
			entries = append(entries, SkeletonEntry{Instruction: SkeletonInstruction{
				DetailID:   &detailID,
				Quantity:   quantity,
				QuestionID: q.ID,
			}})
		}
	}
	return Skeleton{Details: SkeletonDetails{Entries: entries}}
}
