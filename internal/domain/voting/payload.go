package voting

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"evoting/internal/domain/meeting"
)

var ErrMalformedBallot = errors.New("malformed ballot payload")

// Choice is the three-way vote type of one instruction.
type Choice int

const (
	ChoiceFor Choice = iota
	ChoiceAgainst
	ChoiceAbstain
)

func (c Choice) String() string {
	switch c {
	case ChoiceFor:
		return "For"
	case ChoiceAgainst:
		return "Against"
	case ChoiceAbstain:
		return "Abstain"
	default:
		return "unknown"
	}
}

// Payload is the ballot wire shape. It is persisted as the voter sent it, so
// the field names mirror the registrar exchange format exactly.
type Payload struct {
	Details Details `json:"VoteDtls"`
}

type Details struct {
	Instructions []InstructionEntry `json:"VoteInstrForAgndRsltn"`
}

type InstructionEntry struct {
	Instruction Instruction `json:"VoteInstr"`
}

type Instruction struct {
	QuestionID int64     `json:"QuestionId"`
	DetailID   *int64    `json:"DetailId,omitempty"`
	For        *Quantity `json:"For,omitempty"`
	Against    *Quantity `json:"Against,omitempty"`
	Abstain    *Quantity `json:"Abstain,omitempty"`
}

type Quantity struct {
	Quantity int64 `json:"Quantity"`
}

// Choice returns the single vote type the instruction carries and its
// quantity. Instructions with zero or several types are malformed.
func (in *Instruction) Choice() (Choice, int64, error) {
	var (
		choice Choice
		qty    int64
		n      int
	)
	if in.For != nil {
		choice, qty, n = ChoiceFor, in.For.Quantity, n+1
	}
	if in.Against != nil {
		choice, qty, n = ChoiceAgainst, in.Against.Quantity, n+1
	}
	if in.Abstain != nil {
		choice, qty, n = ChoiceAbstain, in.Abstain.Quantity, n+1
	}
	if n != 1 {
		return 0, 0, fmt.Errorf("%w: question %d needs exactly one of For/Against/Abstain", ErrMalformedBallot, in.QuestionID)
	}
	if qty <= 0 {
		return 0, 0, fmt.Errorf("%w: question %d has non-positive quantity %d", ErrMalformedBallot, in.QuestionID, qty)
	}
	return choice, qty, nil
}

// DecodePayload parses raw ballot JSON and fails fast on malformed entries
// instead of skipping them.
func DecodePayload(raw []byte) (*Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var p Payload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBallot, err)
	}
	for i := range p.Details.Instructions {
		in := &p.Details.Instructions[i].Instruction
		if in.QuestionID == 0 {
			return nil, fmt.Errorf("%w: instruction %d is missing QuestionId", ErrMalformedBallot, i)
		}
		if _, _, err := in.Choice(); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// ValidateAgainstAgenda checks that every instruction names an existing
// question, and an existing sub-option when DetailId is given.
func ValidateAgainstAgenda(p *Payload, agenda []meeting.Question) error {
	options := make(map[int64]map[int64]bool, len(agenda))
	for _, q := range agenda {
		opts := make(map[int64]bool, len(q.Options))
		for _, o := range q.Options {
			opts[o.ID] = true
		}
		options[q.ID] = opts
	}

	for _, entry := range p.Details.Instructions {
		in := entry.Instruction
		opts, ok := options[in.QuestionID]
		if !ok {
			return fmt.Errorf("%w: question %d is not on the agenda", ErrMalformedBallot, in.QuestionID)
		}
		if in.DetailID != nil && !opts[*in.DetailID] {
			return fmt.Errorf("%w: question %d has no sub-option %d", ErrMalformedBallot, in.QuestionID, *in.DetailID)
		}
	}
	return nil
}
