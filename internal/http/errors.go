package api

import (
	"database/sql"
	"errors"
	"net/http"

	"evoting/internal/domain/meeting"
	"evoting/internal/domain/registry"
	"evoting/internal/domain/voting"
	"evoting/internal/platform/apperr"
)

func errorResponse(w http.ResponseWriter, err error) {
	appErr := mapError(err)
	writeJSON(w, appErr.StatusCode(), map[string]string{
		"error":   appErr.Code,
		"message": appErr.Message,
	})
}

// mapError translates domain sentinels into the transport error taxonomy.
// Storage-level conflicts never leak raw: the repositories already fold the
// unique-violation race into voting.ErrAlreadyVoted.
func mapError(err error) *apperr.AppError {
	if err == nil {
		return apperr.Internal("internal_error", "internal server error", nil)
	}

	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var missing *meeting.MissingFieldsError
	if errors.As(err, &missing) {
		return apperr.BadRequest("missing_fields", missing.Error(), err)
	}

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return apperr.NotFound("not_found", "resource not found", err)
	case errors.Is(err, meeting.ErrMeetingNotFound):
		return apperr.NotFound("meeting_not_found", "meeting not found", err)
	case errors.Is(err, meeting.ErrNotDraft):
		return apperr.Conflict("not_a_draft", "meeting is not a draft", err)
	case errors.Is(err, meeting.ErrAlreadySent):
		return apperr.Conflict("already_sent", "meeting has already been sent", err)
	case errors.Is(err, meeting.ErrEmptyAgenda):
		return apperr.BadRequest("empty_agenda", "cannot send a meeting without an agenda", err)
	case errors.Is(err, meeting.ErrMilestoneOrder):
		return apperr.BadRequest("milestone_order", "meeting milestones are out of order", err)
	case errors.Is(err, registry.ErrNotEntitled):
		return apperr.Forbidden("not_entitled", "you are not linked to this meeting", err)
	case errors.Is(err, registry.ErrAlreadyRegistered):
		return apperr.Conflict("already_registered", "you are already registered for this meeting", err)
	case errors.Is(err, registry.ErrRegistrationClosed):
		return apperr.Conflict("registration_closed", "registration is not open", err)
	case errors.Is(err, voting.ErrVotingNotOpen):
		return apperr.Conflict("voting_not_open", "voting is currently unavailable", err)
	case errors.Is(err, voting.ErrEmptyBallot):
		return apperr.BadRequest("empty_ballot", "no vote instructions submitted", err)
	case errors.Is(err, voting.ErrMalformedBallot):
		return apperr.BadRequest("malformed_ballot", err.Error(), err)
	case errors.Is(err, voting.ErrNotRegistered):
		return apperr.Forbidden("not_registered", "you are not registered for this meeting", err)
	case errors.Is(err, voting.ErrNoVotingPower):
		return apperr.Forbidden("no_voting_power", "you have no voting power in this meeting", err)
	case errors.Is(err, voting.ErrAccountMismatch):
		return apperr.Forbidden("account_mismatch", "you cannot vote with this account", err)
	case errors.Is(err, voting.ErrAlreadyVoted):
		return apperr.Conflict("already_voted", "a ballot was already cast for this account", err)
	case errors.Is(err, voting.ErrNoVotesYet):
		return apperr.NotFound("no_votes_yet", "nobody has voted in this meeting yet", err)
	case errors.Is(err, voting.ErrRecordMissing):
		return apperr.NotFound("not_found", "resource not found", err)
	default:
		return apperr.Internal("internal_error", http.StatusText(http.StatusInternalServerError), err)
	}
}
