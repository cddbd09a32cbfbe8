package api

import (
	"encoding/json"
	"io"
	"net/http"

	"evoting/internal/domain/voting"
	"evoting/internal/platform/apperr"
	"evoting/internal/worker"
)

type ballotResponse struct {
	voting.Ballot
	VoteCount json.RawMessage `json:"vote_count"`
}

// @Summary     Get the ballot for one account
// @Tags        votes
// @Security    BearerAuth
// @Produce     json
// @Param       id        path      int64  true  "Meeting ID"
// @Param       accountID path      int64  true  "Account ID"
// @Success     200  {object}  ballotResponse
// @Failure     403  {object}  map[string]string  "not registered or wrong account"
// @Failure     409  {object}  map[string]string  "voting closed or already voted"
// @Router      /api/v1/meetings/{id}/ballot/{accountID} [get]
func (h *Handler) handleGetBallot(w http.ResponseWriter, r *http.Request) {
	meetingID, accountID, err := parseMeetingAccount(r)
	if err != nil {
		errorResponse(w, err)
		return
	}

	m, err := h.meetingSvc.Get(r.Context(), meetingID)
	if err != nil {
		errorResponse(w, err)
		return
	}

	ballot, power, err := h.votingSvc.BallotFor(r.Context(), m, accountID, userIDFromCtx(r))
	if err != nil {
		errorResponse(w, err)
		return
	}

	resp := ballotResponse{Ballot: *ballot}
	if power != nil {
		resp.VoteCount = power.Quantity
	}
	writeJSON(w, http.StatusOK, resp)
}

// @Summary     Submit a ballot for one account
// @Tags        votes
// @Security    BearerAuth
// @Accept      json
// @Produce     json
// @Param       id        path      int64          true  "Meeting ID"
// @Param       accountID path      int64          true  "Account ID"
// @Param       request   body      voting.Payload true  "Ballot payload"
// @Success     201  {object}  map[string]string
// @Failure     400  {object}  map[string]string  "empty or malformed ballot"
// @Failure     403  {object}  map[string]string  "not registered or wrong account"
// @Failure     409  {object}  map[string]string  "voting closed or already voted"
// @Router      /api/v1/meetings/{id}/vote/{accountID} [post]
func (h *Handler) handleSubmitVote(w http.ResponseWriter, r *http.Request) {
	meetingID, accountID, err := parseMeetingAccount(r)
	if err != nil {
		errorResponse(w, err)
		return
	}

	m, err := h.meetingSvc.Get(r.Context(), meetingID)
	if err != nil {
		errorResponse(w, err)
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "cannot read body", err))
		return
	}
	if len(raw) == 0 {
		errorResponse(w, voting.ErrEmptyBallot)
		return
	}

	userID := userIDFromCtx(r)
	if err := h.votingSvc.Submit(r.Context(), m, accountID, userID, raw); err != nil {
		errorResponse(w, err)
		return
	}

	select {
	case h.ballotCh <- worker.BallotEvent{MeetingID: meetingID, AccountID: accountID, UserID: userID}:
	default:
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "your vote has been recorded"})
}

func (h *Handler) handleVoteResult(w http.ResponseWriter, r *http.Request) {
	meetingID, accountID, err := parseMeetingAccount(r)
	if err != nil {
		errorResponse(w, err)
		return
	}

	m, err := h.meetingSvc.Get(r.Context(), meetingID)
	if err != nil {
		errorResponse(w, err)
		return
	}

	staff := isStaffFromCtx(r)
	rec, err := h.votingSvc.Result(r.Context(), meetingID, accountID, userIDFromCtx(r), staff)
	if err != nil {
		errorResponse(w, err)
		return
	}

	if staff && !rec.Cast() {
		writeJSON(w, http.StatusOK, map[string]string{"message": "no ballot cast for this account yet"})
		return
	}

	agenda, err := h.meetingSvc.Agenda(r.Context(), meetingID)
	if err != nil {
		errorResponse(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account_id": rec.AccountID,
		"data":       voting.BuildBallot(m, agenda),
		"votes":      rec.Payload,
	})
}

// @Summary     Aggregated voting results for a meeting
// @Tags        results
// @Security    BearerAuth
// @Produce     json
// @Param       id   path      int64  true  "Meeting ID"
// @Success     200  {object}  map[string]any
// @Failure     404  {object}  map[string]string  "no votes yet"
// @Router      /api/v1/meetings/{id}/results [get]
func (h *Handler) handleVoteSummary(w http.ResponseWriter, r *http.Request) {
	meetingID, err := parseIDParam(r, "id")
	if err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid meeting id", err))
		return
	}

	m, err := h.meetingSvc.Get(r.Context(), meetingID)
	if err != nil {
		errorResponse(w, err)
		return
	}

	agenda, err := h.meetingSvc.Agenda(r.Context(), meetingID)
	if err != nil {
		errorResponse(w, err)
		return
	}

	summary, err := h.votingSvc.Summarize(r.Context(), meetingID, agenda)
	if err != nil {
		errorResponse(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":                  voting.BuildBallot(m, agenda),
		"SummarizedVoteResults": summary,
	})
}

func parseMeetingAccount(r *http.Request) (int64, int64, error) {
	meetingID, err := parseIDParam(r, "id")
	if err != nil {
		return 0, 0, apperr.BadRequest("invalid_input", "invalid meeting id", err)
	}
	accountID, err := parseIDParam(r, "accountID")
	if err != nil {
		return 0, 0, apperr.BadRequest("invalid_input", "invalid account id", err)
	}
	return meetingID, accountID, nil
}
