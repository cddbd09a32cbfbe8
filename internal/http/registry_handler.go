package api

import (
	"net/http"

	"evoting/internal/metrics"
	"evoting/internal/platform/apperr"
)

// @Summary     Register for a meeting
// @Tags        registration
// @Security    BearerAuth
// @Produce     json
// @Param       id   path      int64  true  "Meeting ID"
// @Success     200  {object}  map[string]string
// @Failure     403  {object}  map[string]string  "not entitled"
// @Failure     409  {object}  map[string]string  "already registered or wrong phase"
// @Router      /api/v1/meetings/{id}/register [post]
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
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

	userID := userIDFromCtx(r)
	if err := h.registrySvc.Register(r.Context(), m, userID); err != nil {
		errorResponse(w, err)
		return
	}

	metrics.IncRegistration(meetingID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "you are registered for the meeting"})
}

func (h *Handler) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	meetingID, err := parseIDParam(r, "id")
	if err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid meeting id", err))
		return
	}

	if _, err := h.meetingSvc.Get(r.Context(), meetingID); err != nil {
		errorResponse(w, err)
		return
	}

	accounts, err := h.registrySvc.Accounts(r.Context(), meetingID, userIDFromCtx(r))
	if err != nil {
		errorResponse(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"meeting_id": meetingID,
		"accounts":   accounts,
	})
}

func (h *Handler) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	meetingID, err := parseIDParam(r, "id")
	if err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid meeting id", err))
		return
	}

	if _, err := h.meetingSvc.Get(r.Context(), meetingID); err != nil {
		errorResponse(w, err)
		return
	}

	participants, err := h.registrySvc.Participants(r.Context(), meetingID)
	if err != nil {
		errorResponse(w, err)
		return
	}

	writeJSON(w, http.StatusOK, participants)
}
