package api

import (
	"encoding/json"
	"net/http"

	"evoting/internal/domain/meeting"
	"evoting/internal/domain/registry"
	"evoting/internal/platform/apperr"
)

type meetingRequest struct {
	Name     string `json:"meeting_name"`
	Location string `json:"meeting_location"`
	URL      string `json:"meeting_url"`

	MeetingDate  *string `json:"meeting_date"`
	DecisionDate *string `json:"decision_date"`
	RecordDate   *string `json:"record_date"`
	DeadlineDate *string `json:"deadline_date"`

	Checkin      *string `json:"checkin"`
	Closeout     *string `json:"closeout"`
	MeetingOpen  *string `json:"meeting_open"`
	MeetingClose *string `json:"meeting_close"`
	VoteCounting *string `json:"vote_counting"`

	Annual            bool `json:"annual"`
	Repeated          bool `json:"repeated"`
	InPerson          bool `json:"in_person"`
	EarlyRegistration bool `json:"early_registration"`

	Agenda []agendaItemRequest `json:"agenda"`
}

type agendaItemRequest struct {
	QuestionID int64           `json:"question_id"`
	Question   string          `json:"question"`
	Decision   string          `json:"decision"`
	Cumulative bool            `json:"cumulative"`
	Details    []detailRequest `json:"details"`
}

type detailRequest struct {
	DetailID   int64  `json:"detail_id"`
	DetailText string `json:"detail_text"`
}

func (req *meetingRequest) toMeeting() *meeting.Meeting {
	return &meeting.Meeting{
		Name:              req.Name,
		Location:          req.Location,
		URL:               req.URL,
		MeetingDate:       parseTimePtr(req.MeetingDate),
		DecisionDate:      parseTimePtr(req.DecisionDate),
		RecordDate:        parseTimePtr(req.RecordDate),
		DeadlineDate:      parseTimePtr(req.DeadlineDate),
		Checkin:           parseTimePtr(req.Checkin),
		Closeout:          parseTimePtr(req.Closeout),
		MeetingOpen:       parseTimePtr(req.MeetingOpen),
		MeetingClose:      parseTimePtr(req.MeetingClose),
		VoteCounting:      parseTimePtr(req.VoteCounting),
		Annual:            req.Annual,
		Repeated:          req.Repeated,
		InPerson:          req.InPerson,
		EarlyRegistration: req.EarlyRegistration,
	}
}

func (req *meetingRequest) toQuestions() []meeting.Question {
	questions := make([]meeting.Question, 0, len(req.Agenda))
	for _, item := range req.Agenda {
		q := meeting.Question{
			ID:         item.QuestionID,
			Prompt:     item.Question,
			Decision:   item.Decision,
			Cumulative: item.Cumulative,
			Options:    make([]meeting.Option, 0, len(item.Details)),
		}
		for _, d := range item.Details {
			q.Options = append(q.Options, meeting.Option{ID: d.DetailID, Text: d.DetailText})
		}
		questions = append(questions, q)
	}
	return questions
}

type meetingWithAccounts struct {
	meeting.Meeting
	Accounts []registry.Account `json:"accounts,omitempty"`
}

func (h *Handler) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromCtx(r)
	staff := isStaffFromCtx(r)

	meetings, err := h.meetingSvc.ListVisible(r.Context(), userID, staff)
	if err != nil {
		errorResponse(w, err)
		return
	}

	if staff {
		writeJSON(w, http.StatusOK, meetings)
		return
	}

	// Participants also get their accounts and voting power per meeting.
	out := make([]meetingWithAccounts, 0, len(meetings))
	for _, m := range meetings {
		accounts, err := h.registrySvc.Accounts(r.Context(), m.ID, userID)
		if err != nil {
			errorResponse(w, err)
			return
		}
		out = append(out, meetingWithAccounts{Meeting: m, Accounts: accounts})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetMeeting(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid meeting id", err))
		return
	}

	m, err := h.meetingSvc.Get(r.Context(), id)
	if err != nil {
		errorResponse(w, err)
		return
	}
	if m.Draft && !isStaffFromCtx(r) {
		errorResponse(w, meeting.ErrMeetingNotFound)
		return
	}

	agenda, err := h.meetingSvc.Agenda(r.Context(), id)
	if err != nil {
		errorResponse(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"meeting": m,
		"agenda":  agenda,
	})
}

func (h *Handler) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := h.meetingSvc.Drafts(r.Context())
	if err != nil {
		errorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drafts)
}

func (h *Handler) handleCreateMeeting(w http.ResponseWriter, r *http.Request) {
	var req meetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}

	id, err := h.meetingSvc.CreateDraft(r.Context(), req.toMeeting(), req.toQuestions())
	if err != nil {
		errorResponse(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"meeting_id": id})
}

func (h *Handler) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid meeting id", err))
		return
	}

	m, agenda, err := h.meetingSvc.GetDraft(r.Context(), id)
	if err != nil {
		errorResponse(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"meeting": m,
		"agenda":  agenda,
	})
}

func (h *Handler) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid meeting id", err))
		return
	}

	var req meetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}

	m := req.toMeeting()
	m.ID = id
	agenda, err := h.meetingSvc.UpdateDraft(r.Context(), m, req.toQuestions())
	if err != nil {
		errorResponse(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"meeting": m,
		"agenda":  agenda,
	})
}

// @Summary     Publish a draft meeting
// @Tags        meetings
// @Security    BearerAuth
// @Produce     json
// @Param       id   path      int64  true  "Meeting ID"
// @Success     200  {object}  map[string]any
// @Failure     400  {object}  map[string]string  "missing fields or empty agenda"
// @Failure     409  {object}  map[string]string  "already sent"
// @Router      /api/v1/meetings/{id}/send [put]
func (h *Handler) handleSendMeeting(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid meeting id", err))
		return
	}

	m, err := h.meetingSvc.Send(r.Context(), id)
	if err != nil {
		errorResponse(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "meeting sent",
		"meeting_id": m.ID,
		"is_draft":   m.Draft,
		"sent_at":    m.SentAt,
	})
}
