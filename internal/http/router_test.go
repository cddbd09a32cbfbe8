package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"evoting/internal/domain/meeting"
	"evoting/internal/domain/registry"
	"evoting/internal/domain/voting"
	jwtpkg "evoting/internal/platform/jwt"
	"evoting/internal/worker"
)

type holdingKey struct {
	meetingID int64
	accountID int64
	userID    int64
}

type powerKey struct {
	meetingID int64
	accountID int64
}

// memStore backs all three services in one place so entitlement flips and
// vote records stay consistent across them, like the shared database does.
type memStore struct {
	mu       sync.Mutex
	meetings map[int64]*meeting.Meeting
	agendas  map[int64][]meeting.Question
	ents     map[holdingKey]*registry.Entitlement
	powers   map[powerKey]*registry.VotingPower
	records  map[holdingKey]*voting.Record
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{
		meetings: make(map[int64]*meeting.Meeting),
		agendas:  make(map[int64][]meeting.Question),
		ents:     make(map[holdingKey]*registry.Entitlement),
		powers:   make(map[powerKey]*registry.VotingPower),
		records:  make(map[holdingKey]*voting.Record),
		nextID:   1,
	}
}

func (s *memStore) id() int64 {
	v := s.nextID
	s.nextID++
	return v
}

func (s *memStore) assignAgendaIDs(meetingID int64, qs []meeting.Question) []meeting.Question {
	for i := range qs {
		q := &qs[i]
		q.MeetingID = meetingID
		if q.ID == 0 {
			q.ID = s.id()
		}
		for j := range q.Options {
			o := &q.Options[j]
			o.QuestionID = q.ID
			if o.ID == 0 {
				o.ID = s.id()
			}
		}
	}
	return qs
}

func (s *memStore) Create(ctx context.Context, m *meeting.Meeting, questions []meeting.Question) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.id()
	cp := *m
	s.meetings[m.ID] = &cp
	s.agendas[m.ID] = s.assignAgendaIDs(m.ID, questions)
	return m.ID, nil
}

func (s *memStore) GetByID(ctx context.Context, id int64) (*meeting.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return nil, meeting.ErrMeetingNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) ListPublished(ctx context.Context) ([]meeting.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []meeting.Meeting
	for _, m := range s.meetings {
		if !m.Draft {
			res = append(res, *m)
		}
	}
	return res, nil
}

func (s *memStore) ListPublishedForUser(ctx context.Context, userID int64) ([]meeting.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []meeting.Meeting
	for _, m := range s.meetings {
		if m.Draft {
			continue
		}
		for k := range s.ents {
			if k.meetingID == m.ID && k.userID == userID {
				res = append(res, *m)
				break
			}
		}
	}
	return res, nil
}

func (s *memStore) ListDrafts(ctx context.Context) ([]meeting.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []meeting.Meeting
	for _, m := range s.meetings {
		if m.Draft {
			res = append(res, *m)
		}
	}
	return res, nil
}

func (s *memStore) UpdateDraft(ctx context.Context, m *meeting.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.meetings[m.ID]
	if !ok {
		return meeting.ErrMeetingNotFound
	}
	if !stored.Draft {
		return meeting.ErrNotDraft
	}
	cp := *m
	cp.Draft = true
	s.meetings[m.ID] = &cp
	return nil
}

func (s *memStore) MarkSent(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return meeting.ErrMeetingNotFound
	}
	if !m.Draft {
		return meeting.ErrAlreadySent
	}
	m.Draft = false
	m.SentAt = &at
	m.Phase = meeting.PhasePending
	return nil
}

func (s *memStore) UpdatePhase(ctx context.Context, id int64, p meeting.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return meeting.ErrMeetingNotFound
	}
	m.Phase = p
	return nil
}

func (s *memStore) Agenda(ctx context.Context, meetingID int64) ([]meeting.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	qs := make([]meeting.Question, len(s.agendas[meetingID]))
	copy(qs, s.agendas[meetingID])
	return qs, nil
}

func (s *memStore) ReconcileAgenda(ctx context.Context, meetingID int64, incoming []meeting.Question) ([]meeting.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agendas[meetingID] = s.assignAgendaIDs(meetingID, incoming)
	qs := make([]meeting.Question, len(s.agendas[meetingID]))
	copy(qs, s.agendas[meetingID])
	return qs, nil
}

func (s *memStore) EntitlementsForUser(ctx context.Context, meetingID, userID int64) ([]registry.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []registry.Entitlement
	for k, e := range s.ents {
		if k.meetingID == meetingID && k.userID == userID {
			res = append(res, *e)
		}
	}
	return res, nil
}

func (s *memStore) RegisterAll(ctx context.Context, meetingID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.ents {
		if k.meetingID == meetingID && k.userID == userID {
			e.Registered = true
		}
	}
	return nil
}

func (s *memStore) HasAccount(ctx context.Context, meetingID, userID, accountID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ents[holdingKey{meetingID, accountID, userID}]
	return ok, nil
}

func (s *memStore) IsRegistered(ctx context.Context, meetingID, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.ents {
		if k.meetingID == meetingID && k.userID == userID && e.Registered {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) AccountsForUser(ctx context.Context, meetingID, userID int64) ([]registry.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []registry.Account
	for k := range s.ents {
		if k.meetingID != meetingID || k.userID != userID {
			continue
		}
		acc := registry.Account{AccountID: k.accountID}
		if p := s.powers[powerKey{meetingID, k.accountID}]; p != nil {
			acc.HolderName = p.HolderName
			acc.Quantity = p.Quantity
		}
		if rec := s.records[k]; rec != nil && rec.Cast() {
			acc.Voted = true
		}
		res = append(res, acc)
	}
	return res, nil
}

func (s *memStore) VotingPower(ctx context.Context, meetingID, accountID int64) (*registry.VotingPower, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.powers[powerKey{meetingID, accountID}]
	if p == nil {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) AccountRegistered(ctx context.Context, meetingID, accountID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.ents {
		if k.meetingID == meetingID && k.accountID == accountID && e.Registered {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) RegisteredParticipants(ctx context.Context, meetingID int64) ([]registry.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []registry.Participant
	for k, e := range s.ents {
		if k.meetingID == meetingID && e.Registered {
			p := registry.Participant{AccountID: k.accountID}
			if vp := s.powers[powerKey{meetingID, k.accountID}]; vp != nil {
				p.HolderName = vp.HolderName
			}
			res = append(res, p)
		}
	}
	return res, nil
}

func (s *memStore) ImportHolding(ctx context.Context, power *registry.VotingPower, userID int64) error {
	s.seedHolding(power.MeetingID, power.AccountID, userID, power.HolderName, string(power.Quantity))
	return nil
}

func (s *memStore) Get(ctx context.Context, meetingID, accountID, userID int64) (*voting.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[holdingKey{meetingID, accountID, userID}]
	if !ok {
		return nil, voting.ErrRecordMissing
	}
	cp := *rec
	return &cp, nil
}

func (s *memStore) GetForAccount(ctx context.Context, meetingID, accountID int64) (*voting.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, rec := range s.records {
		if k.meetingID == meetingID && k.accountID == accountID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, voting.ErrRecordMissing
}

func (s *memStore) ListByMeeting(ctx context.Context, meetingID int64) ([]voting.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []voting.Record
	for k, rec := range s.records {
		if k.meetingID == meetingID {
			res = append(res, *rec)
		}
	}
	return res, nil
}

func (s *memStore) CastVote(ctx context.Context, meetingID, accountID, userID int64, payload json.RawMessage, implicitRegister bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := holdingKey{meetingID, accountID, userID}
	rec, ok := s.records[key]
	if !ok {
		return voting.ErrRecordMissing
	}
	if rec.Cast() {
		return voting.ErrAlreadyVoted
	}
	rec.Payload = append(json.RawMessage(nil), payload...)
	now := time.Now()
	rec.CastAt = &now
	if implicitRegister {
		if e := s.ents[key]; e != nil {
			e.Registered = true
		}
	}
	return nil
}

// seedHolding provisions an entitlement, its voting power and the empty vote
// record, the way the import path does.
func (s *memStore) seedHolding(meetingID, accountID, userID int64, name, quantity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := holdingKey{meetingID, accountID, userID}
	s.ents[key] = &registry.Entitlement{MeetingID: meetingID, AccountID: accountID, UserID: userID}
	s.powers[powerKey{meetingID, accountID}] = &registry.VotingPower{
		MeetingID: meetingID, AccountID: accountID,
		HolderName: name, Quantity: json.RawMessage(quantity),
	}
	s.records[key] = &voting.Record{
		ID: s.id(), MeetingID: meetingID, AccountID: accountID, UserID: userID,
	}
}

func (s *memStore) markRegistered(meetingID, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.ents {
		if k.meetingID == meetingID && k.userID == userID {
			e.Registered = true
		}
	}
}

// seedPublished stores an already sent meeting with its agenda.
func (s *memStore) seedPublished(m *meeting.Meeting, questions []meeting.Question) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.id()
	m.Draft = false
	if m.SentAt == nil {
		now := time.Now().Add(-24 * time.Hour)
		m.SentAt = &now
	}
	if m.Phase == 0 {
		m.Phase = meeting.PhasePending
	}
	cp := *m
	s.meetings[m.ID] = &cp
	s.agendas[m.ID] = s.assignAgendaIDs(m.ID, questions)
	return m.ID
}

type apiFixture struct {
	store  *memStore
	router http.Handler
	jwtMgr *jwtpkg.Manager
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store := newMemStore()
	meetingSvc := meeting.NewService(store)
	registrySvc := registry.NewService(store)
	votingSvc := voting.NewService(store, registrySvc, meetingSvc)
	jwtMgr := jwtpkg.NewManager("test-secret", "evoting")
	ballotCh := make(chan worker.BallotEvent, 16)

	return &apiFixture{
		store:  store,
		router: NewRouter(meetingSvc, registrySvc, votingSvc, jwtMgr, ballotCh, nil),
		jwtMgr: jwtMgr,
	}
}

func (f *apiFixture) token(t *testing.T, userID int64, staff bool) string {
	t.Helper()
	tok, err := f.jwtMgr.Generate(userID, staff, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return tok
}

func (f *apiFixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid json body %q: %v", rec.Body.String(), err)
	}
	return out
}

// registrationMeeting is inside its check-in window right now.
func registrationMeeting(early bool) *meeting.Meeting {
	now := time.Now()
	return &meeting.Meeting{
		Name:              "annual general meeting",
		Location:          "1 Main St",
		DeadlineDate:      tptr(now.Add(-48 * time.Hour)),
		Checkin:           tptr(now.Add(-time.Hour)),
		Closeout:          tptr(now.Add(time.Hour)),
		MeetingOpen:       tptr(now.Add(2 * time.Hour)),
		MeetingClose:      tptr(now.Add(5 * time.Hour)),
		VoteCounting:      tptr(now.Add(6 * time.Hour)),
		EarlyRegistration: early,
	}
}

// votingMeeting is inside its voting window right now.
func votingMeeting() *meeting.Meeting {
	now := time.Now()
	return &meeting.Meeting{
		Name:         "annual general meeting",
		Location:     "1 Main St",
		Checkin:      tptr(now.Add(-3 * time.Hour)),
		Closeout:     tptr(now.Add(-2 * time.Hour)),
		MeetingOpen:  tptr(now.Add(-time.Hour)),
		MeetingClose: tptr(now.Add(2 * time.Hour)),
		VoteCounting: tptr(now.Add(3 * time.Hour)),
	}
}

func tptr(t time.Time) *time.Time { return &t }

func testAgenda() []meeting.Question {
	return []meeting.Question{
		{Prompt: "Approve the annual report", Decision: "approve", SeatCount: 1},
		{Prompt: "Elect the board", Decision: "elect", Cumulative: true, SeatCount: 2, Options: []meeting.Option{
			{Text: "A. Ivanov"}, {Text: "B. Petrov"},
		}},
	}
}

func ballotJSON(q1, q2 int64, d1, d2 int64) string {
	return fmt.Sprintf(`{"VoteDtls": {"VoteInstrForAgndRsltn": [
		{"VoteInstr": {"For": {"Quantity": 50}, "QuestionId": %d}},
		{"VoteInstr": {"DetailId": %d, "For": {"Quantity": 30}, "QuestionId": %d}},
		{"VoteInstr": {"DetailId": %d, "Against": {"Quantity": 20}, "QuestionId": %d}}
	]}}`, q1, d1, q2, d2, q2)
}

func TestAuthRequired(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/meetings", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/meetings", "not-a-token", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status = %d, want 401", rec.Code)
	}
}

func TestStaffGate(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/meetings/drafts", f.token(t, 100, false), "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-staff: status = %d, want 403", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/meetings/drafts", f.token(t, 1, true), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("staff: status = %d, want 200", rec.Code)
	}
}

func TestHealthAndReady(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health: status = %d, want 200", rec.Code)
	}

	// No database is wired in tests.
	rec = f.do(t, http.MethodGet, "/ready", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready: status = %d, want 503", rec.Code)
	}
}

func TestMeetingVisibility(t *testing.T) {
	f := newAPIFixture(t)
	id := f.store.seedPublished(registrationMeeting(false), testAgenda())
	f.store.seedHolding(id, 10, 100, "Holder One", `{"ordinary": 50}`)

	rec := f.do(t, http.MethodGet, "/api/v1/meetings", f.token(t, 100, false), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("entitled user: status = %d, want 200", rec.Code)
	}
	var visible []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &visible); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(visible) != 1 {
		t.Fatalf("entitled user sees %d meetings, want 1", len(visible))
	}
	if _, ok := visible[0]["accounts"]; !ok {
		t.Fatal("participant listing missing accounts")
	}

	rec = f.do(t, http.MethodGet, "/api/v1/meetings", f.token(t, 999, false), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stranger: status = %d, want 200", rec.Code)
	}
	var none []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &none); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("stranger sees %d meetings, want 0", len(none))
	}
}

func TestRegistrationFlow(t *testing.T) {
	f := newAPIFixture(t)
	id := f.store.seedPublished(registrationMeeting(false), testAgenda())
	f.store.seedHolding(id, 10, 100, "Holder One", `{"ordinary": 50}`)
	base := fmt.Sprintf("/api/v1/meetings/%d", id)

	rec := f.do(t, http.MethodPost, base+"/register", f.token(t, 999, false), "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unentitled: status = %d, want 403", rec.Code)
	}

	rec = f.do(t, http.MethodPost, base+"/register", f.token(t, 100, false), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("register: status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, base+"/register", f.token(t, 100, false), "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("second register: status = %d, want 409", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "already_registered" {
		t.Fatalf("second register error = %v", body["error"])
	}
}

func TestVoteFlow(t *testing.T) {
	f := newAPIFixture(t)
	id := f.store.seedPublished(votingMeeting(), testAgenda())
	f.store.seedHolding(id, 10, 100, "Holder One", `{"ordinary": 50}`)
	f.store.markRegistered(id, 100)
	base := fmt.Sprintf("/api/v1/meetings/%d", id)

	agenda, err := f.store.Agenda(context.Background(), id)
	if err != nil {
		t.Fatalf("agenda: %v", err)
	}
	q1, q2 := agenda[0].ID, agenda[1].ID
	d1, d2 := agenda[1].Options[0].ID, agenda[1].Options[1].ID

	user := f.token(t, 100, false)

	rec := f.do(t, http.MethodGet, fmt.Sprintf("%s/ballot/%d", base, 10), user, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ballot: status = %d, body %s", rec.Code, rec.Body.String())
	}
	ballot := decodeBody(t, rec)
	if ballot["vote_count"] == nil {
		t.Fatal("ballot missing vote_count")
	}
	if items, ok := ballot["agenda"].([]any); !ok || len(items) != 2 {
		t.Fatalf("ballot agenda = %v", ballot["agenda"])
	}

	payload := ballotJSON(q1, q2, d1, d2)
	rec = f.do(t, http.MethodPost, fmt.Sprintf("%s/vote/%d", base, 10), user, payload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("vote: status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, fmt.Sprintf("%s/vote/%d", base, 10), user, payload)
	if rec.Code != http.StatusConflict {
		t.Fatalf("revote: status = %d, want 409", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "already_voted" {
		t.Fatalf("revote error = %v", body["error"])
	}

	rec = f.do(t, http.MethodGet, fmt.Sprintf("%s/ballot/%d", base, 10), user, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("ballot after vote: status = %d, want 409", rec.Code)
	}

	rec = f.do(t, http.MethodGet, fmt.Sprintf("%s/results/%d", base, 10), user, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("own result: status = %d, body %s", rec.Code, rec.Body.String())
	}
	result := decodeBody(t, rec)
	if result["votes"] == nil {
		t.Fatal("own result missing votes")
	}

	rec = f.do(t, http.MethodGet, base+"/results", f.token(t, 1, true), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("summary: status = %d, body %s", rec.Code, rec.Body.String())
	}
	summary := decodeBody(t, rec)
	if summary["SummarizedVoteResults"] == nil {
		t.Fatal("summary missing SummarizedVoteResults")
	}
}

func TestVoteForeignAccountForbidden(t *testing.T) {
	f := newAPIFixture(t)
	id := f.store.seedPublished(votingMeeting(), testAgenda())
	f.store.seedHolding(id, 10, 100, "Holder One", `{"ordinary": 50}`)
	f.store.seedHolding(id, 20, 200, "Holder Two", `{"ordinary": 30}`)
	f.store.markRegistered(id, 100)

	agenda, _ := f.store.Agenda(context.Background(), id)
	payload := ballotJSON(agenda[0].ID, agenda[1].ID, agenda[1].Options[0].ID, agenda[1].Options[1].ID)

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/meetings/%d/vote/%d", id, 20), f.token(t, 100, false), payload)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign account: status = %d, want 403", rec.Code)
	}
}

func TestResultDeniesUnknownAccount(t *testing.T) {
	f := newAPIFixture(t)
	id := f.store.seedPublished(votingMeeting(), testAgenda())
	f.store.seedHolding(id, 10, 100, "Holder One", `{"ordinary": 50}`)

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/meetings/%d/results/%d", id, 777), f.token(t, 100, false), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown account: status = %d, want 404", rec.Code)
	}

	// An existing but never-registered account must look exactly the same.
	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/meetings/%d/results/%d", id, 10), f.token(t, 100, false), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unregistered account: status = %d, want 404", rec.Code)
	}
}

func TestSummaryWithoutVotes(t *testing.T) {
	f := newAPIFixture(t)
	id := f.store.seedPublished(votingMeeting(), testAgenda())

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/meetings/%d/results", id), f.token(t, 1, true), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("no votes: status = %d, want 404", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "no_votes_yet" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestDraftLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.token(t, 1, true)

	rec := f.do(t, http.MethodPost, "/api/v1/meetings", staff, `{"meeting_name": "new agm"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody(t, rec)
	id := int64(created["meeting_id"].(float64))
	base := fmt.Sprintf("/api/v1/meetings/%d", id)

	// Drafts stay hidden from participants.
	rec = f.do(t, http.MethodGet, base, f.token(t, 100, false), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("draft visible to participant: status = %d, want 404", rec.Code)
	}

	rec = f.do(t, http.MethodPut, base+"/send", staff, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("incomplete send: status = %d, want 400", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "missing_fields" {
		t.Fatalf("incomplete send error = %v", body["error"])
	}

	now := time.Now()
	stamp := func(d time.Duration) string { return now.Add(d).Format(time.RFC3339) }
	full := fmt.Sprintf(`{
		"meeting_name": "new agm",
		"meeting_location": "1 Main St",
		"meeting_date": %q,
		"decision_date": %q,
		"record_date": %q,
		"deadline_date": %q,
		"checkin": %q,
		"closeout": %q,
		"meeting_open": %q,
		"meeting_close": %q,
		"vote_counting": %q,
		"agenda": [
			{"question": "Approve the annual report", "decision": "approve"},
			{"question": "Elect the board", "cumulative": true, "details": [
				{"detail_text": "A. Ivanov"}, {"detail_text": "B. Petrov"}
			]}
		]
	}`, stamp(72*time.Hour), stamp(-240*time.Hour), stamp(-120*time.Hour), stamp(24*time.Hour),
		stamp(48*time.Hour), stamp(50*time.Hour), stamp(51*time.Hour), stamp(55*time.Hour), stamp(56*time.Hour))

	rec = f.do(t, http.MethodPut, base+"/draft", staff, full)
	if rec.Code != http.StatusOK {
		t.Fatalf("update draft: status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPut, base+"/send", staff, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("send: status = %d, body %s", rec.Code, rec.Body.String())
	}
	sent := decodeBody(t, rec)
	if sent["is_draft"] != false {
		t.Fatalf("is_draft = %v after send", sent["is_draft"])
	}

	rec = f.do(t, http.MethodPut, base+"/send", staff, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("second send: status = %d, want 409", rec.Code)
	}

	rec = f.do(t, http.MethodPut, base+"/draft", staff, full)
	if rec.Code != http.StatusConflict {
		t.Fatalf("edit after send: status = %d, want 409", rec.Code)
	}
}

func TestEarlyVotingRegistersVoter(t *testing.T) {
	f := newAPIFixture(t)
	id := f.store.seedPublished(registrationMeeting(true), testAgenda())
	f.store.seedHolding(id, 10, 100, "Holder One", `{"ordinary": 50}`)
	user := f.token(t, 100, false)

	agenda, _ := f.store.Agenda(context.Background(), id)
	payload := ballotJSON(agenda[0].ID, agenda[1].ID, agenda[1].Options[0].ID, agenda[1].Options[1].ID)

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/meetings/%d/vote/%d", id, 10), user, payload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("early vote: status = %d, body %s", rec.Code, rec.Body.String())
	}

	registered, err := f.store.IsRegistered(context.Background(), id, 100)
	if err != nil {
		t.Fatalf("is registered: %v", err)
	}
	if !registered {
		t.Fatal("early ballot did not register the voter")
	}
}
