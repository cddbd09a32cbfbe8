package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"evoting/internal/domain/meeting"
	"evoting/internal/domain/registry"
	"evoting/internal/domain/voting"
	jwtpkg "evoting/internal/platform/jwt"
	"evoting/internal/worker"
)

type Handler struct {
	meetingSvc  *meeting.Service
	registrySvc *registry.Service
	votingSvc   *voting.Service
	jwtMgr      *jwtpkg.Manager
	ballotCh    chan<- worker.BallotEvent
	db          *sql.DB
}

func NewRouter(
	meetingSvc *meeting.Service,
	registrySvc *registry.Service,
	votingSvc *voting.Service,
	jwtMgr *jwtpkg.Manager,
	ballotCh chan<- worker.BallotEvent,
	db *sql.DB,
) http.Handler {
	h := &Handler{
		meetingSvc:  meetingSvc,
		registrySvc: registrySvc,
		votingSvc:   votingSvc,
		jwtMgr:      jwtMgr,
		ballotCh:    ballotCh,
		db:          db,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(RequestLogger)
	r.Use(CORSMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", h.handleReady)
	r.Get("/swagger/*", httpSwagger.WrapHandler)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(jwtMgr))

			r.Get("/meetings", h.handleListMeetings)
			r.Get("/meetings/{id}", h.handleGetMeeting)
			r.Post("/meetings/{id}/register", h.handleRegister)
			r.Get("/meetings/{id}/accounts", h.handleListAccounts)
			r.Get("/meetings/{id}/ballot/{accountID}", h.handleGetBallot)
			r.With(RateLimitVotes(rate.Every(time.Minute/10), 3)).
				Post("/meetings/{id}/vote/{accountID}", h.handleSubmitVote)
			r.Get("/meetings/{id}/results/{accountID}", h.handleVoteResult)

			r.Group(func(r chi.Router) {
				r.Use(RequireStaff)
				r.Get("/meetings/drafts", h.handleListDrafts)
				r.Post("/meetings", h.handleCreateMeeting)
				r.Get("/meetings/{id}/draft", h.handleGetDraft)
				r.Put("/meetings/{id}/draft", h.handleUpdateDraft)
				r.Put("/meetings/{id}/send", h.handleSendMeeting)
				r.Get("/meetings/{id}/results", h.handleVoteSummary)
				r.Get("/meetings/{id}/participants", h.handleListParticipants)
			})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	idStr := chi.URLParam(r, name)
	return strconv.ParseInt(idStr, 10, 64)
}

func parseTimePtr(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil
	}
	return &t
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":   "db_unavailable",
			"message": "database not configured",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":   "db_unavailable",
			"message": "database not ready",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
