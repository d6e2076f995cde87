package http

import (
	"encoding/json"
	"net/http"

	"emergency-escalation-service/internal/app"
	"emergency-escalation-service/internal/models"
	"emergency-escalation-service/internal/service/listener"
	"emergency-escalation-service/internal/service/session"
	"emergency-escalation-service/internal/service/triage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// statusResponse describes the service and active session state.
type statusResponse struct {
	Service  string         `json:"service"`
	Listener string         `json:"listener"`
	Session  *sessionStatus `json:"session,omitempty"`
}

type sessionStatus struct {
	ID        string                 `json:"id"`
	State     string                 `json:"state"`
	Trigger   string                 `json:"trigger"`
	Countdown int                    `json:"countdown,omitempty"`
	Silent    bool                   `json:"silent,omitempty"`
	RecordID  string                 `json:"recordId,omitempty"`
	Response  *models.Acknowledgment `json:"response,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application, flow *triage.Flow, fall *triage.FallMonitor, l *listener.Listener) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, buildStatus(flow, l))
		})

		r.Route("/emergency", func(r chi.Router) {
			// Manual SOS button.
			r.Post("/trigger", func(w http.ResponseWriter, req *http.Request) {
				s, err := flow.TriggerManual(req.Context())
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusAccepted, toSessionStatus(s))
			})

			// Motion sensor reporting a suspected fall.
			r.Post("/fall", func(w http.ResponseWriter, req *http.Request) {
				if err := fall.OnFall(req.Context()); err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, http.StatusAccepted, toSessionStatus(flow.Active()))
			})

			// User actions on the confirmation prompt.
			r.Post("/confirm", func(w http.ResponseWriter, req *http.Request) {
				if err := flow.Confirm(req.Context()); err != nil {
					writeError(w, err)
					return
				}
				w.WriteHeader(http.StatusAccepted)
			})
			r.Post("/dismiss", func(w http.ResponseWriter, req *http.Request) {
				if err := flow.Dismiss(req.Context()); err != nil {
					writeError(w, err)
					return
				}
				w.WriteHeader(http.StatusAccepted)
			})

			// Recovery from a failed notification: resubmit, or give
			// the session up so a new emergency can begin.
			r.Post("/retry", func(w http.ResponseWriter, req *http.Request) {
				if err := flow.Retry(req.Context()); err != nil {
					writeError(w, err)
					return
				}
				w.WriteHeader(http.StatusAccepted)
			})
			r.Post("/abandon", func(w http.ResponseWriter, req *http.Request) {
				if err := flow.Abandon(req.Context()); err != nil {
					writeError(w, err)
					return
				}
				w.WriteHeader(http.StatusAccepted)
			})
		})
	})

	return r
}

func buildStatus(flow *triage.Flow, l *listener.Listener) statusResponse {
	resp := statusResponse{
		Service:  "emergency-escalation-service",
		Listener: l.State().String(),
	}
	if s := flow.Active(); s != nil {
		resp.Session = toSessionStatus(s)
	}
	return resp
}

func toSessionStatus(s *session.Session) *sessionStatus {
	if s == nil {
		return nil
	}
	st := &sessionStatus{
		ID:        s.ID(),
		State:     s.State().String(),
		Trigger:   string(s.Trigger()),
		Countdown: s.CountdownRemaining(),
		Silent:    s.Silent(),
		RecordID:  s.RecordID(),
		Response:  s.Response(),
	}
	if err := s.LastError(); err != nil {
		st.Error = err.Error()
	}
	return st
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusConflict
	if err == session.ErrNotAwaiting {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
