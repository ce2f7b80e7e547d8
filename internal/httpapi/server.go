package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/checkboard/internal/catalog"
	"github.com/hamed0406/checkboard/internal/diagram"
	"github.com/hamed0406/checkboard/internal/domain"
	"github.com/hamed0406/checkboard/internal/engine"
	apimw "github.com/hamed0406/checkboard/internal/httpapi/middleware"
	"github.com/hamed0406/checkboard/internal/repo"
	"github.com/hamed0406/checkboard/internal/secret"
	"github.com/hamed0406/checkboard/internal/status"
)

// SecretHeader carries the operator's answer to the refresh secret prompt.
const SecretHeader = "X-Refresh-Secret"

// Engine is the part of engine.Engine the API needs.
type Engine interface {
	Checks() []domain.Check
	State(key domain.Key) (domain.State, bool)
	TriggerManual(ctx context.Context, key domain.Key) (domain.State, error)
}

type StatusSource interface {
	Summary() status.Summary
}

type Server struct {
	Logger  *zap.Logger
	Engine  Engine
	Status  StatusSource
	Events  *Hub
	Diagram *diagram.SVG     // nil when no diagram is configured
	Store   repo.StateStore // optional; fills last_known for checks not yet refreshed
}

func NewServer(l *zap.Logger, eng Engine, st StatusSource, hub *Hub) *Server {
	return &Server{Logger: l, Engine: eng, Status: st, Events: hub}
}

// Router builds the HTTP handler. An empty origins list allows any origin.
// refreshRPM <= 0 disables the manual refresh rate limit.
func (s *Server) Router(origins []string, refreshRPM, refreshBurst int) http.Handler {
	r := chi.NewRouter()
	if len(origins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", SecretHeader},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/checks", s.handleListChecks)
		r.Get("/checks/{project}/{name}", s.handleGetCheck)
		r.With(apimw.RateLimit(refreshRPM, refreshBurst)).
			Post("/checks/{project}/{name}/refresh", s.handleRefresh)
		r.Get("/status", s.handleStatus)
		if s.Events != nil {
			r.Get("/events", s.Events.ServeHTTP)
		}
	})

	r.Get("/diagram.svg", s.handleDiagram)

	return r
}

type checkView struct {
	Check      domain.Check  `json:"check"`
	Anchor     string        `json:"anchor"`
	Parameters []string      `json:"parameters"`
	State      domain.State  `json:"state"`
	LastKnown  *domain.State `json:"last_known,omitempty"`
}

type projectView struct {
	Project string      `json:"project"`
	Checks  []checkView `json:"checks"`
}

func (s *Server) view(c domain.Check, last *domain.State) checkView {
	st, _ := s.Engine.State(c.Key())
	v := checkView{
		Check:      c,
		Anchor:     c.Key().ID(),
		Parameters: c.DisplayParameters(),
		State:      st,
	}
	if st.Phase == domain.PhaseIdle {
		v.LastKnown = last
	}
	return v
}

// lastKnown loads every saved state in one query.
func (s *Server) lastKnown(ctx context.Context) map[domain.Key]domain.State {
	if s.Store == nil {
		return nil
	}
	states, err := s.Store.List(ctx)
	if err != nil {
		s.Logger.Warn("repo_list_error", zap.Error(err))
		return nil
	}
	out := make(map[domain.Key]domain.State, len(states))
	for _, st := range states {
		out[st.Key] = st
	}
	return out
}

func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	last := s.lastKnown(r.Context())
	groups := catalog.ByProject(s.Engine.Checks())
	out := make([]projectView, 0, len(groups))
	for _, g := range groups {
		pv := projectView{Project: g.Project, Checks: make([]checkView, 0, len(g.Checks))}
		for _, c := range g.Checks {
			var lk *domain.State
			if st, ok := last[c.Key()]; ok {
				lk = &st
			}
			pv.Checks = append(pv.Checks, s.view(c, lk))
		}
		out = append(out, pv)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetCheck(w http.ResponseWriter, r *http.Request) {
	key := keyFrom(r)
	for _, c := range s.Engine.Checks() {
		if c.Key() != key {
			continue
		}
		var last *domain.State
		if s.Store != nil {
			st, err := s.Store.Get(r.Context(), key)
			if err != nil {
				s.Logger.Warn("repo_get_error", zap.String("check", key.String()), zap.Error(err))
			}
			last = st
		}
		writeJSON(w, http.StatusOK, s.view(c, last))
		return
	}
	writeError(w, http.StatusNotFound, "unknown check")
}

// refreshResponse is the resulting state. SecretRequired is set when no
// secret was stored and the request carried none, so the refresh went out
// unauthenticated.
type refreshResponse struct {
	domain.State
	SecretRequired bool `json:"secret_required,omitempty"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	key := keyFrom(r)
	ex := &secret.Exchange{Answer: r.Header.Get(SecretHeader)}
	ctx := secret.WithExchange(r.Context(), ex)

	st, err := s.Engine.TriggerManual(ctx, key)
	switch {
	case errors.Is(err, engine.ErrUnknownCheck):
		writeError(w, http.StatusNotFound, "unknown check")
		return
	case errors.Is(err, engine.ErrAlreadyLoading):
		writeJSON(w, http.StatusConflict, map[string]any{"error": "check is already loading", "state": st})
		return
	case err != nil:
		s.Logger.Error("manual_refresh_error", zap.String("check", key.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}

	res := refreshResponse{State: st, SecretRequired: ex.Asked() && ex.Answer == ""}
	s.Logger.Info("manual_refresh",
		zap.String("check", key.String()),
		zap.String("phase", string(st.Phase)),
		zap.Bool("secret_required", res.SecretRequired),
	)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Status.Summary())
}

func (s *Server) handleDiagram(w http.ResponseWriter, r *http.Request) {
	if s.Diagram == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	if _, err := s.Diagram.WriteTo(w); err != nil {
		s.Logger.Warn("diagram_write_error", zap.Error(err))
	}
}

func keyFrom(r *http.Request) domain.Key {
	return domain.Key{Project: chi.URLParam(r, "project"), Name: chi.URLParam(r, "name")}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
