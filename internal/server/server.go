// Package server exposes the introspection engine over HTTP.
//
// Routes:
//
//	GET  /healthz                       liveness probe
//	GET  /v1/sources                    configured sources and registered engines
//	POST /v1/sources/{name}/snapshot    run a capture; ?store=true persists it
//	GET  /v1/snapshots                  list stored snapshots (?engine= filters)
//	GET  /v1/diff?from=&to=&mode=       diff two stored snapshots
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/canon"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/config"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/dbconn"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/dialect"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/errs"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/introspect"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/logger"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/model"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/snapstore"
)

// Server routes HTTP requests to the engine. Store is optional; snapshot
// persistence and diff endpoints report 503 without it.
type Server struct {
	cfg   *config.Config
	log   *logger.Logger
	store snapstore.Store
}

// New builds a Server. store may be nil.
func New(cfg *config.Config, log *logger.Logger, store snapstore.Store) *Server {
	return &Server{cfg: cfg, log: log, store: store}
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/sources", s.handleSources)
		r.Post("/sources/{name}/snapshot", s.handleSnapshot)
		r.Get("/snapshots", s.handleList)
		r.Get("/diff", s.handleDiff)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	type source struct {
		Name   string       `json:"name"`
		Engine model.Engine `json:"engine"`
	}
	out := struct {
		Sources []source       `json:"sources"`
		Engines []model.Engine `json:"engines"`
	}{Engines: dialect.Engines()}
	for _, src := range s.cfg.Sources {
		out.Sources = append(out.Sources, source{Name: src.Name, Engine: src.Engine})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	src, err := s.cfg.Source(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	conn, err := dbconn.Open(ctx, src.Engine, src.DSN)
	if err != nil {
		writeError(w, err)
		return
	}
	defer conn.Close()

	layers, err := s.cfg.LayerSet()
	if err != nil {
		writeError(w, errs.Wrap(errs.ErrKindInvalidInput, "bad layer config", err))
		return
	}
	snap, err := introspect.Introspect(ctx, conn, src.Engine, introspect.Options{
		AllowSchemas: s.cfg.Introspect.Schemas.Allow,
		DenySchemas:  s.cfg.Introspect.Schemas.Deny,
		Layers:       layers,
		Concurrency:  s.cfg.Introspect.Concurrency,
		LayerTimeout: s.cfg.Introspect.LayerTimeout,
		Log:          s.log,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	snap = canon.Canonicalize(snap)

	out := struct {
		Hash     string          `json:"hash"`
		Key      string          `json:"key,omitempty"`
		Snapshot *model.Snapshot `json:"snapshot"`
	}{
		Hash:     canon.HashString(snap),
		Snapshot: snap,
	}
	if r.URL.Query().Get("store") == "true" {
		if s.store == nil {
			writeError(w, errs.New(errs.ErrKindInvalidInput, "no snapshot store configured"))
			return
		}
		key, err := s.store.Put(ctx, snap)
		if err != nil {
			writeError(w, err)
			return
		}
		out.Key = key
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "no snapshot store configured", http.StatusServiceUnavailable)
		return
	}
	infos, err := s.store.List(r.Context(), model.Engine(r.URL.Query().Get("engine")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": infos})
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "no snapshot store configured", http.StatusServiceUnavailable)
		return
	}
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeError(w, errs.New(errs.ErrKindInvalidInput, "from and to keys are required"))
		return
	}
	mode := canon.ModeSemantic
	if r.URL.Query().Get("mode") == "strict" {
		mode = canon.ModeStrict
	}

	a, err := s.store.Get(r.Context(), from)
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := s.store.Get(r.Context(), to)
	if err != nil {
		writeError(w, err)
		return
	}
	changes := canon.Diff(a, b, mode)
	writeJSON(w, http.StatusOK, map[string]any{
		"from":    from,
		"to":      to,
		"equal":   len(changes) == 0,
		"changes": changes,
	})
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errs.KindOf(err) {
	case errs.ErrKindInvalidInput:
		status = http.StatusBadRequest
	case errs.ErrKindConnectionFailed:
		status = http.StatusBadGateway
	case errs.ErrKindUnsupported:
		status = http.StatusNotImplemented
	case errs.ErrKindCancelled:
		status = 499 // client closed request
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  errs.KindOf(err).String(),
	})
}
