package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"serverwatch/internal/httpapi/middleware"
	"serverwatch/internal/registry"
	"serverwatch/internal/scheduler"
)

type Server struct {
	log   *zap.Logger
	reg   *registry.Registry
	sched *scheduler.Scheduler
	keys  middleware.Keys

	rpm   int
	burst int

	hub *hub
}

func NewServer(log *zap.Logger, reg *registry.Registry, sched *scheduler.Scheduler, keys middleware.Keys, rpm, burst int) *Server {
	return &Server{
		log:   log,
		reg:   reg,
		sched: sched,
		keys:  keys,
		rpm:   rpm,
		burst: burst,
		hub:   newHub(log),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)
	r.Use(middleware.RateLimit(s.rpm, s.burst))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireAny(s.keys))

		r.Get("/servers", s.handleListServers)
		r.Post("/servers", s.handleAddServer)
		r.Put("/servers/{id}", s.handleUpdateServer)
		r.Post("/servers/{id}/check", s.handleCheckServer)

		r.Get("/settings/autocheck", s.handleGetAutoCheck)
		r.Put("/settings/autocheck", s.handlePutAutoCheck)

		r.Get("/stream", s.handleStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(s.keys))
			r.Delete("/servers", s.handleRemoveServers)
			r.Post("/checks", s.handleCheckAll)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
