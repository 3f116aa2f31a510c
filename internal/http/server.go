// Package http exposes the record store, aggregation engine and sync agent
// as the JSON API consumed by the mobile UI.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"thuchi/internal/amqp"
	"thuchi/internal/core"
	applog "thuchi/internal/log"
	syncagent "thuchi/internal/sync"
)

// RecordStore is the persistence port the handlers depend on.
type RecordStore interface {
	Create(ctx context.Context, t core.Transaction) (int64, error)
	Update(ctx context.Context, t core.Transaction) error
	SoftDelete(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) error
	Purge(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*core.Transaction, error)
	List(ctx context.Context, scope core.Scope) ([]core.Transaction, error)
	Search(ctx context.Context, scope core.Scope, text string) ([]core.Transaction, error)
	CountByScope(ctx context.Context) (active, trashed int64, err error)
}

// EventPublisher announces record mutations to the mirror queue. A nil
// publisher disables events.
type EventPublisher interface {
	PublishRecordEvent(ctx context.Context, msg *amqp.RecordEventMessage) error
}

type Server struct {
	store  RecordStore
	agent  *syncagent.Agent
	events EventPublisher
	logger *applog.Logger
}

// NewServer wires the API routes and returns a configured http.Server.
func NewServer(addr string, store RecordStore, agent *syncagent.Agent, events EventPublisher, logger *applog.Logger) *http.Server {
	s := &Server{
		store:  store,
		agent:  agent,
		events: events,
		logger: logger.WithComponent(applog.ComponentHTTP),
	}

	return &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleList)
			r.Get("/search", s.handleSearch)
			r.Post("/", s.handleCreate)
			r.Put("/{id}", s.handleUpdate)
			r.Delete("/{id}", s.handleSoftDelete)
			r.Post("/{id}/restore", s.handleRestore)
			r.Delete("/{id}/purge", s.handlePurge)
		})
		r.Get("/statistics", s.handleStatistics)
		r.Post("/sync", s.handleSync)
	})
	r.Get("/healthz", s.handleHealth)

	return r
}

// requestLogger logs one structured line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.InfoContext(r.Context(), "Request handled",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatus, sw.status,
			applog.FieldDuration, time.Since(start).Milliseconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
