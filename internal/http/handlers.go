package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"thuchi/internal/amqp"
	"thuchi/internal/core"
	applog "thuchi/internal/log"
)

// recordRequest is the JSON body for create and update.
type recordRequest struct {
	Title     string               `json:"title"`
	Amount    float64              `json:"amount"`
	Type      core.TransactionType `json:"type"`
	CreatedAt string               `json:"createdAt"`
}

func (req recordRequest) transaction(id int64) core.Transaction {
	createdAt := strings.TrimSpace(req.CreatedAt)
	if createdAt == "" {
		createdAt = time.Now().UTC().Format(time.RFC3339)
	}
	return core.Transaction{
		ID:        id,
		Title:     strings.TrimSpace(req.Title),
		Amount:    req.Amount,
		Type:      req.Type,
		CreatedAt: createdAt,
	}
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	t := req.transaction(0)
	if err := t.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	id, err := s.store.Create(r.Context(), t)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to create transaction",
			applog.FieldOperation, applog.OpCreate,
			applog.FieldTitle, t.Title,
			applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "could not save transaction")
		return
	}
	t.ID = id

	s.publishEvent(r.Context(), amqp.OpCreated, t)
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}

	var req recordRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	t := req.transaction(id)
	if err := t.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	// An absent id affects zero rows and is not an error; existence checks
	// are the caller's responsibility.
	if err := s.store.Update(r.Context(), t); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to update transaction",
			applog.FieldOperation, applog.OpUpdate,
			applog.FieldRecordID, id,
			applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "could not update transaction")
		return
	}

	s.publishEvent(r.Context(), amqp.OpUpdated, t)
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleSoftDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}

	if err := s.store.SoftDelete(r.Context(), id); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to trash transaction",
			applog.FieldOperation, applog.OpTrash,
			applog.FieldRecordID, id,
			applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "could not move transaction to trash")
		return
	}

	s.publishEvent(r.Context(), amqp.OpTrashed, core.Transaction{ID: id})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}

	if err := s.store.Restore(r.Context(), id); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to restore transaction",
			applog.FieldOperation, applog.OpRestore,
			applog.FieldRecordID, id,
			applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "could not restore transaction")
		return
	}

	// The restored event carries the full record so the mirror can recreate
	// it remotely; a restore of an absent id simply publishes nothing.
	if t, err := s.store.Get(r.Context(), id); err == nil {
		s.publishEvent(r.Context(), amqp.OpRestored, *t)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}

	if err := s.store.Purge(r.Context(), id); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to purge transaction",
			applog.FieldOperation, applog.OpPurge,
			applog.FieldRecordID, id,
			applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "could not delete transaction permanently")
		return
	}

	s.publishEvent(r.Context(), amqp.OpPurged, core.Transaction{ID: id})
	w.WriteHeader(http.StatusNoContent)
}

// handleList serves both scopes of the record list with the filter chain:
// load scope, apply type filter, apply text filter. Read failures degrade to
// an empty list so the UI stays renderable.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	scope := core.ScopeActive
	if v := strings.TrimSpace(r.URL.Query().Get("scope")); v != "" {
		scope = core.Scope(v)
		if !scope.Valid() {
			writeError(w, http.StatusBadRequest, "scope must be 'active' or 'trash'")
			return
		}
	}

	records, err := s.store.List(r.Context(), scope)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Read failed, serving empty list",
			applog.FieldOperation, applog.OpList,
			applog.FieldScope, scope,
			applog.FieldError, err)
		records = nil
	}

	if v := strings.TrimSpace(r.URL.Query().Get("type")); v != "" {
		records = core.FilterByType(records, core.TransactionType(v))
	}
	records = core.FilterByText(records, r.URL.Query().Get("q"))

	if records == nil {
		records = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handleSearch runs the search at the storage layer instead of over a loaded
// list. Same match semantics as the q parameter of handleList, evaluated by
// SQLite.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	scope := core.ScopeActive
	if v := strings.TrimSpace(r.URL.Query().Get("scope")); v != "" {
		scope = core.Scope(v)
		if !scope.Valid() {
			writeError(w, http.StatusBadRequest, "scope must be 'active' or 'trash'")
			return
		}
	}

	records, err := s.store.Search(r.Context(), scope, strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Search failed, serving empty list",
			applog.FieldOperation, applog.OpSearch,
			applog.FieldScope, scope,
			applog.FieldError, err)
		records = nil
	}
	if records == nil {
		records = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, records)
}

type statisticsResponse struct {
	Totals  core.Summary       `json:"totals"`
	Monthly []core.MonthBucket `json:"monthly"`
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List(r.Context(), core.ScopeActive)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Read failed, serving empty statistics",
			applog.FieldOperation, applog.OpList,
			applog.FieldError, err)
		records = nil
	}

	buckets, skipped := core.MonthlyBuckets(records)
	if skipped > 0 {
		s.logger.WarnContext(r.Context(), "Records skipped from monthly buckets",
			"skipped", skipped)
	}
	if buckets == nil {
		buckets = []core.MonthBucket{}
	}

	writeJSON(w, http.StatusOK, statisticsResponse{
		Totals:  core.Totals(records),
		Monthly: buckets,
	})
}

type syncRequest struct {
	Endpoint string `json:"endpoint"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Endpoint) == "" {
		writeError(w, http.StatusBadRequest, "endpoint is required")
		return
	}

	// Matching the store's read contract, a failed load degrades to an empty
	// set rather than failing the request; the push then simply clears the
	// remote.
	records, err := s.store.List(r.Context(), core.ScopeActive)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Read failed before sync, pushing empty set",
			applog.FieldOperation, applog.OpSync,
			applog.FieldError, err)
		records = nil
	}

	res, err := s.agent.Push(r.Context(), req.Endpoint, records)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":  "sync failed, check the endpoint URL and try again",
			"result": res,
		})
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	active, trashed, err := s.store.CountByScope(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"active": active,
		"trash":  trashed,
	})
}

// publishEvent announces a mutation to the mirror queue, best-effort.
func (s *Server) publishEvent(ctx context.Context, op string, t core.Transaction) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishRecordEvent(ctx, amqp.NewRecordEventMessage(op, t)); err != nil {
		s.logger.WarnContext(ctx, "Record event publish failed",
			applog.FieldOperation, applog.OpPublish,
			applog.FieldRecordID, t.ID,
			applog.FieldError, err)
	}
}
