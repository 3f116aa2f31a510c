package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"thuchi/internal/amqp"
	"thuchi/internal/core"
	applog "thuchi/internal/log"
	"thuchi/internal/storage"
	syncagent "thuchi/internal/sync"
)

type capturedEvents struct {
	msgs []*amqp.RecordEventMessage
}

func (c *capturedEvents) PublishRecordEvent(_ context.Context, msg *amqp.RecordEventMessage) error {
	c.msgs = append(c.msgs, msg)
	return nil
}

func newTestServer(t *testing.T) (*Server, *capturedEvents) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "thuchi.db"))
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	events := &capturedEvents{}
	return &Server{
		store:  repo,
		agent:  syncagent.NewAgent(nil),
		events: events,
		logger: applog.New(applog.DefaultConfig()),
	}, events
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createRecord(t *testing.T, h http.Handler, title string, amount float64, typ core.TransactionType, createdAt string) core.Transaction {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/transactions", map[string]any{
		"title": title, "amount": amount, "type": typ, "createdAt": createdAt,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", rec.Code, rec.Body)
	}
	var tx core.Transaction
	if err := json.Unmarshal(rec.Body.Bytes(), &tx); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return tx
}

func listRecords(t *testing.T, h http.Handler, query string) []core.Transaction {
	t.Helper()
	rec := doJSON(t, h, http.MethodGet, "/api/transactions"+query, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list returned %d: %s", rec.Code, rec.Body)
	}
	var out []core.Transaction
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	return out
}

func TestCreateAndList(t *testing.T) {
	s, events := newTestServer(t)
	h := s.routes()

	tx := createRecord(t, h, "Coffee", 50000, core.TypeExpense, "2025-06-01T09:00:00Z")
	if tx.ID == 0 || tx.Deleted {
		t.Fatalf("unexpected created record: %+v", tx)
	}

	active := listRecords(t, h, "")
	if len(active) != 1 || active[0].Title != "Coffee" {
		t.Fatalf("unexpected active list: %v", active)
	}
	if trash := listRecords(t, h, "?scope=trash"); len(trash) != 0 {
		t.Fatalf("expected empty trash, got %v", trash)
	}

	if len(events.msgs) != 1 || events.msgs[0].Op != amqp.OpCreated {
		t.Fatalf("expected a created event, got %v", events.msgs)
	}
}

func TestCreateValidation(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.routes()

	cases := []map[string]any{
		{"title": "", "amount": 1, "type": "Chi"},
		{"title": "x", "amount": 0, "type": "Chi"},
		{"title": "x", "amount": -3, "type": "Chi"},
		{"title": "x", "amount": 1, "type": "Other"},
	}
	for i, body := range cases {
		if rec := doJSON(t, h, http.MethodPost, "/api/transactions", body); rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("case %d: expected 422, got %d: %s", i, rec.Code, rec.Body)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/transactions", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestTrashRestorePurgeFlow(t *testing.T) {
	s, events := newTestServer(t)
	h := s.routes()

	tx := createRecord(t, h, "Rent", 5000000, core.TypeExpense, "2025-06-01T08:00:00Z")

	if rec := doJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", tx.ID), nil); rec.Code != http.StatusNoContent {
		t.Fatalf("trash returned %d", rec.Code)
	}
	if active := listRecords(t, h, ""); len(active) != 0 {
		t.Fatalf("expected empty active list, got %v", active)
	}
	trash := listRecords(t, h, "?scope=trash")
	if len(trash) != 1 || !trash[0].Deleted {
		t.Fatalf("expected record in trash, got %v", trash)
	}

	if rec := doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/transactions/%d/restore", tx.ID), nil); rec.Code != http.StatusNoContent {
		t.Fatalf("restore returned %d", rec.Code)
	}
	active := listRecords(t, h, "")
	if len(active) != 1 || active[0] != tx {
		t.Fatalf("restore round trip changed the record: %v", active)
	}

	if rec := doJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", tx.ID), nil); rec.Code != http.StatusNoContent {
		t.Fatalf("second trash returned %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/transactions/%d/purge", tx.ID), nil); rec.Code != http.StatusNoContent {
		t.Fatalf("purge returned %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/transactions/%d/purge", tx.ID), nil); rec.Code != http.StatusNoContent {
		t.Fatalf("repeat purge returned %d", rec.Code)
	}
	if got := listRecords(t, h, "?scope=trash"); len(got) != 0 {
		t.Fatalf("expected record gone, got %v", got)
	}

	// created, trashed, restored, trashed, purged, purged
	ops := make([]string, 0, len(events.msgs))
	for _, m := range events.msgs {
		ops = append(ops, m.Op)
	}
	want := []string{amqp.OpCreated, amqp.OpTrashed, amqp.OpRestored, amqp.OpTrashed, amqp.OpPurged, amqp.OpPurged}
	if len(ops) != len(want) {
		t.Fatalf("unexpected events %v", ops)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, ops[i], want[i])
		}
	}
}

func TestListFilters(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.routes()

	createRecord(t, h, "Salary", 15000000, core.TypeIncome, "2025-06-01T08:00:00Z")
	createRecord(t, h, "Coffee", 50000, core.TypeExpense, "2025-06-02T09:00:00Z")
	createRecord(t, h, "coffee beans", 120000, core.TypeExpense, "2025-06-03T10:00:00Z")

	t.Run("type filter", func(t *testing.T) {
		got := listRecords(t, h, "?type=Thu")
		if len(got) != 1 || got[0].Title != "Salary" {
			t.Fatalf("expected only income, got %v", got)
		}
	})

	t.Run("text search", func(t *testing.T) {
		got := listRecords(t, h, "?q=coffee")
		if len(got) != 2 {
			t.Fatalf("expected 2 coffee records, got %v", got)
		}
	})

	t.Run("search composed with type filter", func(t *testing.T) {
		got := listRecords(t, h, "?q=coffee&type=Thu")
		if len(got) != 0 {
			t.Fatalf("expected no income coffee records, got %v", got)
		}
	})

	t.Run("amount substring search", func(t *testing.T) {
		got := listRecords(t, h, "?q=50000")
		if len(got) != 2 {
			t.Fatalf("expected amount substring matches, got %v", got)
		}
	})

	t.Run("storage-level search", func(t *testing.T) {
		got := listRecords(t, h, "/search?q=coffee")
		if len(got) != 2 {
			t.Fatalf("expected 2 coffee records, got %v", got)
		}
	})

	t.Run("invalid scope", func(t *testing.T) {
		if rec := doJSON(t, h, http.MethodGet, "/api/transactions?scope=bogus", nil); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestStatistics(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.routes()

	createRecord(t, h, "Salary", 100, core.TypeIncome, "2025-05-01T08:00:00Z")
	createRecord(t, h, "Lunch", 40, core.TypeExpense, "2025-06-01T12:00:00Z")
	// Trashed records are excluded from all aggregates.
	trashed := createRecord(t, h, "Mistake", 999, core.TypeExpense, "2025-06-02T12:00:00Z")
	doJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", trashed.ID), nil)

	rec := doJSON(t, h, http.MethodGet, "/api/statistics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("statistics returned %d", rec.Code)
	}
	var resp statisticsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode statistics: %v", err)
	}
	if resp.Totals.Income != 100 || resp.Totals.Expense != 40 || resp.Totals.Balance != 60 {
		t.Fatalf("unexpected totals: %+v", resp.Totals)
	}
	if len(resp.Monthly) != 2 || resp.Monthly[0].Label != "5/2025" || resp.Monthly[1].Label != "6/2025" {
		t.Fatalf("unexpected monthly buckets: %v", resp.Monthly)
	}
}

func TestSyncEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.routes()

	createRecord(t, h, "Salary", 100, core.TypeIncome, "2025-06-01T08:00:00Z")
	createRecord(t, h, "Lunch", 40, core.TypeExpense, "2025-06-02T12:00:00Z")

	var deletes, posts int
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			fmt.Fprint(w, `[{"id":"1"},{"id":"2"},{"id":"3"}]`)
		case http.MethodDelete:
			deletes++
			w.WriteHeader(http.StatusOK)
		case http.MethodPost:
			posts++
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer remote.Close()

	rec := doJSON(t, h, http.MethodPost, "/api/sync", map[string]string{"endpoint": remote.URL})
	if rec.Code != http.StatusOK {
		t.Fatalf("sync returned %d: %s", rec.Code, rec.Body)
	}
	var res syncagent.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode sync result: %v", err)
	}
	if deletes != 3 || posts != 2 {
		t.Fatalf("expected 3 deletes and 2 creates, got %d/%d", deletes, posts)
	}
	if res.Cleared != 3 || res.Pushed != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}

	t.Run("missing endpoint", func(t *testing.T) {
		if rec := doJSON(t, h, http.MethodPost, "/api/sync", map[string]string{}); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("failing remote", func(t *testing.T) {
		bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer bad.Close()
		if rec := doJSON(t, h, http.MethodPost, "/api/sync", map[string]string{"endpoint": bad.URL}); rec.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", rec.Code)
		}
	})
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.routes()

	createRecord(t, h, "Coffee", 50000, core.TypeExpense, "2025-06-01T09:00:00Z")

	rec := doJSON(t, h, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz returned %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body["status"] != "ok" || body["active"] != float64(1) {
		t.Fatalf("unexpected health body: %v", body)
	}
}

// failingStore simulates an unavailable persistence layer.
type failingStore struct{}

var errDown = errors.New("database unavailable")

func (failingStore) Create(context.Context, core.Transaction) (int64, error) { return 0, errDown }
func (failingStore) Update(context.Context, core.Transaction) error          { return errDown }
func (failingStore) SoftDelete(context.Context, int64) error                 { return errDown }
func (failingStore) Restore(context.Context, int64) error                    { return errDown }
func (failingStore) Purge(context.Context, int64) error                      { return errDown }
func (failingStore) Get(context.Context, int64) (*core.Transaction, error)   { return nil, errDown }
func (failingStore) List(context.Context, core.Scope) ([]core.Transaction, error) {
	return nil, errDown
}
func (failingStore) Search(context.Context, core.Scope, string) ([]core.Transaction, error) {
	return nil, errDown
}
func (failingStore) CountByScope(context.Context) (int64, int64, error) { return 0, 0, errDown }

func TestReadPathsDegradeWritePathsFail(t *testing.T) {
	s := &Server{
		store:  failingStore{},
		agent:  syncagent.NewAgent(nil),
		logger: applog.New(applog.DefaultConfig()),
	}
	h := s.routes()

	// Reads stay renderable.
	if got := listRecords(t, h, ""); len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
	if rec := doJSON(t, h, http.MethodGet, "/api/statistics", nil); rec.Code != http.StatusOK {
		t.Fatalf("statistics should degrade to 200, got %d", rec.Code)
	}

	// Writes surface a failure notice.
	rec := doJSON(t, h, http.MethodPost, "/api/transactions", map[string]any{
		"title": "x", "amount": 1, "type": "Chi", "createdAt": "2025-06-01",
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on write failure, got %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodDelete, "/api/transactions/1", nil); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on trash failure, got %d", rec.Code)
	}
}
