package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"thuchi/internal/amqp"
	"thuchi/internal/core"
	"thuchi/internal/sync"
)

func testRecord() core.Transaction {
	return core.Transaction{
		ID:        3,
		Title:     "Coffee",
		Amount:    50000,
		Type:      core.TypeExpense,
		CreatedAt: "2025-06-01T09:00:00Z",
	}
}

func TestHandleRecordEventPushesMutations(t *testing.T) {
	var posts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		posts++
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	mirror := NewMirror(sync.NewAgent(srv.Client()), srv.URL)
	for _, op := range []string{amqp.OpCreated, amqp.OpUpdated, amqp.OpRestored} {
		if err := mirror.HandleRecordEvent(context.Background(), amqp.NewRecordEventMessage(op, testRecord())); err != nil {
			t.Fatalf("%s: %v", op, err)
		}
	}
	if posts != 3 {
		t.Fatalf("expected 3 remote creates, got %d", posts)
	}
}

func TestHandleRecordEventIgnoresRemovals(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no remote call expected")
	}))
	defer srv.Close()

	mirror := NewMirror(sync.NewAgent(srv.Client()), srv.URL)
	for _, op := range []string{amqp.OpTrashed, amqp.OpPurged, "bogus"} {
		if err := mirror.HandleRecordEvent(context.Background(), amqp.NewRecordEventMessage(op, testRecord())); err != nil {
			t.Fatalf("%s: %v", op, err)
		}
	}
}

func TestHandleRecordEventPropagatesPushFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	mirror := NewMirror(sync.NewAgent(srv.Client()), srv.URL)
	err := mirror.HandleRecordEvent(context.Background(), amqp.NewRecordEventMessage(amqp.OpCreated, testRecord()))
	if err == nil {
		t.Fatal("expected error so the event is requeued")
	}
}
