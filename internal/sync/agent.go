// Package sync implements the one-way push of local records to a remote REST
// collection endpoint. The remote is wiped first, then every active record is
// recreated, so repeated pushes stay duplicate-free without idempotency keys.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"thuchi/internal/core"
)

// Agent pushes records to a caller-supplied endpoint. It keeps no state
// between invocations; concurrent pushes against the same endpoint race with
// undefined interleaving, exactly like the mobile client it replaces.
type Agent struct {
	client *http.Client
}

// Result reports the two phases of a push separately so a partial failure is
// diagnosable. The cleanup phase is best-effort: ClearErr records why it
// stopped, but never fails the push.
type Result struct {
	Cleared  int    `json:"cleared"`
	ClearErr string `json:"clearError,omitempty"`
	Pushed   int    `json:"pushed"`
}

// remoteItem is the minimal shape of a remote collection entry. The remote
// assigns its own ids; only the id is needed for cleanup. Some services hand
// out string ids, others numeric, so the field stays untyped.
type remoteItem struct {
	ID any `json:"id"`
}

func (i remoteItem) idString() string {
	switch v := i.ID.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// recordPayload is the wire format for a pushed record. The local id and
// deletion flag are never transmitted.
type recordPayload struct {
	Title     string               `json:"title"`
	Amount    float64              `json:"amount"`
	Type      core.TransactionType `json:"type"`
	CreatedAt string               `json:"createdAt"`
}

func NewAgent(client *http.Client) *Agent {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Agent{client: client}
}

// Push wipes the remote collection, then creates one remote item per record,
// sequentially. Cleanup failures are swallowed; the first create failure
// aborts with an error and no rollback of items already created.
func (a *Agent) Push(ctx context.Context, endpoint string, records []core.Transaction) (Result, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return Result{}, fmt.Errorf("empty endpoint URL")
	}

	var res Result
	cleared, err := a.clearRemote(ctx, endpoint)
	res.Cleared = cleared
	if err != nil {
		res.ClearErr = err.Error()
		slog.WarnContext(ctx, "Remote cleanup incomplete, continuing with push",
			"endpoint", endpoint,
			"cleared", cleared,
			"error", err)
	}

	for _, r := range records {
		if err := a.createRemote(ctx, endpoint, r); err != nil {
			slog.ErrorContext(ctx, "Push aborted",
				"endpoint", endpoint,
				"pushed", res.Pushed,
				"record_id", r.ID,
				"error", err)
			return res, fmt.Errorf("push record %d after %d pushed: %w", r.ID, res.Pushed, err)
		}
		res.Pushed++
	}

	slog.InfoContext(ctx, "Push completed",
		"endpoint", endpoint,
		"cleared", res.Cleared,
		"pushed", res.Pushed)
	return res, nil
}

// PushOne creates a single remote item without touching existing remote
// contents. Used by the mirror worker for incremental updates.
func (a *Agent) PushOne(ctx context.Context, endpoint string, record core.Transaction) error {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return fmt.Errorf("empty endpoint URL")
	}
	return a.createRemote(ctx, endpoint, record)
}

// clearRemote fetches the remote collection and deletes each item. It returns
// how many deletes succeeded and the first error encountered, if any.
func (a *Agent) clearRemote(ctx context.Context, endpoint string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build fetch request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch remote collection: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return 0, fmt.Errorf("read remote collection: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("fetch remote collection: unexpected status %d", resp.StatusCode)
	}

	var items []remoteItem
	if err := json.Unmarshal(body, &items); err != nil {
		return 0, fmt.Errorf("decode remote collection: %w", err)
	}

	for i, item := range items {
		if err := a.deleteRemote(ctx, endpoint, item.idString()); err != nil {
			return i, err
		}
	}
	return len(items), nil
}

func (a *Agent) deleteRemote(ctx context.Context, endpoint, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint+"/"+id, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete remote item %s: %w", id, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("delete remote item %s: unexpected status %d", id, resp.StatusCode)
	}
	return nil
}

func (a *Agent) createRemote(ctx context.Context, endpoint string, r core.Transaction) error {
	payload, err := json.Marshal(recordPayload{
		Title:     r.Title,
		Amount:    r.Amount,
		Type:      r.Type,
		CreatedAt: r.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("create remote item: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("create remote item: unexpected status %d", resp.StatusCode)
	}
	return nil
}
