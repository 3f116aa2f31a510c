// Package worker drains the record-change queue and mirrors individual
// records to the remote endpoint. It is a best-effort incremental complement
// to the bulk push: the remote assigns its own ids, so trashed and purged
// records cannot be removed here and are reconciled by the next full sync.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"thuchi/internal/amqp"
	"thuchi/internal/sync"
)

type Mirror struct {
	agent    *sync.Agent
	endpoint string
}

func NewMirror(agent *sync.Agent, endpoint string) *Mirror {
	return &Mirror{agent: agent, endpoint: endpoint}
}

// HandleRecordEvent processes a single record-change event. Returning an
// error requeues the event.
func (m *Mirror) HandleRecordEvent(ctx context.Context, msg *amqp.RecordEventMessage) error {
	switch msg.Op {
	case amqp.OpCreated, amqp.OpUpdated, amqp.OpRestored:
		if err := m.agent.PushOne(ctx, m.endpoint, msg.Record()); err != nil {
			return fmt.Errorf("mirror record %d: %w", msg.ID, err)
		}
		slog.InfoContext(ctx, "Record mirrored",
			"op", msg.Op,
			"record_id", msg.ID,
			"endpoint", m.endpoint)
		return nil

	case amqp.OpTrashed, amqp.OpPurged:
		// Nothing to do remotely; the bulk sync wipes stale items.
		slog.DebugContext(ctx, "Record removal noted, deferred to next full sync",
			"op", msg.Op,
			"record_id", msg.ID)
		return nil

	default:
		slog.WarnContext(ctx, "Unknown record event op, dropping",
			"op", msg.Op,
			"record_id", msg.ID)
		return nil
	}
}
