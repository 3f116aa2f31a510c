package amqp

import (
	"encoding/json"
	"time"

	"thuchi/internal/core"
)

// Record event operations carried on the change queue.
const (
	OpCreated  = "created"
	OpUpdated  = "updated"
	OpTrashed  = "trashed"
	OpRestored = "restored"
	OpPurged   = "purged"
)

// RecordEventMessage announces a record mutation to the mirror worker. It
// carries the full record so the worker never has to read the database.
type RecordEventMessage struct {
	Op        string               `json:"op"`
	ID        int64                `json:"id"`
	Title     string               `json:"title"`
	Amount    float64              `json:"amount"`
	Type      core.TransactionType `json:"type"`
	CreatedAt string               `json:"createdAt"`
	Timestamp time.Time            `json:"timestamp"`
}

// NewRecordEventMessage builds an event for a mutated record.
func NewRecordEventMessage(op string, t core.Transaction) *RecordEventMessage {
	return &RecordEventMessage{
		Op:        op,
		ID:        t.ID,
		Title:     t.Title,
		Amount:    t.Amount,
		Type:      t.Type,
		CreatedAt: t.CreatedAt,
		Timestamp: time.Now(),
	}
}

// Record reconstructs the transaction carried by the event.
func (m *RecordEventMessage) Record() core.Transaction {
	return core.Transaction{
		ID:        m.ID,
		Title:     m.Title,
		Amount:    m.Amount,
		Type:      m.Type,
		CreatedAt: m.CreatedAt,
	}
}

// ToJSON converts the message to JSON bytes.
func (m *RecordEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordEventMessageFromJSON parses a message from JSON bytes.
func RecordEventMessageFromJSON(data []byte) (*RecordEventMessage, error) {
	var msg RecordEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
