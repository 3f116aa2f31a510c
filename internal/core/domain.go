package core

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	// TypeIncome and TypeExpense are the two transaction kinds. The literal
	// tags ("Thu" = income, "Chi" = expense) are part of the stored format and
	// the sync wire format, so they are not translated.
	TypeIncome  TransactionType = "Thu"
	TypeExpense TransactionType = "Chi"

	// TypeAll is a filter value, never stored on a record.
	TypeAll TransactionType = "all"
)

const (
	ScopeActive  Scope = "active"
	ScopeTrashed Scope = "trash"
)

type (
	TransactionType string

	// Scope selects one of the two lifecycle states a record can be in.
	Scope string

	// Transaction is the sole persisted entity. CreatedAt is kept as the
	// caller-supplied timestamp string; it is parsed only where month
	// bucketing needs calendar parts.
	Transaction struct {
		ID        int64           `json:"id"`
		Title     string          `json:"title"`
		Amount    float64         `json:"amount"`
		Type      TransactionType `json:"type"`
		CreatedAt string          `json:"createdAt"`
		Deleted   bool            `json:"isDeleted"`
	}
)

var (
	ErrEmptyTitle    = errors.New("empty title")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidType   = errors.New("invalid transaction type")
	ErrEmptyDate     = errors.New("empty createdAt")
)

func (t TransactionType) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

func (s Scope) Valid() bool {
	return s == ScopeActive || s == ScopeTrashed
}

func (t Transaction) Validate() error {
	if len(strings.TrimSpace(t.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(t.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if t.Amount <= 0 {
		return ErrInvalidAmount
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(t.CreatedAt) == "" {
		return ErrEmptyDate
	}
	return nil
}

// createdAtLayouts are tried in order by ParseCreatedAt. RFC 3339 covers the
// timestamps the mobile client writes; the two fallbacks accept hand-entered
// or imported values.
var createdAtLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseCreatedAt parses a record timestamp string.
func ParseCreatedAt(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range createdAtLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// AmountText renders an amount the way text search compares it: the plain
// decimal representation, no grouping, no currency symbol.
func AmountText(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
