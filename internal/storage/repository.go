package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"thuchi/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository owns the transactions table. It is the single durable
// store; one instance is constructed at startup and injected into every
// component that needs it.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Create inserts a new active record and returns its assigned id. Ids are
// assigned by AUTOINCREMENT and never reused.
func (r *SQLiteRepository) Create(ctx context.Context, t core.Transaction) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (title, amount, type, created_at, is_deleted) VALUES (?, ?, ?, ?, 0)`,
		t.Title, t.Amount, string(t.Type), t.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"record_id", id,
		"title", t.Title,
		"amount", t.Amount,
		"type", t.Type)

	return id, nil
}

// Update overwrites the mutable fields of a record. Deletion state and id are
// untouched. An absent id affects zero rows and is not an error; the row
// count is logged so the no-op is at least observable.
func (r *SQLiteRepository) Update(ctx context.Context, t core.Transaction) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET title = ?, amount = ?, type = ?, created_at = ? WHERE id = ?`,
		t.Title, t.Amount, string(t.Type), t.CreatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}

	rows, _ := res.RowsAffected()
	slog.DebugContext(ctx, "Transaction updated", "record_id", t.ID, "rows_affected", rows)
	return nil
}

// SoftDelete moves a record to the trash. Idempotent.
func (r *SQLiteRepository) SoftDelete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET is_deleted = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("soft delete transaction: %w", err)
	}

	rows, _ := res.RowsAffected()
	slog.DebugContext(ctx, "Transaction moved to trash", "record_id", id, "rows_affected", rows)
	return nil
}

// Restore moves a trashed record back to the active set. Idempotent.
func (r *SQLiteRepository) Restore(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET is_deleted = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("restore transaction: %w", err)
	}

	rows, _ := res.RowsAffected()
	slog.DebugContext(ctx, "Transaction restored", "record_id", id, "rows_affected", rows)
	return nil
}

// Purge removes a record irreversibly. Purging an absent id is a no-op.
func (r *SQLiteRepository) Purge(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("purge transaction: %w", err)
	}

	rows, _ := res.RowsAffected()
	slog.DebugContext(ctx, "Transaction purged", "record_id", id, "rows_affected", rows)
	return nil
}

// Get returns a single record by id, or sql.ErrNoRows wrapped when absent.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*core.Transaction, error) {
	var (
		t       core.Transaction
		typ     string
		deleted int
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, amount, type, created_at, is_deleted FROM transactions WHERE id = ?`,
		id).Scan(&t.ID, &t.Title, &t.Amount, &typ, &t.CreatedAt, &deleted)
	if err != nil {
		return nil, fmt.Errorf("get transaction %d: %w", id, err)
	}
	t.Type = core.TransactionType(typ)
	t.Deleted = deleted != 0
	return &t, nil
}

// List returns all records in the given scope, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, scope core.Scope) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, amount, type, created_at, is_deleted
		   FROM transactions
		  WHERE is_deleted = ?
		  ORDER BY created_at DESC`,
		deletedFlag(scope))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// Search returns records in the given scope whose title contains text
// case-insensitively, or whose amount's decimal text contains text as a
// literal substring. Same ordering as List.
func (r *SQLiteRepository) Search(ctx context.Context, scope core.Scope, text string) ([]core.Transaction, error) {
	pattern := "%" + text + "%"
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, amount, type, created_at, is_deleted
		   FROM transactions
		  WHERE is_deleted = ? AND (title LIKE ? OR CAST(amount AS TEXT) LIKE ?)
		  ORDER BY created_at DESC`,
		deletedFlag(scope), pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("search transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// CountByScope returns the number of active and trashed records.
func (r *SQLiteRepository) CountByScope(ctx context.Context) (active, trashed int64, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT
		   COUNT(CASE WHEN is_deleted = 0 THEN 1 END),
		   COUNT(CASE WHEN is_deleted = 1 THEN 1 END)
		 FROM transactions`).Scan(&active, &trashed)
	if err != nil {
		return 0, 0, fmt.Errorf("count transactions: %w", err)
	}
	return active, trashed, nil
}

func deletedFlag(scope core.Scope) int {
	if scope == core.ScopeTrashed {
		return 1
	}
	return 0
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var out []core.Transaction
	for rows.Next() {
		var (
			t       core.Transaction
			typ     string
			deleted int
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.Amount, &typ, &t.CreatedAt, &deleted); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = core.TransactionType(typ)
		t.Deleted = deleted != 0
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}
