package loco

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Repository defines the interface for loco persistence.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and keeps the Registry free of I/O.
type Repository interface {
	// List returns every stored record ordered by address.
	List(ctx context.Context) ([]Record, error)

	// ReplaceAll atomically replaces the stored set with records.
	ReplaceAll(ctx context.Context, records []Record) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection with the locos
// table migrated.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List returns every stored record ordered by address.
func (r *SQLiteRepository) List(ctx context.Context) ([]Record, error) {
	query := `
		SELECT address, name, speed, direction, functions
		FROM locos
		ORDER BY address`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying locos: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning loco: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating locos: %w", err)
	}

	return records, nil
}

// ReplaceAll deletes every row and inserts records in one transaction.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, records []Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM locos"); err != nil {
		return fmt.Errorf("clearing locos: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO locos (address, name, speed, direction, functions, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, rec := range records {
		fnJSON, err := json.Marshal(rec.Functions)
		if err != nil {
			return fmt.Errorf("marshalling functions: %w", err)
		}
		direction := rec.Direction
		if direction == "" {
			direction = DirectionForward
		}
		if _, err := stmt.ExecContext(ctx,
			rec.Address,
			rec.Name,
			rec.Speed,
			string(direction),
			string(fnJSON),
			now,
		); err != nil {
			return fmt.Errorf("inserting loco %d: %w", rec.Address, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing locos: %w", err)
	}
	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one locos row. Values are returned as stored; callers
// pass them through FromRecord before use.
func scanRecord(scanner rowScanner) (Record, error) {
	var rec Record
	var direction, fnJSON string

	if err := scanner.Scan(&rec.Address, &rec.Name, &rec.Speed, &direction, &fnJSON); err != nil {
		return Record{}, err
	}
	rec.Version = RecordVersion
	rec.Direction = Direction(direction)

	if fnJSON != "" {
		if err := json.Unmarshal([]byte(fnJSON), &rec.Functions); err != nil {
			return Record{}, fmt.Errorf("unmarshalling functions: %w", err)
		}
	}
	return rec, nil
}
