package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	budget "github.com/apetbrz/budget-app-project/internal"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// CreateUser inserts the auth row and the initial budget JSON in a single
// transaction so a failed second insert never leaves an orphaned account.
func (s *Store) CreateUser(ctx context.Context, row budget.AuthRow, initialJSON string) error {
	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create user: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO auth (uuid, username, password) VALUES (?, ?, ?)`,
		row.ID, row.Username, row.PasswordHash,
	)
	if err != nil {
		return constraintErr(err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (uuid, jsondata, jsonhistory) VALUES (?, ?, ?)`,
		row.ID, initialJSON, "{}",
	)
	if err != nil {
		return constraintErr(err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create user: %w", err)
	}
	return nil
}

// FetchAuth retrieves the auth row by username.
func (s *Store) FetchAuth(ctx context.Context, username string) (*budget.AuthRow, error) {
	var row budget.AuthRow
	err := s.read.QueryRowContext(ctx,
		`SELECT uuid, username, password FROM auth WHERE username = ?`, username,
	).Scan(&row.ID, &row.Username, &row.PasswordHash)
	if err != nil {
		return nil, notFoundErr(err)
	}
	return &row, nil
}

// SaveBudget stores the serialized budget, shifting the previous snapshot
// into jsonhistory.
func (s *Store) SaveBudget(ctx context.Context, userID, jsondata string) error {
	result, err := s.write.ExecContext(ctx,
		`UPDATE users SET jsonhistory = jsondata, jsondata = ? WHERE uuid = ?`,
		jsondata, userID,
	)
	if err != nil {
		return fmt.Errorf("save budget: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", userID, budget.ErrNotFound)
	}
	return nil
}

// LoadBudget returns the stored budget JSON for a user.
func (s *Store) LoadBudget(ctx context.Context, userID string) (string, error) {
	var jsondata string
	err := s.read.QueryRowContext(ctx,
		`SELECT jsondata FROM users WHERE uuid = ?`, userID,
	).Scan(&jsondata)
	if err != nil {
		return "", notFoundErr(err)
	}
	return jsondata, nil
}

// LoadBudgetHistory returns the previous budget snapshot for a user.
func (s *Store) LoadBudgetHistory(ctx context.Context, userID string) (string, error) {
	var jsonhistory string
	err := s.read.QueryRowContext(ctx,
		`SELECT jsonhistory FROM users WHERE uuid = ?`, userID,
	).Scan(&jsonhistory)
	if err != nil {
		return "", notFoundErr(err)
	}
	return jsonhistory, nil
}

// notFoundErr translates sql.ErrNoRows to budget.ErrNotFound.
func notFoundErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return budget.ErrNotFound
	}
	return err
}

// constraintErr translates SQLite unique violations to budget.ErrAlreadyExists.
func constraintErr(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return budget.ErrAlreadyExists
		}
	}
	return err
}
