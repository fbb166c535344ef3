// backend-go/internal/repository/history_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/andresuchdata/inventariate/backend-go/internal/domain"
	"github.com/andresuchdata/inventariate/backend-go/internal/repository/sqldb"
)

// ErrUserNotFound is returned when a history listing names an unknown user.
var ErrUserNotFound = errors.New("user not found")

type HistoryRepository interface {
	// RecordBalance files a balance for username, creating the user on first use.
	RecordBalance(ctx context.Context, username string, record *domain.BalanceRecord) error
	ListHistory(ctx context.Context, filter domain.HistoryFilter) ([]domain.BalanceRecord, error)
}

type historyRepository struct {
	db *sqldb.DB
}

func NewHistoryRepository(db *sqldb.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) RecordBalance(ctx context.Context, username string, record *domain.BalanceRecord) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username must be provided")
	}
	if record.DateRecorded.IsZero() {
		record.DateRecorded = time.Now().UTC()
	}

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		userID, err := upsertUser(ctx, tx, username)
		if err != nil {
			return err
		}
		record.UserID = userID

		query := tx.Rebind(`
			INSERT INTO history (month, year, balance, date_recorded, user_id)
			VALUES (?, ?, ?, ?, ?)
		`)
		if _, err := tx.ExecContext(ctx, query,
			record.Month, record.Year, record.Balance, record.DateRecorded, record.UserID,
		); err != nil {
			return fmt.Errorf("failed to insert history: %w", err)
		}
		return nil
	})
}

func upsertUser(ctx context.Context, tx *sqlx.Tx, username string) (int64, error) {
	insert := tx.Rebind(`
		INSERT INTO users (username, created_at)
		VALUES (?, ?)
		ON CONFLICT (username) DO NOTHING
	`)
	if _, err := tx.ExecContext(ctx, insert, username, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("failed to upsert user: %w", err)
	}

	var id int64
	if err := tx.GetContext(ctx, &id, tx.Rebind(`SELECT id FROM users WHERE username = ?`), username); err != nil {
		return 0, fmt.Errorf("failed to load user id: %w", err)
	}
	return id, nil
}

func (r *historyRepository) ListHistory(ctx context.Context, filter domain.HistoryFilter) ([]domain.BalanceRecord, error) {
	var userID int64
	err := r.db.GetContext(ctx, &userID, r.db.Rebind(`SELECT id FROM users WHERE username = ?`), strings.TrimSpace(filter.Username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	query := `
		SELECT id, user_id, month, year, balance, date_recorded
		FROM history
		WHERE user_id = ?
	`
	args := []interface{}{userID}
	if filter.Year > 0 {
		query += " AND year = ?"
		args = append(args, filter.Year)
	}
	query += " ORDER BY date_recorded DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	records := make([]domain.BalanceRecord, 0)
	if err := r.db.SelectContext(ctx, &records, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("error listing history: %w", err)
	}
	return records, nil
}
