package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Transaction is an append-only log entry of a single balance-affecting
// event. Amounts are positive for credits and negative for withdrawal
// debits. Rows are created once and never mutated.
type Transaction struct {
	ID          string         `db:"id"`
	UserID      string         `db:"user_id"`
	Type        string         `db:"type"`
	Amount      int64          `db:"amount"`
	Description sql.NullString `db:"description"`
	Status      string         `db:"status"`
	CreatedAt   time.Time      `db:"created_at"`
}

const (
	TransactionTypeDailyCheckin = "daily_checkin"
	TransactionTypeWatchVideo   = "watch_video"
	TransactionTypeScratchCard  = "scratch_card"
	TransactionTypeWithdrawal   = "withdrawal"
	TransactionTypeReferral     = "referral"

	TransactionStatusCompleted = "completed"
)

// TransactionFilter narrows ListByUser results. Nil dates mean unbounded.
type TransactionFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

type TransactionRepository interface {
	Insert(transaction *Transaction, tx *sqlx.Tx) (*Transaction, error)
	CountByTypeBetween(userID, txType string, from, to time.Time) (int, error)
	ListByUser(userID string, filter *TransactionFilter) ([]Transaction, bool, error)
}

type TransactionRepositoryImpl struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) TransactionRepository {
	return &TransactionRepositoryImpl{db: db}
}

func (repo *TransactionRepositoryImpl) Insert(transaction *Transaction, tx *sqlx.Tx) (*Transaction, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var created Transaction

	query := `
		INSERT INTO transactions (user_id, type, amount, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, type, amount, description, status, created_at`

	if tx != nil {
		err := tx.GetContext(ctx, &created, query,
			transaction.UserID,
			transaction.Type,
			transaction.Amount,
			transaction.Description,
		)
		if err != nil {
			return nil, err
		}
	} else {
		err := repo.db.GetContext(ctx, &created, query,
			transaction.UserID,
			transaction.Type,
			transaction.Amount,
			transaction.Description,
		)
		if err != nil {
			return nil, err
		}
	}

	return &created, nil
}

// CountByTypeBetween counts a user's transactions of one type inside
// [from, to). The daily check-in and scratch-card gates are both answered
// by this query over the current UTC day, there is no stored "claimed" flag.
func (repo *TransactionRepositoryImpl) CountByTypeBetween(userID, txType string, from, to time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var count int

	query := `
		SELECT COUNT(*) FROM transactions
		WHERE user_id = $1 AND type = $2 AND created_at >= $3 AND created_at < $4`

	err := repo.db.GetContext(ctx, &count, query, userID, txType, from, to)
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (repo *TransactionRepositoryImpl) ListByUser(userID string, filter *TransactionFilter) ([]Transaction, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
        SELECT id, user_id, type, amount, description, status, created_at
        FROM transactions
        WHERE user_id = $1`

	args := []any{userID}

	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}

	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}

	query += " ORDER BY created_at DESC"

	args = append(args, filter.Limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	var transactions []Transaction

	err := repo.db.SelectContext(ctx, &transactions, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	if len(transactions) == 0 {
		return nil, false, nil
	}

	return transactions, true, nil
}
