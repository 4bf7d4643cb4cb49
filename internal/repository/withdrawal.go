package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// Withdrawal is a user-initiated request to convert coin balance into an
// external payout. Rows are insert-only from this system's point of view;
// the status lifecycle beyond "pending" belongs to the back-office process.
type Withdrawal struct {
	ID             string    `db:"id"`
	UserID         string    `db:"user_id"`
	Amount         int64     `db:"amount"`
	Method         string    `db:"method"`
	AccountDetails string    `db:"account_details"`
	Status         string    `db:"status"`
	CreatedAt      time.Time `db:"created_at"`
}

const WithdrawalStatusPending = "pending"

type WithdrawalRepository interface {
	Insert(withdrawal *Withdrawal, tx *sqlx.Tx) (*Withdrawal, error)
}

type WithdrawalRepositoryImpl struct {
	db *sqlx.DB
}

func NewWithdrawalRepository(db *sqlx.DB) WithdrawalRepository {
	return &WithdrawalRepositoryImpl{db: db}
}

func (repo *WithdrawalRepositoryImpl) Insert(withdrawal *Withdrawal, tx *sqlx.Tx) (*Withdrawal, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var created Withdrawal

	query := `
		INSERT INTO withdrawals (user_id, amount, method, account_details)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, amount, method, account_details, status, created_at`

	if tx != nil {
		err := tx.GetContext(ctx, &created, query,
			withdrawal.UserID,
			withdrawal.Amount,
			withdrawal.Method,
			withdrawal.AccountDetails,
		)
		if err != nil {
			return nil, err
		}
	} else {
		err := repo.db.GetContext(ctx, &created, query,
			withdrawal.UserID,
			withdrawal.Amount,
			withdrawal.Method,
			withdrawal.AccountDetails,
		)
		if err != nil {
			return nil, err
		}
	}

	return &created, nil
}
