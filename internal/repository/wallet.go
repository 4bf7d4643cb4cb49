package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// Wallet is the per-user record of coin balance and lifetime totals.
// balance, earned and withdrawn are whole coin units; earned and withdrawn
// only ever grow.
type Wallet struct {
	ID             string       `db:"id"`
	UserID         string       `db:"user_id"`
	Balance        int64        `db:"balance"`
	Earned         int64        `db:"earned"`
	Withdrawn      int64        `db:"withdrawn"`
	ReferralCode   string       `db:"referral_code"`
	TotalReferrals int          `db:"total_referrals"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      sql.NullTime `db:"updated_at"`
}

type WalletRepository interface {
	Insert(wallet *Wallet, tx *sqlx.Tx) (*Wallet, error)
	GetByUserID(userID string) (*Wallet, bool, error)
	FindByReferralCode(code string) (*Wallet, bool, error)
	Credit(userID string, amount int64, tx *sqlx.Tx) (*Wallet, error)
	Debit(userID string, amount int64, tx *sqlx.Tx) (*Wallet, error)
	IncrementReferrals(userID string, tx *sqlx.Tx) error
}

type WalletRepositoryImpl struct {
	db *sqlx.DB
}

func NewWalletRepository(db *sqlx.DB) WalletRepository {
	return &WalletRepositoryImpl{db: db}
}

const walletColumns = `id, user_id, balance, earned, withdrawn, referral_code, total_referrals, created_at, updated_at`

func (repo *WalletRepositoryImpl) Insert(wallet *Wallet, tx *sqlx.Tx) (*Wallet, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var created Wallet

	query := `
		INSERT INTO wallets (user_id, referral_code)
		VALUES ($1, $2)
		RETURNING ` + walletColumns

	if tx != nil {
		err := tx.GetContext(ctx, &created, query,
			wallet.UserID,
			wallet.ReferralCode,
		)
		if err != nil {
			return nil, err
		}
	} else {
		err := repo.db.GetContext(ctx, &created, query,
			wallet.UserID,
			wallet.ReferralCode,
		)
		if err != nil {
			return nil, err
		}
	}

	return &created, nil
}

func (repo *WalletRepositoryImpl) GetByUserID(userID string) (*Wallet, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var wallet Wallet

	query := `
        SELECT ` + walletColumns + ` FROM wallets WHERE user_id=$1`

	err := repo.db.GetContext(ctx, &wallet, query, userID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &wallet, true, nil
}

func (repo *WalletRepositoryImpl) FindByReferralCode(code string) (*Wallet, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var wallet Wallet

	query := `
        SELECT ` + walletColumns + ` FROM wallets WHERE referral_code=$1`

	err := repo.db.GetContext(ctx, &wallet, query, code)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &wallet, true, nil
}

// Credit adds amount to both balance and earned in one statement.
// It returns the updated row, or sql.ErrNoRows when the user has no wallet.
func (repo *WalletRepositoryImpl) Credit(userID string, amount int64, tx *sqlx.Tx) (*Wallet, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var wallet Wallet

	query := `
		UPDATE wallets
		SET balance = balance + $1, earned = earned + $1, updated_at = NOW()
		WHERE user_id = $2
		RETURNING ` + walletColumns

	if tx != nil {
		err := tx.GetContext(ctx, &wallet, query, amount, userID)
		if err != nil {
			return nil, err
		}
	} else {
		err := repo.db.GetContext(ctx, &wallet, query, amount, userID)
		if err != nil {
			return nil, err
		}
	}

	return &wallet, nil
}

// Debit moves amount from balance to withdrawn. The balance guard is part of
// the statement so two concurrent debits can never take the balance negative;
// a guard miss surfaces as sql.ErrNoRows.
func (repo *WalletRepositoryImpl) Debit(userID string, amount int64, tx *sqlx.Tx) (*Wallet, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var wallet Wallet

	query := `
		UPDATE wallets
		SET balance = balance - $1, withdrawn = withdrawn + $1, updated_at = NOW()
		WHERE user_id = $2 AND balance >= $1
		RETURNING ` + walletColumns

	if tx != nil {
		err := tx.GetContext(ctx, &wallet, query, amount, userID)
		if err != nil {
			return nil, err
		}
	} else {
		err := repo.db.GetContext(ctx, &wallet, query, amount, userID)
		if err != nil {
			return nil, err
		}
	}

	return &wallet, nil
}

func (repo *WalletRepositoryImpl) IncrementReferrals(userID string, tx *sqlx.Tx) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	query := `
		UPDATE wallets
		SET total_referrals = total_referrals + 1, updated_at = NOW()
		WHERE user_id = $1`

	if tx != nil {
		_, err := tx.ExecContext(ctx, query, userID)
		return err
	}

	_, err := repo.db.ExecContext(ctx, query, userID)
	return err
}
