// Every auth-relevant action (synchronous or asynchronous) is logged here.
// The log doubles as the data source for the consecutive-failed-login check,
// so there is no separate counter to keep in sync.
//
// entity and entity_id are polymorphic so the one table serves any part of
// the application.
package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type ActivityRepository interface {
	CountConsecutiveFailedLoginAttempts(userID, actionDesc string) int
	Insert(log *ActivityLog) (*ActivityLog, error)
}

type ActivityLog struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	Entity      string    `db:"entity"`
	EntityId    string    `db:"entity_id"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

const (
	// ActivityLogUserEntity is used in activities that has to do with user accounts and the users table
	ActivityLogUserEntity = "user"

	// ActivityLogWalletEntity is used in activities that has to do with wallets and the wallets table
	ActivityLogWalletEntity = "wallet"

	// ActivityLogWithdrawalEntity is used in activities that has to do with withdrawal requests
	ActivityLogWithdrawalEntity = "withdrawal"
)

type ActivityRepositoryImpl struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sqlx.DB) ActivityRepository {
	return &ActivityRepositoryImpl{db: db}
}

func (repo *ActivityRepositoryImpl) Insert(log *ActivityLog) (*ActivityLog, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var created ActivityLog

	query := `
		INSERT INTO activity_logs (user_id, entity, entity_id, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, entity, entity_id, description, created_at`

	err := repo.db.GetContext(ctx, &created, query,
		log.UserID,
		log.Entity,
		log.EntityId,
		log.Description,
	)

	if err != nil {
		return nil, err
	}

	return &created, nil
}

// CountConsecutiveFailedLoginAttempts counts the most recent consecutive
// login failures for a user, stopping at the first entry that is not a
// failure. Only the last 3 entries matter because the account locks at 3.
func (repo *ActivityRepositoryImpl) CountConsecutiveFailedLoginAttempts(userID, actionDesc string) int {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var descriptions []string

	query := `
		SELECT description
		FROM activity_logs
		WHERE user_id = $1 AND entity = $2
		ORDER BY created_at DESC
		LIMIT 3`

	err := repo.db.SelectContext(ctx, &descriptions, query, userID, ActivityLogUserEntity)
	if err != nil {
		return 0
	}

	count := 0
	for _, desc := range descriptions {
		if desc != actionDesc {
			break
		}
		count++
	}

	return count
}
