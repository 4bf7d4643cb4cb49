// Package wallet implements the reward/withdrawal engine. It keeps an
// in-memory mirror of each signed-in user's wallet, applies credit and debit
// operations with validation against the reward policy, and synchronizes
// every mutation to the ledger tables.
//
// The wallet row is the only contended resource, and it is mutated
// exclusively through Credit and Debit; no other code path writes balance,
// earned or withdrawn.
package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/earnzy/earnzy/internal/policy"
	"github.com/earnzy/earnzy/internal/repository"
	"github.com/jmoiron/sqlx"
)

const referralCodePrefix = "EARNZY"

const referralCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Snapshot is the read-only view of a wallet handed to callers. It reflects
// the engine's in-memory mirror, which is only advanced after the backing
// writes have succeeded.
type Snapshot struct {
	UserID         string `json:"user_id"`
	Balance        int64  `json:"balance"`
	Earned         int64  `json:"earned"`
	Withdrawn      int64  `json:"withdrawn"`
	ReferralCode   string `json:"referral_code"`
	TotalReferrals int    `json:"total_referrals"`
}

// AuthEvent is pushed in by whoever owns the identity subscription. The
// engine never reaches into a global auth state; sign-in re-initializes the
// user's mirror and sign-out drops it.
type AuthEvent struct {
	Type   string
	UserID string
}

const (
	AuthEventSignedIn  = "SIGNED_IN"
	AuthEventSignedOut = "SIGNED_OUT"
)

// Engine applies reward credits and withdrawal debits for all signed-in
// users. Dependencies are plain fields so tests can assemble an Engine with
// stand-ins, mirroring how the handlers are constructed.
type Engine struct {
	Wallets      repository.WalletRepository
	Transactions repository.TransactionRepository
	Withdrawals  repository.WithdrawalRepository
	Policy       *policy.Policy
	Logger       *slog.Logger

	// Now supplies the clock for the UTC-day gates.
	Now func() time.Time

	// Roll draws a uniform random integer in [min, max], used for the video
	// and scratch card reward ranges.
	Roll func(min, max int64) int64

	// BeginTx, when set, wraps each mutation's writes in one database
	// transaction. When nil the writes run independently, best-effort.
	BeginTx    func(ctx context.Context) (*sqlx.Tx, error)
	CommitTx   func(tx *sqlx.Tx) error
	RollbackTx func(tx *sqlx.Tx) error

	mu      sync.Mutex
	mirrors map[string]Snapshot
}

// New fills in defaults for any dependency the caller left unset and
// prepares the mirror table.
func New(e *Engine) *Engine {
	if e.Policy == nil {
		e.Policy = policy.Default()
	}
	if e.Logger == nil {
		e.Logger = slog.Default()
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	if e.Roll == nil {
		e.Roll = func(min, max int64) int64 {
			return min + rand.Int64N(max-min+1)
		}
	}
	if e.CommitTx == nil {
		e.CommitTx = func(tx *sqlx.Tx) error { return tx.Commit() }
	}
	if e.RollbackTx == nil {
		e.RollbackTx = func(tx *sqlx.Tx) error { return tx.Rollback() }
	}
	e.mirrors = make(map[string]Snapshot)
	return e
}

// InitializeWallet fetches the user's wallet, creating it with zero balances
// and a fresh referral code if none exists, and holds it as the in-memory
// mirror. If both the fetch and the create fail the mirror is left at its
// zeroed default and ErrDataUnavailable is returned so the caller can show a
// degraded view.
func (e *Engine) InitializeWallet(ctx context.Context, userID string) (*Snapshot, error) {
	if userID == "" {
		return nil, ErrAuthRequired
	}

	w, found, fetchErr := e.Wallets.GetByUserID(userID)
	if fetchErr != nil {
		e.Logger.Error("wallet fetch failed", "user_id", userID, "error", fetchErr)
	}

	if found {
		snap := e.setMirror(w)
		return &snap, nil
	}

	if fetchErr == nil {
		created, createErr := e.createWallet(userID)
		if createErr == nil {
			snap := e.setMirror(created)
			return &snap, nil
		}
		e.Logger.Error("wallet create failed", "user_id", userID, "error", createErr)
	}

	snap := e.zeroMirror(userID)
	return &snap, ErrDataUnavailable
}

func (e *Engine) createWallet(userID string) (*repository.Wallet, error) {
	// The referral code is unique per wallet; on a collision we draw again
	// rather than bubbling the conflict up.
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		created, err := e.Wallets.Insert(&repository.Wallet{
			UserID:       userID,
			ReferralCode: GenerateReferralCode(),
		}, nil)
		if err == nil {
			return created, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// GenerateReferralCode returns a fresh code of the form EARNZY followed by
// six base36 characters.
func GenerateReferralCode() string {
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = referralCodeAlphabet[rand.IntN(len(referralCodeAlphabet))]
	}
	return referralCodePrefix + string(suffix)
}

// Credit applies a positive reward of the given kind. The daily check-in and
// scratch card gates are decided from the transaction log for the current
// UTC day, never from a stored flag. On success the mirror advances to the
// post-write balances; on any failure it is left untouched.
func (e *Engine) Credit(ctx context.Context, userID string, amount int64, kind string, description string) (*Snapshot, error) {
	if userID == "" {
		return nil, ErrAuthRequired
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	switch kind {
	case repository.TransactionTypeDailyCheckin,
		repository.TransactionTypeWatchVideo,
		repository.TransactionTypeScratchCard,
		repository.TransactionTypeReferral:
	default:
		return nil, ErrInvalidRewardKind
	}

	dayStart, dayEnd := utcDayWindow(e.Now())

	switch kind {
	case repository.TransactionTypeDailyCheckin:
		count, err := e.Transactions.CountByTypeBetween(userID, kind, dayStart, dayEnd)
		if err != nil {
			e.Logger.Error("check-in gate query failed", "user_id", userID, "error", err)
			return nil, ErrDataUnavailable
		}
		if count > 0 {
			return nil, ErrAlreadyClaimed
		}
	case repository.TransactionTypeScratchCard:
		count, err := e.Transactions.CountByTypeBetween(userID, kind, dayStart, dayEnd)
		if err != nil {
			e.Logger.Error("scratch limit query failed", "user_id", userID, "error", err)
			return nil, ErrDataUnavailable
		}
		if count >= e.Policy.DailyScratchLimit() {
			return nil, ErrLimitReached
		}
	}

	// Re-read from the store rather than trusting the mirror, to reduce
	// staleness across client instances.
	_, found, err := e.Wallets.GetByUserID(userID)
	if err != nil {
		e.Logger.Error("wallet fetch failed", "user_id", userID, "error", err)
		return nil, ErrDataUnavailable
	}
	if !found {
		return nil, ErrWalletNotFound
	}

	tx, err := e.beginTx(ctx)
	if err != nil {
		e.Logger.Error("could not begin credit transaction", "user_id", userID, "error", err)
		return nil, ErrStoreWriteFailed
	}

	updated, err := e.Wallets.Credit(userID, amount, tx)
	if err != nil {
		e.rollback(tx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		e.Logger.Error("wallet credit failed", "user_id", userID, "kind", kind, "error", err)
		return nil, ErrStoreWriteFailed
	}

	_, err = e.Transactions.Insert(&repository.Transaction{
		UserID:      userID,
		Type:        kind,
		Amount:      amount,
		Description: sql.NullString{String: description, Valid: description != ""},
	}, tx)
	if err != nil {
		e.rollback(tx)
		e.Logger.Error("credit transaction record failed", "user_id", userID, "kind", kind, "error", err)
		return nil, ErrStoreWriteFailed
	}

	if err := e.commit(tx); err != nil {
		e.Logger.Error("credit commit failed", "user_id", userID, "kind", kind, "error", err)
		return nil, ErrStoreWriteFailed
	}

	snap := e.setMirror(updated)
	return &snap, nil
}

// Debit reserves funds for a withdrawal: the balance is decremented before
// any external settlement occurs. Preconditions are checked in a fixed
// order, first failure wins, and none of them touch the store.
func (e *Engine) Debit(ctx context.Context, userID string, amount int64, method, accountDetails string) (*Snapshot, error) {
	if userID == "" {
		return nil, ErrAuthRequired
	}

	if amount <= 0 || amount < e.Policy.MinWithdrawal() {
		return nil, ErrBelowMinimum
	}

	mirror, ok := e.Snapshot(userID)
	if !ok {
		initialized, err := e.InitializeWallet(ctx, userID)
		if err != nil {
			return nil, err
		}
		mirror = initialized
	}
	if amount > mirror.Balance {
		return nil, ErrInsufficientBalance
	}

	if accountDetails == "" {
		return nil, ErrMissingAccountDetails
	}
	if method == "" {
		return nil, ErrMissingMethod
	}

	tx, err := e.beginTx(ctx)
	if err != nil {
		e.Logger.Error("could not begin debit transaction", "user_id", userID, "error", err)
		return nil, ErrStoreWriteFailed
	}

	updated, err := e.Wallets.Debit(userID, amount, tx)
	if err != nil {
		e.rollback(tx)
		if errors.Is(err, sql.ErrNoRows) {
			// The guarded update missed: another client spent the balance
			// since the mirror was taken.
			return nil, ErrInsufficientBalance
		}
		e.Logger.Error("wallet debit failed", "user_id", userID, "error", err)
		return nil, ErrStoreWriteFailed
	}

	_, err = e.Withdrawals.Insert(&repository.Withdrawal{
		UserID:         userID,
		Amount:         amount,
		Method:         method,
		AccountDetails: accountDetails,
	}, tx)
	if err != nil {
		e.rollback(tx)
		e.Logger.Error("withdrawal record failed", "user_id", userID, "error", err)
		return nil, ErrStoreWriteFailed
	}

	_, err = e.Transactions.Insert(&repository.Transaction{
		UserID:      userID,
		Type:        repository.TransactionTypeWithdrawal,
		Amount:      -amount,
		Description: sql.NullString{String: fmt.Sprintf("Withdrawal request via %s", method), Valid: true},
	}, tx)
	if err != nil {
		e.rollback(tx)
		e.Logger.Error("withdrawal transaction record failed", "user_id", userID, "error", err)
		return nil, ErrStoreWriteFailed
	}

	if err := e.commit(tx); err != nil {
		e.Logger.Error("debit commit failed", "user_id", userID, "error", err)
		return nil, ErrStoreWriteFailed
	}

	snap := e.setMirror(updated)
	return &snap, nil
}

// CheckIn credits the fixed daily check-in bonus, at most once per UTC day.
func (e *Engine) CheckIn(ctx context.Context, userID string) (*Snapshot, error) {
	return e.Credit(ctx, userID, e.Policy.CheckinReward(), repository.TransactionTypeDailyCheckin, "Daily check-in bonus")
}

// WatchVideo credits a video-ad reward. A positive fixedAmount bypasses the
// random draw; zero means roll from the policy range.
func (e *Engine) WatchVideo(ctx context.Context, userID string, fixedAmount int64) (*Snapshot, error) {
	amount := fixedAmount
	if amount <= 0 {
		min, max := e.Policy.VideoRewardRange()
		amount = e.Roll(min, max)
	}
	return e.Credit(ctx, userID, amount, repository.TransactionTypeWatchVideo, "Watched video ad")
}

// ScratchCard credits a scratch card reward, limited per UTC day.
func (e *Engine) ScratchCard(ctx context.Context, userID, cardID string) (*Snapshot, error) {
	min, max := e.Policy.ScratchRewardRange()
	amount := e.Roll(min, max)

	description := "Scratch card reward"
	if cardID != "" {
		description = fmt.Sprintf("Scratch card %s reward", cardID)
	}
	return e.Credit(ctx, userID, amount, repository.TransactionTypeScratchCard, description)
}

// Withdraw is the presentation-facing name for Debit.
func (e *Engine) Withdraw(ctx context.Context, userID string, amount int64, method, accountDetails string) (*Snapshot, error) {
	return e.Debit(ctx, userID, amount, method, accountDetails)
}

// Snapshot returns the mirrored wallet state for a user, if one is held.
func (e *Engine) Snapshot(userID string) (*Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, ok := e.mirrors[userID]
	if !ok {
		return nil, false
	}
	return &snap, true
}

// ClearMirror drops the user's mirrored state, e.g. on sign-out.
func (e *Engine) ClearMirror(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.mirrors, userID)
}

// HandleAuthEvent reacts to pushes from the identity subscription, which may
// arrive outside any engine call.
func (e *Engine) HandleAuthEvent(ctx context.Context, event AuthEvent) error {
	switch event.Type {
	case AuthEventSignedIn:
		_, err := e.InitializeWallet(ctx, event.UserID)
		return err
	case AuthEventSignedOut:
		e.ClearMirror(event.UserID)
		return nil
	}
	return nil
}

func (e *Engine) setMirror(w *repository.Wallet) Snapshot {
	snap := Snapshot{
		UserID:         w.UserID,
		Balance:        w.Balance,
		Earned:         w.Earned,
		Withdrawn:      w.Withdrawn,
		ReferralCode:   w.ReferralCode,
		TotalReferrals: w.TotalReferrals,
	}

	e.mu.Lock()
	e.mirrors[w.UserID] = snap
	e.mu.Unlock()

	return snap
}

func (e *Engine) zeroMirror(userID string) Snapshot {
	snap := Snapshot{UserID: userID}

	e.mu.Lock()
	e.mirrors[userID] = snap
	e.mu.Unlock()

	return snap
}

func (e *Engine) beginTx(ctx context.Context) (*sqlx.Tx, error) {
	if e.BeginTx == nil {
		return nil, nil
	}
	return e.BeginTx(ctx)
}

func (e *Engine) commit(tx *sqlx.Tx) error {
	if tx == nil {
		return nil
	}
	return e.CommitTx(tx)
}

func (e *Engine) rollback(tx *sqlx.Tx) {
	if tx == nil {
		return
	}
	if err := e.RollbackTx(tx); err != nil && !errors.Is(err, sql.ErrTxDone) {
		e.Logger.Error("rollback failed", "error", err)
	}
}

// utcDayWindow returns [start, end) of the UTC calendar day containing t.
func utcDayWindow(t time.Time) (time.Time, time.Time) {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
