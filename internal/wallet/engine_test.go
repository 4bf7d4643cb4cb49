package wallet

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/earnzy/earnzy/internal/policy"
	"github.com/earnzy/earnzy/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWalletRepo struct {
	mock.Mock
}

func (m *MockWalletRepo) Insert(wallet *repository.Wallet, tx *sqlx.Tx) (*repository.Wallet, error) {
	args := m.Called(wallet, tx)
	var w *repository.Wallet
	if args.Get(0) != nil {
		w = args.Get(0).(*repository.Wallet)
	}
	return w, args.Error(1)
}

func (m *MockWalletRepo) GetByUserID(userID string) (*repository.Wallet, bool, error) {
	args := m.Called(userID)
	var w *repository.Wallet
	if args.Get(0) != nil {
		w = args.Get(0).(*repository.Wallet)
	}
	return w, args.Bool(1), args.Error(2)
}

func (m *MockWalletRepo) FindByReferralCode(code string) (*repository.Wallet, bool, error) {
	args := m.Called(code)
	var w *repository.Wallet
	if args.Get(0) != nil {
		w = args.Get(0).(*repository.Wallet)
	}
	return w, args.Bool(1), args.Error(2)
}

func (m *MockWalletRepo) Credit(userID string, amount int64, tx *sqlx.Tx) (*repository.Wallet, error) {
	args := m.Called(userID, amount, tx)
	var w *repository.Wallet
	if args.Get(0) != nil {
		w = args.Get(0).(*repository.Wallet)
	}
	return w, args.Error(1)
}

func (m *MockWalletRepo) Debit(userID string, amount int64, tx *sqlx.Tx) (*repository.Wallet, error) {
	args := m.Called(userID, amount, tx)
	var w *repository.Wallet
	if args.Get(0) != nil {
		w = args.Get(0).(*repository.Wallet)
	}
	return w, args.Error(1)
}

func (m *MockWalletRepo) IncrementReferrals(userID string, tx *sqlx.Tx) error {
	args := m.Called(userID, tx)
	return args.Error(0)
}

type MockTransactionRepo struct {
	mock.Mock
}

func (m *MockTransactionRepo) Insert(transaction *repository.Transaction, tx *sqlx.Tx) (*repository.Transaction, error) {
	args := m.Called(transaction, tx)
	var t *repository.Transaction
	if args.Get(0) != nil {
		t = args.Get(0).(*repository.Transaction)
	}
	return t, args.Error(1)
}

func (m *MockTransactionRepo) CountByTypeBetween(userID, txType string, from, to time.Time) (int, error) {
	args := m.Called(userID, txType, from, to)
	return args.Int(0), args.Error(1)
}

func (m *MockTransactionRepo) ListByUser(userID string, filter *repository.TransactionFilter) ([]repository.Transaction, bool, error) {
	args := m.Called(userID, filter)
	var list []repository.Transaction
	if args.Get(0) != nil {
		list = args.Get(0).([]repository.Transaction)
	}
	return list, args.Bool(1), args.Error(2)
}

type MockWithdrawalRepo struct {
	mock.Mock
}

func (m *MockWithdrawalRepo) Insert(withdrawal *repository.Withdrawal, tx *sqlx.Tx) (*repository.Withdrawal, error) {
	args := m.Called(withdrawal, tx)
	var w *repository.Withdrawal
	if args.Get(0) != nil {
		w = args.Get(0).(*repository.Withdrawal)
	}
	return w, args.Error(1)
}

// fixedNow keeps every gate inside one known UTC day.
var fixedNow = time.Date(2025, time.March, 10, 15, 4, 5, 0, time.UTC)

func newTestEngine(wallets *MockWalletRepo, transactions *MockTransactionRepo, withdrawals *MockWithdrawalRepo) *Engine {
	return New(&Engine{
		Wallets:      wallets,
		Transactions: transactions,
		Withdrawals:  withdrawals,
		Now:          func() time.Time { return fixedNow },
	})
}

func dayWindow() (time.Time, time.Time) {
	start := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

func TestInitializeWallet_CreatesWhenMissing(t *testing.T) {
	wallets := new(MockWalletRepo)
	transactions := new(MockTransactionRepo)
	withdrawals := new(MockWithdrawalRepo)

	wallets.On("GetByUserID", "user-1").Return(nil, false, nil)
	wallets.On("Insert", mock.MatchedBy(func(w *repository.Wallet) bool {
		return w.UserID == "user-1" && strings.HasPrefix(w.ReferralCode, "EARNZY")
	}), (*sqlx.Tx)(nil)).Return(&repository.Wallet{
		UserID:       "user-1",
		ReferralCode: "EARNZYABC123",
	}, nil)

	engine := newTestEngine(wallets, transactions, withdrawals)

	snapshot, err := engine.InitializeWallet(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(0), snapshot.Balance)
	require.Equal(t, int64(0), snapshot.Earned)
	require.Equal(t, int64(0), snapshot.Withdrawn)
	require.Equal(t, "EARNZYABC123", snapshot.ReferralCode)

	wallets.AssertExpectations(t)
}

func TestInitializeWallet_DegradedWhenStoreDown(t *testing.T) {
	wallets := new(MockWalletRepo)

	wallets.On("GetByUserID", "user-1").Return(nil, false, errors.New("connection refused"))

	engine := newTestEngine(wallets, new(MockTransactionRepo), new(MockWithdrawalRepo))

	snapshot, err := engine.InitializeWallet(context.Background(), "user-1")
	require.ErrorIs(t, err, ErrDataUnavailable)

	// The caller still gets a zeroed snapshot to render.
	require.NotNil(t, snapshot)
	require.Equal(t, int64(0), snapshot.Balance)

	wallets.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestGenerateReferralCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := GenerateReferralCode()
		require.Len(t, code, 12)
		require.True(t, strings.HasPrefix(code, "EARNZY"))

		for _, c := range code[6:] {
			require.Contains(t, referralCodeAlphabet, string(c))
		}
	}
}

func TestCheckIn_CreditsFixedReward(t *testing.T) {
	wallets := new(MockWalletRepo)
	transactions := new(MockTransactionRepo)

	dayStart, dayEnd := dayWindow()

	transactions.On("CountByTypeBetween", "user-1", repository.TransactionTypeDailyCheckin, dayStart, dayEnd).Return(0, nil)
	wallets.On("GetByUserID", "user-1").Return(&repository.Wallet{UserID: "user-1"}, true, nil)
	wallets.On("Credit", "user-1", int64(policy.DefaultCheckinReward), (*sqlx.Tx)(nil)).Return(&repository.Wallet{
		UserID:  "user-1",
		Balance: 50,
		Earned:  50,
	}, nil)
	transactions.On("Insert", mock.MatchedBy(func(tr *repository.Transaction) bool {
		return tr.UserID == "user-1" &&
			tr.Type == repository.TransactionTypeDailyCheckin &&
			tr.Amount == 50
	}), (*sqlx.Tx)(nil)).Return(&repository.Transaction{}, nil)

	engine := newTestEngine(wallets, transactions, new(MockWithdrawalRepo))

	snapshot, err := engine.CheckIn(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(50), snapshot.Balance)
	require.Equal(t, int64(50), snapshot.Earned)

	wallets.AssertExpectations(t)
	transactions.AssertExpectations(t)
}

func TestCheckIn_SecondClaimSameDayRejected(t *testing.T) {
	wallets := new(MockWalletRepo)
	transactions := new(MockTransactionRepo)

	dayStart, dayEnd := dayWindow()
	transactions.On("CountByTypeBetween", "user-1", repository.TransactionTypeDailyCheckin, dayStart, dayEnd).Return(1, nil)

	engine := newTestEngine(wallets, transactions, new(MockWithdrawalRepo))

	_, err := engine.CheckIn(context.Background(), "user-1")
	require.ErrorIs(t, err, ErrAlreadyClaimed)

	wallets.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckIn_ResetsAtUTCDayBoundary(t *testing.T) {
	wallets := new(MockWalletRepo)
	transactions := new(MockTransactionRepo)

	// ten minutes before midnight UTC
	now := time.Date(2025, time.March, 10, 23, 50, 0, 0, time.UTC)

	day1Start := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	day1End := day1Start.Add(24 * time.Hour)
	day2Start := day1End
	day2End := day2Start.Add(24 * time.Hour)

	transactions.On("CountByTypeBetween", "user-1", repository.TransactionTypeDailyCheckin, day1Start, day1End).Return(0, nil).Once()
	transactions.On("CountByTypeBetween", "user-1", repository.TransactionTypeDailyCheckin, day1Start, day1End).Return(1, nil).Once()
	transactions.On("CountByTypeBetween", "user-1", repository.TransactionTypeDailyCheckin, day2Start, day2End).Return(0, nil).Once()
	transactions.On("Insert", mock.Anything, (*sqlx.Tx)(nil)).Return(&repository.Transaction{}, nil).Times(2)

	wallets.On("GetByUserID", "user-1").Return(&repository.Wallet{UserID: "user-1"}, true, nil).Once()
	wallets.On("Credit", "user-1", int64(50), (*sqlx.Tx)(nil)).Return(&repository.Wallet{UserID: "user-1", Balance: 50, Earned: 50}, nil).Once()
	wallets.On("GetByUserID", "user-1").Return(&repository.Wallet{UserID: "user-1", Balance: 50, Earned: 50}, true, nil).Once()
	wallets.On("Credit", "user-1", int64(50), (*sqlx.Tx)(nil)).Return(&repository.Wallet{UserID: "user-1", Balance: 100, Earned: 100}, nil).Once()

	engine := New(&Engine{
		Wallets:      wallets,
		Transactions: transactions,
		Withdrawals:  new(MockWithdrawalRepo),
		Now:          func() time.Time { return now },
	})

	snapshot, err := engine.CheckIn(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(50), snapshot.Balance)

	_, err = engine.CheckIn(context.Background(), "user-1")
	require.ErrorIs(t, err, ErrAlreadyClaimed)

	// twenty minutes later it is the next UTC day and the claim is open again
	now = now.Add(20 * time.Minute)

	snapshot, err = engine.CheckIn(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(100), snapshot.Balance)

	wallets.AssertExpectations(t)
	transactions.AssertExpectations(t)
}

func TestWatchVideo_FixedAmountBypassesRoll(t *testing.T) {
	wallets := new(MockWalletRepo)
	transactions := new(MockTransactionRepo)

	wallets.On("GetByUserID", "user-1").Return(&repository.Wallet{UserID: "user-1"}, true, nil)
	wallets.On("Credit", "user-1", int64(15), (*sqlx.Tx)(nil)).Return(&repository.Wallet{
		UserID:  "user-1",
		Balance: 15,
		Earned:  15,
	}, nil)
	transactions.On("Insert", mock.MatchedBy(func(tr *repository.Transaction) bool {
		return tr.Type == repository.TransactionTypeWatchVideo && tr.Amount == 15
	}), (*sqlx.Tx)(nil)).Return(&repository.Transaction{}, nil)

	engine := newTestEngine(wallets, transactions, new(MockWithdrawalRepo))
	engine.Roll = func(min, max int64) int64 {
		t.Fatal("Roll must not be consulted when a fixed amount is given")
		return 0
	}

	snapshot, err := engine.WatchVideo(context.Background(), "user-1", 15)
	require.NoError(t, err)
	require.Equal(t, int64(15), snapshot.Balance)
}

func TestWatchVideo_RollsPolicyRange(t *testing.T) {
	wallets := new(MockWalletRepo)
	transactions := new(MockTransactionRepo)

	wallets.On("GetByUserID", "user-1").Return(&repository.Wallet{UserID: "user-1"}, true, nil)
	wallets.On("Credit", "user-1", int64(17), (*sqlx.Tx)(nil)).Return(&repository.Wallet{
		UserID:  "user-1",
		Balance: 17,
		Earned:  17,
	}, nil)
	transactions.On("Insert", mock.Anything, (*sqlx.Tx)(nil)).Return(&repository.Transaction{}, nil)

	engine := newTestEngine(wallets, transactions, new(MockWithdrawalRepo))
	engine.Roll = func(min, max int64) int64 {
		require.Equal(t, int64(policy.DefaultVideoRewardMin), min)
		require.Equal(t, int64(policy.DefaultVideoRewardMax), max)
		return 17
	}

	snapshot, err := engine.WatchVideo(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.Equal(t, int64(17), snapshot.Balance)
}

func TestScratchCard_LimitReached(t *testing.T) {
	wallets := new(MockWalletRepo)
	transactions := new(MockTransactionRepo)

	dayStart, dayEnd := dayWindow()
	transactions.On("CountByTypeBetween", "user-1", repository.TransactionTypeScratchCard, dayStart, dayEnd).Return(3, nil)

	engine := newTestEngine(wallets, transactions, new(MockWithdrawalRepo))
	engine.Roll = func(min, max int64) int64 { return 20 }

	_, err := engine.ScratchCard(context.Background(), "user-1", "card-9")
	require.ErrorIs(t, err, ErrLimitReached)

	wallets.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything)
}

func TestScratchCard_UnderLimitCredits(t *testing.T) {
	wallets := new(MockWalletRepo)
	transactions := new(MockTransactionRepo)

	dayStart, dayEnd := dayWindow()
	transactions.On("CountByTypeBetween", "user-1", repository.TransactionTypeScratchCard, dayStart, dayEnd).Return(2, nil)
	wallets.On("GetByUserID", "user-1").Return(&repository.Wallet{UserID: "user-1", Balance: 100, Earned: 100}, true, nil)
	wallets.On("Credit", "user-1", int64(20), (*sqlx.Tx)(nil)).Return(&repository.Wallet{
		UserID:  "user-1",
		Balance: 120,
		Earned:  120,
	}, nil)
	transactions.On("Insert", mock.MatchedBy(func(tr *repository.Transaction) bool {
		return tr.Type == repository.TransactionTypeScratchCard &&
			tr.Amount == 20 &&
			strings.Contains(tr.Description.String, "card-9")
	}), (*sqlx.Tx)(nil)).Return(&repository.Transaction{}, nil)

	engine := newTestEngine(wallets, transactions, new(MockWithdrawalRepo))
	engine.Roll = func(min, max int64) int64 {
		require.Equal(t, int64(policy.DefaultScratchRewardMin), min)
		require.Equal(t, int64(policy.DefaultScratchRewardMax), max)
		return 20
	}

	snapshot, err := engine.ScratchCard(context.Background(), "user-1", "card-9")
	require.NoError(t, err)
	require.Equal(t, int64(120), snapshot.Balance)
}

func TestCredit_InputRejections(t *testing.T) {
	wallets := new(MockWalletRepo)
	transactions := new(MockTransactionRepo)
	engine := newTestEngine(wallets, transactions, new(MockWithdrawalRepo))

	_, err := engine.Credit(context.Background(), "", 50, repository.TransactionTypeDailyCheckin, "")
	require.ErrorIs(t, err, ErrAuthRequired)

	_, err = engine.Credit(context.Background(), "user-1", 0, repository.TransactionTypeDailyCheckin, "")
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = engine.Credit(context.Background(), "user-1", -10, repository.TransactionTypeDailyCheckin, "")
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = engine.Credit(context.Background(), "user-1", 50, "jackpot", "")
	require.ErrorIs(t, err, ErrInvalidRewardKind)

	// none of the rejections may touch the store
	wallets.AssertNotCalled(t, "GetByUserID", mock.Anything)
	wallets.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything)
	transactions.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestCredit_MirrorUntouchedOnWriteFailure(t *testing.T) {
	wallets := new(MockWalletRepo)
	transactions := new(MockTransactionRepo)

	wallets.On("GetByUserID", "user-1").Return(&repository.Wallet{UserID: "user-1", Balance: 100, Earned: 100}, true, nil)

	engine := newTestEngine(wallets, transactions, new(MockWithdrawalRepo))

	_, err := engine.InitializeWallet(context.Background(), "user-1")
	require.NoError(t, err)

	wallets.On("Credit", "user-1", int64(15), (*sqlx.Tx)(nil)).Return(&repository.Wallet{
		UserID:  "user-1",
		Balance: 115,
		Earned:  115,
	}, nil)
	transactions.On("Insert", mock.Anything, (*sqlx.Tx)(nil)).Return(nil, errors.New("disk full"))

	_, err = engine.WatchVideo(context.Background(), "user-1", 15)
	require.ErrorIs(t, err, ErrStoreWriteFailed)

	snapshot, ok := engine.Snapshot("user-1")
	require.True(t, ok)
	require.Equal(t, int64(100), snapshot.Balance)
}

func TestDebit_PreconditionOrder(t *testing.T) {
	wallets := new(MockWalletRepo)
	withdrawals := new(MockWithdrawalRepo)

	wallets.On("GetByUserID", "user-1").Return(&repository.Wallet{UserID: "user-1", Balance: 20000}, true, nil)

	engine := newTestEngine(wallets, new(MockTransactionRepo), withdrawals)

	_, err := engine.InitializeWallet(context.Background(), "user-1")
	require.NoError(t, err)

	// Below-minimum wins even when everything else is missing too.
	_, err = engine.Debit(context.Background(), "user-1", 5000, "", "")
	require.ErrorIs(t, err, ErrBelowMinimum)

	// Insufficient balance is reported before missing details.
	_, err = engine.Debit(context.Background(), "user-1", 50000, "", "")
	require.ErrorIs(t, err, ErrInsufficientBalance)

	// Details before method.
	_, err = engine.Debit(context.Background(), "user-1", 15000, "", "")
	require.ErrorIs(t, err, ErrMissingAccountDetails)

	_, err = engine.Debit(context.Background(), "user-1", 15000, "", "0123456789 - Test Bank")
	require.ErrorIs(t, err, ErrMissingMethod)

	wallets.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything)
	withdrawals.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestDebit_Success(t *testing.T) {
	wallets := new(MockWalletRepo)
	transactions := new(MockTransactionRepo)
	withdrawals := new(MockWithdrawalRepo)

	wallets.On("GetByUserID", "user-1").Return(&repository.Wallet{UserID: "user-1", Balance: 20000, Earned: 20000}, true, nil)
	wallets.On("Debit", "user-1", int64(15000), (*sqlx.Tx)(nil)).Return(&repository.Wallet{
		UserID:    "user-1",
		Balance:   5000,
		Earned:    20000,
		Withdrawn: 15000,
	}, nil)
	withdrawals.On("Insert", mock.MatchedBy(func(wd *repository.Withdrawal) bool {
		return wd.UserID == "user-1" &&
			wd.Amount == 15000 &&
			wd.Method == "bank_transfer" &&
			wd.AccountDetails == "0123456789 - Test Bank"
	}), (*sqlx.Tx)(nil)).Return(&repository.Withdrawal{}, nil)
	transactions.On("Insert", mock.MatchedBy(func(tr *repository.Transaction) bool {
		return tr.Type == repository.TransactionTypeWithdrawal && tr.Amount == -15000
	}), (*sqlx.Tx)(nil)).Return(&repository.Transaction{}, nil)

	engine := newTestEngine(wallets, transactions, withdrawals)

	_, err := engine.InitializeWallet(context.Background(), "user-1")
	require.NoError(t, err)

	snapshot, err := engine.Debit(context.Background(), "user-1", 15000, "bank_transfer", "0123456789 - Test Bank")
	require.NoError(t, err)
	require.Equal(t, int64(5000), snapshot.Balance)
	require.Equal(t, int64(15000), snapshot.Withdrawn)
	require.Equal(t, int64(20000), snapshot.Earned)

	wallets.AssertExpectations(t)
	transactions.AssertExpectations(t)
	withdrawals.AssertExpectations(t)
}

func TestDebit_GuardMissMapsToInsufficientBalance(t *testing.T) {
	wallets := new(MockWalletRepo)
	withdrawals := new(MockWithdrawalRepo)

	// The mirror says the balance is there, but another client spent it.
	wallets.On("GetByUserID", "user-1").Return(&repository.Wallet{UserID: "user-1", Balance: 20000}, true, nil)
	wallets.On("Debit", "user-1", int64(15000), (*sqlx.Tx)(nil)).Return(nil, sql.ErrNoRows)

	engine := newTestEngine(wallets, new(MockTransactionRepo), withdrawals)

	_, err := engine.InitializeWallet(context.Background(), "user-1")
	require.NoError(t, err)

	_, err = engine.Debit(context.Background(), "user-1", 15000, "bank_transfer", "0123456789 - Test Bank")
	require.ErrorIs(t, err, ErrInsufficientBalance)

	withdrawals.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

// A fresh user's first day: check-in, a video worth 15, a scratch card worth
// 20, then two withdrawal attempts that both fail for different reasons.
func TestFreshUserScenario(t *testing.T) {
	wallets := new(MockWalletRepo)
	transactions := new(MockTransactionRepo)
	withdrawals := new(MockWithdrawalRepo)

	dayStart, dayEnd := dayWindow()

	transactions.On("CountByTypeBetween", "user-1", repository.TransactionTypeDailyCheckin, dayStart, dayEnd).Return(0, nil).Once()
	transactions.On("CountByTypeBetween", "user-1", repository.TransactionTypeScratchCard, dayStart, dayEnd).Return(0, nil).Once()
	transactions.On("Insert", mock.Anything, (*sqlx.Tx)(nil)).Return(&repository.Transaction{}, nil).Times(3)

	wallets.On("GetByUserID", "user-1").Return(&repository.Wallet{UserID: "user-1"}, true, nil).Once()
	wallets.On("Credit", "user-1", int64(50), (*sqlx.Tx)(nil)).Return(&repository.Wallet{UserID: "user-1", Balance: 50, Earned: 50}, nil).Once()

	wallets.On("GetByUserID", "user-1").Return(&repository.Wallet{UserID: "user-1", Balance: 50, Earned: 50}, true, nil).Once()
	wallets.On("Credit", "user-1", int64(15), (*sqlx.Tx)(nil)).Return(&repository.Wallet{UserID: "user-1", Balance: 65, Earned: 65}, nil).Once()

	wallets.On("GetByUserID", "user-1").Return(&repository.Wallet{UserID: "user-1", Balance: 65, Earned: 65}, true, nil).Once()
	wallets.On("Credit", "user-1", int64(20), (*sqlx.Tx)(nil)).Return(&repository.Wallet{UserID: "user-1", Balance: 85, Earned: 85}, nil).Once()

	engine := newTestEngine(wallets, transactions, withdrawals)
	engine.Roll = func(min, max int64) int64 { return 20 }

	snapshot, err := engine.CheckIn(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(50), snapshot.Balance)
	require.Equal(t, int64(50), snapshot.Earned)

	snapshot, err = engine.WatchVideo(context.Background(), "user-1", 15)
	require.NoError(t, err)
	require.Equal(t, int64(65), snapshot.Balance)
	require.Equal(t, int64(65), snapshot.Earned)

	snapshot, err = engine.ScratchCard(context.Background(), "user-1", "c1")
	require.NoError(t, err)
	require.Equal(t, int64(85), snapshot.Balance)
	require.Equal(t, int64(85), snapshot.Earned)

	_, err = engine.Debit(context.Background(), "user-1", 85, "upi", "acct123")
	require.ErrorIs(t, err, ErrBelowMinimum)

	_, err = engine.Debit(context.Background(), "user-1", 10000, "upi", "acct123")
	require.ErrorIs(t, err, ErrInsufficientBalance)

	// the failed withdrawals left the mirror where the scratch card put it
	snapshot, ok := engine.Snapshot("user-1")
	require.True(t, ok)
	require.Equal(t, int64(85), snapshot.Balance)

	wallets.AssertExpectations(t)
	transactions.AssertExpectations(t)
	withdrawals.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestHandleAuthEvent(t *testing.T) {
	wallets := new(MockWalletRepo)

	wallets.On("GetByUserID", "user-1").Return(&repository.Wallet{UserID: "user-1", Balance: 75}, true, nil)

	engine := newTestEngine(wallets, new(MockTransactionRepo), new(MockWithdrawalRepo))

	err := engine.HandleAuthEvent(context.Background(), AuthEvent{Type: AuthEventSignedIn, UserID: "user-1"})
	require.NoError(t, err)

	snapshot, ok := engine.Snapshot("user-1")
	require.True(t, ok)
	require.Equal(t, int64(75), snapshot.Balance)

	err = engine.HandleAuthEvent(context.Background(), AuthEvent{Type: AuthEventSignedOut, UserID: "user-1"})
	require.NoError(t, err)

	_, ok = engine.Snapshot("user-1")
	require.False(t, ok)
}
