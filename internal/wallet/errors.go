package wallet

import "errors"

// Every failure the engine can surface is one of these kinds. The messages
// are user-facing; underlying store causes are logged, never shown.
var (
	// ErrAuthRequired is returned when an operation is attempted with no
	// authenticated user bound to it.
	ErrAuthRequired = errors.New("you must be signed in to perform this action")

	// Policy-gate rejections. These are not faults.
	ErrAlreadyClaimed = errors.New("daily check-in already claimed today")
	ErrLimitReached   = errors.New("daily scratch card limit reached")

	// Input validation rejections, detected before any store call.
	ErrInvalidAmount         = errors.New("amount must be a positive number")
	ErrInvalidRewardKind     = errors.New("unknown reward kind")
	ErrBelowMinimum          = errors.New("amount is below the minimum withdrawal")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrMissingAccountDetails = errors.New("please enter your account details")
	ErrMissingMethod         = errors.New("please select a payment method")

	// Store faults, surfaced as generic retryable failures. The in-memory
	// mirror is never updated when one of these is returned.
	ErrWalletNotFound   = errors.New("wallet not found")
	ErrDataUnavailable  = errors.New("wallet data is unavailable, please try again")
	ErrStoreWriteFailed = errors.New("the operation could not be recorded, please try again")
)
