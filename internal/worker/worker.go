package worker

import (
	"context"

	"github.com/earnzy/earnzy/internal/helper"
	"github.com/earnzy/earnzy/internal/repository"
	"github.com/earnzy/earnzy/internal/smtp"
	"github.com/earnzy/earnzy/internal/stream"
	"github.com/earnzy/earnzy/internal/wallet"
)

type Worker struct {
	KafkaStream *stream.KafkaStream
	DB          repository.Database
	Engine      *wallet.Engine
	Mailer      smtp.MailerInterface
	Helper      *helper.HelperRepository
	Ctx         context.Context
}

const (
	// referralCompletedGroupID is used for workers that credit the referral bonus when a referred signup completes
	referralCompletedGroupID = "referral-completed-group"

	// withdrawalNotifierGroupID is used for workers that notify users about their withdrawal requests
	withdrawalNotifierGroupID = "withdrawal-notifier-group"

	// Topics
	// ReferralCompletedTopic carries signups that arrived with a valid referral code.
	ReferralCompletedTopic = "referral.completed"

	// WithdrawalRequestedTopic carries withdrawal requests that have already been recorded and debited.
	WithdrawalRequestedTopic = "withdrawal.requested"
)

// Our workers typically need access to the ledger and the kafka event stream
// worker-specific dependencies can be passed as argument to the worker
func New(wk *Worker) *Worker {
	return &Worker{
		KafkaStream: wk.KafkaStream,
		DB:          wk.DB,
		Engine:      wk.Engine,
		Mailer:      wk.Mailer,
		Helper:      wk.Helper,
		Ctx:         wk.Ctx,
	}
}
