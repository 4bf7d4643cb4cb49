package worker

import (
	"encoding/json"
	"log"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/earnzy/earnzy/internal/handler"
	"github.com/earnzy/earnzy/internal/repository"
	"github.com/earnzy/earnzy/internal/stream"
)

// ReferralWorker settles referral bonuses off the signup path. Both wallets
// are credited the same bonus and the referrer's counter is bumped; a partial
// failure is logged and the message is not retried, the ledger keeps whatever
// half completed.
func (wk *Worker) ReferralWorker() {
	consumer, err := wk.KafkaStream.CreateConsumer(&stream.StreamConsumer{
		GroupId: referralCompletedGroupID,
		Topic:   ReferralCompletedTopic,
	})

	if err != nil {
		log.Fatalf("Error creating consumer: %v", err)
	}
	for {
		event := consumer.Poll(100) // Poll every 100ms
		switch e := event.(type) {
		case *kafka.Message:
			message := e.Value
			log.Printf("Referral message received on %s: %s\n", e.TopicPartition, string(e.Value))

			var signup handler.ReferralSignup
			json.Unmarshal(message, &signup)

			success := wk.creditReferralBonus(&signup)
			if success {
				log.Printf("Referral bonus settled: %v", signup)
			}
		case kafka.Error:
			log.Printf("Error: %v\n", e)
		default:
			// Handle other events if needed
		}
	}

}

func (wk *Worker) creditReferralBonus(signup *handler.ReferralSignup) bool {
	bonus := wk.Engine.Policy.ReferralBonus()

	// The referred user signed up moments ago, so their wallet may not exist
	// yet. InitializeWallet creates it on demand.
	_, err := wk.Engine.InitializeWallet(wk.Ctx, signup.ReferredUserID)
	if err != nil {
		log.Printf("Error initializing referred user's wallet: %v", err)
		return false
	}

	_, err = wk.Engine.Credit(wk.Ctx, signup.ReferredUserID, bonus, repository.TransactionTypeReferral, "Referral signup bonus")
	if err != nil {
		log.Printf("Error crediting referred user: %v", err)
		return false
	}

	_, err = wk.Engine.Credit(wk.Ctx, signup.ReferrerUserID, bonus, repository.TransactionTypeReferral, "Referral reward")
	if err != nil {
		log.Printf("Error crediting referrer: %v", err)
		return false
	}

	if err := wk.DB.Wallet().IncrementReferrals(signup.ReferrerUserID, nil); err != nil {
		log.Printf("Error incrementing referral count: %v", err)
		return false
	}

	// log operation
	go func() {
		_, err := wk.DB.Activity().Insert(&repository.ActivityLog{
			UserID:      signup.ReferrerUserID,
			Entity:      repository.ActivityLogWalletEntity,
			EntityId:    signup.ReferredUserID,
			Description: "Referral bonus credited",
		})

		if err != nil {
			log.Printf("Error logging referral bonus action: %v", err)
		}
	}()

	return true
}
