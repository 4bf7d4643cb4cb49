package worker

import (
	"encoding/json"
	"log"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/earnzy/earnzy/internal/handler"
	"github.com/earnzy/earnzy/internal/stream"
)

// WithdrawalNotificationWorker emails users an acknowledgement of their
// withdrawal request. The debit already happened before the event was
// produced, so a failed email never affects balances.
func (wk *Worker) WithdrawalNotificationWorker() {
	consumer, err := wk.KafkaStream.CreateConsumer(&stream.StreamConsumer{
		GroupId: withdrawalNotifierGroupID,
		Topic:   WithdrawalRequestedTopic,
	})

	if err != nil {
		log.Fatalf("Error creating consumer: %v", err)
	}
	for {
		event := consumer.Poll(100) // Poll every 100ms
		switch e := event.(type) {
		case *kafka.Message:
			message := e.Value
			log.Printf("Withdrawal message received on %s: %s\n", e.TopicPartition, string(e.Value))

			var requested handler.WithdrawalRequested
			json.Unmarshal(message, &requested)

			wk.notifyWithdrawalRequested(&requested)
		case kafka.Error:
			log.Printf("Error: %v\n", e)
		default:
			// Handle other events if needed
		}
	}

}

func (wk *Worker) notifyWithdrawalRequested(requested *handler.WithdrawalRequested) bool {
	if requested.Email == "" {
		log.Printf("Withdrawal event without email, skipping notification: %v", requested)
		return false
	}

	emailData := wk.Helper.NewEmailData()
	emailData["Amount"] = requested.Amount
	emailData["Method"] = requested.Method
	emailData["AccountDetails"] = requested.AccountDetails
	emailData["RequestedAt"] = requested.RequestedAt

	err := wk.Mailer.Send(requested.Email, emailData, "withdrawal-requested.tmpl")
	if err != nil {
		log.Printf("Error sending withdrawal notification: %v", err)
		return false
	}

	return true
}
