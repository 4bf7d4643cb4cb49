package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/earnzy/earnzy/internal/context"
	"github.com/earnzy/earnzy/internal/errHandler"
	"github.com/earnzy/earnzy/internal/helper"
	"github.com/earnzy/earnzy/internal/repository"
	"github.com/earnzy/earnzy/internal/request"
	"github.com/earnzy/earnzy/internal/response"
	"github.com/earnzy/earnzy/internal/stream"
	"github.com/earnzy/earnzy/internal/validator"
	"github.com/earnzy/earnzy/internal/wallet"
)

const withdrawalRequestedTopic = "withdrawal.requested"

type WalletHandler struct {
	DB         repository.Database
	Engine     *wallet.Engine
	ErrHandler *errHandler.ErrorHandler
	Helper     *helper.HelperRepository
	Kafka      *stream.KafkaStream
}

func NewWalletHandler(handler *WalletHandler) *WalletHandler {
	return &WalletHandler{
		DB:         handler.DB,
		Engine:     handler.Engine,
		ErrHandler: handler.ErrHandler,
		Helper:     handler.Helper,
		Kafka:      handler.Kafka,
	}
}

// WithdrawalRequested is the event produced after a withdrawal has been
// recorded, consumed by the notification worker.
type WithdrawalRequested struct {
	UserID         string `json:"user_id"`
	Email          string `json:"email"`
	Amount         int64  `json:"amount"`
	Method         string `json:"method"`
	AccountDetails string `json:"account_details"`
	RequestedAt    string `json:"requested_at"`
}

// walletError translates engine failures into responses. Gate and input
// rejections are unprocessable-entity; store faults are server errors.
func (h *WalletHandler) walletError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, wallet.ErrAuthRequired):
		h.ErrHandler.AuthenticationRequired(w, r)
	case errors.Is(err, wallet.ErrDataUnavailable), errors.Is(err, wallet.ErrStoreWriteFailed):
		h.ErrHandler.ServerError(w, r, err)
	default:
		response.JSONErrorResponse(w, nil, err.Error(), http.StatusUnprocessableEntity, nil)
	}
}

func (h *WalletHandler) HandleWalletShow(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)

	snapshot, err := h.Engine.InitializeWallet(r.Context(), user.ID)
	if err != nil {
		// A degraded snapshot is still returned so the client can render
		// something instead of an error page.
		if errors.Is(err, wallet.ErrDataUnavailable) {
			message := "Wallet data is temporarily unavailable"
			response.JSONOkResponse(w, snapshot, message, nil)
			return
		}
		h.walletError(w, r, err)
		return
	}

	message := "Wallet fetched successfully"
	err = response.JSONOkResponse(w, snapshot, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *WalletHandler) HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)

	snapshot, err := h.Engine.CheckIn(r.Context(), user.ID)
	if err != nil {
		h.walletError(w, r, err)
		return
	}

	message := "Daily check-in reward claimed"
	err = response.JSONOkResponse(w, snapshot, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *WalletHandler) HandleWatchVideo(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)

	// The body is optional; the ad network may report a fixed reward, and
	// with no body the amount is rolled from the policy range.
	var input struct {
		Amount int64 `json:"amount"`
	}

	if r.ContentLength != 0 {
		err := request.DecodeJSON(w, r, &input)
		if err != nil {
			h.ErrHandler.BadRequest(w, r, err)
			return
		}
	}

	snapshot, err := h.Engine.WatchVideo(r.Context(), user.ID, input.Amount)
	if err != nil {
		h.walletError(w, r, err)
		return
	}

	message := "Video reward added"
	err = response.JSONOkResponse(w, snapshot, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *WalletHandler) HandleScratchCard(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)

	// The body is optional; card_id only feeds the transaction description.
	var input struct {
		CardID string `json:"card_id"`
	}

	if r.ContentLength != 0 {
		err := request.DecodeJSON(w, r, &input)
		if err != nil {
			h.ErrHandler.BadRequest(w, r, err)
			return
		}
	}

	snapshot, err := h.Engine.ScratchCard(r.Context(), user.ID, input.CardID)
	if err != nil {
		h.walletError(w, r, err)
		return
	}

	message := "Scratch card reward added"
	err = response.JSONOkResponse(w, snapshot, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}

func (h *WalletHandler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)

	var input struct {
		Amount         int64               `json:"amount"`
		Method         string              `json:"method"`
		AccountDetails string              `json:"account_details"`
		Validator      validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(input.Amount > 0, "Amount is required")

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	// Amount, balance, account details and method are checked by the engine
	// in that order, so the client always learns the first missing piece.
	snapshot, err := h.Engine.Withdraw(r.Context(), user.ID, input.Amount, input.Method, input.AccountDetails)
	if err != nil {
		h.walletError(w, r, err)
		return
	}

	requested := &WithdrawalRequested{
		UserID:         user.ID,
		Email:          user.Email,
		Amount:         input.Amount,
		Method:         input.Method,
		AccountDetails: input.AccountDetails,
		RequestedAt:    time.Now().UTC().Format(time.RFC3339),
	}

	jsonMessage, err := json.Marshal(requested)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	// Produce message so the notification worker can email the user
	go h.Kafka.ProduceMessage(withdrawalRequestedTopic, string(jsonMessage))

	h.Helper.BackgroundTask(r, func() error {
		_, err := h.DB.Activity().Insert(&repository.ActivityLog{
			UserID:      user.ID,
			Entity:      repository.ActivityLogWithdrawalEntity,
			EntityId:    user.ID,
			Description: "Requested a withdrawal",
		})

		if err != nil {
			log.Printf("Error logging withdrawal request action: %v", err)
			return err
		}

		return nil
	})

	message := "Withdrawal request submitted"
	err = response.JSONCreatedResponse(w, snapshot, message)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
