package handler

import (
	"net/http"
	"time"

	"github.com/earnzy/earnzy/internal/context"
	"github.com/earnzy/earnzy/internal/errHandler"
	"github.com/earnzy/earnzy/internal/repository"
	"github.com/earnzy/earnzy/internal/response"
)

type transactionHandler struct {
	db         repository.Database
	errHandler *errHandler.ErrorHandler
}

func NewTransactionHandler(db repository.Database, errHandler *errHandler.ErrorHandler) *transactionHandler {
	return &transactionHandler{
		db:         db,
		errHandler: errHandler,
	}
}

type TransactionResponseData struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

func (h *transactionHandler) HandleTransactionHistory(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)

	queryValues := retrieveUrlQueryValues(r)

	filter := &repository.TransactionFilter{
		StartDate: queryValues.StartDate,
		EndDate:   queryValues.EndDate,
		Limit:     queryValues.Limit,
		Offset:    queryValues.Offset,
	}

	transactions, found, err := h.db.Transaction().ListByUser(user.ID, filter)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	if !found {
		message := "No transactions found"
		err = response.JSONOkResponse(w, []TransactionResponseData{}, message, nil)
		if err != nil {
			h.errHandler.ServerError(w, r, err)
		}
		return
	}

	data := make([]*TransactionResponseData, len(transactions))
	for i, transaction := range transactions {
		data[i] = &TransactionResponseData{
			ID:          transaction.ID,
			Type:        transaction.Type,
			Amount:      transaction.Amount,
			Description: transaction.Description.String,
			Status:      transaction.Status,
			CreatedAt:   transaction.CreatedAt.Format(time.RFC3339),
		}
	}

	message := "Transactions fetched successfully"
	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}
