package handler

import (
	"net/http"

	"github.com/earnzy/earnzy/internal/errHandler"
	"github.com/earnzy/earnzy/internal/response"
	"github.com/earnzy/earnzy/internal/version"
)

type healthCheckHandler struct {
	err *errHandler.ErrorHandler
}

func NewHealthCheckHandler(err *errHandler.ErrorHandler) *healthCheckHandler {
	return &healthCheckHandler{
		err: err,
	}
}

func (app *healthCheckHandler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	message := "Up and grateful"

	err := response.JSONOkResponse(w, nil, message, nil)
	if err != nil {
		app.err.ServerError(w, r, err)
	}
}

func (app *healthCheckHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	data := map[string]string{
		"status":  "OK",
		"version": version.Get(),
	}

	err := response.JSONOkResponse(w, data, "Service status", nil)
	if err != nil {
		app.err.ServerError(w, r, err)
	}
}
