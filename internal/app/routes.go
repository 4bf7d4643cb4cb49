package app

import (
	"net/http"

	"github.com/earnzy/earnzy/internal/handler"
	"github.com/earnzy/earnzy/internal/middleware"
)

func (app *Application) routes() http.Handler {
	mux := http.NewServeMux()

	middlewareRepo := middleware.New(app.errorHandler, app.Logger, app.DB.User(), &app.Config)

	authHandler := handler.NewAuthHandler(&handler.AuthHandler{
		DB:         app.DB,
		Engine:     app.Engine,
		ErrHandler: app.errorHandler,
		Helper:     app.Helper,
		Mailer:     app.Mailer,
		Kafka:      app.Kafka,
		Config:     &app.Config,
	})

	walletHandler := handler.NewWalletHandler(&handler.WalletHandler{
		DB:         app.DB,
		Engine:     app.Engine,
		ErrHandler: app.errorHandler,
		Helper:     app.Helper,
		Kafka:      app.Kafka,
	})

	transactionHandler := handler.NewTransactionHandler(app.DB, app.errorHandler)
	healthHandler := handler.NewHealthCheckHandler(app.errorHandler)

	mux.HandleFunc("GET /health", healthHandler.HandleHealthCheck)
	mux.HandleFunc("GET /status", healthHandler.HandleStatus)

	mux.HandleFunc("POST /auth/register", authHandler.HandleAuthRegister)
	mux.HandleFunc("POST /auth/login", authHandler.HandleAuthLogin)
	mux.Handle("POST /auth/logout", middlewareRepo.RequireAuthenticatedUser(http.HandlerFunc(authHandler.HandleAuthLogout)))

	mux.Handle("GET /wallet", middlewareRepo.RequireAuthenticatedUser(http.HandlerFunc(walletHandler.HandleWalletShow)))
	mux.Handle("POST /wallet/check-in", middlewareRepo.RequireAuthenticatedUser(http.HandlerFunc(walletHandler.HandleCheckIn)))
	mux.Handle("POST /wallet/watch-video", middlewareRepo.RequireAuthenticatedUser(http.HandlerFunc(walletHandler.HandleWatchVideo)))
	mux.Handle("POST /wallet/scratch-cards", middlewareRepo.RequireAuthenticatedUser(http.HandlerFunc(walletHandler.HandleScratchCard)))
	mux.Handle("POST /wallet/withdrawals", middlewareRepo.RequireAuthenticatedUser(http.HandlerFunc(walletHandler.HandleWithdraw)))

	mux.Handle("GET /transactions", middlewareRepo.RequireAuthenticatedUser(http.HandlerFunc(transactionHandler.HandleTransactionHistory)))

	return middlewareRepo.LogAccess(middlewareRepo.RecoverPanic(middlewareRepo.Authenticate(mux)))
}
