package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	logger "github.com/sirupsen/logrus"

	"stocksim/src/auth"
	"stocksim/src/handler"
)

// NewRouter mounts the portfolio API behind the trusted user header.
func NewRouter(config *Config, svc handler.PortfolioService) http.Handler {
	r := chi.NewRouter()

	// === Global Middleware ===
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(config.RequestTimeout))

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("/healthcheck write error")
		}
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.TrustedHeader(config.UserHeader))

		r.Route("/portfolio", func(r chi.Router) {
			r.Get("/", handler.GetPortfolioHandler(svc))
			r.Post("/buy", handler.BuyHandler(svc))
			r.Post("/sell", handler.SellHandler(svc))
			r.Get("/holdings/{symbol}", handler.GetHoldingDetailsHandler(svc))
			r.Get("/transactions", handler.GetTransactionHistoryHandler(svc))
		})

		r.Route("/account", func(r chi.Router) {
			r.Get("/balance", handler.GetBalanceHandler(svc))
			r.Post("/deposit", handler.DepositHandler(svc))
			r.Post("/withdraw", handler.WithdrawHandler(svc))
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.WithFields(logger.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request served")
	})
}

// StartServer serves h until SIGINT or SIGTERM, then shuts down gracefully.
func StartServer(config *Config, h http.Handler) {
	addr := ":" + config.Port
	srv := &http.Server{
		Addr:    addr,
		Handler: h,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
