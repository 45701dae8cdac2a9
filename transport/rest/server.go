package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	logger *slog.Logger
	srv    *http.Server
}

// New builds the status API. ws, when not nil, is mounted on /ws.
func New(logger *slog.Logger, port string, match matchSource, ws http.Handler) *Server {
	return &Server{
		logger: logger.With("component", "rest"),
		srv: &http.Server{
			Addr:        ":" + port,
			Handler:     NewRouter(logger, match, ws),
			ReadTimeout: 10 * time.Second,
			IdleTimeout: 30 * time.Second,
		},
	}
}

func NewRouter(logger *slog.Logger, match matchSource, ws http.Handler) *mux.Router {
	matchHandler := NewMatchHandler(logger, match)

	router := mux.NewRouter()
	router.HandleFunc("/ping", pingHandler).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/match", matchHandler.GetMatch).Methods(http.MethodGet)

	if ws != nil {
		router.Handle("/ws", ws)
	}

	return router
}

// Start serves until ctx is cancelled.
func (that *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		that.logger.Info("Starting HTTP server", "addr", that.srv.Addr)
		errCh <- that.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := that.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}

		return nil
	}
}
