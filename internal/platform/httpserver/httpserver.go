package httpserver

import (
	"net/http"
	"time"

	"vcanchor/internal/platform/config"
)

// New builds an HTTP server. WriteTimeout covers ledger round trips that wait
// for a receipt.
func New(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
}
