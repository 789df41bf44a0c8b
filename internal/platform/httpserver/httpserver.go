package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. WriteTimeout stays unset because archive
// downloads stream for as long as the client takes to drain the zip;
// slow-loris protection comes from the header and read timeouts instead.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
