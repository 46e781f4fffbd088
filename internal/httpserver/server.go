package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Server wraps http.Server with the timeouts the API runs with. ReadTimeout
// stays unset so multipart video uploads are not cut off mid-body.
type Server struct {
	inner *http.Server
}

// New constructs a server for the API router listening on the provided port.
func New(port int, handler http.Handler) *Server {
	return &Server{
		inner: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
	}
}

// Start begins serving API traffic and blocks until the listener closes.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
