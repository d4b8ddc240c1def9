package api

import (
	"time"

	"github.com/okian/repforge/pkg/logger"
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets a custom logger for the handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDefaultMaxRetries sets max_retries for events posted without one.
func WithDefaultMaxRetries(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.defaultMaxRetries = n
		}
	}
}

// WithClock replaces time.Now for created_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}
