package merge

import (
	"context"
	"log/slog"

	"github.com/ZanzyTHEbar/treedupe/tdupe/config"

	"github.com/google/uuid"
)

// Session carries the run-scoped state a TreeMerger needs: the configured root
// paths, a context for the one-time count pass, and a run identifier used by
// result sinks.
type Session struct {
	ID       uuid.UUID
	Ctx      context.Context
	Settings *config.TreeDupeConfig
	Logger   *slog.Logger
}

// SessionOption allows for customization of a Session
type SessionOption func(*Session)

// WithContext sets the context used by the count pass and precondition checks
func WithContext(ctx context.Context) SessionOption {
	return func(s *Session) {
		s.Ctx = ctx
	}
}

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.Logger = logger
	}
}

// NewSession creates a session for one merger run over the given settings
func NewSession(settings *config.TreeDupeConfig, opts ...SessionOption) *Session {
	s := &Session{
		ID:       uuid.New(),
		Ctx:      context.Background(),
		Settings: settings,
		Logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}
