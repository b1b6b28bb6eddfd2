package logging

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 2)
	if runID := RunIDFromContext(ctx); runID != "" {
		fields = append(fields, zap.String("run.id", runID))
	}
	if episodeID := EpisodeIDFromContext(ctx); episodeID != "" {
		fields = append(fields, zap.String("episode.id", episodeID))
	}
	return fields
}

type runCtxKey struct{}
type episodeCtxKey struct{}
type loggerCtxKey struct{}

const maxIDLen = 128

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func validateID(id, name string) error {
	if id == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	if len(id) > maxIDLen {
		return fmt.Errorf("%s exceeds max length %d", name, maxIDLen)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (must be alphanumeric, hyphen, underscore)", name)
	}
	return nil
}

// RunIDFromContext extracts the run ID from context.
func RunIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(runCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithRunID adds a run ID to context.
// Panics if runID is empty or contains invalid characters.
func WithRunID(ctx context.Context, runID string) context.Context {
	if err := validateID(runID, "runID"); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, runCtxKey{}, runID)
}

// EpisodeIDFromContext extracts the episode ID from context.
func EpisodeIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(episodeCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithEpisodeID adds an episode ID to context.
// Panics if episodeID is empty or contains invalid characters.
func WithEpisodeID(ctx context.Context, episodeID string) context.Context {
	if err := validateID(episodeID, "episodeID"); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, episodeCtxKey{}, episodeID)
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
