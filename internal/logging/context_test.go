package logging

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestRunAndEpisodeID(t *testing.T) {
	ctx := WithRunID(context.Background(), "8c0f1d2e-run")
	ctx = WithEpisodeID(ctx, "ep_1")

	assert.Equal(t, "8c0f1d2e-run", RunIDFromContext(ctx))
	assert.Equal(t, "ep_1", EpisodeIDFromContext(ctx))
	assert.Len(t, ContextFields(ctx), 2)
}

func TestWithRunID_Invalid(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{"empty", ""},
		{"spaces", "run 1"},
		{"too long", strings.Repeat("a", maxIDLen+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, func() { WithRunID(context.Background(), tt.id) })
			assert.Panics(t, func() { WithEpisodeID(context.Background(), tt.id) })
		})
	}
}

func TestLoggerInContext(t *testing.T) {
	tl := NewTestLogger()

	ctx := WithLogger(context.Background(), tl.Logger)

	assert.Same(t, tl.Logger, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
