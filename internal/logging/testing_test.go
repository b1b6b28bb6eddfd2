package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestTestLogger_Assertions(t *testing.T) {
	tl := NewTestLogger()
	ctx := context.Background()

	tl.Info(ctx, "knowledge saved", zap.String("path", "kb.xml"), zap.Int("errors", 2))

	tl.AssertLogged(t, zapcore.InfoLevel, "knowledge saved")
	tl.AssertNotLogged(t, zapcore.WarnLevel, "knowledge saved")
	tl.AssertField(t, "knowledge saved", "path", "kb.xml")
	tl.AssertField(t, "knowledge saved", "errors", int64(2))
	assert.Equal(t, 1, tl.FilterMessage("knowledge saved").Len())

	tl.Reset()
	assert.Empty(t, tl.All())
}
