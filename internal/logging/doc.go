// Package logging provides the structured logger used by the qrepair
// command.
//
// Logging wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Context field injection (run.id, episode.id)
//   - Level-aware sampling (errors never sampled)
//
// # Usage
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, os.Stderr)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRunID(ctx, runID)
//	logger.Info(ctx, "knowledge merged", zap.Int("entries", n))
//
// Library packages take a *zap.Logger; pass Underlying() to them.
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
//	tl.AssertField(t, "test message", "key", "value")
package logging
