// Package zlog builds the single zap.Logger this interpreter threads
// through its constructors, grounded on wippyai/wasm-runtime's pairing
// of zap with a wazero-hosted interpreter. Unlike that package's
// sync.Once-guarded global, the logger here is built once in main and
// passed down explicitly to internal/vm and imports/wasi_snapshot_preview1,
// so a library caller never contends with a hidden singleton.
package zlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger at Info level, or Debug when verbose is set (the
// debug/debug_slice WASI extensions log at Debug; the decoder and the
// interpreter do not log). A nil *zap.Logger is never returned; callers that want
// silence should not set verbose and should not log defensively around
// this value.
func New(verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = ""
	logger, err := cfg.Build()
	if err != nil {
		// zap.NewDevelopmentConfig().Build() only fails on a bad encoder
		// or output path, neither of which this fixed config can produce.
		panic(err)
	}
	return logger
}
