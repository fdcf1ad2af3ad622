package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the sugared zap logger shared by the CLI commands.
type Logger struct {
	*zap.SugaredLogger
}

// creates a console logger; verbose enables debug output
func NewLogger(verbose bool) *Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.DisableCaller = !verbose
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.TimeKey = ""
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	base, err := cfg.Build()
	if err != nil {
		base = zap.NewNop()
	}
	return &Logger{SugaredLogger: base.Sugar()}
}

// discards everything, used by tests and as a fallback before PersistentPreRun
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}
