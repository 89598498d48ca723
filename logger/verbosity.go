package logger

import "go.uber.org/zap/zapcore"

// Verbosity level constants for CLI flag counts.
const (
	VerbosityUser  = 0 // No flags: results, warnings, and errors only
	VerbosityInfo  = 1 // -v: + per-definition progress
	VerbosityDebug = 2 // -vv: + attempts, validator findings, prompt sizes
	VerbosityTrace = 3 // -vvv: + oracle request/response details
)

// VerbosityToLevel maps verbosity flags (-v, -vv, ...) to zap log levels.
//
//	0 (none) -> WarnLevel
//	1 (-v)   -> InfoLevel
//	2+ (-vv) -> DebugLevel
func VerbosityToLevel(verbosity int) zapcore.Level {
	switch {
	case verbosity <= VerbosityUser:
		return zapcore.WarnLevel
	case verbosity == VerbosityInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// ShouldLogTrace returns true for verbosity >= 3 (-vvv).
// Use this for oracle request/response dumps.
func ShouldLogTrace(verbosity int) bool {
	return verbosity >= VerbosityTrace
}
