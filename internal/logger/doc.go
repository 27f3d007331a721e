// Package logger provides a small leveled logger safe for concurrent use.
//
// Each entry carries a timestamp, the level, an optional component tag
// (a pool name or worker label) and the formatted message:
//
//	[2006-01-02 15:04:05.000] [INFO] [pool-demo] started 5 workers
//
// # Basic Usage
//
//	logger.Info("", "application started")
//	logger.Warn("pool-demo", "task rejected: %v", err)
//
//	l := logger.New(os.Stderr, logger.LevelDebug)
//	l.Debug("worker-3", "exited")
//
// # Levels
//
// Entries below the configured level are dropped. ParseLevel accepts
// "debug", "info", "warn" and "error" as used by the config file and
// the -log-level flag.
package logger
