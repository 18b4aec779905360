// Package logger provides a simple, thread-safe logging facility.
//
// The logger supports four levels: Debug, Info, Warn, and Error, and is
// backed by logrus. Each log entry includes a timestamp, level, optional
// component ID (for example "worker-3"), and message.
//
// # Basic Usage
//
// Using the default logger:
//
//	logger.Info("", "Application started")
//	logger.Info("worker-1", "Processing job")
//	logger.Error("worker-1", "Failed: %v", err)
//
// Creating a custom logger:
//
//	l := logger.New(os.Stderr, logger.LevelDebug)
//	l.Debug("worker-1", "Debug message")
//
// # Output
//
// Setup configures the default logger from a Config. When Config.File is set
// the output rotates through lumberjack.
//
// # Pool Events
//
// Observer implements worker.Observer and logs worker start, job execution,
// job panics, and worker shutdown.
package logger
