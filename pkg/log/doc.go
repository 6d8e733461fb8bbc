// Package log provides structured trace logging for megaphone readers.
//
// Every long-poll reader can report what it does to a Logger: the chunks it
// reads, the events it decodes and whether they were delivered or
// suppressed as duplicates, its state transitions and the errors it runs
// into. This is separate from operational logging (slog); a trace is a
// complete machine-readable record for debugging delivery problems after
// the fact.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.TraceLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.TraceLogger, _ = log.NewFileLogger("/var/log/megaphone/tail.mtrace")
//
//	// Both: use MultiLogger
//	cfg.TraceLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events are captured at three layers:
//   - Transport: chunks read from the stream (ChunkEvent)
//   - Wire: decoded event records (MessageEvent)
//   - Client: delivery outcome and reader state (MessageEvent, StateChangeEvent)
//
// Errors at any layer use ErrorEventData.
//
// # File Format
//
// Trace files are a sequence of CBOR-encoded events with the .mtrace
// extension. The megaphone-log CLI views, filters, exports and summarizes
// them.
package log
