/*
Package log provides structured logging for kvfabric using zerolog.

A single global Logger is initialized once via Init and used from every
package. Context loggers (WithComponent, WithProvider, WithDatabase) attach
request-scoped fields — provider id, database name — without threading a
logger through every call.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})
	log.Info("provider starting")

	dbLog := log.WithDatabase("orders")
	dbLog.Info().Int("keys", 4096).Msg("database attached")

JSON output is the production default; console output (human-readable,
timestamped) is meant for local development.
*/
package log
