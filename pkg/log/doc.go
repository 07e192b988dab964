// Package log provides the structured logging abstraction used by syncwire components.
//
// Components accept a Logger and scope it with With so every line carries the
// emitting component:
//
//	logger := log.NewZerologAdapter().With(log.String("component", "connection"))
//	logger.Info("state transition", log.String("from", "connecting"), log.String("to", "connected"))
//
// Use NewNoopLogger in tests or when the host does not want output.
package log
