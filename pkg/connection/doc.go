// Package connection owns the client's single real-time connection.
//
// A Manager drives the transport through a small state machine:
//
//	disconnected -> connecting -> connected
//	connected -> disconnected            (close or error)
//	disconnected -> reconnecting -> connecting
//	reconnecting -> failed -> paused     (attempts exhausted)
//	paused -> disconnected               (Connect after the cooldown)
//
// While the transport is down, Send appends to a persisted outbound queue
// that is flushed in order on the next successful connect. A heartbeat
// detects half-open sockets, and envelopes that require acknowledgment are
// correlated through an ack.Tracker.
//
// Manager methods are safe for concurrent use and never surface transport
// errors to callers; persistent unavailability is reported through state
// observers and the CLIENT_DISCONNECTED local envelope.
package connection
