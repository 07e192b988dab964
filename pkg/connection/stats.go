package connection

import "time"

// Stats is a point-in-time snapshot of the manager's counters. Counters
// accumulate for the lifetime of the process.
type Stats struct {
	State State

	ConnectionAttempts    uint64
	SuccessfulConnections uint64
	FailedConnections     uint64
	Disconnects           uint64
	HeartbeatTimeouts     uint64

	MessagesSent     uint64
	MessagesReceived uint64
	MessagesQueued   uint64
	MessagesDropped  uint64

	// Latency is the smoothed round trip of heartbeat responses and acks.
	Latency time.Duration

	ReconnectAttempt int
	QueueLength      int
	QueueCapacity    int
	PendingAcks      int

	LastConnectedAt    time.Time
	LastDisconnectedAt time.Time
	PausedUntil        time.Time
}

const latencyAlpha = 0.2

func smooth(current, sample time.Duration) time.Duration {
	if current == 0 {
		return sample
	}
	return time.Duration(latencyAlpha*float64(sample) + (1-latencyAlpha)*float64(current))
}
