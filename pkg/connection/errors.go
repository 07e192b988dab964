package connection

import "errors"

var (
	ErrNilDialer        = errors.New("connection: dialer is required")
	ErrInvalidConfig    = errors.New("connection: invalid config")
	ErrHeartbeatTimeout = errors.New("connection: heartbeat responses missed")
	ErrEndpointChanged  = errors.New("connection: endpoint changed")
	ErrLocalEnvelope    = errors.New("connection: local envelope types cannot be sent")
)
