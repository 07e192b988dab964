package connection

import (
	"context"
	"fmt"
	"time"

	"github.com/bft-labs/syncwire/pkg/envelope"
	"github.com/bft-labs/syncwire/pkg/log"
)

// HeartbeatData is the payload of outbound heartbeats.
type HeartbeatData struct {
	SentAt int64 `json:"sentAt"`
}

// A heartbeat is missed when no inbound HEARTBEAT arrives within
// HeartbeatTimeout of sending one. HeartbeatFailureThreshold consecutive
// misses force the transport closed.

func (m *Manager) startHeartbeatLocked(epoch uint64) {
	m.heartbeatFailures = 0
	m.heartbeatSentAt = time.Time{}
	if !m.cfg.EnableHeartbeat {
		return
	}
	m.heartbeatTimer = time.AfterFunc(m.cfg.HeartbeatInterval, func() { m.beat(epoch) })
}

func (m *Manager) stopHeartbeatLocked() {
	if m.heartbeatTimer != nil {
		m.heartbeatTimer.Stop()
		m.heartbeatTimer = nil
	}
	if m.heartbeatDeadline != nil {
		m.heartbeatDeadline.Stop()
		m.heartbeatDeadline = nil
	}
}

func (m *Manager) beat(epoch uint64) {
	m.mu.Lock()
	if epoch != m.epoch || m.state != StateConnected || m.conn == nil {
		m.mu.Unlock()
		return
	}
	conn := m.conn
	now := time.Now()
	m.heartbeatSentAt = now
	if m.heartbeatDeadline != nil {
		m.heartbeatDeadline.Stop()
	}
	m.heartbeatDeadline = time.AfterFunc(m.cfg.HeartbeatTimeout, func() { m.heartbeatMissed(epoch) })
	m.heartbeatTimer = time.AfterFunc(m.cfg.HeartbeatInterval, func() { m.beat(epoch) })
	source, timeout := m.cfg.Source, m.cfg.WriteTimeout
	m.mu.Unlock()

	hb, err := envelope.New(envelope.TypeHeartbeat, HeartbeatData{SentAt: now.UnixMilli()},
		envelope.WithSource(source),
		envelope.WithPriority(envelope.PriorityLow),
	)
	if err != nil {
		m.logger.Error("build heartbeat", log.Err(err))
		return
	}
	if err := m.transmit(context.Background(), conn, hb, timeout); err != nil {
		m.mu.Lock()
		m.handleCloseLocked(epoch, fmt.Errorf("heartbeat: %w", err))
		m.unlock()
	}
}

func (m *Manager) heartbeatMissed(epoch uint64) {
	m.mu.Lock()
	defer m.unlock()
	if epoch != m.epoch {
		return
	}
	m.heartbeatDeadline = nil
	m.heartbeatFailures++
	m.logger.Warn("heartbeat response missed",
		log.Int("consecutive", m.heartbeatFailures),
		log.Int("threshold", m.cfg.HeartbeatFailureThreshold),
	)
	if m.heartbeatFailures >= m.cfg.HeartbeatFailureThreshold {
		m.stats.HeartbeatTimeouts++
		m.handleCloseLocked(epoch, ErrHeartbeatTimeout)
	}
}

func (m *Manager) heartbeatObserved(epoch uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if epoch != m.epoch {
		return
	}
	if m.heartbeatDeadline != nil {
		m.heartbeatDeadline.Stop()
		m.heartbeatDeadline = nil
	}
	m.heartbeatFailures = 0
	if !m.heartbeatSentAt.IsZero() {
		m.stats.Latency = smooth(m.stats.Latency, time.Since(m.heartbeatSentAt))
		m.heartbeatSentAt = time.Time{}
	}
}
