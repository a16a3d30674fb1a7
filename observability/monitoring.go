// Package observability aggregates relay counters for logging and the
// debug endpoint. Counters are atomic; reads never block the relay.
package observability

import (
	"sync/atomic"
)

// Monitor tracks what the relay has done since boot.
type Monitor struct {
	MessagesRelayed atomic.Uint64 // dual writes fully committed
	LivePushes      atomic.Uint64 // new-message pushed to a bound recipient
	FanOuts         atomic.Uint64 // presence broadcasts delivered
	Compensations   atomic.Uint64 // sender-copy rollbacks executed
	Orphans         atomic.Uint64 // rollbacks that failed, orphan left behind
	BindRejections  atomic.Uint64 // duplicate-session rejections

	// LiveSessions is provided by the session directory; keeping it a
	// provider avoids a second copy of the live-connection map.
	LiveSessions func() int
}

func NewMonitor(liveSessions func() int) *Monitor {
	return &Monitor{LiveSessions: liveSessions}
}

// Snapshot returns the current values in a form the debug endpoint and
// the stats reporter can render directly.
func (m *Monitor) Snapshot() map[string]any {
	sessions := 0
	if m.LiveSessions != nil {
		sessions = m.LiveSessions()
	}
	return map[string]any{
		"live_sessions":    sessions,
		"messages_relayed": m.MessagesRelayed.Load(),
		"live_pushes":      m.LivePushes.Load(),
		"fan_outs":         m.FanOuts.Load(),
		"compensations":    m.Compensations.Load(),
		"orphans":          m.Orphans.Load(),
		"bind_rejections":  m.BindRejections.Load(),
	}
}
