// Package runtime holds the cross-connection state of the relay: the
// session directory. No other component may keep a second copy of the
// live-connection map.
package runtime

import (
	"chatline/contract"
	"chatline/domain/event"
	apperrors "chatline/errors"
	"chatline/identity"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Directory maps a live phone number to its single active connection.
// All access goes through the mutex; identity lookups happen outside
// the critical section because they are suspend points.
type Directory struct {
	mu       sync.RWMutex
	sessions map[string]contract.EventSink // phone -> live connection
	keys     map[contract.EventSink]string // reverse index for Resolve/Unbind
	resolver identity.IIdentityResolver
	log      *slog.Logger
}

func NewDirectory(resolver identity.IIdentityResolver, log *slog.Logger) *Directory {
	return &Directory{
		sessions: make(map[string]contract.EventSink),
		keys:     make(map[contract.EventSink]string),
		resolver: resolver,
		log:      log,
	}
}

// Bind attempts to register conn as the active session for key.
//
// A duplicate live session is advisory-signalled with a close-old-session
// broadcast to every connection and the new connection stays
// unauthenticated. The identity lookup runs between two lock windows, so
// the duplicate check is re-done before registering; last writer wins,
// but two live connections for one key can never coexist.
func (d *Directory) Bind(ctx context.Context, key string, conn contract.EventSink) contract.BindOutcome {
	d.mu.RLock()
	_, taken := d.sessions[key]
	d.mu.RUnlock()
	if taken {
		d.log.Warn(fmt.Sprintf("Rejected bind for %s: session already live", key))
		d.BroadcastAll(event.Outbound{Event: event.CloseOldSession})
		return contract.Rejected
	}

	if _, err := d.resolver.Resolve(ctx, key); err != nil {
		if errors.Is(err, apperrors.ErrUnknownIdentity) {
			d.log.Warn(fmt.Sprintf("Bind refused, no account for %s", key))
		} else {
			d.log.Error("Identity lookup failed during bind", "key", key, "error", err)
		}
		return contract.Unauthenticated
	}

	d.mu.Lock()
	if _, taken = d.sessions[key]; taken {
		d.mu.Unlock()
		d.BroadcastAll(event.Outbound{Event: event.CloseOldSession})
		return contract.Rejected
	}
	if !conn.Alive() {
		// The connection died while the lookup was outstanding. Never
		// register a dead sink.
		d.mu.Unlock()
		d.log.Warn(fmt.Sprintf("Connection for %s closed before bind completed", key))
		return contract.Unauthenticated
	}
	d.sessions[key] = conn
	d.keys[conn] = key
	d.mu.Unlock()

	d.log.Info(fmt.Sprintf("Session bound for %s", key))
	return contract.Connected
}

// Unbind removes whatever binding conn holds. Idempotent; safe to call
// from both the disconnect event and the read-loop teardown.
func (d *Directory) Unbind(conn contract.EventSink) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key, ok := d.keys[conn]
	if !ok {
		return
	}
	delete(d.keys, conn)
	if d.sessions[key] == conn {
		delete(d.sessions, key)
	}
	d.log.Info(fmt.Sprintf("Session unbound for %s", key))
}

// Resolve returns the key bound to conn, if any.
func (d *Directory) Resolve(conn contract.EventSink) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	key, ok := d.keys[conn]
	return key, ok
}

// DeliverTo pushes e to the connection bound to key. Returns false when
// the recipient is offline; the caller decides whether that is an error.
func (d *Directory) DeliverTo(key string, e event.Outbound) bool {
	d.mu.RLock()
	conn, ok := d.sessions[key]
	d.mu.RUnlock()
	if !ok {
		return false
	}
	return conn.Push(e)
}

// BroadcastExcept fans e out to every bound connection other than source.
func (d *Directory) BroadcastExcept(source contract.EventSink, e event.Outbound) {
	for _, conn := range d.snapshot() {
		if conn == source {
			continue
		}
		conn.Push(e)
	}
}

// BroadcastAll fans e out to every bound connection, source included.
func (d *Directory) BroadcastAll(e event.Outbound) {
	for _, conn := range d.snapshot() {
		conn.Push(e)
	}
}

func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sessions)
}

// snapshot copies the sink list so pushes happen outside the lock.
func (d *Directory) snapshot() []contract.EventSink {
	d.mu.RLock()
	defer d.mu.RUnlock()
	conns := make([]contract.EventSink, 0, len(d.sessions))
	for _, conn := range d.sessions {
		conns = append(conns, conn)
	}
	return conns
}
