package services

import (
	"chatline/contract"
	"chatline/domain/event"
	apperrors "chatline/errors"
	"chatline/identity"
	"chatline/observability"
	"context"
	"fmt"
	"log/slog"
)

// NameChanged is the fan-out payload other connections receive when a
// user renames themselves. The originator gets the plain name back.
type NameChanged struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type IPresenceBroadcaster interface {
	Rename(ctx context.Context, key, name string, source contract.EventSink) error
}

// PresenceBroadcaster propagates display-name changes to every other
// live connection.
type PresenceBroadcaster struct {
	resolver  identity.IIdentityResolver
	directory contract.ISessionDirectory
	monitor   *observability.Monitor
	log       *slog.Logger
}

func NewPresenceBroadcaster(resolver identity.IIdentityResolver, directory contract.ISessionDirectory,
	monitor *observability.Monitor, log *slog.Logger) *PresenceBroadcaster {
	return &PresenceBroadcaster{resolver: resolver, directory: directory, monitor: monitor, log: log}
}

// Rename updates the display name in the identity directory and, only
// on success, fans NameChanged out to every bound connection except the
// originator, which already has local confirmation.
func (p *PresenceBroadcaster) Rename(ctx context.Context, key, name string, source contract.EventSink) error {
	if err := p.resolver.UpdateDisplayName(ctx, key, name); err != nil {
		return fmt.Errorf("%w: updating display name for %s: %v", apperrors.ErrUpstream, key, err)
	}

	p.directory.BroadcastExcept(source, event.Outbound{
		Event: event.ChangedName,
		Data:  NameChanged{ID: key, Name: name},
	})
	p.monitor.FanOuts.Add(1)
	p.log.Info(fmt.Sprintf("Display name changed for %s", key))
	return nil
}
