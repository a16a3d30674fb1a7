package services

import (
	"chatline/contract"
	"chatline/domain"
	"chatline/domain/event"
	apperrors "chatline/errors"
	"chatline/identity"
	"chatline/observability"
	"chatline/repositories"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type IMessageRelay interface {
	Send(ctx context.Context, from, to, body string) (domain.Message, error)
	FetchAll(ctx context.Context, key, with string) ([]domain.Message, error)
}

// MessageRelay persists each message into the sender's and the
// recipient's mailbox and pushes it live when the recipient is bound.
// The two writes have no cross-path transaction; a compensating delete
// of the sender copy restores the invariant that a recipient-mailbox
// copy never exists without its sender-mailbox twin.
type MessageRelay struct {
	resolver  identity.IIdentityResolver
	store     repositories.IDocumentStore
	directory contract.ISessionDirectory
	monitor   *observability.Monitor
	log       *slog.Logger
	now       func() time.Time
}

func NewMessageRelay(resolver identity.IIdentityResolver, store repositories.IDocumentStore,
	directory contract.ISessionDirectory, monitor *observability.Monitor, log *slog.Logger) *MessageRelay {
	return &MessageRelay{
		resolver:  resolver,
		store:     store,
		directory: directory,
		monitor:   monitor,
		log:       log,
		now:       time.Now,
	}
}

// Send relays one message from from to to.
//
// The sender-mailbox write is first and yields the store-assigned ID;
// the recipient copy reuses that ID so the two documents correlate.
// The sender never observes success while only a one-sided copy exists.
// Retries are caller policy, not done here.
func (r *MessageRelay) Send(ctx context.Context, from, to, body string) (domain.Message, error) {
	if _, err := r.resolver.Resolve(ctx, to); err != nil {
		if errors.Is(err, apperrors.ErrUnknownIdentity) {
			return domain.Message{}, err
		}
		return domain.Message{}, fmt.Errorf("%w: resolving %s: %v", apperrors.ErrUpstream, to, err)
	}

	msg := domain.NewMessage(from, to, body, r.now().UTC())
	doc, err := json.Marshal(msg)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", apperrors.ErrUpstream, err)
	}

	id, err := r.store.Add(ctx, mailboxCollection(from, to), doc)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: sender mailbox write: %v", apperrors.ErrUpstream, err)
	}
	msg.ID = id

	if msg.SelfChat() {
		// One copy is authoritative for self-chat.
		r.monitor.MessagesRelayed.Add(1)
		return msg, nil
	}

	if err = r.store.Set(ctx, messagePath(to, from, id), doc); err != nil {
		return domain.Message{}, r.compensate(ctx, msg, err)
	}

	r.monitor.MessagesRelayed.Add(1)
	if r.directory.DeliverTo(to, event.Outbound{Event: event.NewMessage, Data: msg}) {
		r.monitor.LivePushes.Add(1)
	}
	return msg, nil
}

// compensate rolls back the sender-mailbox copy after the recipient
// write failed. A failed rollback leaves a detectable orphan: it is
// logged and counted, and the caller still sees a plain failure.
func (r *MessageRelay) compensate(ctx context.Context, msg domain.Message, cause error) error {
	r.log.Error("Recipient mailbox write failed, rolling back sender copy",
		"from", msg.From, "to", msg.To, "id", msg.ID, "error", cause)

	if err := r.store.Delete(ctx, messagePath(msg.From, msg.To, msg.ID)); err != nil {
		r.monitor.Orphans.Add(1)
		r.log.Error("Compensating delete failed, orphan sender copy left",
			"from", msg.From, "to", msg.To, "id", msg.ID, "error", err)
		return fmt.Errorf("%w: %v (after %v)", apperrors.ErrCompensationFailed, err, cause)
	}

	r.monitor.Compensations.Add(1)
	return fmt.Errorf("%w: %v", apperrors.ErrPartialWrite, cause)
}

// FetchAll materializes the mailbox {key}/messages/{with}. Ordering is
// left to callers; they sort by time.
func (r *MessageRelay) FetchAll(ctx context.Context, key, with string) ([]domain.Message, error) {
	if _, err := r.resolver.Resolve(ctx, with); err != nil {
		if errors.Is(err, apperrors.ErrUnknownIdentity) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: resolving %s: %v", apperrors.ErrUpstream, with, err)
	}

	docs, err := r.store.List(ctx, mailboxCollection(key, with))
	if err != nil {
		return nil, fmt.Errorf("%w: listing mailbox: %v", apperrors.ErrUpstream, err)
	}

	messages := make([]domain.Message, 0, len(docs))
	for _, doc := range docs {
		var msg domain.Message
		if err = json.Unmarshal(doc.Data, &msg); err != nil {
			return nil, fmt.Errorf("%w: corrupt message %s: %v", apperrors.ErrUpstream, doc.ID, err)
		}
		msg.ID = doc.ID
		messages = append(messages, msg)
	}
	return messages, nil
}
