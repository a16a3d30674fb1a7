// Package transport is the protocol glue: it reads named events off a
// persistent duplex connection, authorizes them against the session
// directory and translates service outcomes back into named events.
// Every request yields exactly one positive or one failure event.
package transport

import (
	"chatline/contract"
	"chatline/domain/event"
	apperrors "chatline/errors"
	"chatline/observability"
	"chatline/services"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/samber/lo"
)

var validate = validator.New()

// Gateway dispatches one connection's events. Processing is serialized
// per connection: events are handled in receipt order and a long
// outstanding operation delays only that connection's own queue.
type Gateway struct {
	directory  contract.ISessionDirectory
	contacts   services.IContactGraph
	relay      services.IMessageRelay
	presence   services.IPresenceBroadcaster
	monitor    *observability.Monitor
	bufferSize int
	log        *slog.Logger
}

func NewGateway(directory contract.ISessionDirectory, contacts services.IContactGraph,
	relay services.IMessageRelay, presence services.IPresenceBroadcaster,
	monitor *observability.Monitor, bufferSize int, log *slog.Logger) *Gateway {
	return &Gateway{
		directory:  directory,
		contacts:   contacts,
		relay:      relay,
		presence:   presence,
		monitor:    monitor,
		bufferSize: bufferSize,
		log:        log,
	}
}

// Handle owns one websocket connection from upgrade to teardown. The
// deferred unbind runs unconditionally, so a disconnect with an
// operation in flight still clears the directory entry; completions
// landing after that check liveness through the directory and find the
// connection gone.
func (g *Gateway) Handle(ws *websocket.Conn) {
	conn := NewConn(ws, g.bufferSize, g.log)
	go conn.WritePump()

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		conn.Close()
		g.directory.Unbind(conn)
		cancel()
	}()

	g.log.Info("New connection established")
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		g.Dispatch(ctx, conn, data)
	}
}

// Dispatch routes one inbound frame. Exported so tests and the e2e
// scenarios can drive the protocol without a network socket.
func (g *Gateway) Dispatch(ctx context.Context, conn contract.EventSink, raw []byte) {
	var in event.Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		g.log.Warn("Dropping unparsable frame", "error", err)
		return
	}

	switch in.Event {
	case event.NewUser:
		g.onNewUser(ctx, conn, in.Data)
	case event.AddContact:
		g.onAddContact(ctx, conn, in.Data)
	case event.GetAllMessages:
		g.onGetAllMessages(ctx, conn, in.Data)
	case event.PostMessage:
		g.onMessage(ctx, conn, in.Data)
	case event.ChangeDisplayName:
		g.onChangeDisplayName(ctx, conn, in.Data)
	case event.GetAllContacts:
		g.onGetAllContacts(ctx, conn)
	case event.Disconnect:
		g.directory.Unbind(conn)
	default:
		g.log.Warn(fmt.Sprintf("Unknown event %q", in.Event))
	}
}

func (g *Gateway) onNewUser(ctx context.Context, conn contract.EventSink, data json.RawMessage) {
	phone, ok := decodePhone(data)
	if !ok {
		conn.Push(event.Outbound{Event: event.ConnectionFailed, Data: string(data)})
		return
	}
	switch g.directory.Bind(ctx, phone, conn) {
	case contract.Connected:
		conn.Push(event.Outbound{Event: event.Connected, Data: phone})
	case contract.Unauthenticated:
		conn.Push(event.Outbound{Event: event.ConnectionFailed, Data: phone})
	case contract.Rejected:
		// The directory broadcast close-old-session to the bound
		// sessions; the rejected newcomer is not bound yet and gets its
		// own copy here. It stays unauthenticated either way.
		g.monitor.BindRejections.Add(1)
		conn.Push(event.Outbound{Event: event.CloseOldSession})
	}
}

func (g *Gateway) onAddContact(ctx context.Context, conn contract.EventSink, data json.RawMessage) {
	owner, ok := g.authorized(conn)
	if !ok {
		return
	}
	phone, ok := decodePhone(data)
	if !ok {
		conn.Push(event.Outbound{Event: event.AddContactFailed, Data: string(data)})
		return
	}

	contact, err := g.contacts.AddContact(ctx, owner, phone)
	switch {
	case err == nil:
		conn.Push(event.Outbound{Event: event.ContactAdded, Data: contact})
	case errors.Is(err, apperrors.ErrAlreadyExists):
		conn.Push(event.Outbound{Event: event.ContactExists, Data: phone})
	case errors.Is(err, apperrors.ErrUnknownIdentity):
		conn.Push(event.Outbound{Event: event.UserDoesNotExist, Data: phone})
	default:
		g.log.Error("Add contact failed", "owner", owner, "contact", phone, "error", err)
		conn.Push(event.Outbound{Event: event.AddContactFailed, Data: phone})
	}
}

func (g *Gateway) onGetAllMessages(ctx context.Context, conn contract.EventSink, data json.RawMessage) {
	owner, ok := g.authorized(conn)
	if !ok {
		return
	}
	phone, ok := decodePhone(data)
	if !ok {
		conn.Push(event.Outbound{Event: event.GetMessagesFailed, Data: string(data)})
		return
	}

	messages, err := g.relay.FetchAll(ctx, owner, phone)
	switch {
	case err == nil:
		conn.Push(event.Outbound{
			Event: event.GotAllMessages,
			Data:  MessagesPayload{Messages: lo.Map(messages, toMessageJSON)},
		})
	case errors.Is(err, apperrors.ErrUnknownIdentity):
		conn.Push(event.Outbound{Event: event.UserDoesNotExist, Data: phone})
	default:
		g.log.Error("Fetching messages failed", "owner", owner, "with", phone, "error", err)
		conn.Push(event.Outbound{Event: event.GetMessagesFailed, Data: phone})
	}
}

func (g *Gateway) onMessage(ctx context.Context, conn contract.EventSink, data json.RawMessage) {
	from, ok := g.authorized(conn)
	if !ok {
		return
	}
	var payload MessagePayload
	if err := json.Unmarshal(data, &payload); err != nil ||
		validate.Var(payload.ToNumber, "required,e164") != nil {
		conn.Push(event.Outbound{Event: event.SendMessageFailed, Data: payload.ToNumber})
		return
	}

	msg, err := g.relay.Send(ctx, from, payload.ToNumber, payload.Message)
	switch {
	case err == nil:
		conn.Push(event.Outbound{Event: event.MessageSent, Data: toMessageJSON(msg, 0)})
	case errors.Is(err, apperrors.ErrUnknownIdentity):
		conn.Push(event.Outbound{Event: event.UserDoesNotExist, Data: payload.ToNumber})
	default:
		g.log.Error("Send failed", "from", from, "to", payload.ToNumber, "error", err)
		conn.Push(event.Outbound{Event: event.SendMessageFailed, Data: payload.ToNumber})
	}
}

func (g *Gateway) onChangeDisplayName(ctx context.Context, conn contract.EventSink, data json.RawMessage) {
	key, ok := g.authorized(conn)
	if !ok {
		return
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil || name == "" {
		conn.Push(event.Outbound{Event: event.ChangeNameFailed})
		return
	}

	if err := g.presence.Rename(ctx, key, name, conn); err != nil {
		g.log.Error("Rename failed", "key", key, "error", err)
		conn.Push(event.Outbound{Event: event.ChangeNameFailed})
		return
	}
	// The originator gets the plain name; everyone else got {id,name}
	// from the broadcaster.
	conn.Push(event.Outbound{Event: event.ChangedName, Data: name})
}

func (g *Gateway) onGetAllContacts(ctx context.Context, conn contract.EventSink) {
	owner, ok := g.authorized(conn)
	if !ok {
		return
	}

	seq, err := g.contacts.ListContacts(ctx, owner)
	if err != nil {
		g.log.Error("Listing contacts failed", "owner", owner, "error", err)
		conn.Push(event.Outbound{Event: event.GetContactsFailed})
		return
	}

	contacts := make([]ContactJSON, 0)
	for contact, err := range seq {
		contacts = append(contacts, toContactJSON(contact, err))
	}
	conn.Push(event.Outbound{Event: event.GotAllContacts, Data: ContactsPayload{Contacts: contacts}})
}

// authorized resolves the session key for conn, emitting
// please-login-first when there is none.
func (g *Gateway) authorized(conn contract.EventSink) (string, bool) {
	key, ok := g.directory.Resolve(conn)
	if !ok {
		conn.Push(event.Outbound{Event: event.LoginFirst})
	}
	return key, ok
}

func decodePhone(data json.RawMessage) (string, bool) {
	var phone string
	if err := json.Unmarshal(data, &phone); err != nil {
		return "", false
	}
	if err := validate.Var(phone, "required,e164"); err != nil {
		return "", false
	}
	return phone, true
}
