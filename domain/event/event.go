// Package event defines the wire-level event vocabulary shared by the
// transport and the relay services. One frame carries one named event.
package event

import "encoding/json"

// Inbound is a frame read from a connection. Data stays raw until the
// dispatcher knows which payload shape the event carries.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Outbound is a frame pushed to a connection.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Inbound event names.
const (
	NewUser           = "new-user"
	AddContact        = "add-contact"
	GetAllMessages    = "get-all-messages"
	PostMessage       = "message"
	ChangeDisplayName = "change-display-name"
	GetAllContacts    = "get-all-contacts"
	Disconnect        = "disconnect"
)

// Outbound event names.
const (
	Connected          = "connected"
	ConnectionFailed   = "failed-to-achieve-connection"
	CloseOldSession    = "close-old-session"
	ContactAdded       = "contact-added"
	ContactExists      = "contact-exists"
	UserDoesNotExist   = "user-does-not-exist"
	AddContactFailed   = "failed-to-add-contact"
	LoginFirst         = "please-login-first"
	GotAllMessages     = "got-all-messages"
	GetMessagesFailed  = "failed-to-get-messages"
	MessageSent        = "message-sent"
	NewMessage         = "new-message"
	SendMessageFailed  = "failed-to-send-message"
	ChangedName        = "changed-name"
	ChangeNameFailed   = "failed-to-change-name"
	GotAllContacts     = "got-all-contacts"
	GetContactsFailed  = "failed-to-get-contacts"
)
