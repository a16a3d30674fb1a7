package transport

import (
	"chatline/domain"
)

// Wire DTOs. Field names are fixed by the deployed front-end.

type MessagePayload struct {
	Message  string `json:"message"`
	ToNumber string `json:"toNumber"`
}

type MessageJSON struct {
	ID      string `json:"id"`
	Time    int64  `json:"time"`
	Message string `json:"message"`
	From    string `json:"from"`
	To      string `json:"to"`
}

type ContactJSON struct {
	Phone    string `json:"phone"`
	Name     string `json:"name,omitempty"`
	PhotoURL string `json:"profileUrl,omitempty"`
	// Error marks a contact whose snapshot could not be resolved; the
	// membership itself is still real.
	Error string `json:"error,omitempty"`
}

type MessagesPayload struct {
	Messages []MessageJSON `json:"messages"`
}

type ContactsPayload struct {
	Contacts []ContactJSON `json:"contacts"`
}

func toMessageJSON(m domain.Message, _ int) MessageJSON {
	return MessageJSON{
		ID:      m.ID,
		Time:    m.Time,
		Message: m.Body,
		From:    m.From,
		To:      m.To,
	}
}

func toContactJSON(c domain.Contact, err error) ContactJSON {
	out := ContactJSON{
		Phone:    c.Phone,
		Name:     c.Name,
		PhotoURL: c.PhotoURL,
	}
	if err != nil {
		out.Error = "unresolved"
	}
	return out
}
