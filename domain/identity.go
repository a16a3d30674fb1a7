// Package domain contains core concepts of the relay.
// Identities are owned by the external identity directory; the relay
// references them by phone number and never caches mutable copies
// beyond a single request.
package domain

// Identity is an account in the identity directory, keyed by phone number.
type Identity struct {
	Phone       string `json:"phone"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl"`
}

// Contact is a relation (owner, contact) plus the snapshot taken from the
// identity directory at lookup time.
type Contact struct {
	Phone    string `json:"phone"`
	Name     string `json:"name,omitempty"`
	PhotoURL string `json:"profileUrl,omitempty"`
}

func (i Identity) AsContact() Contact {
	return Contact{
		Phone:    i.Phone,
		Name:     i.DisplayName,
		PhotoURL: i.PhotoURL,
	}
}
