package services

import "fmt"

// Document-store layout, fixed by existing deployments:
//
//	{owner}/contacts/contacts/{contact}  empty marker = membership
//	{owner}/messages/{other}/{id}        message document
func contactsCollection(owner string) string {
	return fmt.Sprintf("%s/contacts/contacts", owner)
}

func contactPath(owner, contact string) string {
	return fmt.Sprintf("%s/contacts/contacts/%s", owner, contact)
}

func mailboxCollection(owner, other string) string {
	return fmt.Sprintf("%s/messages/%s", owner, other)
}

func messagePath(owner, other, id string) string {
	return fmt.Sprintf("%s/messages/%s/%s", owner, other, id)
}
