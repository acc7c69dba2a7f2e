// Package domain holds the User entity and the events it produces.
package domain

// Status is a User's lifecycle status.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// ValidStatuses lists every status Change-User-Status will accept as a target.
var ValidStatuses = map[Status]bool{
	StatusActive:   true,
	StatusInactive: true,
}

// User is the Users domain entity (spec §3): identity, display name, contact
// address, and a two-state lifecycle. The contact address is unique across
// Users, enforced by a unique index in the postgres adapter.
type User struct {
	ID     string
	Name   string
	Email  string
	Status Status
}

// New builds an Active User. Status always starts Active; Create-User has no
// input for it.
func New(id, name, email string) User {
	return User{ID: id, Name: name, Email: email, Status: StatusActive}
}
