package domain

import "strings"

// User is one principal that can own, be assigned to, or mutate tasks.
type User struct {
	ID    string
	Name  string
	Admin bool
}

// NewUser constructs a new value for this package.
func NewUser(id, name string, admin bool) (User, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		return User{}, ErrInvalidID
	}
	if name == "" {
		name = id
	}
	return User{ID: id, Name: name, Admin: admin}, nil
}
