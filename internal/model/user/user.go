package user

import "errors"

var (
	ErrNotFound = errors.New("user not found")
	ErrCorrupt  = errors.New("user collection is corrupt")
)

// User is the only resource exposed by the API.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Input carries the client-supplied fields for a new user.
type Input struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Patch describes a partial update. A nil field was not sent by the client.
type Patch struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// Apply returns u with the patch fields that carry a non-empty value.
func (p Patch) Apply(u User) User {
	if p.Name != nil && *p.Name != "" {
		u.Name = *p.Name
	}
	if p.Email != nil && *p.Email != "" {
		u.Email = *p.Email
	}
	return u
}

// NextID returns one more than the largest id in users, or 1 when users is empty.
func NextID(users []User) int64 {
	var highest int64
	for _, u := range users {
		if u.ID > highest {
			highest = u.ID
		}
	}
	return highest + 1
}

// IndexOf returns the position of the first user with id, or -1.
func IndexOf(users []User, id int64) int {
	for i, u := range users {
		if u.ID == id {
			return i
		}
	}
	return -1
}
