// Package identity defines the authenticated user data cached for the
// lifetime of a single connection.
package identity

// Snapshot is an immutable projection of an authenticated user, created when
// a connection is admitted and discarded with it. It is never refreshed: a
// display-name change lands on the next connection, not this one.
type Snapshot struct {
	UserID        int64  `json:"id"`
	Username      string `json:"username"`
	CharacterName string `json:"character_name,omitempty"`
}
