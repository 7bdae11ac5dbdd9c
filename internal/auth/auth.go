// Package auth defines the boundary with the external authentication
// provider. The engine never performs auth network calls itself; it only
// consumes sign-in/sign-out events carrying the session identity.
package auth

import "os"

// Identity is the signed-in user as reported by the provider.
type Identity struct {
	UserID      string
	Email       string
	AccessToken string
}

// Event is one change in auth state. SignedIn=false carries a zero
// Identity.
type Event struct {
	SignedIn bool
	Identity Identity
}

// SignIn builds a signed-in event.
func SignIn(id Identity) Event {
	return Event{SignedIn: true, Identity: id}
}

// SignOut builds a signed-out event.
func SignOut() Event {
	return Event{}
}

// FromEnv resolves a development identity from HIGHLOW_USER_ID,
// HIGHLOW_USER_EMAIL and HIGHLOW_ACCESS_TOKEN. Returns ok=false when no
// user id is configured.
func FromEnv() (Identity, bool) {
	id := Identity{
		UserID:      os.Getenv("HIGHLOW_USER_ID"),
		Email:       os.Getenv("HIGHLOW_USER_EMAIL"),
		AccessToken: os.Getenv("HIGHLOW_ACCESS_TOKEN"),
	}
	if id.UserID == "" {
		return Identity{}, false
	}
	if id.Email == "" {
		id.Email = id.UserID
	}
	return id, true
}
