package dca

import (
	"context"
	"errors"
)

// ErrSignedOut is returned when no user is signed in. The caller is expected to
// send the user through the login flow.
var ErrSignedOut = errors.New("signed out")

// Identity is an authenticated user. ID is the owner of its transactions.
type Identity struct {
	ID    string
	Email string
}

// Session gives access to the authenticated user.
type Session interface {
	// CurrentUser returns the signed in user, or ErrSignedOut.
	CurrentUser(ctx context.Context) (Identity, error)
	// Subscribe calls f on every session change, with ok false on sign out.
	// The returned function cancels the subscription.
	Subscribe(f func(id Identity, ok bool)) (unsubscribe func())
}
