// Package models defines the records the server persists.
package models

import "time"

// Invitation admits new users. RemainingUses is decremented by each
// successful signup.
type Invitation struct {
	Code          string
	InviterID     string
	ExpiresAt     time.Time
	RemainingUses int
}

// Usable reports whether the invitation can admit one more user at now.
func (i *Invitation) Usable(now time.Time) bool {
	return i.RemainingUses > 0 && !i.ExpiresAt.Before(now)
}

// User is a registered account. Username is stored lowercased and
// KeyCredential holds the credential JSON exactly as submitted at signup.
type User struct {
	ID            string
	Username      string
	KeyCredential []byte
	InviterID     string
	CreatedAt     time.Time
}

// Profile is the public part of a user shown to other users.
type Profile struct {
	UserID      string
	DisplayName string
}

// LoginSession is created once per successful login and never updated.
type LoginSession struct {
	ID         string
	UserID     string
	LoggedInAt time.Time
	ExpiresAt  time.Time
}
