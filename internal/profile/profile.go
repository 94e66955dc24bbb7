// Package profile models user profiles held by the remote store.
package profile

import (
	"context"
	"errors"
	"strings"
)

// DefaultTimezone applies when a profile has no timezone of its own.
const DefaultTimezone = "Asia/Ho_Chi_Minh"

// Status is the approval state of a profile.
type Status string

const (
	StatusApproved Status = "approved"
	StatusPending  Status = "pending"
	StatusRejected Status = "rejected"
)

// ErrNotFound means no profile has the requested id.
var ErrNotFound = errors.New("profile: not found")

// Profile is an immutable snapshot fetched from the remote store.
type Profile struct {
	ID       string `db:"id" json:"id"`
	Status   Status `db:"status" json:"status"`
	Timezone string `db:"timezone" json:"timezone"`
	Email    string `db:"email" json:"email"`
}

// Approved reports whether the profile may use the bot.
func (p Profile) Approved() bool {
	return p.Status == StatusApproved
}

// Normalize fills defaults and canonicalizes the status.
func (p Profile) Normalize() Profile {
	p.Status = Status(strings.ToLower(strings.TrimSpace(string(p.Status))))
	if strings.TrimSpace(p.Timezone) == "" {
		p.Timezone = DefaultTimezone
	}
	return p
}

// Gateway resolves a profile id. Absence is reported as ErrNotFound,
// every other failure as a distinct error.
type Gateway interface {
	Lookup(ctx context.Context, id string) (Profile, error)
}
