// Package domain contains core concepts of the chat router.
// Messages are immutable once created; ordering is defined by SentAt,
// ties broken by insertion order in storage.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat line bound to a room.
type Message struct {
	ID       uuid.UUID
	Room     RoomID
	SenderID uuid.UUID
	Content  string
	SentAt   time.Time
}

// UserInfo identifies an authenticated sender. A nil *UserInfo means the
// connection is anonymous, which is a supported mode, not an error.
type UserInfo struct {
	Subject     string
	DisplayName string
}

const anonymousName = "Anonymous"

// Display returns the name shown in attributed chat lines.
func (u *UserInfo) Display() string {
	if u == nil || u.DisplayName == "" {
		return anonymousName
	}
	return u.DisplayName
}

// SenderUUID resolves the persisted sender identifier. Authenticated
// subjects carrying a UUID are kept; everything else gets a fresh one
// so anonymous lines remain distinguishable in storage.
func (u *UserInfo) SenderUUID() uuid.UUID {
	if u != nil {
		if id, err := uuid.Parse(u.Subject); err == nil {
			return id
		}
	}
	return uuid.New()
}
