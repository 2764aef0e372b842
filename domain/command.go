package domain

import (
	"time"

	"github.com/google/uuid"
)

// CorrelationID ties a correction request to its asynchronous reply.
type CorrelationID = uuid.UUID

// Command is the closed set of operations a room worker processes.
// Dispatch is a plain type switch; no runtime type registry exists.
type Command interface {
	RoomID() RoomID
}

// InitializeCommand moves a room from Uninitialized to Active.
type InitializeCommand struct {
	Room RoomID
}

func (c InitializeCommand) RoomID() RoomID { return c.Room }

// SendTextCommand broadcasts an attributed chat line, persists it and
// triggers the asynchronous correction step. Sender may be nil (anonymous).
type SendTextCommand struct {
	Room      RoomID
	Sender    *UserInfo
	Content   string `validate:"required,max=4096"`
	CreatedAt time.Time
}

func (c SendTextCommand) RoomID() RoomID { return c.Room }

// CorrectionReplyCommand re-enters the room's mailbox when the correction
// pipeline finishes, successfully or not.
type CorrectionReplyCommand struct {
	Room          RoomID
	CorrelationID CorrelationID
	Corrected     string
}

func (c CorrectionReplyCommand) RoomID() RoomID { return c.Room }

// FetchHistoryCommand delivers persisted lines to the issuing session only.
type FetchHistoryCommand struct {
	Room      RoomID
	SessionID string
}

func (c FetchHistoryCommand) RoomID() RoomID { return c.Room }

// SearchHistoryCommand runs a full-text query over the room's indexed
// messages and delivers matches to the issuing session only.
type SearchHistoryCommand struct {
	Room      RoomID
	SessionID string
	Terms     string `validate:"required,max=256"`
}

func (c SearchHistoryCommand) RoomID() RoomID { return c.Room }

// TerminateCommand closes the room for good.
type TerminateCommand struct {
	Room RoomID
}

func (c TerminateCommand) RoomID() RoomID { return c.Room }

// CorrectionRequest is what a room worker hands to the correction
// pipeline. ReplyTo is the mailbox of the issuing room, so the reply
// is processed under the same single-owner discipline as any command.
type CorrectionRequest struct {
	ID      CorrelationID
	Room    RoomID
	Text    string
	ReplyTo chan<- Command
}
