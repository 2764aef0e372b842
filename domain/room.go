package domain

// RoomID is the opaque routing key of a chat room. It is taken verbatim
// from the connection URL and never interpreted by the core.
type RoomID string

// Phase is the lifecycle state of a room entity.
// Terminated is terminal: a terminated room never becomes active again.
type Phase int

const (
	Uninitialized Phase = iota
	Active
	Terminated
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case Active:
		return "active"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}

// Room holds the state owned by a single room worker. All fields are
// mutated exclusively from that worker's goroutine.
type Room struct {
	ID    RoomID
	Phase Phase

	// OutstandingCorrection tracks the correlation id of the most recent
	// correction request still in flight, so a late reply can be matched
	// instead of relying on request/response ordering alone.
	OutstandingCorrection *CorrelationID
}

func NewRoom(id RoomID) *Room {
	return &Room{ID: id, Phase: Uninitialized}
}
