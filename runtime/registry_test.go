package runtime

import (
	"chat-router/domain"
	"chat-router/observability"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(capacity int) *Registry {
	return NewRegistry(slog.Default(), observability.NewMetrics(), capacity)
}

func TestRegistry_Register_One_Room_One_Session(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry(10)
	roomID := domain.RoomID("r1")
	sessionID := uuid.NewString()

	// Given no session is connected
	req.Zero(registry.SessionCount(roomID))

	// When a session registers
	frames := registry.Register(roomID, sessionID)

	// Then the session is addressable and receives broadcasts
	req.Equal(1, registry.SessionCount(roomID))
	registry.Broadcast(roomID, "hello")
	req.Equal("hello", <-frames)
}

func TestRegistry_Broadcast_Reaches_Every_Session(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry(10)
	roomID := domain.RoomID("r1")

	frames1 := registry.Register(roomID, uuid.NewString())
	frames2 := registry.Register(roomID, uuid.NewString())
	frames3 := registry.Register(roomID, uuid.NewString())

	// When a payload is broadcast
	registry.Broadcast(roomID, "to everyone")

	// Then each session got exactly one independent enqueue attempt
	req.Equal("to everyone", <-frames1)
	req.Equal("to everyone", <-frames2)
	req.Equal("to everyone", <-frames3)
}

func TestRegistry_Broadcast_Is_Scoped_To_The_Room(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry(10)

	frames := registry.Register(domain.RoomID("r1"), uuid.NewString())
	other := registry.Register(domain.RoomID("r2"), uuid.NewString())

	registry.Broadcast(domain.RoomID("r1"), "r1 only")

	req.Equal("r1 only", <-frames)
	req.Empty(other)
}

func TestRegistry_Overflow_Drops_Oldest_Frame(t *testing.T) {
	req := require.New(t)
	capacity := 3
	registry := newTestRegistry(capacity)
	roomID := domain.RoomID("r1")
	frames := registry.Register(roomID, uuid.NewString())

	// Given a consumer slower than the producer
	for i := 0; i < capacity+2; i++ {
		registry.Broadcast(roomID, fmt.Sprintf("frame-%d", i))
	}

	// Then the oldest undelivered frames were discarded to admit the newest
	req.Equal("frame-2", <-frames)
	req.Equal("frame-3", <-frames)
	req.Equal("frame-4", <-frames)
	req.Empty(frames)
}

func TestRegistry_DeliverToSession_Single_Target(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry(10)
	roomID := domain.RoomID("r1")
	sessionID := uuid.NewString()

	target := registry.Register(roomID, sessionID)
	bystander := registry.Register(roomID, uuid.NewString())

	registry.DeliverToSession(roomID, sessionID, "just for you")

	req.Equal("just for you", <-target)
	req.Empty(bystander)

	// Unknown sessions are ignored
	registry.DeliverToSession(roomID, "missing-session", "lost")
}

func TestRegistry_Unregister_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry(10)
	roomID := domain.RoomID("r1")
	sessionID := uuid.NewString()
	registry.Register(roomID, sessionID)

	// When unregistering twice for the same (room, session)
	registry.Unregister(roomID, sessionID)
	registry.Unregister(roomID, sessionID)

	// Then the observable effect equals a single call
	req.Zero(registry.SessionCount(roomID))
}

func TestRegistry_Last_Session_Removes_Room_Entry(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry(10)
	roomID := domain.RoomID("r1")
	session1 := uuid.NewString()
	session2 := uuid.NewString()
	registry.Register(roomID, session1)
	registry.Register(roomID, session2)

	registry.Unregister(roomID, session1)
	req.Equal(1, registry.SessionCount(roomID))

	// When the last session leaves, the room entry is dropped entirely;
	// the room worker itself stays addressable through the router.
	registry.Unregister(roomID, session2)
	req.Zero(registry.SessionCount(roomID))
}

func TestRegistry_Broadcast_During_Session_Churn(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry(2)
	roomID := domain.RoomID("r1")

	// Given broadcasters racing register/unregister/close on the same room
	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					registry.Broadcast(roomID, "payload")
				}
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					sessionID := uuid.NewString()
					registry.Register(roomID, sessionID)
					registry.Unregister(roomID, sessionID)
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				registry.Register(roomID, uuid.NewString())
				registry.CloseRoom(roomID)
			}
		}
	}()

	// Then a close landing mid-broadcast never reaches a closed queue
	time.Sleep(200 * time.Millisecond)
	close(done)
	wg.Wait()
	registry.CloseRoom(roomID)
	req.Zero(registry.SessionCount(roomID))
}

func TestRegistry_CloseRoom_Drains_Buffered_Frames(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry(10)
	roomID := domain.RoomID("r1")
	frames := registry.Register(roomID, uuid.NewString())

	// Given a termination notice was enqueued before the close
	registry.Broadcast(roomID, "Chat room r1 terminated")
	registry.CloseRoom(roomID)

	// Then the consumer still drains the notice before seeing the close
	req.Equal("Chat room r1 terminated", <-frames)
	_, open := <-frames
	req.False(open)
	req.Zero(registry.SessionCount(roomID))
}
