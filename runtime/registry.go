// Package runtime owns command routing, per-room workers and the session
// registry. It orchestrates the system without containing domain rules.
package runtime

import (
	"chat-router/domain"
	"chat-router/observability"
	"fmt"
	"log/slog"
	"sync"
)

// session pairs a connection identifier with its bounded outbound queue.
// The queue is closed exactly once, either by Unregister or CloseRoom.
type session struct {
	id        string
	frames    chan string
	closeOnce sync.Once
}

func (s *session) close() {
	s.closeOnce.Do(func() { close(s.frames) })
}

// push enqueues a frame without ever blocking. When the queue is full the
// oldest undelivered frame is discarded so the newest is admitted. Returns
// false when a frame had to be dropped.
func (s *session) push(payload string) bool {
	select {
	case s.frames <- payload:
		return true
	default:
	}
	select {
	case <-s.frames:
	default:
	}
	select {
	case s.frames <- payload:
	default:
		// The consumer raced us and the queue filled again; the frame is lost.
	}
	return false
}

// Registry holds, per room, the set of live sessions. Delivery is
// at-most-once: overflow causes silent loss for slow consumers, which is a
// deliberate availability-over-completeness tradeoff.
//
// Session lifecycle and room lifecycle are independently owned: the last
// session leaving a room drops the registry entry but never terminates the
// room worker, so clients may reconnect to an already-initialized room.
type Registry struct {
	mu       sync.RWMutex
	log      *slog.Logger
	metrics  *observability.Metrics
	capacity int
	rooms    map[domain.RoomID][]*session
}

func NewRegistry(log *slog.Logger, metrics *observability.Metrics, capacity int) *Registry {
	return &Registry{
		log:      log,
		metrics:  metrics,
		capacity: capacity,
		rooms:    make(map[domain.RoomID][]*session),
	}
}

// Register adds a session and returns the receive side of its outbound
// queue. The transport's write pump is the only reader of that channel.
func (r *Registry) Register(roomID domain.RoomID, sessionID string) <-chan string {
	s := &session{id: sessionID, frames: make(chan string, r.capacity)}

	r.mu.Lock()
	r.rooms[roomID] = append(r.rooms[roomID], s)
	total := len(r.rooms[roomID])
	r.mu.Unlock()

	r.metrics.ActiveSessions.Inc()
	r.log.Info(fmt.Sprintf("Session %s joined room %s (%d active)", sessionID, roomID, total))
	return s.frames
}

// Broadcast delivers a payload to every registered session of the room.
// An overflow on one session never affects the others, and the caller is
// never blocked or acknowledged.
//
// The pushes happen under the read lock: a queue is only closed after its
// session left the map under the write lock, so a session visible here
// cannot be closed until the lock is released. push never blocks, so
// holding the lock across the loop is safe.
func (r *Registry) Broadcast(roomID domain.RoomID, payload string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := r.rooms[roomID]
	if len(sessions) == 0 {
		r.log.Debug(fmt.Sprintf("No active sessions in room %s", roomID))
		return
	}
	for _, s := range sessions {
		r.metrics.BroadcastFrames.Inc()
		if !s.push(payload) {
			r.metrics.DroppedFrames.Inc()
			r.log.Warn("Slow consumer, oldest frame dropped",
				"room_id", roomID, "session_id", s.id)
		}
	}
}

// DeliverToSession targets a single session with the same best-effort
// contract as Broadcast. Unknown sessions are ignored.
func (r *Registry) DeliverToSession(roomID domain.RoomID, sessionID string, payload string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.rooms[roomID] {
		if s.id == sessionID {
			r.metrics.BroadcastFrames.Inc()
			if !s.push(payload) {
				r.metrics.DroppedFrames.Inc()
			}
			return
		}
	}
}

// Unregister removes a session. It is idempotent: the transport calls it
// on every close signal, and CloseRoom may already have emptied the room.
// When the last session leaves, the room entry itself is dropped.
func (r *Registry) Unregister(roomID domain.RoomID, sessionID string) {
	r.mu.Lock()
	sessions, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return
	}
	var removed *session
	kept := sessions[:0]
	for _, s := range sessions {
		if s.id == sessionID {
			removed = s
			continue
		}
		kept = append(kept, s)
	}
	if len(kept) == 0 {
		delete(r.rooms, roomID)
	} else {
		r.rooms[roomID] = kept
	}
	remaining := len(kept)
	r.mu.Unlock()

	if removed == nil {
		return
	}
	removed.close()
	r.metrics.ActiveSessions.Dec()
	r.log.Info(fmt.Sprintf("Session %s left room %s (%d remaining)", sessionID, roomID, remaining))
}

// CloseRoom closes every session queue of the room. Closing the channel
// lets the write pump drain frames already enqueued before it exits, so a
// termination notice broadcast just before CloseRoom still reaches clients.
func (r *Registry) CloseRoom(roomID domain.RoomID) {
	r.mu.Lock()
	sessions := r.rooms[roomID]
	delete(r.rooms, roomID)
	r.mu.Unlock()

	for _, s := range sessions {
		s.close()
		r.metrics.ActiveSessions.Dec()
	}
	if len(sessions) > 0 {
		r.log.Info(fmt.Sprintf("Closed %d sessions of room %s", len(sessions), roomID))
	}
}

// SessionCount reports the live sessions of a room.
func (r *Registry) SessionCount(roomID domain.RoomID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}
