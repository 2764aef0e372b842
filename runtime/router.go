package runtime

import (
	"chat-router/contract"
	"chat-router/domain"
	"chat-router/errors"
	"chat-router/observability"
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// WorkerFactory builds the worker owning a freshly created room. The
// router stays ignorant of the worker's collaborators.
type WorkerFactory func(room *domain.Room, mailbox chan domain.Command) contract.Worker

// Router maps a room identifier to its worker's mailbox and forwards
// commands without waiting for their completion. It is the only component
// aware of how many rooms exist.
//
// Rooms are created lazily on an initialize command and removed from the
// routing table on terminate. Removal does not wait for the worker to
// drain pending async work; a late persistence write to a just-deleted
// room is accepted and only logged.
type Router struct {
	mu         sync.Mutex
	log        *slog.Logger
	supervisor contract.ISupervisor
	metrics    *observability.Metrics
	spawn      WorkerFactory
	bufferSize int
	mailboxes  map[domain.RoomID]chan domain.Command
	ctx        context.Context
}

func NewRouter(log *slog.Logger, supervisor contract.ISupervisor,
	metrics *observability.Metrics, bufferSize int, spawn WorkerFactory) *Router {
	return &Router{
		log:        log,
		supervisor: supervisor,
		metrics:    metrics,
		spawn:      spawn,
		bufferSize: bufferSize,
		mailboxes:  make(map[domain.RoomID]chan domain.Command),
		ctx:        context.Background(),
	}
}

// Start records the context under which new room workers are supervised.
// Must be called before the transport starts routing.
func (r *Router) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctx = ctx
}

// Route places the command with the owning room worker.
//
// Creation is idempotent: initializing an existing room reuses the worker
// and only logs the reuse. Any other command targeting an absent room is
// unsafe to act on and fails fast with ErrRoomNotFound.
func (r *Router) Route(cmd domain.Command) error {
	roomID := cmd.RoomID()

	switch cmd.(type) {
	case domain.InitializeCommand:
		r.mu.Lock()
		if _, ok := r.mailboxes[roomID]; ok {
			r.mu.Unlock()
			r.log.Info(fmt.Sprintf("Chat room %s already exists, using existing worker", roomID))
			return nil
		}
		mailbox := make(chan domain.Command, r.bufferSize)
		r.mailboxes[roomID] = mailbox
		worker := r.spawn(domain.NewRoom(roomID), mailbox)
		ctx := r.ctx
		r.mu.Unlock()

		r.log.Info(fmt.Sprintf("Creating new room worker for %s", roomID))
		r.metrics.ActiveRooms.Inc()
		r.supervisor.Start(ctx, worker)
		r.enqueue(mailbox, cmd)
		return nil

	case domain.TerminateCommand:
		r.mu.Lock()
		mailbox, ok := r.mailboxes[roomID]
		if ok {
			delete(r.mailboxes, roomID)
		}
		r.mu.Unlock()
		if !ok {
			return fmt.Errorf("routing %T to %s: %w", cmd, roomID, errors.ErrRoomNotFound)
		}
		r.metrics.ActiveRooms.Dec()
		r.enqueue(mailbox, cmd)
		return nil

	default:
		r.mu.Lock()
		mailbox, ok := r.mailboxes[roomID]
		r.mu.Unlock()
		if !ok {
			return fmt.Errorf("routing %T to %s: %w", cmd, roomID, errors.ErrRoomNotFound)
		}
		r.enqueue(mailbox, cmd)
		return nil
	}
}

// enqueue never blocks the caller: a full mailbox drops the command with a
// warning, keeping transport goroutines responsive under load.
func (r *Router) enqueue(mailbox chan domain.Command, cmd domain.Command) {
	select {
	case mailbox <- cmd:
	default:
		r.log.Warn(fmt.Sprintf("Mailbox full for room %s, dropping command %T", cmd.RoomID(), cmd))
	}
}

// RoomCount reports the number of addressable rooms.
func (r *Router) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.mailboxes)
}
