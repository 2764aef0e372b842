package workers

import (
	"chat-router/contract"
	"chat-router/domain"
	"chat-router/moderation"
	"chat-router/observability"
	"chat-router/repositories"
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

var _ contract.Worker = (*RoomWorker)(nil)

// RoomWorker is the single owner of one room's state. Commands are taken
// from the mailbox strictly one at a time; no other goroutine touches the
// room, which is the sole mechanism preventing data races on it.
//
// Persistence writes and correction calls are dispatched as detached
// asynchronous operations; a correction completion re-enters this same
// mailbox as an ordinary command, so clients always see the raw line
// before its correction notice.
type RoomWorker struct {
	room      *domain.Room
	mailbox   chan domain.Command
	registry  contract.IRegistry
	corrector contract.ICorrector
	messages  repositories.IMessageRepository
	search    repositories.ISearchRepository
	flagger   *moderation.Flagger
	metrics   *observability.Metrics
	log       *slog.Logger
}

func NewRoomWorker(
	room *domain.Room,
	mailbox chan domain.Command,
	registry contract.IRegistry,
	corrector contract.ICorrector,
	messages repositories.IMessageRepository,
	search repositories.ISearchRepository,
	flagger *moderation.Flagger,
	metrics *observability.Metrics,
	log *slog.Logger,
) *RoomWorker {
	return &RoomWorker{
		room:      room,
		mailbox:   mailbox,
		registry:  registry,
		corrector: corrector,
		messages:  messages,
		search:    search,
		flagger:   flagger,
		metrics:   metrics,
		log:       log,
	}
}

// Mailbox exposes the send side for the router and the correction pipeline.
func (w *RoomWorker) Mailbox() chan domain.Command {
	return w.mailbox
}

func (w *RoomWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping room worker", "room_id", w.room.ID)
			return ctx.Err()
		case cmd, ok := <-w.mailbox:
			if !ok {
				return nil
			}
			if done := w.handle(ctx, cmd); done {
				return nil
			}
		}
	}
}

// handle dispatches one command. Returns true once the room reached its
// terminal phase and the worker should exit cleanly.
func (w *RoomWorker) handle(ctx context.Context, cmd domain.Command) bool {
	switch c := cmd.(type) {
	case domain.InitializeCommand:
		if w.room.Phase != domain.Uninitialized {
			w.dropInvalidPhase(cmd)
			return false
		}
		w.room.Phase = domain.Active
		w.log.Info(fmt.Sprintf("Chat room %s initialized", w.room.ID))
		w.registry.Broadcast(w.room.ID, fmt.Sprintf("Chat room %s initialized", w.room.ID))

	case domain.SendTextCommand:
		if w.room.Phase != domain.Active {
			w.dropInvalidPhase(cmd)
			return false
		}
		w.sendText(c)

	case domain.CorrectionReplyCommand:
		if w.room.Phase != domain.Active {
			w.dropInvalidPhase(cmd)
			return false
		}
		if w.room.OutstandingCorrection != nil && *w.room.OutstandingCorrection == c.CorrelationID {
			w.room.OutstandingCorrection = nil
		} else {
			w.log.Debug("Correction reply for a superseded request",
				"room_id", w.room.ID, "correlation_id", c.CorrelationID)
		}
		w.registry.Broadcast(w.room.ID, "Grammar corrections: "+c.Corrected)

	case domain.FetchHistoryCommand:
		if w.room.Phase != domain.Active {
			w.dropInvalidPhase(cmd)
			return false
		}
		go w.deliverHistory(c.SessionID)

	case domain.SearchHistoryCommand:
		if w.room.Phase != domain.Active {
			w.dropInvalidPhase(cmd)
			return false
		}
		go w.deliverSearch(ctx, c.SessionID, c.Terms)

	case domain.TerminateCommand:
		if w.room.Phase != domain.Active {
			w.dropInvalidPhase(cmd)
			return false
		}
		w.room.Phase = domain.Terminated
		w.log.Info(fmt.Sprintf("Chat room %s terminating", w.room.ID))
		w.registry.Broadcast(w.room.ID, fmt.Sprintf("Chat room %s terminated", w.room.ID))
		// Close-after-drain: queues are closed after the notice was
		// enqueued, so write pumps flush it before the sockets drop.
		w.registry.CloseRoom(w.room.ID)
		return true

	default:
		w.log.Warn("Unhandled command", "room_id", w.room.ID, "command", fmt.Sprintf("%T", cmd))
	}
	return false
}

// sendText implements the Active-phase ordering contract: broadcast the
// raw attributed line first, then fire the persistence write, then the
// correction request. Neither of the two async branches may block or fail
// into this worker.
func (w *RoomWorker) sendText(cmd domain.SendTextCommand) {
	display := cmd.Sender.Display()
	w.registry.Broadcast(w.room.ID, fmt.Sprintf("%s: %s", display, cmd.Content))

	if flagged := w.flagger.Flag(cmd.Content); len(flagged) > 0 {
		w.metrics.FlaggedMessages.Inc()
		w.log.Warn("Flagged terms in message",
			"room_id", w.room.ID, "sender", display, "terms", flagged)
	}

	message := domain.Message{
		ID:       uuid.New(),
		Room:     w.room.ID,
		SenderID: cmd.Sender.SenderUUID(),
		Content:  cmd.Content,
		SentAt:   cmd.CreatedAt,
	}
	go w.persist(message, display)

	correlationID := uuid.New()
	w.room.OutstandingCorrection = &correlationID
	w.corrector.Submit(domain.CorrectionRequest{
		ID:      correlationID,
		Room:    w.room.ID,
		Text:    cmd.Content,
		ReplyTo: w.mailbox,
	})
}

// persist runs outside the worker goroutine. Failures are logged and
// counted, never surfaced to the worker.
func (w *RoomWorker) persist(message domain.Message, display string) {
	if err := w.messages.StoreMessage(message); err != nil {
		w.metrics.PersistenceErrors.Inc()
		w.log.Error("Failed to save message", "room_id", w.room.ID, "error", err)
		return
	}
	w.log.Debug(fmt.Sprintf("Message saved for sender %s", display), "room_id", w.room.ID)

	if err := w.search.Index(message); err != nil {
		w.log.Warn("Failed to index message", "room_id", w.room.ID, "error", err)
	}
}

// deliverHistory reads persisted lines and hands them to the single
// requesting session, never broadcast.
func (w *RoomWorker) deliverHistory(sessionID string) {
	messages, err := w.messages.History(w.room.ID)
	if err != nil {
		w.metrics.PersistenceErrors.Inc()
		w.log.Error("Failed to read history", "room_id", w.room.ID, "error", err)
		return
	}
	for _, message := range messages {
		w.registry.DeliverToSession(w.room.ID, sessionID,
			fmt.Sprintf("%s: %s", message.SenderID, message.Content))
	}
}

func (w *RoomWorker) deliverSearch(ctx context.Context, sessionID, terms string) {
	hits, err := w.search.Search(ctx, w.room.ID, terms)
	if err != nil {
		w.log.Error("Failed to search history", "room_id", w.room.ID, "error", err)
		return
	}
	for _, hit := range hits {
		w.registry.DeliverToSession(w.room.ID, sessionID,
			fmt.Sprintf("%s: %s", hit.Sender, hit.Content))
	}
}

func (w *RoomWorker) dropInvalidPhase(cmd domain.Command) {
	w.log.Warn("Command dropped, room not in a valid phase",
		"room_id", w.room.ID,
		"phase", w.room.Phase.String(),
		"command", fmt.Sprintf("%T", cmd))
}
