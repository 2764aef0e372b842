//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-router/domain"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision only, never for dispatch.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// IRegistry multiplexes live connections per room. Delivery is
// at-most-once and best-effort: a session's bounded queue discards its
// oldest undelivered frame rather than ever blocking the producer.
type IRegistry interface {
	Register(roomID domain.RoomID, sessionID string) <-chan string
	Broadcast(roomID domain.RoomID, payload string)
	DeliverToSession(roomID domain.RoomID, sessionID string, payload string)
	Unregister(roomID domain.RoomID, sessionID string)
	CloseRoom(roomID domain.RoomID)
}

// ICorrector accepts correction work without ever blocking the caller.
// Replies come back through the request's ReplyTo mailbox.
type ICorrector interface {
	Submit(req domain.CorrectionRequest)
}

// IRouter places commands with the owning room worker.
type IRouter interface {
	Route(cmd domain.Command) error
}
