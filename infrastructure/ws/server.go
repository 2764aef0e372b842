// Package ws is the client-facing transport: one persistent WebSocket per
// (room, session), text frames in, plain-text notices out. It owns no room
// state; everything is forwarded to the router.
package ws

import (
	"chat-router/auth"
	"chat-router/contract"
	"chat-router/domain"
	routererrors "chat-router/errors"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	commandInit   = "init"
	commandSend   = "send"
	commandGet    = "get"
	commandSearch = "search"
	commandDelete = "delete"
)

// credentialHeader carries the optional bearer token during the WebSocket
// handshake; it is echoed back verbatim on successful negotiation.
const credentialHeader = "Sec-WebSocket-Protocol"

type Server struct {
	log      *slog.Logger
	router   contract.IRouter
	registry contract.IRegistry
	validate *validator.Validate
	upgrader websocket.Upgrader
}

func NewServer(log *slog.Logger, router contract.IRouter, registry contract.IRegistry) *Server {
	return &Server{
		log:      log,
		router:   router,
		registry: registry,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Handler mounts the chat route. The room identifier is a path segment.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/chat-room/{id}", s.handleRoom)
	return r
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	roomID := domain.RoomID(mux.Vars(r)["id"])

	// Authentication degrades, never rejects: a missing or malformed
	// credential yields an anonymous session.
	token := r.Header.Get(credentialHeader)
	user, err := auth.ExtractUserInfo(token)
	if err != nil {
		s.log.Warn("Serving connection as anonymous", "room_id", roomID, "reason", err)
	} else {
		s.log.Info(fmt.Sprintf("Authenticated user: %s (%s)", user.DisplayName, user.Subject))
	}

	var responseHeader http.Header
	if token != "" {
		responseHeader = http.Header{credentialHeader: {token}}
	}
	conn, err := s.upgrader.Upgrade(w, r, responseHeader)
	if err != nil {
		s.log.Error("WebSocket upgrade failed", "room_id", roomID, "error", err)
		return
	}

	sessionID := uuid.NewString()
	frames := s.registry.Register(roomID, sessionID)
	go s.writePump(conn, frames)

	s.readLoop(conn, roomID, sessionID, user)
}

// readLoop consumes "command|payload" frames until the connection closes.
// Closing triggers exactly one unregistration; in-flight persistence and
// correction work started before closure is left to finish.
func (s *Server) readLoop(conn *websocket.Conn, roomID domain.RoomID, sessionID string, user *domain.UserInfo) {
	defer s.registry.Unregister(roomID, sessionID)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			s.log.Debug("Connection closed", "room_id", roomID, "session_id", sessionID, "error", err)
			return
		}
		if messageType != websocket.TextMessage {
			s.log.Warn("Ignoring non-text frame", "room_id", roomID, "session_id", sessionID)
			continue
		}

		command, payload := splitFrame(string(data))
		if err := s.dispatch(roomID, sessionID, user, command, payload); err != nil {
			s.log.Warn("Routing failed",
				"room_id", roomID, "session_id", sessionID, "command", command, "error", err)
		}
	}
}

// dispatch maps one inbound frame onto the command set. Unknown commands
// are logged and ignored; no error frame is sent back.
func (s *Server) dispatch(roomID domain.RoomID, sessionID string, user *domain.UserInfo, command, payload string) error {
	switch command {
	case commandInit:
		return s.router.Route(domain.InitializeCommand{Room: roomID})

	case commandSend:
		cmd := domain.SendTextCommand{
			Room:      roomID,
			Sender:    user,
			Content:   payload,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.validate.Struct(cmd); err != nil {
			s.log.Warn("Rejecting invalid message payload", "room_id", roomID, "error", err)
			return nil
		}
		return s.router.Route(cmd)

	case commandGet:
		return s.router.Route(domain.FetchHistoryCommand{Room: roomID, SessionID: sessionID})

	case commandSearch:
		cmd := domain.SearchHistoryCommand{Room: roomID, SessionID: sessionID, Terms: payload}
		if err := s.validate.Struct(cmd); err != nil {
			s.log.Warn("Rejecting invalid search payload", "room_id", roomID, "error", err)
			return nil
		}
		return s.router.Route(cmd)

	case commandDelete:
		// The room worker broadcasts the closed notice and then closes
		// every session queue of the room (close-after-drain).
		err := s.router.Route(domain.TerminateCommand{Room: roomID})
		if stderrors.Is(err, routererrors.ErrRoomNotFound) {
			// Nothing to terminate, but lingering sessions still go away.
			s.registry.CloseRoom(roomID)
		}
		return err

	default:
		s.log.Warn(fmt.Sprintf("Unknown command: %s", command))
		return nil
	}
}

// writePump drains the session's bounded queue onto the socket. It exits
// when the registry closes the queue, after flushing frames already
// enqueued, and then drops the connection.
func (s *Server) writePump(conn *websocket.Conn, frames <-chan string) {
	defer func() {
		_ = conn.Close()
	}()
	for frame := range frames {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			s.log.Debug("Write failed, closing connection", "error", err)
			return
		}
	}
}

func splitFrame(frame string) (string, string) {
	parts := strings.SplitN(frame, "|", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
