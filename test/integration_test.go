package test

import (
	"chat-router/auth"
	"chat-router/contract"
	"chat-router/correction"
	"chat-router/domain"
	"chat-router/infrastructure/ws"
	"chat-router/moderation"
	"chat-router/observability"
	"chat-router/repositories"
	"chat-router/runtime"
	"chat-router/runtime/workers"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

type stack struct {
	serverURL string
	router    *runtime.Router
}

// startStack wires the whole system in-process: storage, index, registry,
// correction pipeline against a fake service, supervisor, router and the
// WebSocket transport.
func startStack(t *testing.T) *stack {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	metrics := observability.NewMetrics()

	// Reduced to 16 Mo for testing (avoid gigabytes of preallocation)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)
	indexWriter, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	req.NoError(err)

	// The fake correction service fixes one known typo and echoes the rest
	correctionService := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Text string `json:"text"`
		}
		req.NoError(json.NewDecoder(r.Body).Decode(&in))
		corrected := strings.ReplaceAll(in.Text, "wrld", "world")
		req.NoError(json.NewEncoder(w).Encode(map[string]string{"corrected": corrected}))
	}))

	registry := runtime.NewRegistry(log, metrics, 100)
	messageRepository := repositories.NewMessageRepository(db, log, lo.ToPtr(100))
	searchRepository := repositories.NewSearchRepository(indexWriter, log, 20)
	flagger, err := moderation.NewFlagger([]string{"spam"})
	req.NoError(err)
	pipeline := correction.NewPipeline(log, metrics, correctionService.URL,
		10*time.Millisecond, 2*time.Second, time.Second, 100)

	supervisor := workers.NewSupervisor(log, 200*time.Millisecond)
	supervisor.Add(pipeline)
	router := runtime.NewRouter(log, supervisor, metrics, 1000,
		func(room *domain.Room, mailbox chan domain.Command) contract.Worker {
			return workers.NewRoomWorker(room, mailbox, registry, pipeline,
				messageRepository, searchRepository, &flagger, metrics, log)
		})

	ctx, cancel := context.WithCancel(context.Background())
	router.Start(ctx)
	go supervisor.Run(ctx)

	server := httptest.NewServer(ws.NewServer(log, router, registry).Handler())

	t.Cleanup(func() {
		server.Close()
		cancel()
		supervisor.Stop()
		correctionService.Close()
		_ = indexWriter.Close()
		_ = db.Close()
	})

	return &stack{
		serverURL: "ws" + strings.TrimPrefix(server.URL, "http"),
		router:    router,
	}
}

func dialRoom(t *testing.T, s *stack, room, credential string) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	if credential != "" {
		dialer.Subprotocols = []string{credential}
	}
	conn, resp, err := dialer.Dial(fmt.Sprintf("%s/chat-room/%s", s.serverURL, room), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func Test_Scenario_Full_Room_Lifecycle(t *testing.T) {
	req := require.New(t)
	s := startStack(t)

	token, err := auth.GenerateToken("b4f9c1de-0000-4000-8000-000000000001", "Ann", time.Hour)
	req.NoError(err)
	conn := dialRoom(t, s, "lobby", token)

	// Commands before initialization are refused; the room does not exist yet
	send(t, conn, "get|")
	time.Sleep(100 * time.Millisecond)
	req.Zero(s.router.RoomCount())

	// Initialization creates the room and notifies the session
	send(t, conn, "init|")
	req.Equal("Chat room lobby initialized", readFrame(t, conn))
	req.Equal(1, s.router.RoomCount())

	// The raw attributed line is broadcast first, its correction after
	send(t, conn, "send|helo wrld")
	req.Equal("Ann: helo wrld", readFrame(t, conn))
	req.Equal("Grammar corrections: helo world", readFrame(t, conn))

	// History replays the persisted line, attributed by sender id
	time.Sleep(200 * time.Millisecond)
	send(t, conn, "get|")
	history := readFrame(t, conn)
	req.True(strings.HasSuffix(history, ": helo wrld"), history)
	req.Contains(history, "b4f9c1de")

	// Search finds the line through the full-text index
	send(t, conn, "search|helo")
	hit := readFrame(t, conn)
	req.True(strings.HasSuffix(hit, ": helo wrld"), hit)

	// Termination notifies, then the server closes the connection
	send(t, conn, "delete|")
	req.Equal("Chat room lobby terminated", readFrame(t, conn))
	req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err = conn.ReadMessage()
	req.Error(err)
	req.Zero(s.router.RoomCount())
}

func Test_Scenario_Anonymous_And_Authenticated_Sessions(t *testing.T) {
	req := require.New(t)
	s := startStack(t)

	token, err := auth.GenerateToken("b4f9c1de-0000-4000-8000-000000000002", "Ann", time.Hour)
	req.NoError(err)
	annConn := dialRoom(t, s, "duo", token)

	send(t, annConn, "init|")
	req.Equal("Chat room duo initialized", readFrame(t, annConn))

	// A malformed credential degrades the second session to anonymous
	anonConn := dialRoom(t, s, "duo", "abc.def")

	send(t, anonConn, "send|hi")
	req.Equal("Anonymous: hi", readFrame(t, annConn))
	req.Equal("Anonymous: hi", readFrame(t, anonConn))
	req.Equal("Grammar corrections: hi", readFrame(t, annConn))
	req.Equal("Grammar corrections: hi", readFrame(t, anonConn))

	// Both sessions see the attributed line from the authenticated sender
	send(t, annConn, "send|hello wrld")
	req.Equal("Ann: hello wrld", readFrame(t, annConn))
	req.Equal("Ann: hello wrld", readFrame(t, anonConn))
	req.Equal("Grammar corrections: hello world", readFrame(t, annConn))
	req.Equal("Grammar corrections: hello world", readFrame(t, anonConn))
}

func Test_Scenario_Reinitializing_A_Room_Keeps_Its_State(t *testing.T) {
	req := require.New(t)
	s := startStack(t)

	conn := dialRoom(t, s, "sticky", "")
	send(t, conn, "init|")
	req.Equal("Chat room sticky initialized", readFrame(t, conn))

	// A second init is absorbed without resetting or re-notifying
	send(t, conn, "init|")
	send(t, conn, "send|still here")
	req.Equal("Anonymous: still here", readFrame(t, conn))
	req.Equal(1, s.router.RoomCount())
}
