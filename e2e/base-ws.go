package e2e

import (
	"fmt"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"chat-router/auth"
)

type BaseWsSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests and
// skips the whole suite when no server address is configured.
func (s *BaseWsSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("CHAT_SERVER_ADDR not set, skipping e2e suite")
	}
}

// Dial opens one chat session against the configured server. An empty
// subject yields an unauthenticated, anonymous session.
func (s *BaseWsSuite) Dial(name, room, subject, displayName string) *websocket.Conn {
	header := color.New(color.BgBlack, color.FgGreen).Render(fmt.Sprintf("  ====== %s ======", name))
	s.T().Log(header)

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	if subject != "" {
		token, err := auth.GenerateToken(subject, displayName, time.Hour)
		s.Require().NoError(err)
		dialer.Subprotocols = []string{token}
	}

	url := fmt.Sprintf("ws://%s/chat-room/%s", s.Config.ServerAddr, room)
	conn, resp, err := dialer.Dial(url, nil)
	s.Require().NoError(err, "Failed to connect to chat server at "+url)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	s.T().Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

// Send writes one "command|payload" frame.
func (s *BaseWsSuite) Send(conn *websocket.Conn, frame string) {
	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte(frame)))
	s.T().Logf("SENT %s", frame)
}

// Expect reads the next frame and requires it to equal the expectation.
func (s *BaseWsSuite) Expect(conn *websocket.Conn, expected string) {
	s.Require().Equal(expected, s.Next(conn))
}

// Next reads the next frame with a bounded wait.
func (s *BaseWsSuite) Next(conn *websocket.Conn) string {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(10 * time.Second)))
	_, data, err := conn.ReadMessage()
	s.Require().NoError(err)
	s.T().Logf("RECEIVED %s", string(data))
	return string(data)
}
