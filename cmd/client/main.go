package main

import (
	"bufio"
	"chat-router/auth"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"CHAT_SERVER_ADDR,default=localhost:18000"`
	RoomID        string `env:"CHAT_ROOM_ID,default=lobby"`
	Subject       string `env:"CHAT_SUBJECT"`
	DisplayName   string `env:"CHAT_DISPLAY_NAME"`
	LogLevel      string `env:"LOG_LEVEL,default=INFO"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles the WebSocket client lifecycle: connect, pump received
// notices to the terminal, forward typed lines as send commands.
func run() (int, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	header := http.Header{}
	if config.Subject != "" && config.DisplayName != "" {
		token, err := auth.GenerateToken(config.Subject, config.DisplayName, 24*time.Hour)
		if err != nil {
			return exitConfig, fmt.Errorf("minting token: %w", err)
		}
		header.Set("Sec-WebSocket-Protocol", token)
	}

	url := fmt.Sprintf("ws://%s/chat-room/%s", config.ServerAddress, config.RoomID)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", url, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	color.Greenln(fmt.Sprintf(">>> Connected to room %q on %s (Ctrl+C to quit)", config.RoomID, config.ServerAddress))
	color.Grayln("Commands: /init /get /search <terms> /history /delete, anything else is sent as chat")

	if err = conn.WriteMessage(websocket.TextMessage, []byte("init|")); err != nil {
		return exitRuntime, err
	}

	var transcript [][]string
	received := make(chan string, 100)
	go func() {
		defer close(received)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- string(data)
		}
	}()

	inputs := readStdin()
	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case frame, ok := <-received:
			if !ok {
				color.Yellowln("Server closed the connection")
				return exitOK, nil
			}
			transcript = append(transcript, []string{time.Now().Format("15:04:05"), frame})
			printFrame(frame)
		case line, ok := <-inputs:
			if !ok {
				return exitOK, nil
			}
			if line == "/history" {
				printTranscript(transcript)
				continue
			}
			if err = conn.WriteMessage(websocket.TextMessage, []byte(toFrame(line))); err != nil {
				return exitRuntime, fmt.Errorf("write failed: %w", err)
			}
		}
	}
}

func readStdin() <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// toFrame maps terminal shortcuts onto the wire protocol.
func toFrame(line string) string {
	switch {
	case line == "/init":
		return "init|"
	case line == "/get":
		return "get|"
	case line == "/delete":
		return "delete|"
	case strings.HasPrefix(line, "/search "):
		return "search|" + strings.TrimPrefix(line, "/search ")
	default:
		return "send|" + line
	}
}

func printFrame(frame string) {
	switch {
	case strings.HasPrefix(frame, "Grammar corrections:"):
		color.Cyanln(frame)
	case strings.HasPrefix(frame, "Chat room "):
		color.Yellowln(frame)
	default:
		fmt.Println(frame)
	}
}

// printTranscript renders everything received so far as a table.
func printTranscript(transcript [][]string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Time", "Frame"})
	table.AppendBulk(transcript)
	table.Render()
}
