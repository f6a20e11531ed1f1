package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/fatih/color"

	"medibot-be/internal/dto"
	"medibot-be/pkg/store"
)

// Scenario client: connects to a running registry, opens a session, asks
// about aspirin and prints the streamed reply.

const (
	defaultURL  = "ws://localhost:3000/ws"
	simUserId   = "sim-user-001"
	simChatId   = "sim-chat-001"
	simLanguage = "en"
	simPrompt   = "What is aspirin?"
)

type serverFrame struct {
	Type       string          `json:"type"`
	Message    string          `json:"message"`
	History    []store.Message `json:"history"`
	Text       string          `json:"text"`
	IsDone     bool            `json:"isDone"`
	IsThinking bool            `json:"isThinking"`
	Title      string          `json:"title"`
}

func main() {
	url := defaultURL
	if v := os.Getenv("SIMULATION_WS_URL"); v != "" {
		url = v
	}

	header := color.New(color.FgHiWhite, color.Bold)
	userC := color.New(color.FgCyan)
	botC := color.New(color.FgGreen)
	infoC := color.New(color.FgYellow)

	header.Println("=== MediBot Relay Simulation ===")
	fmt.Printf("Connecting to %s as %s\n", url, simUserId)

	dialer := &websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	send(conn, map[string]string{"type": dto.KindInit, "userId": simUserId, "language": simLanguage})
	frame := read(conn)
	infoC.Printf("server: %s\n", frame.Message)

	send(conn, map[string]string{"type": dto.KindHistory, "chatId": simChatId})
	frame = read(conn)
	infoC.Printf("history: %d prior messages\n", len(frame.History))

	userC.Printf("\nUSER: %s\n", simPrompt)
	start := time.Now()
	send(conn, map[string]string{"type": dto.KindMessage, "chatId": simChatId, "prompt": simPrompt})

	botC.Print("BOT:  ")
	for {
		frame = read(conn)
		switch {
		case frame.Type == dto.KindError:
			color.Red("\nerror: %s", frame.Message)
			os.Exit(1)
		case frame.IsThinking:
			infoC.Print("(thinking) ")
		case frame.IsDone:
			fmt.Println()
			infoC.Printf("\ntitle: %q, elapsed: %v\n", frame.Title, time.Since(start).Round(time.Millisecond))
			send(conn, map[string]string{"type": dto.KindHistory, "chatId": simChatId})
			frame = read(conn)
			infoC.Printf("history now holds %d messages\n", len(frame.History))
			return
		default:
			botC.Print(frame.Text)
		}
	}
}

func send(conn *websocket.Conn, payload map[string]string) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Fatalf("Failed to marshal payload: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		log.Fatalf("Failed to send %s: %v", payload["type"], err)
	}
}

func read(conn *websocket.Conn) serverFrame {
	conn.SetReadDeadline(time.Now().Add(3 * time.Minute))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		log.Fatalf("Connection lost: %v", err)
	}
	var frame serverFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		log.Fatalf("Unreadable frame: %v", err)
	}
	return frame
}
