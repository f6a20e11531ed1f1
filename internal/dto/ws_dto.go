package dto

import (
	"encoding/json"
	"fmt"

	"medibot-be/pkg/store"
)

// Message kinds exchanged over the client-facing connection.
const (
	KindInit           = "init"
	KindHistory        = "history"
	KindMessage        = "message"
	KindInfo           = "info"
	KindError          = "error"
	KindResponseStream = "response-stream"
)

// Message kinds on the registry<->relay connection.
const (
	KindStartStream = "start-stream"
	KindDone        = "done"
)

// ClientEnvelope is the outer shape of every client->registry payload. Only
// the type tag is read here; the typed request is extracted afterwards so
// malformed input fails at the boundary, before dispatch.
type ClientEnvelope struct {
	Type     string `json:"type"`
	UserId   string `json:"userId,omitempty"`
	ChatId   string `json:"chatId,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
	Language string `json:"language,omitempty"`
}

type InitRequest struct {
	UserId   string `json:"userId" validate:"required"`
	Language string `json:"language"`
}

type HistoryRequest struct {
	ChatId string `json:"chatId" validate:"required"`
}

type MessageRequest struct {
	ChatId string `json:"chatId" validate:"required"`
	Prompt string `json:"prompt" validate:"required"`
}

// ParseClientEnvelope decodes and tags an inbound client frame.
func ParseClientEnvelope(raw []byte) (*ClientEnvelope, error) {
	var env ClientEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode client payload: %w", err)
	}
	switch env.Type {
	case KindInit, KindHistory, KindMessage:
		return &env, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}

// --- registry -> client notifications ---

type InfoNotification struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ErrorNotification struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type HistoryNotification struct {
	Type    string          `json:"type"`
	History []store.Message `json:"history"`
}

// StreamNotification covers thinking, partial and final frames of one
// exchange. Title is only present on the final frame.
type StreamNotification struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	IsDone     bool   `json:"isDone"`
	IsThinking bool   `json:"isThinking"`
	Title      string `json:"title,omitempty"`
}

func NewInfo(message string) InfoNotification {
	return InfoNotification{Type: KindInfo, Message: message}
}

func NewError(message string) ErrorNotification {
	return ErrorNotification{Type: KindError, Message: message}
}

func NewHistory(history []store.Message) HistoryNotification {
	if history == nil {
		history = []store.Message{}
	}
	return HistoryNotification{Type: KindHistory, History: history}
}

func NewThinking() StreamNotification {
	return StreamNotification{Type: KindResponseStream, IsThinking: true}
}

func NewPartial(text string) StreamNotification {
	return StreamNotification{Type: KindResponseStream, Text: text}
}

func NewFinal(text, title string) StreamNotification {
	return StreamNotification{Type: KindResponseStream, Text: text, IsDone: true, Title: title}
}
