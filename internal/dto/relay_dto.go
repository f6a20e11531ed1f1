package dto

import (
	"encoding/json"
	"fmt"
)

// StartStreamRequest opens one exchange on the relay. The field names are
// part of the wire contract with existing deployments; the shared secret
// travels as "password".
type StartStreamRequest struct {
	Type     string `json:"type"`
	Password string `json:"password"`
	Prompt   string `json:"prompt" validate:"required"`
	Language string `json:"language" validate:"required"`
}

// RelayEnvelope is the single decoded shape of every relay->registry frame.
type RelayEnvelope struct {
	Type       string `json:"type"`
	Chunk      string `json:"chunk,omitempty"`
	Text       string `json:"text,omitempty"`
	Title      string `json:"title,omitempty"`
	Message    string `json:"message,omitempty"`
	IsDone     bool   `json:"isDone,omitempty"`
	IsThinking bool   `json:"isThinking,omitempty"`
}

func ParseRelayEnvelope(raw []byte) (*RelayEnvelope, error) {
	var env RelayEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode relay payload: %w", err)
	}
	switch env.Type {
	case KindResponseStream, KindDone, KindError:
		return &env, nil
	default:
		return nil, fmt.Errorf("unknown relay message type %q", env.Type)
	}
}

func NewStartStream(secret, prompt, language string) StartStreamRequest {
	return StartStreamRequest{
		Type:     KindStartStream,
		Password: secret,
		Prompt:   prompt,
		Language: language,
	}
}

func NewRelayThinking() RelayEnvelope {
	return RelayEnvelope{Type: KindResponseStream, IsThinking: true}
}

func NewRelayChunk(chunk string) RelayEnvelope {
	return RelayEnvelope{Type: KindResponseStream, Chunk: chunk}
}

func NewRelayDone(text, title string) RelayEnvelope {
	return RelayEnvelope{Type: KindDone, Text: text, Title: title, IsDone: true}
}

func NewRelayError(message string) RelayEnvelope {
	return RelayEnvelope{Type: KindError, Message: message}
}
