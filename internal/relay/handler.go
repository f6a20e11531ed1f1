package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"medibot-be/internal/config"
	"medibot-be/internal/constant"
	"medibot-be/internal/dto"
	"medibot-be/internal/pkg/logger"
	"medibot-be/pkg/llm"
	"medibot-be/pkg/rag/prompt"
)

// ContextFetcher supplies grounding context for a prompt. It degrades, it
// never fails.
type ContextFetcher interface {
	FetchContext(ctx context.Context, prompt, language string) string
}

// Conn is the subset of the websocket connection the handler needs.
// *websocket.Conn satisfies it; tests substitute a fake.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetPongHandler(h func(string) error)
	SetReadDeadline(t time.Time) error
	Close() error
}

// Handler drives one relay connection: validates the start-stream request,
// runs the exchange state machine and owns the single write pump.
type Handler struct {
	cfg      config.RelayConfig
	fetcher  ContextFetcher
	provider llm.LLMProvider
	log      logger.ILogger
}

func NewHandler(cfg config.RelayConfig, fetcher ContextFetcher, provider llm.LLMProvider, log logger.ILogger) *Handler {
	return &Handler{
		cfg:      cfg,
		fetcher:  fetcher,
		provider: provider,
		log:      log,
	}
}

// outFrame is one queued outbound frame. sent, when non-nil, is closed by
// the pump after the frame hits the wire.
type outFrame struct {
	payload []byte
	sent    chan struct{}
}

// session is the per-connection state. All writes to the connection go
// through out; the pump goroutine is the only writer.
type session struct {
	conn      Conn
	out       chan outFrame
	closed    chan struct{}
	closeOnce sync.Once
	token     *Token
	cancel    context.CancelFunc
}

// shutdown releases everyone blocked on the session: the pump and any
// sender waiting on a flush. Safe to call more than once.
func (s *session) shutdown() {
	s.closeOnce.Do(func() { close(s.closed) })
}

const writeWait = 10 * time.Second

// Serve handles one connection until it closes. It blocks.
func (h *Handler) Serve(conn Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &session{
		conn:   conn,
		out:    make(chan outFrame, 64),
		closed: make(chan struct{}),
		token:  NewToken(),
		cancel: cancel,
	}

	readWait := 2 * h.cfg.Keepalive
	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		h.log.Debug("RELAY", "Pong received", nil)
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	go h.writePump(s)
	defer func() {
		s.shutdown()
		conn.Close()
	}()

	started := false
	exchangeDone := make(chan struct{})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			code := CloseCodeFrom(err)
			if IsAbortCode(code) {
				h.log.Warn("RELAY", "Connection lost, aborting exchange", map[string]interface{}{
					"code": code,
				})
				s.token.Raise()
			} else {
				h.log.Info("RELAY", "Connection closed by peer", map[string]interface{}{
					"code": code,
				})
			}
			cancel()
			// Release the exchange before waiting on it: a flush in
			// flight must not wait for a pump that already died.
			s.shutdown()
			if started {
				<-exchangeDone
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readWait))

		var req dto.StartStreamRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			h.closeWith(s, CloseUnsupportedData, "invalid payload")
			return
		}

		if req.Type != dto.KindStartStream {
			// Anything else from the peer is a stop request.
			cancel()
			h.closeWith(s, CloseNormal, "Stream stopped by client")
			s.shutdown()
			if started {
				<-exchangeDone
			}
			return
		}

		if req.Password != h.cfg.Secret {
			h.log.Warn("RELAY", "Rejected connection with bad secret", nil)
			h.closeWith(s, ClosePolicyViolation, "invalid password")
			return
		}
		if req.Prompt == "" || req.Language == "" {
			h.closeWith(s, CloseUnsupportedData, "missing prompt or language")
			return
		}

		if started {
			h.send(s, dto.NewRelayError("a generation is already in progress"))
			continue
		}
		started = true

		go func() {
			defer close(exchangeDone)
			h.runExchange(ctx, s, req)
		}()
	}
}

// runExchange executes one full generation: thinking frame, context fetch,
// streamed generation with the retry loop, title, done frame.
func (h *Handler) runExchange(parent context.Context, s *session, req dto.StartStreamRequest) {
	ctx, cancel := context.WithTimeout(parent, h.cfg.ExchangeTimeout)
	defer cancel()

	// The exchange timer expiring is an abort, not an orderly end.
	go func() {
		<-ctx.Done()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			h.log.Warn("RELAY", "Exchange timed out", nil)
			s.token.Raise()
		}
	}()

	h.send(s, dto.NewRelayThinking())

	grounding := h.fetcher.FetchContext(ctx, req.Prompt, req.Language)
	fullPrompt := prompt.NewContextualBuilder(
		constant.SystemInstructions,
		grounding,
		req.Prompt,
		req.Language,
	).Build()

	reply := h.generateWithRetries(ctx, s, fullPrompt)
	if s.token.Raised() || ctx.Err() != nil {
		return
	}

	title := h.generateTitle(ctx, req.Language, req.Prompt, reply)
	if s.token.Raised() || ctx.Err() != nil {
		return
	}

	h.sendAndFlush(s, dto.NewRelayDone(reply, title))
	h.closeWith(s, CloseNormal, "stream complete")
}

// generateWithRetries streams the generation, forwarding every chunk, and
// regenerates with a cleared accumulator while the reply stays below the
// minimum length. After the last attempt a too-short reply becomes the
// fixed fallback.
func (h *Handler) generateWithRetries(ctx context.Context, s *session, fullPrompt string) string {
	for attempt := 1; attempt <= h.cfg.MaxRetries; attempt++ {
		text, err := h.provider.GenerateStream(ctx, fullPrompt, func(chunk string) {
			h.send(s, dto.NewRelayChunk(chunk))
		})
		if ctx.Err() != nil {
			return text
		}
		if err != nil {
			h.log.Error("RELAY", "Generation attempt failed", map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
			})
		} else if len(strings.TrimSpace(text)) >= h.cfg.MinReplyChars {
			return text
		} else {
			h.log.Warn("RELAY", "Reply too short, retrying", map[string]interface{}{
				"attempt": attempt,
				"length":  len(strings.TrimSpace(text)),
			})
		}

		if attempt == h.cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ""
		case <-time.After(h.cfg.RetryBackoff):
		}
	}

	h.log.Warn("RELAY", "Retries exhausted, using fallback reply", nil)
	return constant.FallbackReply
}

// generateTitle asks the backend, non-streaming, for a short title. The
// exchange itself is the chat history, so the model titles what was
// actually said.
func (h *Handler) generateTitle(ctx context.Context, language, userPrompt, reply string) string {
	history := []llm.Message{
		{Role: "user", Content: userPrompt},
		{Role: "assistant", Content: reply},
		{Role: "user", Content: fmt.Sprintf(constant.TitleInstructions, language)},
	}
	title, err := h.provider.Chat(ctx, history)
	if err != nil {
		h.log.Warn("RELAY", "Title generation failed", map[string]interface{}{
			"error": err.Error(),
		})
		return constant.TitleUnavailable
	}
	return strings.TrimSpace(title)
}

// send marshals and enqueues one frame. Nothing is enqueued after the token
// is raised or the pump has stopped.
func (h *Handler) send(s *session, v interface{}) {
	h.enqueue(s, v, nil)
}

// sendAndFlush enqueues one frame and waits until the pump has written it,
// so a close frame issued next cannot overtake it.
func (h *Handler) sendAndFlush(s *session, v interface{}) {
	sent := make(chan struct{})
	if !h.enqueue(s, v, sent) {
		return
	}
	select {
	case <-sent:
	case <-s.closed:
	case <-s.token.Done():
	}
}

func (h *Handler) enqueue(s *session, v interface{}, sent chan struct{}) bool {
	if s.token.Raised() {
		return false
	}
	payload, err := json.Marshal(v)
	if err != nil {
		h.log.Error("RELAY", "Failed to marshal frame", map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}
	select {
	case s.out <- outFrame{payload: payload, sent: sent}:
		return true
	case <-s.closed:
		return false
	case <-s.token.Done():
		return false
	}
}

func (h *Handler) closeWith(s *session, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		h.log.Debug("RELAY", "Close frame write failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	s.conn.Close()
}

// writePump is the single writer: it drains outbound frames and keeps the
// connection alive with periodic pings.
func (h *Handler) writePump(s *session) {
	ticker := time.NewTicker(h.cfg.Keepalive)
	defer ticker.Stop()

	for {
		select {
		case fr := <-s.out:
			if s.token.Raised() {
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, fr.payload); err != nil {
				h.log.Debug("RELAY", "Write failed", map[string]interface{}{
					"error": err.Error(),
				})
				// Ack the flush anyway; the waiter must not outlive
				// the pump.
				if fr.sent != nil {
					close(fr.sent)
				}
				return
			}
			if fr.sent != nil {
				close(fr.sent)
			}
		case <-ticker.C:
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.closed:
			return
		}
	}
}
