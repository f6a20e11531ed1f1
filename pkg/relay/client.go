package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fasthttp/websocket"

	"medibot-be/internal/config"
	"medibot-be/internal/dto"
	"medibot-be/internal/pkg/logger"
)

// StreamResult is the outcome of one completed exchange.
type StreamResult struct {
	Text  string
	Title string
}

// ChunkFunc receives each streamed fragment in arrival order.
type ChunkFunc func(text string)

// Streamer submits one prompt to the relay tier and streams the reply.
type Streamer interface {
	Stream(ctx context.Context, prompt, language string, onChunk ChunkFunc) (*StreamResult, error)
}

// Client dials the relay websocket endpoint per exchange. A failed exchange
// is resubmitted exactly once; the resubmit strategy decides whether the
// existing connection is reused or replaced.
type Client struct {
	cfg    config.RelayConfig
	log    logger.ILogger
	dialer *websocket.Dialer
}

var _ Streamer = &Client{}

func NewClient(cfg config.RelayConfig, log logger.ILogger) *Client {
	return &Client{
		cfg: cfg,
		log: log,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.DialTimeout,
		},
	}
}

func (c *Client) Stream(ctx context.Context, prompt, language string, onChunk ChunkFunc) (*StreamResult, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	result, err := c.streamOnce(ctx, conn, prompt, language, onChunk)
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	c.log.Warn("RELAY_CLIENT", "Exchange failed, resubmitting once", map[string]interface{}{
		"strategy": c.cfg.ResubmitStrategy,
		"error":    err.Error(),
	})

	if c.cfg.ResubmitStrategy != "resend" {
		conn.Close()
		conn, err = c.dial(ctx)
		if err != nil {
			return nil, err
		}
		defer conn.Close()
	}

	return c.streamOnce(ctx, conn, prompt, language, onChunk)
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", c.cfg.URL, err)
	}
	return conn, nil
}

// streamOnce sends one start-stream request and consumes frames until the
// final done frame or a failure.
func (c *Client) streamOnce(ctx context.Context, conn *websocket.Conn, prompt, language string, onChunk ChunkFunc) (*StreamResult, error) {
	start := dto.NewStartStream(c.cfg.Secret, prompt, language)
	payload, err := json.Marshal(start)
	if err != nil {
		return nil, fmt.Errorf("marshal start-stream: %w", err)
	}

	conn.SetWriteDeadline(time.Now().Add(c.cfg.DialTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return nil, fmt.Errorf("send start-stream: %w", err)
	}

	deadline := time.Now().Add(c.cfg.ExchangeTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		conn.SetReadDeadline(deadline)

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read relay frame: %w", err)
		}

		env, err := dto.ParseRelayEnvelope(raw)
		if err != nil {
			c.log.Warn("RELAY_CLIENT", "Skipping unreadable relay frame", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}

		switch env.Type {
		case dto.KindResponseStream:
			// The leading thinking frame carries no text.
			if env.Chunk != "" && onChunk != nil {
				onChunk(env.Chunk)
			}
		case dto.KindDone:
			return &StreamResult{Text: env.Text, Title: env.Title}, nil
		case dto.KindError:
			return nil, fmt.Errorf("relay error: %s", env.Message)
		}
	}
}
