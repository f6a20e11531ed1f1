package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"medibot-be/internal/config"
	"medibot-be/internal/dto"
)

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

// startRelayStub serves a websocket endpoint whose per-connection behavior
// is scripted by handle. It returns the ws URL.
func startRelayStub(t *testing.T, handle func(conn *websocket.Conn, dial int)) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	var dials int64
	upgrader := websocket.FastHTTPUpgrader{}
	go fasthttp.Serve(ln, func(ctx *fasthttp.RequestCtx) {
		n := int(atomic.AddInt64(&dials, 1))
		err := upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
			defer conn.Close()
			handle(conn, n)
		})
		if err != nil {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
		}
	})

	return fmt.Sprintf("ws://%s/", ln.Addr().String())
}

func clientConfig(url string) config.RelayConfig {
	return config.RelayConfig{
		URL:             url,
		Secret:          "s3cret",
		ExchangeTimeout: 5 * time.Second,
		DialTimeout:     2 * time.Second,
	}
}

func readStart(t *testing.T, conn *websocket.Conn) dto.StartStreamRequest {
	t.Helper()
	var req dto.StartStreamRequest
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &req))
	return req
}

func writeEnvelope(t *testing.T, conn *websocket.Conn, env dto.RelayEnvelope) {
	t.Helper()
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
}

func TestStreamCompletesExchange(t *testing.T) {
	url := startRelayStub(t, func(conn *websocket.Conn, dial int) {
		req := readStart(t, conn)
		assert.Equal(t, dto.KindStartStream, req.Type)
		assert.Equal(t, "s3cret", req.Password)
		assert.Equal(t, "What is aspirin?", req.Prompt)

		writeEnvelope(t, conn, dto.NewRelayThinking())
		writeEnvelope(t, conn, dto.NewRelayChunk("Aspirin is "))
		writeEnvelope(t, conn, dto.NewRelayChunk("a pain reliever."))
		writeEnvelope(t, conn, dto.NewRelayDone("Aspirin is a pain reliever.", "Aspirin Basics"))
	})

	c := NewClient(clientConfig(url), nopLogger{})

	var chunks []string
	result, err := c.Stream(context.Background(), "What is aspirin?", "en", func(text string) {
		chunks = append(chunks, text)
	})

	require.NoError(t, err)
	assert.Equal(t, "Aspirin is a pain reliever.", result.Text)
	assert.Equal(t, "Aspirin Basics", result.Title)
	assert.Equal(t, []string{"Aspirin is ", "a pain reliever."}, chunks)
}

func TestStreamResubmitsOnceAfterDrop(t *testing.T) {
	url := startRelayStub(t, func(conn *websocket.Conn, dial int) {
		readStart(t, conn)
		if dial == 1 {
			// Drop mid-exchange without a close frame.
			writeEnvelope(t, conn, dto.NewRelayChunk("Aspi"))
			conn.Close()
			return
		}
		writeEnvelope(t, conn, dto.NewRelayThinking())
		writeEnvelope(t, conn, dto.NewRelayChunk("Aspirin is a pain reliever."))
		writeEnvelope(t, conn, dto.NewRelayDone("Aspirin is a pain reliever.", "Aspirin Basics"))
	})

	c := NewClient(clientConfig(url), nopLogger{})

	result, err := c.Stream(context.Background(), "What is aspirin?", "en", nil)

	require.NoError(t, err)
	assert.Equal(t, "Aspirin is a pain reliever.", result.Text)
}

func TestStreamFailsWhenBothAttemptsDrop(t *testing.T) {
	url := startRelayStub(t, func(conn *websocket.Conn, dial int) {
		readStart(t, conn)
		conn.Close()
	})

	c := NewClient(clientConfig(url), nopLogger{})

	_, err := c.Stream(context.Background(), "What is aspirin?", "en", nil)
	assert.Error(t, err)
}

func TestStreamSurfacesRelayError(t *testing.T) {
	url := startRelayStub(t, func(conn *websocket.Conn, dial int) {
		readStart(t, conn)
		if dial == 1 {
			writeEnvelope(t, conn, dto.NewRelayError("a generation is already in progress"))
			return
		}
		writeEnvelope(t, conn, dto.NewRelayDone("recovered", "Recovered"))
	})

	c := NewClient(clientConfig(url), nopLogger{})

	// The first attempt fails with the relay error; the single resubmit
	// succeeds.
	result, err := c.Stream(context.Background(), "What is aspirin?", "en", nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", result.Text)
}
