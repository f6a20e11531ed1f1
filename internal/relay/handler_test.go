package relay

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medibot-be/internal/config"
	"medibot-be/internal/constant"
	"medibot-be/internal/dto"
	"medibot-be/pkg/llm"
)

// --- fakes ---

type inboundFrame struct {
	data []byte
	err  error
}

type fakeConn struct {
	mu        sync.Mutex
	inbound   chan inboundFrame
	writes    [][]byte
	writeErr  error
	closeCode int
	closedCh  chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound:   make(chan inboundFrame, 8),
		closeCode: -1,
		closedCh:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case fr := <-c.inbound:
		if fr.err != nil {
			return 0, nil, fr.err
		}
		return websocket.TextMessage, fr.data, nil
	case <-c.closedCh:
		return 0, nil, &websocket.CloseError{Code: CloseNormal}
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	if messageType != websocket.TextMessage {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.writes = append(c.writes, cp)
	return nil
}

func (c *fakeConn) failWrites(err error) {
	c.mu.Lock()
	c.writeErr = err
	c.mu.Unlock()
}

func (c *fakeConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func (c *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	if messageType == websocket.CloseMessage && len(data) >= 2 {
		c.mu.Lock()
		if c.closeCode == -1 {
			c.closeCode = int(binary.BigEndian.Uint16(data[:2]))
		}
		c.mu.Unlock()
	}
	return nil
}

func (c *fakeConn) SetPongHandler(h func(string) error)  {}
func (c *fakeConn) SetReadDeadline(t time.Time) error    { return nil }
func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closedCh) })
	return nil
}

func (c *fakeConn) sentCloseCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

func (c *fakeConn) envelopes(t *testing.T) []dto.RelayEnvelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]dto.RelayEnvelope, 0, len(c.writes))
	for _, raw := range c.writes {
		var env dto.RelayEnvelope
		require.NoError(t, json.Unmarshal(raw, &env))
		out = append(out, env)
	}
	return out
}

type fakeFetcher struct {
	context string
}

func (f *fakeFetcher) FetchContext(ctx context.Context, prompt, language string) string {
	return f.context
}

type fakeProvider struct {
	mu          sync.Mutex
	streamCalls int
	chatCalls   int
	lastHistory []llm.Message
	chatGate    chan struct{}
	streamFn    func(ctx context.Context, call int, onChunk llm.ChunkHandler) (string, error)
	title       string
	titleErr    error
}

func (p *fakeProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	if p.chatGate != nil {
		<-p.chatGate
	}
	p.mu.Lock()
	p.chatCalls++
	p.lastHistory = history
	p.mu.Unlock()
	return p.title, p.titleErr
}

func (p *fakeProvider) history() []llm.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastHistory
}

func (p *fakeProvider) GenerateStream(ctx context.Context, prompt string, onChunk llm.ChunkHandler, opts ...llm.Option) (string, error) {
	p.mu.Lock()
	p.streamCalls++
	call := p.streamCalls
	p.mu.Unlock()
	return p.streamFn(ctx, call, onChunk)
}

func (p *fakeProvider) streams() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streamCalls
}

// --- helpers ---

func testConfig() config.RelayConfig {
	return config.RelayConfig{
		Secret:          "s3cret",
		MaxRetries:      3,
		MinReplyChars:   10,
		RetryBackoff:    5 * time.Millisecond,
		ExchangeTimeout: 5 * time.Second,
		Keepalive:       time.Hour,
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

func startFrame(t *testing.T, password, prompt, language string) []byte {
	t.Helper()
	raw, err := json.Marshal(dto.StartStreamRequest{
		Type:     dto.KindStartStream,
		Password: password,
		Prompt:   prompt,
		Language: language,
	})
	require.NoError(t, err)
	return raw
}

func serveAndWait(t *testing.T, h *Handler, conn *fakeConn) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		h.Serve(conn)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}

// --- tests ---

func TestServeRejectsBadSecret(t *testing.T) {
	conn := newFakeConn()
	provider := &fakeProvider{}
	h := NewHandler(testConfig(), &fakeFetcher{}, provider, nopLogger{})

	conn.inbound <- inboundFrame{data: startFrame(t, "wrong", "what is aspirin?", "en")}

	serveAndWait(t, h, conn)

	assert.Equal(t, ClosePolicyViolation, conn.sentCloseCode())
	assert.Zero(t, provider.streams())
}

func TestServeRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name     string
		prompt   string
		language string
	}{
		{name: "missing prompt", prompt: "", language: "en"},
		{name: "missing language", prompt: "what is aspirin?", language: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conn := newFakeConn()
			h := NewHandler(testConfig(), &fakeFetcher{}, &fakeProvider{}, nopLogger{})

			conn.inbound <- inboundFrame{data: startFrame(t, "s3cret", tc.prompt, tc.language)}
			serveAndWait(t, h, conn)

			assert.Equal(t, CloseUnsupportedData, conn.sentCloseCode())
		})
	}
}

func TestServeRejectsInvalidJSON(t *testing.T) {
	conn := newFakeConn()
	h := NewHandler(testConfig(), &fakeFetcher{}, &fakeProvider{}, nopLogger{})

	conn.inbound <- inboundFrame{data: []byte("{not json")}
	serveAndWait(t, h, conn)

	assert.Equal(t, CloseUnsupportedData, conn.sentCloseCode())
}

func TestServeStopsOnNonStartKind(t *testing.T) {
	conn := newFakeConn()
	h := NewHandler(testConfig(), &fakeFetcher{}, &fakeProvider{}, nopLogger{})

	conn.inbound <- inboundFrame{data: []byte(`{"type":"done"}`)}
	serveAndWait(t, h, conn)

	assert.Equal(t, CloseNormal, conn.sentCloseCode())
}

func TestServeStreamsFullExchange(t *testing.T) {
	conn := newFakeConn()
	provider := &fakeProvider{
		title: "Aspirin Basics",
		streamFn: func(ctx context.Context, call int, onChunk llm.ChunkHandler) (string, error) {
			chunks := []string{"Aspirin is ", "a common ", "pain reliever."}
			for _, c := range chunks {
				onChunk(c)
			}
			return "Aspirin is a common pain reliever.", nil
		},
	}
	h := NewHandler(testConfig(), &fakeFetcher{context: "Context: aspirin"}, provider, nopLogger{})

	conn.inbound <- inboundFrame{data: startFrame(t, "s3cret", "What is aspirin?", "en")}
	serveAndWait(t, h, conn)

	envs := conn.envelopes(t)
	require.GreaterOrEqual(t, len(envs), 5)

	assert.True(t, envs[0].IsThinking, "first frame must be the thinking signal")

	var text string
	for _, env := range envs[1 : len(envs)-1] {
		text += env.Chunk
	}
	assert.Equal(t, "Aspirin is a common pain reliever.", text)

	final := envs[len(envs)-1]
	assert.Equal(t, dto.KindDone, final.Type)
	assert.True(t, final.IsDone)
	assert.Equal(t, "Aspirin is a common pain reliever.", final.Text)
	assert.Equal(t, "Aspirin Basics", final.Title)

	assert.Equal(t, CloseNormal, conn.sentCloseCode())
	assert.Equal(t, 1, provider.streams())
}

func TestServeFallsBackAfterEmptyRetries(t *testing.T) {
	conn := newFakeConn()
	provider := &fakeProvider{
		title: "Untitled",
		streamFn: func(ctx context.Context, call int, onChunk llm.ChunkHandler) (string, error) {
			return "", nil
		},
	}
	h := NewHandler(testConfig(), &fakeFetcher{}, provider, nopLogger{})

	conn.inbound <- inboundFrame{data: startFrame(t, "s3cret", "hm", "en")}
	serveAndWait(t, h, conn)

	assert.Equal(t, 3, provider.streams())

	envs := conn.envelopes(t)
	require.NotEmpty(t, envs)
	final := envs[len(envs)-1]
	assert.True(t, final.IsDone)
	assert.Equal(t, constant.FallbackReply, final.Text)
}

func TestServeShortRepliesRetryThenSucceed(t *testing.T) {
	conn := newFakeConn()
	provider := &fakeProvider{
		title: "Aspirin Basics",
		streamFn: func(ctx context.Context, call int, onChunk llm.ChunkHandler) (string, error) {
			if call < 3 {
				onChunk("ok")
				return "ok", nil
			}
			onChunk("A proper full answer.")
			return "A proper full answer.", nil
		},
	}
	h := NewHandler(testConfig(), &fakeFetcher{}, provider, nopLogger{})

	conn.inbound <- inboundFrame{data: startFrame(t, "s3cret", "What is aspirin?", "en")}
	serveAndWait(t, h, conn)

	assert.Equal(t, 3, provider.streams())

	envs := conn.envelopes(t)
	final := envs[len(envs)-1]
	assert.True(t, final.IsDone)
	assert.Equal(t, "A proper full answer.", final.Text)
}

func TestServeAbortStopsAllSends(t *testing.T) {
	conn := newFakeConn()
	firstChunk := make(chan struct{})
	provider := &fakeProvider{
		title: "never used",
		streamFn: func(ctx context.Context, call int, onChunk llm.ChunkHandler) (string, error) {
			onChunk("partial")
			close(firstChunk)
			<-ctx.Done()
			return "partial", ctx.Err()
		},
	}
	h := NewHandler(testConfig(), &fakeFetcher{}, provider, nopLogger{})

	conn.inbound <- inboundFrame{data: startFrame(t, "s3cret", "What is aspirin?", "en")}
	go func() {
		<-firstChunk
		conn.inbound <- inboundFrame{err: &websocket.CloseError{Code: CloseAbnormal}}
	}()

	serveAndWait(t, h, conn)

	for _, env := range conn.envelopes(t) {
		assert.False(t, env.IsDone, "no final frame may follow an abort")
	}
}

func TestCloseCodeClassification(t *testing.T) {
	tests := []struct {
		code   int
		abort  bool
		normal bool
	}{
		{code: 1000, abort: false, normal: true},
		{code: 1001, abort: false, normal: true},
		{code: 1006, abort: true, normal: false},
		{code: 1011, abort: true, normal: false},
		{code: 1012, abort: true, normal: false},
		{code: 1003, abort: false, normal: false},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.abort, IsAbortCode(tc.code), "abort classification for %d", tc.code)
		assert.Equal(t, tc.normal, IsNormalCode(tc.code), "normal classification for %d", tc.code)
	}
}

func TestServeTitleRequestCarriesExchangeHistory(t *testing.T) {
	conn := newFakeConn()
	provider := &fakeProvider{
		title: "Aspirin Basics",
		streamFn: func(ctx context.Context, call int, onChunk llm.ChunkHandler) (string, error) {
			onChunk("Aspirin is a common pain reliever.")
			return "Aspirin is a common pain reliever.", nil
		},
	}
	h := NewHandler(testConfig(), &fakeFetcher{}, provider, nopLogger{})

	conn.inbound <- inboundFrame{data: startFrame(t, "s3cret", "What is aspirin?", "en")}
	serveAndWait(t, h, conn)

	history := provider.history()
	require.Len(t, history, 3)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "What is aspirin?", history[0].Content)
	assert.Equal(t, "assistant", history[1].Role)
	assert.Equal(t, "Aspirin is a common pain reliever.", history[1].Content)
	assert.Equal(t, "user", history[2].Role)
	assert.Contains(t, history[2].Content, "title")
}

func TestServeReturnsWhenWritesFailDuringFinalize(t *testing.T) {
	conn := newFakeConn()
	streamed := make(chan struct{})
	chatGate := make(chan struct{})
	provider := &fakeProvider{
		title:    "Aspirin Basics",
		chatGate: chatGate,
		streamFn: func(ctx context.Context, call int, onChunk llm.ChunkHandler) (string, error) {
			onChunk("A full, proper answer.")
			close(streamed)
			return "A full, proper answer.", nil
		},
	}
	h := NewHandler(testConfig(), &fakeFetcher{}, provider, nopLogger{})

	conn.inbound <- inboundFrame{data: startFrame(t, "s3cret", "What is aspirin?", "en")}
	go func() {
		<-streamed
		// Let the thinking frame and the chunk reach the wire, then the
		// connection goes bad right before the done frame is flushed.
		for conn.writeCount() < 2 {
			time.Sleep(time.Millisecond)
		}
		conn.failWrites(errors.New("broken pipe"))
		close(chatGate)
		time.Sleep(20 * time.Millisecond)
		conn.inbound <- inboundFrame{err: &websocket.CloseError{Code: CloseNormal}}
	}()

	// Serve must return even though the done frame never made it out.
	serveAndWait(t, h, conn)
}
