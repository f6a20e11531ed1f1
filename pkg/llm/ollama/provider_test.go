package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medibot-be/pkg/llm"
)

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

func TestGenerateStreamAccumulatesChunksInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)

		var req ollamaGenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		flusher := w.(http.Flusher)
		for _, chunk := range []string{"Aspirin ", "is a ", "pain reliever."} {
			fmt.Fprintf(w, `{"model":"llama3","response":%q,"done":false}`+"\n", chunk)
			flusher.Flush()
		}
		fmt.Fprintln(w, `{"model":"llama3","response":"","done":true}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3", nopLogger{})

	var chunks []string
	text, err := p.GenerateStream(context.Background(), "what is aspirin?", func(chunk string) {
		chunks = append(chunks, chunk)
	})

	require.NoError(t, err)
	assert.Equal(t, "Aspirin is a pain reliever.", text)
	assert.Equal(t, []string{"Aspirin ", "is a ", "pain reliever."}, chunks)
}

func TestGenerateStreamSkipsMalformedLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"response":"Hello ","done":false}`)
		fmt.Fprintln(w, `{this is not json`)
		fmt.Fprintln(w, ``)
		fmt.Fprintln(w, `{"response":"world.","done":true}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3", nopLogger{})

	text, err := p.GenerateStream(context.Background(), "hi", nil)

	require.NoError(t, err)
	assert.Equal(t, "Hello world.", text)
}

func TestGenerateStreamReturnsPartialOnCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprintln(w, `{"response":"partial answer ","done":false}`)
		flusher.Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	p := NewOllamaProvider(srv.URL, "llama3", nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan struct{})
	go func() {
		<-got
		cancel()
	}()

	text, err := p.GenerateStream(ctx, "hi", func(string) {
		select {
		case <-got:
		default:
			close(got)
		}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "partial answer ", text)
}

func TestGenerateStreamSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3", nopLogger{})

	_, err := p.GenerateStream(context.Background(), "hi", nil)
	assert.Error(t, err)
}

func TestChatSendsFullHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)

		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 3)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "assistant", req.Messages[1].Role)
		assert.Equal(t, "user", req.Messages[2].Role)

		json.NewEncoder(w).Encode(ollamaChatResponse{
			Model:   "llama3",
			Message: ollamaMessage{Role: "assistant", Content: "Aspirin Basics"},
			Done:    true,
		})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3", nopLogger{})
	p.Client.Timeout = 5 * time.Second

	reply, err := p.Chat(context.Background(), []llm.Message{
		{Role: "user", Content: "What is aspirin?"},
		{Role: "assistant", Content: "A common pain reliever."},
		{Role: "user", Content: "Generate a concise title for this conversation in English."},
	})
	require.NoError(t, err)
	assert.Equal(t, "Aspirin Basics", reply)
}
