package context

import (
	"bytes"
	stdcontext "context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher retrieves grounding context for a prompt from the external
// retrieval service. A failed or slow lookup never fails the exchange;
// Fetch degrades to a deterministic fallback built from the prompt itself.
type Fetcher struct {
	URL      string
	Timeout  time.Duration
	MaxBytes int64
	Client   *http.Client
}

type contextRequest struct {
	Prompt string `json:"prompt"`
	Lang   string `json:"lang"`
}

type contextResponse struct {
	Context string `json:"context"`
}

func NewFetcher(url string, timeout time.Duration, maxBytes int64) *Fetcher {
	return &Fetcher{
		URL:      url,
		Timeout:  timeout,
		MaxBytes: maxBytes,
		Client:   &http.Client{},
	}
}

// Fallback is the context used when the retrieval service is unreachable
// or replies with garbage. It restates the prompt so the generation tier
// still has something grounded to work with.
func Fallback(prompt string) string {
	return fmt.Sprintf("Context: The user wrote: %q", prompt)
}

// FetchContext posts the prompt and language to the retrieval service and
// returns the context string. It respects the caller's ctx and additionally
// bounds the request with its own timeout. On any failure the fallback is
// returned.
func (f *Fetcher) FetchContext(ctx stdcontext.Context, prompt, language string) string {
	reqCtx, cancel := stdcontext.WithTimeout(ctx, f.Timeout)
	defer cancel()

	payload, err := json.Marshal(contextRequest{Prompt: prompt, Lang: language})
	if err != nil {
		return Fallback(prompt)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, f.URL, bytes.NewReader(payload))
	if err != nil {
		return Fallback(prompt)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return Fallback(prompt)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Fallback(prompt)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.MaxBytes))
	if err != nil {
		return Fallback(prompt)
	}

	var parsed contextResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Context == "" {
		return Fallback(prompt)
	}

	return parsed.Context
}
