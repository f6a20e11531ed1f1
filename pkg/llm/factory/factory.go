package factory

import (
	"fmt"
	"strings"

	"medibot-be/internal/pkg/logger"
	"medibot-be/pkg/llm"
	"medibot-be/pkg/llm/ollama"
)

// NewLLMProvider builds a provider by name. Only ollama is wired today;
// the switch leaves room for hosted backends.
func NewLLMProvider(providerName, baseURL, modelName string, log logger.ILogger) (llm.LLMProvider, error) {
	switch strings.ToLower(providerName) {
	case "ollama", "":
		return ollama.NewOllamaProvider(baseURL, modelName, log), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", providerName)
	}
}
