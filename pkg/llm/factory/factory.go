package factory

import (
	"ai-marketchat-be/pkg/llm"
	"ai-marketchat-be/pkg/llm/huggingface"
	"ai-marketchat-be/pkg/llm/ollama"
	"fmt"
)

func NewLLMProvider(providerType, modelName, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = ollama.DefaultBaseURL
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "huggingface", "":
		if apiKey == "" {
			return nil, fmt.Errorf("huggingface provider requires an API key")
		}
		return huggingface.NewHuggingFaceProvider(apiKey, baseURL, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
