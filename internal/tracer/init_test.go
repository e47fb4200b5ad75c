package tracer

import (
	"context"
	"testing"

	"ai-marketchat-be/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestNewResourceDescribesDeployment(t *testing.T) {
	cfg := &config.Config{}
	cfg.App.Environment = "staging"
	cfg.Ai.LLMProvider = "huggingface"
	cfg.Ai.LLMModel = "meta-llama/Llama-3.1-8B-Instruct"
	cfg.Market.Provider = "nse"
	cfg.Database.Driver = "memory"

	got := map[string]string{}
	for _, kv := range newResource(cfg).Attributes() {
		got[string(kv.Key)] = kv.Value.Emit()
	}

	assert.Equal(t, ServiceName, got["service.name"])
	assert.Equal(t, "staging", got["deployment.environment"])
	assert.Equal(t, "huggingface", got[string(AttrLLMProvider)])
	assert.Equal(t, "meta-llama/Llama-3.1-8B-Instruct", got[string(AttrLLMModel)])
	assert.Equal(t, "nse", got[string(AttrMarketProvider)])
	assert.Equal(t, "memory", got[string(AttrStorage)])
}

func TestInitTracerDisabled(t *testing.T) {
	shutdown := InitTracer(&config.Config{})
	assert.NoError(t, shutdown(context.Background()))
}
