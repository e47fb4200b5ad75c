package tracer

import (
	"context"
	"log"
	"os"

	"ai-marketchat-be/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

const ServiceName = "ai-marketchat-backend"

// Attribute keys shared by the chat spans and the process resource.
const (
	AttrChatID         = attribute.Key("marketchat.chat_id")
	AttrTicker         = attribute.Key("marketchat.ticker")
	AttrStreamMode     = attribute.Key("marketchat.stream_mode")
	AttrQuoteStatus    = attribute.Key("marketchat.quote_status")
	AttrLLMProvider    = attribute.Key("marketchat.llm.provider")
	AttrLLMModel       = attribute.Key("marketchat.llm.model")
	AttrMarketProvider = attribute.Key("marketchat.market.provider")
	AttrStorage        = attribute.Key("marketchat.storage")
)

// InitTracer initializes OpenTelemetry with an OTLP HTTP exporter (compatible with Jaeger).
// Returns a shutdown function that should be called on application exit.
func InitTracer(cfg *config.Config) func(context.Context) error {
	if !cfg.App.OtelEnabled {
		log.Println("OpenTelemetry tracing is disabled (set OTEL_ENABLED=true to enable)")
		return func(context.Context) error { return nil }
	}

	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "localhost:4318"
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(otelEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		log.Printf("Warning: Failed to create OTLP exporter: %v (tracing disabled)", err)
		return func(context.Context) error { return nil }
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(newResource(cfg)),
	)

	otel.SetTracerProvider(tp)
	log.Printf("✅ OpenTelemetry tracer initialized (endpoint: %s)", otelEndpoint)

	return tp.Shutdown
}

// newResource describes this deployment: which model and quote source answer the chats.
func newResource(cfg *config.Config) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(ServiceName),
		semconv.DeploymentEnvironmentKey.String(cfg.App.Environment),
		AttrLLMProvider.String(cfg.Ai.LLMProvider),
		AttrLLMModel.String(cfg.Ai.LLMModel),
		AttrMarketProvider.String(cfg.Market.Provider),
		AttrStorage.String(cfg.Database.Driver),
	)
}
