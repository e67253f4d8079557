package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joeshaw/envdecode"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"aichef"
	"aichef/backend"
	"aichef/coordinator"
	"aichef/kitchen"
	"aichef/slack"
	"aichef/storage"
)

// Request carries one user message and the session state returned by the previous invocation.
type Request struct {
	APIKey  string            `json:"api_key,omitempty"`
	Message string            `json:"message"`
	State   *kitchen.Snapshot `json:"state,omitempty"`
}

type Response struct {
	Reply      string            `json:"reply,omitempty"`
	Critique   *kitchen.Critique `json:"critique,omitempty"`
	Sufficient bool              `json:"sufficient"`
	State      kitchen.Snapshot  `json:"state"`
	Error      string            `json:"error,omitempty"`
}

type turner interface {
	Turn(ctx context.Context, s *kitchen.Session, text string) (coordinator.TurnResult, error)
}

type handler struct {
	coord  turner
	seed   storage.SeedState
	tracer trace.Tracer
}

// Handle runs one turn. Turn failures are reported in the response so the caller keeps the state.
func (h *handler) Handle(ctx context.Context, req Request) (Response, error) {
	var s *kitchen.Session
	if req.State != nil {
		s = kitchen.FromSnapshot(*req.State)
	} else {
		s = kitchen.NewSession()
		if h.seed != nil {
			if _, err := storage.Seed(ctx, h.seed, s); err != nil {
				slog.Error("SETUP: Failed to seed pantry", "error", err)
				return Response{}, err
			}
		}
	}
	s.SetCredential(req.APIKey)

	ctx, span := h.tracer.Start(ctx, "chef.lambda", trace.WithAttributes(
		attribute.String("session.id", s.ID()),
	))
	defer span.End()

	res, err := h.coord.Turn(ctx, s, req.Message)
	resp := Response{State: s.Snapshot()}
	if err != nil {
		slog.Error("RESULT: Turn failed", "session_id", s.ID(), "error", err)
		resp.Error = coordinator.UserMessage(err)
		return resp, nil
	}

	resp.Reply = res.Reply
	resp.Critique = res.Critique
	resp.Sufficient = res.Sufficient
	return resp, nil
}

func main() {
	ctx := context.Background()

	var modelConfig aichef.ModelConfig
	if err := envdecode.Decode(&modelConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}
	var agentConfig aichef.AgentConfig
	if err := envdecode.Decode(&agentConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		_, _, otelShutdown, err := aichef.InitOtel(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize OpenTelemetry: %s", err)
		}
		defer func() {
			if err := otelShutdown(ctx); err != nil {
				slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
			}
		}()
	}

	clients, err := backend.NewFactory(ctx, modelConfig, agentConfig)
	if err != nil {
		log.Fatalf("Failed to create completion backend: %s", err)
	}

	opts := coordinator.Options{
		Clients:           clients,
		RequireCredential: modelConfig.RequiresCredential(),
		Agent:             agentConfig,
		Logger:            aichef.NewStdoutTurnLogger(),
	}
	if agentConfig.SlackWebhookURL != "" {
		opts.Notifier = slack.NewClient(agentConfig.SlackWebhookURL, http.DefaultClient)
	}

	h := &handler{
		coord:  coordinator.NewCoordinator(opts),
		tracer: otel.Tracer(aichef.TracerNameLambda),
	}
	if agentConfig.SeedS3Bucket != "" && agentConfig.SeedS3Key != "" {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			log.Fatalf("Failed to load AWS config: %s", err)
		}
		h.seed = storage.NewS3SeedState(s3.NewFromConfig(awsCfg), agentConfig.SeedS3Bucket, agentConfig.SeedS3Key)
		slog.Info("SETUP: S3 seed pantry configured", "bucket", agentConfig.SeedS3Bucket, "key", agentConfig.SeedS3Key)
	}

	lambda.Start(h.Handle)
}
