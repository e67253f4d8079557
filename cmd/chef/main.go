package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joeshaw/envdecode"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/term"

	"aichef"
	"aichef/backend"
	"aichef/coordinator"
	"aichef/kitchen"
	"aichef/slack"
	"aichef/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type flags struct {
	backend string
	model   string
	seed    string
}

func newRootCmd() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:          "chef",
		Short:        "Conversational cooking assistant that turns your pantry into recipes",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&f.backend, "backend", "", "completion backend (groq|bedrock|ollama|anthropic|gemini|mock), overrides CHEF_BACKEND")
	root.PersistentFlags().StringVar(&f.model, "model", "", "model ID, overrides MODEL_ID")
	root.PersistentFlags().StringVar(&f.seed, "seed", "", "seed pantry file (yaml or json), overrides SEED_PANTRY_PATH")

	root.AddCommand(newChatCmd(&f), newAskCmd(&f))
	return root
}

func newChatCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a, err := setup(ctx, *f)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			in := bufio.NewScanner(cmd.InOrStdin())
			r := &repl{
				coord:      a.coord,
				session:    a.session,
				requireKey: a.requireKey,
				in:         in,
				out:        cmd.OutOrStdout(),
				readKey:    keyReader(in),
			}

			ctx, span := a.tracer.Start(ctx, "chef.chat", trace.WithAttributes(
				attribute.String("session.id", a.session.ID()),
			))
			defer span.End()
			return r.run(ctx)
		},
	}
}

func newAskCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [message]",
		Short: "Send a single message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, *f)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			if a.requireKey && a.session.Credential() == "" {
				return fmt.Errorf("%w (set CHEF_API_KEY)", aichef.ErrMissingCredential)
			}

			res, err := a.coord.Turn(ctx, a.session, strings.Join(args, " "))
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), coordinator.UserMessage(err))
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Reply)
			if res.Critique != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "\n--- Head chef review ---\n%s\n", res.Critique.Text)
			}
			return nil
		},
	}
}

type app struct {
	coord      *coordinator.Coordinator
	session    *kitchen.Session
	requireKey bool
	tracer     trace.Tracer
	closers    []func(context.Context) error
}

func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			slog.Error("SHUTDOWN: Cleanup failed", "error", err)
		}
	}
}

func setup(ctx context.Context, f flags) (*app, error) {
	var modelConfig aichef.ModelConfig
	if err := envdecode.Decode(&modelConfig); err != nil {
		return nil, fmt.Errorf("decode model config: %w", err)
	}
	var agentConfig aichef.AgentConfig
	if err := envdecode.Decode(&agentConfig); err != nil {
		return nil, fmt.Errorf("decode agent config: %w", err)
	}
	if f.backend != "" {
		modelConfig.Backend = f.backend
	}
	if f.model != "" {
		modelConfig.ModelID = f.model
	}
	if f.seed != "" {
		agentConfig.SeedPantryPath = f.seed
	}

	a := &app{session: kitchen.NewSession(), requireKey: modelConfig.RequiresCredential()}

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		_, _, otelShutdown, err := aichef.InitOtel(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialize OpenTelemetry: %w", err)
		}
		a.closers = append(a.closers, otelShutdown)
	}
	a.tracer = otel.Tracer(aichef.TracerNameCLI)

	clients, err := backend.NewFactory(ctx, modelConfig, agentConfig)
	if err != nil {
		return nil, err
	}

	logger, err := newTurnLogger(agentConfig.TurnLogDir, modelConfig)
	if err != nil {
		return nil, err
	}
	if fl, ok := logger.(interface{ Flush() error }); ok {
		a.closers = append(a.closers, func(context.Context) error { return fl.Flush() })
	}

	opts := coordinator.Options{
		Clients:           clients,
		RequireCredential: a.requireKey,
		Agent:             agentConfig,
		Logger:            logger,
	}
	if agentConfig.SlackWebhookURL != "" {
		opts.Notifier = slack.NewClient(agentConfig.SlackWebhookURL, http.DefaultClient)
	}
	a.coord = coordinator.NewCoordinator(opts)

	if key := os.Getenv("CHEF_API_KEY"); key != "" {
		a.session.SetCredential(key)
	}

	if err := seedSession(ctx, agentConfig, a.session); err != nil {
		return nil, err
	}

	slog.Info("SETUP: Session ready",
		"session_id", a.session.ID(),
		"backend", modelConfig.Backend,
		"pantry_items", len(a.session.Pantry()),
	)
	return a, nil
}

// newTurnLogger writes turn logs to a new file under dir. Without dir no turn log is kept.
func newTurnLogger(dir string, mc aichef.ModelConfig) (aichef.TurnLogger, error) {
	if dir == "" {
		return aichef.NewNoOpTurnLogger(), nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create turn log dir: %w", err)
	}

	path := aichef.NewTurnLogFilePath(dir, mc.Backend+"_"+mc.ModelID)
	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return &closingTurnLogger{FileTurnLogger: aichef.NewFileTurnLogger(file), file: file}, nil
}

// closingTurnLogger closes the log file once flushed.
type closingTurnLogger struct {
	*aichef.FileTurnLogger
	file *os.File
}

func (l *closingTurnLogger) Flush() error {
	return errors.Join(l.FileTurnLogger.Flush(), l.file.Close())
}

func seedSession(ctx context.Context, ac aichef.AgentConfig, s *kitchen.Session) error {
	var src storage.SeedState
	switch {
	case ac.SeedPantryPath != "":
		src = storage.NewFileSeedState(ac.SeedPantryPath)
	case ac.SeedS3Bucket != "" && ac.SeedS3Key != "":
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("failed to load AWS config: %w", err)
		}
		src = storage.NewS3SeedState(s3.NewFromConfig(awsCfg), ac.SeedS3Bucket, ac.SeedS3Key)
	default:
		return nil
	}

	if _, err := storage.Seed(ctx, src, s); err != nil {
		return fmt.Errorf("seed pantry: %w", err)
	}
	return nil
}

// keyReader hides the key when stdin is a terminal and reads the next input line otherwise.
func keyReader(in *bufio.Scanner) func() (string, error) {
	next := lineReader(in)
	return func() (string, error) {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return next()
		}
		b, err := term.ReadPassword(fd)
		return strings.TrimSpace(string(b)), err
	}
}

func lineReader(in *bufio.Scanner) func() (string, error) {
	return func() (string, error) {
		if !in.Scan() {
			if err := in.Err(); err != nil {
				return "", err
			}
			return "", errors.New("no input")
		}
		return strings.TrimSpace(in.Text()), nil
	}
}
