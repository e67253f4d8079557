package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"aichef"
	"aichef/kitchen"
	"aichef/slack"
)

// ErrEmptyMessage is returned for a blank user message. No call is made.
var ErrEmptyMessage = errors.New("empty message")

// Phase is a step of a turn.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseExtracting
	PhaseMerging
	PhaseGateCheck
	PhaseProducing
	PhaseCritiquing
	PhaseSkip
	PhaseAppending
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseExtracting:
		return "extracting"
	case PhaseMerging:
		return "merging"
	case PhaseGateCheck:
		return "gate_check"
	case PhaseProducing:
		return "producing"
	case PhaseCritiquing:
		return "critiquing"
	case PhaseSkip:
		return "skip"
	case PhaseAppending:
		return "appending"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ClientFactory builds a completion client bound to the session credential.
type ClientFactory func(credential string) (aichef.CompletionClient, error)

// TurnResult is what one turn showed the user.
type TurnResult struct {
	Reply      string
	Critique   *kitchen.Critique
	Sufficient bool
	Extraction ExtractionStatus
	// Usage is the units consumed by the calls that completed during this turn.
	Usage  int
	Phases []Phase
}

func (r *TurnResult) enter(p Phase) { r.Phases = append(r.Phases, p) }

// Options configures a Coordinator. Clients is required; everything else has a working default.
type Options struct {
	Clients           ClientFactory
	RequireCredential bool
	Agent             aichef.AgentConfig
	Logger            aichef.TurnLogger
	Notifier          aichef.SlackClient
	Tracer            trace.Tracer
	Meter             metric.Meter
}

type instruments struct {
	turns       metric.Int64Counter
	failures    metric.Int64Counter
	usage       metric.Int64Counter
	extractions metric.Int64Counter
	pantryItems metric.Int64Gauge
	sessionUse  metric.Int64Gauge
	completion  metric.Float64Histogram
}

// Coordinator runs the per-turn pipeline: extract, merge, gate, produce, critique, append.
type Coordinator struct {
	clients           ClientFactory
	requireCredential bool
	ceiling           int
	gate              kitchen.Gate
	extractor         *Extractor
	producer          *Producer
	critic            *Critic
	logger            aichef.TurnLogger
	notifier          aichef.SlackClient
	channel           string
	tracer            trace.Tracer
	inst              instruments
}

// NewCoordinator initializes a coordinator from opts.
func NewCoordinator(opts Options) *Coordinator {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(aichef.TracerNameCoordinator)
	}
	meter := opts.Meter
	if meter == nil {
		meter = otel.Meter(aichef.TracerNameCoordinator)
	}
	logger := opts.Logger
	if logger == nil {
		logger = aichef.NewNoOpTurnLogger()
	}
	language := opts.Agent.ReplyLanguage
	if language == "" {
		language = "Italian"
	}

	return &Coordinator{
		clients:           opts.Clients,
		requireCredential: opts.RequireCredential,
		ceiling:           opts.Agent.UsageCeiling,
		gate:              kitchen.NewGate(opts.Agent),
		extractor:         NewExtractor(),
		producer:          NewProducer(language),
		critic:            NewCritic(language),
		logger:            logger,
		notifier:          opts.Notifier,
		channel:           opts.Agent.SlackChannel,
		tracer:            tracer,
		inst:              newInstruments(meter),
	}
}

func newInstruments(meter metric.Meter) instruments {
	var inst instruments
	inst.turns, _ = meter.Int64Counter("chef_turns_total",
		metric.WithDescription("Total number of turns started"))
	inst.failures, _ = meter.Int64Counter("chef_turn_failures_total",
		metric.WithDescription("Total number of turns that ended with an error"))
	inst.usage, _ = meter.Int64Counter("chef_usage_units_total",
		metric.WithDescription("Usage units reported by the completion service"))
	inst.extractions, _ = meter.Int64Counter("chef_extractions_total",
		metric.WithDescription("Extraction outcomes by status"))
	inst.pantryItems, _ = meter.Int64Gauge("chef_pantry_items",
		metric.WithDescription("Number of items in the session pantry"))
	inst.sessionUse, _ = meter.Int64Gauge("chef_session_usage",
		metric.WithDescription("Cumulative usage units of the session"))
	inst.completion, _ = meter.Float64Histogram("chef_completion_seconds",
		metric.WithDescription("Duration of completion calls in seconds"))
	return inst
}

// Turn processes one user message against s.
//
// The ceiling and credential checks run before any call. Extraction failures are absorbed; producer and critic
// failures end the turn with an error and leave the transcript untouched, although usage from calls that
// already completed stays counted.
func (c *Coordinator) Turn(ctx context.Context, s *kitchen.Session, text string) (TurnResult, error) {
	ctx, span := c.tracer.Start(ctx, "Coordinator.Turn", trace.WithAttributes(
		attribute.String("session.id", s.ID()),
	))
	defer span.End()

	c.inst.turns.Add(ctx, 1)
	res := TurnResult{Phases: []Phase{PhaseIdle}}
	tlog := aichef.TurnLog{
		SessionID:   s.ID(),
		Turn:        len(s.Transcript())/2 + 1,
		Timestamp:   time.Now(),
		Input:       text,
		UsageBefore: s.Usage(),
	}
	defer func() {
		tlog.Phases = phaseNames(res.Phases)
		tlog.Extraction = res.Extraction.String()
		tlog.Sufficient = res.Sufficient
		tlog.UsageAfter = s.Usage()
		c.logTurn(tlog)
		c.inst.sessionUse.Record(ctx, int64(s.Usage()))
		c.inst.pantryItems.Record(ctx, int64(len(s.Pantry())))
	}()

	fail := func(err error) (TurnResult, error) {
		tlog.Error = err.Error()
		c.inst.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", aichef.KindOf(err).String())))
		span.SetStatus(codes.Error, "turn failed")
		span.RecordError(err)
		slog.Error("COORDINATOR: Turn failed", "session_id", s.ID(), "error", err)
		return res, err
	}

	if c.ceiling > 0 && s.Usage() >= c.ceiling {
		return fail(aichef.ErrBudgetExceeded)
	}
	if c.requireCredential && s.Credential() == "" {
		return fail(aichef.ErrMissingCredential)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fail(ErrEmptyMessage)
	}

	llm, err := c.clients(s.Credential())
	if err != nil {
		return fail(fmt.Errorf("create completion client: %w", err))
	}

	slog.Info("COORDINATOR: Starting turn", "session_id", s.ID(), "turn", tlog.Turn, "usage", s.Usage())

	// Extracting
	res.enter(PhaseExtracting)
	callCtx, call := c.startCall(ctx, "extractor")
	ext := c.extractor.Extract(callCtx, llm, text)
	c.observe(ctx, &tlog, call, ext.Usage, len(ext.Record.Items), ext.Err)
	res.Extraction = ext.Status
	c.inst.extractions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", ext.Status.String())))
	c.account(ctx, s, &res, ext.Usage)

	// Merging
	res.enter(PhaseMerging)
	s.Merge(ext.Record)

	// GateCheck
	res.enter(PhaseGateCheck)
	res.Sufficient = c.gate.Sufficient(s)
	span.AddEvent("Gate evaluated", trace.WithAttributes(
		attribute.Bool("sufficient", res.Sufficient),
		attribute.Int("pantry_items", len(s.Pantry())),
		attribute.Bool("party_size_known", s.HasPartySize()),
	))

	// Producing
	res.enter(PhaseProducing)
	callCtx, call = c.startCall(ctx, "producer")
	out, err := c.producer.Produce(callCtx, llm, s, text, res.Sufficient)
	c.observe(ctx, &tlog, call, out.Usage, len(out.Text), err)
	if err != nil {
		return fail(err)
	}
	c.account(ctx, s, &res, out.Usage)
	res.Reply = out.Text

	// Critiquing
	if res.Sufficient {
		res.enter(PhaseCritiquing)
		callCtx, call = c.startCall(ctx, "critic")
		crit, usage, err := c.critic.Critique(callCtx, llm, s, out.Text)
		c.observe(ctx, &tlog, call, usage, len(crit.Text), err)
		if err != nil {
			return fail(err)
		}
		c.account(ctx, s, &res, usage)
		s.SetCritique(crit)
		res.Critique = &crit
	} else {
		res.enter(PhaseSkip)
	}

	// Appending
	res.enter(PhaseAppending)
	s.AppendExchange(text, out.Text)
	res.enter(PhaseIdle)

	slog.Info("COORDINATOR: Turn completed",
		"session_id", s.ID(),
		"sufficient", res.Sufficient,
		"extraction", res.Extraction.String(),
		"turn_usage", res.Usage,
		"session_usage", s.Usage(),
	)

	if res.Sufficient {
		c.share(ctx, s, res)
	}
	return res, nil
}

func (c *Coordinator) account(ctx context.Context, s *kitchen.Session, res *TurnResult, u aichef.Usage) {
	if u.Total <= 0 {
		return
	}
	s.AddUsage(u.Total)
	res.Usage += u.Total
	c.inst.usage.Add(ctx, int64(u.Total))
}

type activeCall struct {
	agent string
	start time.Time
	span  trace.Span
}

func (c *Coordinator) startCall(ctx context.Context, agent string) (context.Context, activeCall) {
	ctx, span := c.tracer.Start(ctx, "Coordinator."+agent, trace.WithAttributes(attribute.String("agent", agent)))
	return ctx, activeCall{agent: agent, start: time.Now(), span: span}
}

// observe ends the call's span and records its duration and usage.
func (c *Coordinator) observe(ctx context.Context, tlog *aichef.TurnLog, call activeCall, u aichef.Usage, size int, err error) {
	d := time.Since(call.start)
	c.inst.completion.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("agent", call.agent)))

	call.span.SetAttributes(attribute.Int("usage.total", u.Total), attribute.Int("output.size", size))
	if err != nil {
		call.span.SetStatus(codes.Error, "completion failed")
		call.span.RecordError(err)
	}
	call.span.End()

	entry := aichef.CallLog{Agent: call.agent, Usage: u, Duration: d, OutputSize: size}
	if err != nil {
		entry.Error = err.Error()
	}
	tlog.Calls = append(tlog.Calls, entry)
}

func (c *Coordinator) share(ctx context.Context, s *kitchen.Session, res TurnResult) {
	if c.notifier == nil {
		return
	}
	msg := slack.FormatProposals(s.ID(), res.Reply, res.Critique)
	if err := c.notifier.PostMessage(ctx, c.channel, msg); err != nil {
		slog.Warn("COORDINATOR: Failed to share proposals", "session_id", s.ID(), "error", err)
	}
}

func (c *Coordinator) logTurn(tlog aichef.TurnLog) {
	if err := c.logger.LogTurn(tlog); err != nil {
		slog.Warn("COORDINATOR: Failed to log turn", "error", err)
	}
}

func phaseNames(phases []Phase) []string {
	names := make([]string, len(phases))
	for i, p := range phases {
		names[i] = p.String()
	}
	return names
}

// UserMessage renders err as the text shown to the user in place of a reply.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, aichef.ErrBudgetExceeded):
		return "The usage limit for this session has been reached. Reset the session to start over."
	case errors.Is(err, aichef.ErrMissingCredential):
		return "Please enter your API key before sending a message."
	case errors.Is(err, ErrEmptyMessage):
		return "Tell me what you have in the pantry."
	case aichef.IsRateLimit(err):
		return "The service is rate limiting requests. Wait a moment and try again."
	default:
		return "Error: " + err.Error()
	}
}
