// Package coach runs one conversational exchange: cooldown gate, prompt
// assembly, the bounded model/tool loop, pacing and persistence.
package coach

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/fitcoach/internal/config"
	"github.com/set-night/fitcoach/internal/domain"
	"github.com/set-night/fitcoach/internal/service"
	"github.com/set-night/fitcoach/internal/tools"
)

type Model interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error)
}

type ToolExecutor interface {
	Describe() []domain.ToolDefinition
	Execute(ctx context.Context, call domain.ToolCall, h tools.Handle) domain.ToolExecutionResult
}

type History interface {
	Load(ctx context.Context, userID uuid.UUID) ([]domain.Turn, error)
	Save(ctx context.Context, userID uuid.UUID, turns []domain.Turn) error
	Reset(ctx context.Context, userID uuid.UUID) error
}

type Pacer interface {
	Segment(text string) []domain.PacedMessageSegment
}

type Deps struct {
	Model   Model
	Tools   ToolExecutor
	Gateway tools.Gateway
	History History
	Pacer   Pacer
	// Now defaults to time.Now.
	Now func() time.Time
}

type Options struct {
	Cooldown       time.Duration
	MaxIterations  int
	HistoryLimit   int
	LLMTimeout     time.Duration
	LLMRetries     int
	RetryBackoff   time.Duration
	BackendTimeout time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Cooldown:       cfg.Cooldown,
		MaxIterations:  cfg.MaxToolIterations,
		HistoryLimit:   cfg.HistoryLimit,
		LLMTimeout:     cfg.LLMTimeout,
		LLMRetries:     cfg.LLMRetries,
		RetryBackoff:   config.RetryBackoff,
		BackendTimeout: cfg.BackendTimeout,
	}
}

type Outcome string

const (
	OutcomeAnswered        Outcome = "answered"
	OutcomeFallbackSuccess Outcome = "fallback_success"
	OutcomeFallbackApology Outcome = "fallback_apology"
	OutcomeUpstreamFailure Outcome = "upstream_failure"
)

// Reply is what the presentation layer delivers. Persisted is the
// "history saved" acknowledgement.
type Reply struct {
	Text       string
	Segments   []domain.PacedMessageSegment
	Turns      []domain.Turn
	Outcome    Outcome
	Iterations int
	Persisted  bool
	Usage      domain.Usage
}

type Orchestrator struct {
	deps Deps
	opts Options
	gate *gate
}

func New(deps Deps, opts Options) *Orchestrator {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 5
	}
	return &Orchestrator{deps: deps, opts: opts, gate: newGate(opts.Cooldown)}
}

// Handle processes one user message. It returns ErrEmptyMessage, ErrBusy
// or a *CooldownError when the message is not accepted; every failure
// after acceptance is turned into a reply.
func (o *Orchestrator) Handle(ctx context.Context, userID uuid.UUID, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyMessage
	}

	release, err := o.gate.acquire(userID, o.deps.Now())
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()

	history, err := o.deps.History.Load(ctx, userID)
	if err != nil {
		slog.Error("load history", "user_id", userID, "error", err)
		history = nil
	}

	stamp := newStamper(o.deps.Now, lastTimestamp(history))
	userTurn := domain.Turn{Role: domain.RoleUser, Content: text, CreatedAt: stamp.next()}

	ex := &exchange{
		userID:   userID,
		messages: append(replayable(history, o.opts.HistoryLimit), userTurn),
		turns:    []domain.Turn{userTurn},
		stamp:    stamp,
	}
	req := domain.CompletionRequest{
		System:     systemPrompt(o.profile(ctx, userID), o.deps.Now()),
		Tools:      o.deps.Tools.Describe(),
		ToolChoice: domain.ToolChoiceAuto,
	}

	answer, outcome := o.loop(ctx, ex, req)

	reply := &Reply{Text: answer, Outcome: outcome, Iterations: ex.iterations, Usage: ex.usage}
	if outcome != OutcomeUpstreamFailure {
		ex.turns = append(ex.turns, domain.Turn{
			Role:      domain.RoleAssistant,
			Content:   answer,
			CreatedAt: stamp.next(),
		})
	}
	reply.Segments = o.deps.Pacer.Segment(answer)
	reply.Turns = ex.turns

	if err := o.deps.History.Save(ctx, userID, ex.turns); err != nil {
		slog.Error("save history", "user_id", userID, "turns", len(ex.turns), "error", err)
	} else {
		reply.Persisted = true
	}

	slog.Info("turn completed",
		"user_id", userID,
		"outcome", outcome,
		"iterations", ex.iterations,
		"turns", len(ex.turns),
		"persisted", reply.Persisted,
		"prompt_tokens", ex.usage.PromptTokens,
		"completion_tokens", ex.usage.CompletionTokens,
		"duration", time.Since(start),
	)
	return reply, nil
}

// Reset clears the conversation. It is refused while a message is being
// processed for the same user.
func (o *Orchestrator) Reset(ctx context.Context, userID uuid.UUID) error {
	release, err := o.gate.exclusive(userID)
	if err != nil {
		return err
	}
	defer release()
	return o.deps.History.Reset(ctx, userID)
}

// exchange is the working state of one accepted message.
type exchange struct {
	userID     uuid.UUID
	messages   []domain.Turn
	turns      []domain.Turn
	stamp      *stamper
	iterations int
	last       *domain.ToolExecutionResult
	usage      domain.Usage
}

func (ex *exchange) add(t domain.Turn) {
	ex.messages = append(ex.messages, t)
	ex.turns = append(ex.turns, t)
}

func (o *Orchestrator) loop(ctx context.Context, ex *exchange, req domain.CompletionRequest) (string, Outcome) {
	for ex.iterations < o.opts.MaxIterations {
		ex.iterations++
		req.Messages = ex.messages

		completion, err := o.complete(ctx, req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				slog.Warn("llm call timed out", "user_id", ex.userID, "iteration", ex.iterations)
				continue
			}
			slog.Error("llm call failed", "user_id", ex.userID, "iteration", ex.iterations, "error", err)
			return config.UpstreamApology, OutcomeUpstreamFailure
		}

		ex.usage.PromptTokens += completion.Usage.PromptTokens
		ex.usage.CompletionTokens += completion.Usage.CompletionTokens

		if !completion.WantsTools() {
			if completion.Content == "" {
				slog.Warn("llm returned an empty answer", "user_id", ex.userID, "iteration", ex.iterations)
				return o.fallback(ex.last)
			}
			return completion.Content, OutcomeAnswered
		}

		ex.add(domain.Turn{
			Role:      domain.RoleAssistant,
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
			CreatedAt: ex.stamp.next(),
		})
		for _, call := range completion.ToolCalls {
			result := o.deps.Tools.Execute(ctx, call, tools.Handle{UserID: ex.userID, Gateway: o.deps.Gateway})
			ex.add(domain.Turn{
				Role:       domain.RoleTool,
				Content:    result.Content(),
				ToolCallID: call.ID,
				ToolName:   call.Name,
				CreatedAt:  ex.stamp.next(),
			})
			ex.last = &result
		}
	}

	slog.Warn("tool iteration cap reached", "user_id", ex.userID, "iterations", ex.iterations)
	return o.fallback(ex.last)
}

// fallback reports success only when the last executed tool call was a
// successful mutation.
func (o *Orchestrator) fallback(last *domain.ToolExecutionResult) (string, Outcome) {
	if last != nil && last.Success && last.Mutating {
		return config.FallbackSuccess, OutcomeFallbackSuccess
	}
	return config.FallbackApology, OutcomeFallbackApology
}

// complete calls the model with a per-call timeout, retrying transient
// failures. A timeout is returned as is and never retried here.
func (o *Orchestrator) complete(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
	for attempt := 0; ; attempt++ {
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if o.opts.LLMTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, o.opts.LLMTimeout)
		}
		completion, err := o.deps.Model.Complete(callCtx, req)
		timedOut := callCtx.Err() == context.DeadlineExceeded
		cancel()

		if err == nil {
			return completion, nil
		}
		if timedOut && !errors.Is(err, context.DeadlineExceeded) {
			err = errors.Join(err, context.DeadlineExceeded)
		}
		if errors.Is(err, context.DeadlineExceeded) || attempt >= o.opts.LLMRetries || !service.IsTransient(err) {
			return nil, err
		}

		slog.Warn("retrying llm call", "attempt", attempt+1, "error", err)
		if o.opts.RetryBackoff > 0 {
			timer := time.NewTimer(o.opts.RetryBackoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}
}

func (o *Orchestrator) profile(ctx context.Context, userID uuid.UUID) *domain.Profile {
	if o.deps.Gateway == nil {
		return nil
	}
	pctx, cancel := ctx, context.CancelFunc(func() {})
	if o.opts.BackendTimeout > 0 {
		pctx, cancel = context.WithTimeout(ctx, o.opts.BackendTimeout)
	}
	defer cancel()

	p, err := o.deps.Gateway.GetProfile(pctx, userID)
	if err != nil {
		slog.Warn("profile unavailable for prompt", "user_id", userID, "error", err)
		return nil
	}
	return p
}

// replayable keeps the history worth sending back to the model: user and
// assistant text only, without tool chatter, limited to the most recent
// limit turns. A limit of 0 keeps everything.
func replayable(history []domain.Turn, limit int) []domain.Turn {
	out := make([]domain.Turn, 0, len(history)+1)
	for _, t := range history {
		switch t.Role {
		case domain.RoleUser:
		case domain.RoleAssistant:
			if t.Content == "" {
				continue
			}
			t.ToolCalls = nil
		default:
			continue
		}
		out = append(out, t)
	}
	if limit > 0 && len(out) > limit {
		out = append(out[:0:0], out[len(out)-limit:]...)
	}
	return out
}

func lastTimestamp(history []domain.Turn) time.Time {
	if len(history) == 0 {
		return time.Time{}
	}
	return history[len(history)-1].CreatedAt
}

// stamper hands out strictly increasing timestamps at the precision the
// store keeps.
type stamper struct {
	now  func() time.Time
	last time.Time
}

func newStamper(now func() time.Time, last time.Time) *stamper {
	return &stamper{now: now, last: last}
}

func (s *stamper) next() time.Time {
	t := s.now().UTC().Truncate(time.Microsecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}
