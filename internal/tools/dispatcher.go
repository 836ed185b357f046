package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/fitcoach/internal/domain"
)

// Gateway is the slice of the Backend Data Gateway the tools need.
type Gateway interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
	GetWeeklyPlan(ctx context.Context, userID uuid.UUID) (*domain.WeeklyPlan, error)
	GetExercise(ctx context.Context, id uuid.UUID) (*domain.Exercise, error)
	FindExerciseByName(ctx context.Context, name string) (*domain.Exercise, error)
	FindSubstitutes(ctx context.Context, q domain.SubstituteQuery) ([]domain.Exercise, error)
	GetPlanExercise(ctx context.Context, planExerciseID uuid.UUID) (*domain.PlanExercise, error)
	ReplacePlanExercise(ctx context.Context, planExerciseID, exerciseID uuid.UUID) error
}

// Handle is the backend context a tool runs in: whose data, through what.
type Handle struct {
	UserID  uuid.UUID
	Gateway Gateway
}

type Dispatcher struct {
	registry *Registry
	timeout  time.Duration
}

func NewDispatcher(registry *Registry, timeout time.Duration) *Dispatcher {
	return &Dispatcher{registry: registry, timeout: timeout}
}

// Execute runs one tool call. It never returns an error: every failure is
// reported inside the result so the model always gets a tool response.
func (d *Dispatcher) Execute(ctx context.Context, call domain.ToolCall, h Handle) (result domain.ToolExecutionResult) {
	result = domain.ToolExecutionResult{CallID: call.ID, Tool: call.Name}
	start := time.Now()

	binding, ok := d.registry.lookup(call.Name)
	if !ok {
		result.Error = fmt.Sprintf("%v: %q is not an available tool", domain.ErrUnknownTool, call.Name)
		slog.Warn("tool call rejected", "tool", call.Name, "call_id", call.ID, "reason", "unknown tool")
		return result
	}
	result.Mutating = binding.def.Mutating

	args, err := normalizeArgs(binding.def, call.Arguments)
	if err != nil {
		result.Error = err.Error()
		slog.Warn("tool call rejected", "tool", call.Name, "call_id", call.ID, "reason", err)
		return result
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic recovered in tool", "tool", call.Name, "panic", r)
			result.Success = false
			result.Data = nil
			result.Error = "internal error while running tool"
		}
	}()

	toolCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		toolCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	data, err := binding.exec(toolCtx, h, args)
	if err != nil {
		result.Error = describeError(err)
		slog.Warn("tool call failed",
			"tool", call.Name,
			"call_id", call.ID,
			"user_id", h.UserID,
			"error", err,
			"duration", time.Since(start),
		)
		return result
	}

	result.Success = true
	result.Data = data
	slog.Debug("tool call completed", "tool", call.Name, "call_id", call.ID, "duration", time.Since(start))
	return result
}

func describeError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "backend timeout: the data store did not answer in time, try again"
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	case errors.Is(err, domain.ErrInvalidArguments),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrForbidden):
		return err.Error()
	default:
		return "backend error: " + err.Error()
	}
}

// Describe exposes the registry catalogue so callers can advertise it.
func (d *Dispatcher) Describe() []domain.ToolDefinition {
	return d.registry.Describe()
}
