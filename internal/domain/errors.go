package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrUserNotFound        = fmt.Errorf("user %w", ErrNotFound)
	ErrPlanNotFound        = fmt.Errorf("plan %w", ErrNotFound)
	ErrExerciseNotFound    = fmt.Errorf("exercise %w", ErrNotFound)
	ErrCooldown            = errors.New("request too soon")
	ErrBusy                = errors.New("active request exists")
	ErrEmptyMessage        = errors.New("empty message")
	ErrUnknownTool         = errors.New("unknown tool")
	ErrInvalidArguments    = errors.New("invalid tool arguments")
	ErrRateLimited         = errors.New("rate limited by llm provider")
	ErrUpstreamUnavailable = errors.New("llm provider unavailable")
)
