package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/set-night/fitcoach/internal/config"
	"github.com/set-night/fitcoach/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	GetUserProfile     = "get_user_profile"
	GetWeeklyPlan      = "get_weekly_plan"
	GetExerciseDetails = "get_exercise_details"
	FindSubstitutes    = "find_substitutes"
	ReplaceExercise    = "replace_exercise"
)

// NewDefaultRegistry builds the trainer's tool catalogue.
func NewDefaultRegistry() (*Registry, error) {
	return NewRegistry(
		Bind(domain.ToolDefinition{
			Name:        GetUserProfile,
			Description: "Returns the user's training profile: name, goal, experience level, weekly training days and known injuries or limitations.",
		}, getUserProfile),
		Bind(domain.ToolDefinition{
			Name:        GetWeeklyPlan,
			Description: "Returns the user's active weekly workout plan with every exercise row. Each row has a plan_exercise_id used to change it.",
		}, getWeeklyPlan),
		Bind(domain.ToolDefinition{
			Name:        GetExerciseDetails,
			Description: "Returns catalogue details for one exercise, looked up either by exercise_id or by (approximate) name. Pass exactly one of them.",
			Params: map[string]domain.ParamSpec{
				"exercise_id": {Type: domain.ParamString, Format: domain.FormatUUID, Description: "Catalogue exercise id"},
				"name":        {Type: domain.ParamString, Description: "Exercise name, e.g. \"Rosca Direta\""},
			},
		}, getExerciseDetails),
		Bind(domain.ToolDefinition{
			Name:        FindSubstitutes,
			Description: "Finds exercises that work the same muscle group as exercise_id and can replace it, skipping exercises contraindicated for the reported pain location.",
			Params: map[string]domain.ParamSpec{
				"exercise_id":   {Type: domain.ParamString, Format: domain.FormatUUID, Required: true, Description: "Catalogue id of the exercise to replace"},
				"pain_location": {Type: domain.ParamString, Description: "Body part where the user feels pain, e.g. \"cotovelo\""},
				"limit":         {Type: domain.ParamInteger, Default: config.DefaultSubstituteLimit, Description: "How many candidates to return"},
			},
		}, findSubstitutes),
		Bind(domain.ToolDefinition{
			Name:        ReplaceExercise,
			Description: "Replaces the exercise of one row of the user's plan. Identify the row by plan_exercise_id and the replacement by new_exercise_id or new_exercise_name (exactly one).",
			Params: map[string]domain.ParamSpec{
				"plan_exercise_id":  {Type: domain.ParamString, Format: domain.FormatUUID, Required: true, Description: "Row id from get_weekly_plan"},
				"new_exercise_id":   {Type: domain.ParamString, Format: domain.FormatUUID, Description: "Catalogue id of the replacement"},
				"new_exercise_name": {Type: domain.ParamString, Description: "Name of the replacement exercise"},
			},
			Mutating: true,
		}, replaceExercise),
	)
}

type noArgs struct{}

func (noArgs) Validate() error { return nil }

func getUserProfile(ctx context.Context, h Handle, _ noArgs) (any, error) {
	p, err := h.Gateway.GetProfile(ctx, h.UserID)
	if err != nil {
		return nil, err
	}
	limitations := p.Limitations
	if limitations == nil {
		limitations = []string{}
	}
	return map[string]any{
		"first_name":       p.FirstName,
		"goal":             p.Goal,
		"experience_level": p.ExperienceLevel,
		"training_days":    p.TrainingDays,
		"limitations":      limitations,
	}, nil
}

type planRow struct {
	PlanExerciseID uuid.UUID       `json:"plan_exercise_id"`
	ExerciseID     uuid.UUID       `json:"exercise_id"`
	Name           string          `json:"name"`
	MuscleGroup    string          `json:"muscle_group"`
	Sets           int             `json:"sets"`
	Reps           string          `json:"reps"`
	LoadKg         decimal.Decimal `json:"load_kg"`
	RestSeconds    int             `json:"rest_seconds"`
}

type planDay struct {
	DayOfWeek int       `json:"day_of_week"`
	Exercises []planRow `json:"exercises"`
}

func getWeeklyPlan(ctx context.Context, h Handle, _ noArgs) (any, error) {
	plan, err := h.Gateway.GetWeeklyPlan(ctx, h.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrPlanNotFound) {
			return nil, fmt.Errorf("the user has no active weekly plan: %w", err)
		}
		return nil, err
	}

	var days []planDay
	for _, pe := range plan.Exercises {
		if len(days) == 0 || days[len(days)-1].DayOfWeek != pe.DayOfWeek {
			days = append(days, planDay{DayOfWeek: pe.DayOfWeek})
		}
		day := &days[len(days)-1]
		day.Exercises = append(day.Exercises, planRow{
			PlanExerciseID: pe.ID,
			ExerciseID:     pe.Exercise.ID,
			Name:           pe.Exercise.Name,
			MuscleGroup:    pe.Exercise.MuscleGroup,
			Sets:           pe.Sets,
			Reps:           pe.Reps,
			LoadKg:         pe.LoadKg,
			RestSeconds:    pe.RestSecond,
		})
	}
	if days == nil {
		days = []planDay{}
	}
	return map[string]any{
		"plan_id": plan.ID,
		"title":   plan.Title,
		"days":    days,
	}, nil
}

type exerciseDetailsArgs struct {
	ExerciseID *uuid.UUID `json:"exercise_id"`
	Name       string     `json:"name"`
}

func (a exerciseDetailsArgs) Validate() error {
	hasName := strings.TrimSpace(a.Name) != ""
	if (a.ExerciseID == nil) == !hasName {
		return errors.New("pass exactly one of exercise_id or name")
	}
	return nil
}

func getExerciseDetails(ctx context.Context, h Handle, args exerciseDetailsArgs) (any, error) {
	ex, err := resolveExercise(ctx, h.Gateway, args.ExerciseID, args.Name)
	if err != nil {
		return nil, err
	}
	return ex, nil
}

type findSubstitutesArgs struct {
	ExerciseID   uuid.UUID `json:"exercise_id"`
	PainLocation string    `json:"pain_location"`
	Limit        int       `json:"limit"`
}

func (a findSubstitutesArgs) Validate() error {
	if a.Limit < 0 {
		return errors.New("limit must not be negative")
	}
	return nil
}

type candidate struct {
	ExerciseID  uuid.UUID `json:"exercise_id"`
	Name        string    `json:"name"`
	MuscleGroup string    `json:"muscle_group"`
	Equipment   string    `json:"equipment,omitempty"`
}

func findSubstitutes(ctx context.Context, h Handle, args findSubstitutesArgs) (any, error) {
	original, err := h.Gateway.GetExercise(ctx, args.ExerciseID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("exercise %s does not exist: %w", args.ExerciseID, err)
		}
		return nil, err
	}

	limit := min(max(args.Limit, 1), config.MaxSubstituteLimit)
	found, err := h.Gateway.FindSubstitutes(ctx, domain.SubstituteQuery{
		MuscleGroup:  original.MuscleGroup,
		ExcludeID:    original.ID,
		PainLocation: strings.TrimSpace(args.PainLocation),
		Limit:        limit,
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]candidate, 0, len(found))
	for _, ex := range found {
		if ex.ID == original.ID || ex.ContraindicatedFor(args.PainLocation) {
			continue
		}
		candidates = append(candidates, candidate{
			ExerciseID:  ex.ID,
			Name:        ex.Name,
			MuscleGroup: ex.MuscleGroup,
			Equipment:   ex.Equipment,
		})
		if len(candidates) == limit {
			break
		}
	}
	return map[string]any{
		"original":   candidate{ExerciseID: original.ID, Name: original.Name, MuscleGroup: original.MuscleGroup, Equipment: original.Equipment},
		"candidates": candidates,
	}, nil
}

type replaceExerciseArgs struct {
	PlanExerciseID  uuid.UUID  `json:"plan_exercise_id"`
	NewExerciseID   *uuid.UUID `json:"new_exercise_id"`
	NewExerciseName string     `json:"new_exercise_name"`
}

func (a replaceExerciseArgs) Validate() error {
	hasName := strings.TrimSpace(a.NewExerciseName) != ""
	if (a.NewExerciseID == nil) == !hasName {
		return errors.New("pass exactly one of new_exercise_id or new_exercise_name")
	}
	return nil
}

func replaceExercise(ctx context.Context, h Handle, args replaceExerciseArgs) (any, error) {
	row, err := h.Gateway.GetPlanExercise(ctx, args.PlanExerciseID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("plan exercise %s does not exist: %w", args.PlanExerciseID, err)
		}
		return nil, err
	}
	if row.OwnerID != h.UserID {
		return nil, fmt.Errorf("plan exercise %s does not belong to this user: %w", args.PlanExerciseID, domain.ErrForbidden)
	}

	replacement, err := resolveExercise(ctx, h.Gateway, args.NewExerciseID, args.NewExerciseName)
	if err != nil {
		return nil, err
	}

	result := map[string]any{
		"plan_exercise_id": row.ID,
		"day_of_week":      row.DayOfWeek,
		"previous":         candidate{ExerciseID: row.Exercise.ID, Name: row.Exercise.Name, MuscleGroup: row.Exercise.MuscleGroup},
		"current":          candidate{ExerciseID: replacement.ID, Name: replacement.Name, MuscleGroup: replacement.MuscleGroup},
	}
	// A retried call finds the row already updated; report success without writing.
	if replacement.ID == row.Exercise.ID {
		result["replaced"] = false
		result["already_in_plan"] = true
		return result, nil
	}

	if err := h.Gateway.ReplacePlanExercise(ctx, row.ID, replacement.ID); err != nil {
		return nil, err
	}
	result["replaced"] = true
	return result, nil
}

func resolveExercise(ctx context.Context, gw Gateway, id *uuid.UUID, name string) (*domain.Exercise, error) {
	if id != nil {
		ex, err := gw.GetExercise(ctx, *id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("exercise %s is not in the catalogue: %w", *id, err)
			}
			return nil, err
		}
		return ex, nil
	}
	ex, err := gw.FindExerciseByName(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("no catalogue exercise matches %q: %w", name, err)
		}
		return nil, err
	}
	return ex, nil
}
