package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/set-night/fitcoach/internal/domain"
)

// Gateway is the Postgres-backed Backend Data Gateway.
type Gateway struct {
	db *pgxpool.Pool
}

func NewGateway(db *pgxpool.Pool) *Gateway {
	return &Gateway{db: db}
}

func (g *Gateway) Ping(ctx context.Context) error {
	return g.db.Ping(ctx)
}

const profileColumns = `id, telegram_id, first_name, goal, experience_level, training_days, limitations, created_at, updated_at`

func (g *Gateway) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	row := g.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM users WHERE id = $1`, userID)
	return scanProfile(row)
}

func (g *Gateway) GetProfileByTelegramID(ctx context.Context, telegramID int64) (*domain.Profile, error) {
	row := g.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM users WHERE telegram_id = $1`, telegramID)
	return scanProfile(row)
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var (
		p          domain.Profile
		telegramID *int64
	)
	err := row.Scan(&p.ID, &telegramID, &p.FirstName, &p.Goal, &p.ExperienceLevel,
		&p.TrainingDays, &p.Limitations, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if telegramID != nil {
		p.TelegramID = *telegramID
	}
	return &p, nil
}

const exerciseColumns = `e.id, e.name, e.muscle_group, e.equipment, e.instructions_html, e.contraindications`

func scanExercise(row pgx.Row, e *domain.Exercise) error {
	var html string
	if err := row.Scan(&e.ID, &e.Name, &e.MuscleGroup, &e.Equipment, &html, &e.Contraindications); err != nil {
		return err
	}
	e.Instructions = instructionsText(html)
	return nil
}

func (g *Gateway) GetWeeklyPlan(ctx context.Context, userID uuid.UUID) (*domain.WeeklyPlan, error) {
	var plan domain.WeeklyPlan
	err := g.db.QueryRow(ctx, `
		SELECT id, user_id, title, updated_at
		FROM weekly_plans
		WHERE user_id = $1 AND is_active
		ORDER BY updated_at DESC
		LIMIT 1`, userID).Scan(&plan.ID, &plan.UserID, &plan.Title, &plan.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPlanNotFound
		}
		return nil, fmt.Errorf("get weekly plan: %w", err)
	}

	rows, err := g.db.Query(ctx, `
		SELECT pe.id, pe.day_of_week, pe.position, pe.sets, pe.reps, pe.load_kg, pe.rest_seconds,
		       `+exerciseColumns+`
		FROM plan_exercises pe
		JOIN exercises e ON e.id = pe.exercise_id
		WHERE pe.plan_id = $1
		ORDER BY pe.day_of_week, pe.position`, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("list plan exercises: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		pe := domain.PlanExercise{PlanID: plan.ID, OwnerID: plan.UserID}
		var html string
		if err := rows.Scan(&pe.ID, &pe.DayOfWeek, &pe.Position, &pe.Sets, &pe.Reps, &pe.LoadKg, &pe.RestSecond,
			&pe.Exercise.ID, &pe.Exercise.Name, &pe.Exercise.MuscleGroup, &pe.Exercise.Equipment, &html,
			&pe.Exercise.Contraindications); err != nil {
			return nil, fmt.Errorf("scan plan exercise: %w", err)
		}
		pe.Exercise.Instructions = instructionsText(html)
		plan.Exercises = append(plan.Exercises, pe)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plan exercises: %w", err)
	}
	return &plan, nil
}

func (g *Gateway) GetPlanExercise(ctx context.Context, planExerciseID uuid.UUID) (*domain.PlanExercise, error) {
	pe := domain.PlanExercise{}
	var html string
	err := g.db.QueryRow(ctx, `
		SELECT pe.id, pe.plan_id, wp.user_id, pe.day_of_week, pe.position, pe.sets, pe.reps, pe.load_kg, pe.rest_seconds,
		       `+exerciseColumns+`
		FROM plan_exercises pe
		JOIN weekly_plans wp ON wp.id = pe.plan_id
		JOIN exercises e ON e.id = pe.exercise_id
		WHERE pe.id = $1`, planExerciseID).Scan(
		&pe.ID, &pe.PlanID, &pe.OwnerID, &pe.DayOfWeek, &pe.Position, &pe.Sets, &pe.Reps, &pe.LoadKg, &pe.RestSecond,
		&pe.Exercise.ID, &pe.Exercise.Name, &pe.Exercise.MuscleGroup, &pe.Exercise.Equipment, &html,
		&pe.Exercise.Contraindications)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPlanNotFound
		}
		return nil, fmt.Errorf("get plan exercise: %w", err)
	}
	pe.Exercise.Instructions = instructionsText(html)
	return &pe, nil
}

func (g *Gateway) GetExercise(ctx context.Context, id uuid.UUID) (*domain.Exercise, error) {
	var e domain.Exercise
	row := g.db.QueryRow(ctx, `SELECT `+exerciseColumns+` FROM exercises e WHERE e.id = $1`, id)
	if err := scanExercise(row, &e); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrExerciseNotFound
		}
		return nil, fmt.Errorf("get exercise: %w", err)
	}
	return &e, nil
}

// FindExerciseByName resolves a free-form name to the closest catalogue
// entry: exact match first, then the shortest name containing the query.
func (g *Gateway) FindExerciseByName(ctx context.Context, name string) (*domain.Exercise, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrExerciseNotFound
	}
	var e domain.Exercise
	row := g.db.QueryRow(ctx, `
		SELECT `+exerciseColumns+`
		FROM exercises e
		WHERE e.name ILIKE '%' || $1 || '%' OR $1 ILIKE '%' || e.name || '%'
		ORDER BY lower(e.name) = lower($1) DESC, length(e.name)
		LIMIT 1`, name)
	if err := scanExercise(row, &e); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrExerciseNotFound
		}
		return nil, fmt.Errorf("find exercise by name: %w", err)
	}
	return &e, nil
}

func (g *Gateway) FindSubstitutes(ctx context.Context, q domain.SubstituteQuery) ([]domain.Exercise, error) {
	rows, err := g.db.Query(ctx, `
		SELECT `+exerciseColumns+`
		FROM exercises e
		WHERE lower(e.muscle_group) = lower($1)
		  AND e.id <> $2
		  AND NOT ($3 <> '' AND EXISTS (
		      SELECT 1 FROM unnest(e.contraindications) c WHERE lower(c) = lower($3)))
		ORDER BY e.name
		LIMIT $4`, q.MuscleGroup, q.ExcludeID, strings.TrimSpace(q.PainLocation), q.Limit)
	if err != nil {
		return nil, fmt.Errorf("find substitutes: %w", err)
	}
	defer rows.Close()

	var out []domain.Exercise
	for rows.Next() {
		var e domain.Exercise
		if err := scanExercise(rows, &e); err != nil {
			return nil, fmt.Errorf("scan substitute: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate substitutes: %w", err)
	}
	return out, nil
}

func (g *Gateway) ReplacePlanExercise(ctx context.Context, planExerciseID, exerciseID uuid.UUID) error {
	return pgx.BeginFunc(ctx, g.db, func(tx pgx.Tx) error {
		var planID uuid.UUID
		err := tx.QueryRow(ctx, `
			UPDATE plan_exercises SET exercise_id = $2 WHERE id = $1
			RETURNING plan_id`, planExerciseID, exerciseID).Scan(&planID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrPlanNotFound
			}
			return fmt.Errorf("replace plan exercise: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE weekly_plans SET updated_at = NOW() WHERE id = $1`, planID); err != nil {
			return fmt.Errorf("touch weekly plan: %w", err)
		}
		return nil
	})
}
