package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Exercise struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	MuscleGroup       string    `json:"muscle_group"`
	Equipment         string    `json:"equipment,omitempty"`
	Instructions      string    `json:"instructions,omitempty"`
	Contraindications []string  `json:"contraindications,omitempty"`
}

// ContraindicatedFor reports whether the exercise should be avoided when the
// user reports pain at location.
func (e *Exercise) ContraindicatedFor(location string) bool {
	if location == "" {
		return false
	}
	for _, c := range e.Contraindications {
		if equalFold(c, location) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// PlanExercise is one row of a weekly plan. Its ID is what the model passes
// to replace_exercise.
type PlanExercise struct {
	ID         uuid.UUID       `json:"plan_exercise_id"`
	PlanID     uuid.UUID       `json:"-"`
	OwnerID    uuid.UUID       `json:"-"`
	DayOfWeek  int             `json:"day_of_week"`
	Position   int             `json:"position"`
	Exercise   Exercise        `json:"exercise"`
	Sets       int             `json:"sets"`
	Reps       string          `json:"reps"`
	LoadKg     decimal.Decimal `json:"load_kg"`
	RestSecond int             `json:"rest_seconds"`
}

type WeeklyPlan struct {
	ID        uuid.UUID      `json:"plan_id"`
	UserID    uuid.UUID      `json:"-"`
	Title     string         `json:"title"`
	Exercises []PlanExercise `json:"exercises"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// SubstituteQuery selects replacement candidates for an exercise.
type SubstituteQuery struct {
	MuscleGroup  string
	ExcludeID    uuid.UUID
	PainLocation string
	Limit        int
}
