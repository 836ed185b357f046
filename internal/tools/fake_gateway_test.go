package tools

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/set-night/fitcoach/internal/domain"
)

// fakeGateway is an in-memory Gateway that counts every backend call.
type fakeGateway struct {
	mu        sync.Mutex
	calls     int
	profiles  map[uuid.UUID]*domain.Profile
	plans     map[uuid.UUID]*domain.WeeklyPlan
	exercises []domain.Exercise
	replaced  map[uuid.UUID]uuid.UUID
	block     bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		profiles: map[uuid.UUID]*domain.Profile{},
		plans:    map[uuid.UUID]*domain.WeeklyPlan{},
		replaced: map[uuid.UUID]uuid.UUID{},
	}
}

func (f *fakeGateway) hit(ctx context.Context) error {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeGateway) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	if err := f.hit(ctx); err != nil {
		return nil, err
	}
	p, ok := f.profiles[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return p, nil
}

func (f *fakeGateway) GetWeeklyPlan(ctx context.Context, userID uuid.UUID) (*domain.WeeklyPlan, error) {
	if err := f.hit(ctx); err != nil {
		return nil, err
	}
	p, ok := f.plans[userID]
	if !ok {
		return nil, domain.ErrPlanNotFound
	}
	return p, nil
}

func (f *fakeGateway) GetExercise(ctx context.Context, id uuid.UUID) (*domain.Exercise, error) {
	if err := f.hit(ctx); err != nil {
		return nil, err
	}
	for i := range f.exercises {
		if f.exercises[i].ID == id {
			ex := f.exercises[i]
			return &ex, nil
		}
	}
	return nil, domain.ErrExerciseNotFound
}

func (f *fakeGateway) FindExerciseByName(ctx context.Context, name string) (*domain.Exercise, error) {
	if err := f.hit(ctx); err != nil {
		return nil, err
	}
	for i := range f.exercises {
		if strings.Contains(strings.ToLower(f.exercises[i].Name), strings.ToLower(name)) {
			ex := f.exercises[i]
			return &ex, nil
		}
	}
	return nil, domain.ErrExerciseNotFound
}

func (f *fakeGateway) FindSubstitutes(ctx context.Context, q domain.SubstituteQuery) ([]domain.Exercise, error) {
	if err := f.hit(ctx); err != nil {
		return nil, err
	}
	var out []domain.Exercise
	for _, ex := range f.exercises {
		if ex.MuscleGroup != q.MuscleGroup || ex.ID == q.ExcludeID || ex.ContraindicatedFor(q.PainLocation) {
			continue
		}
		out = append(out, ex)
		if len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeGateway) GetPlanExercise(ctx context.Context, id uuid.UUID) (*domain.PlanExercise, error) {
	if err := f.hit(ctx); err != nil {
		return nil, err
	}
	for _, plan := range f.plans {
		for _, pe := range plan.Exercises {
			if pe.ID == id {
				pe.OwnerID = plan.UserID
				return &pe, nil
			}
		}
	}
	return nil, domain.ErrPlanNotFound
}

func (f *fakeGateway) ReplacePlanExercise(ctx context.Context, planExerciseID, exerciseID uuid.UUID) error {
	if err := f.hit(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaced[planExerciseID] = exerciseID
	return nil
}

type fixture struct {
	gw         *fakeGateway
	userID     uuid.UUID
	otherID    uuid.UUID
	curl       domain.Exercise
	hammer     domain.Exercise
	cable      domain.Exercise
	concentr   domain.Exercise
	preacher   domain.Exercise
	squat      domain.Exercise
	curlRow    uuid.UUID
	foreignRow uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{
		gw:         newFakeGateway(),
		userID:     uuid.New(),
		otherID:    uuid.New(),
		curl:       domain.Exercise{ID: uuid.New(), Name: "Rosca Direta", MuscleGroup: "biceps", Contraindications: []string{"cotovelo"}},
		hammer:     domain.Exercise{ID: uuid.New(), Name: "Rosca Martelo", MuscleGroup: "biceps"},
		cable:      domain.Exercise{ID: uuid.New(), Name: "Rosca no Cabo", MuscleGroup: "biceps"},
		concentr:   domain.Exercise{ID: uuid.New(), Name: "Rosca Concentrada", MuscleGroup: "biceps"},
		preacher:   domain.Exercise{ID: uuid.New(), Name: "Rosca Scott", MuscleGroup: "biceps", Contraindications: []string{"Cotovelo"}},
		squat:      domain.Exercise{ID: uuid.New(), Name: "Agachamento Livre", MuscleGroup: "quadriceps"},
		curlRow:    uuid.New(),
		foreignRow: uuid.New(),
	}
	f.gw.exercises = []domain.Exercise{f.curl, f.hammer, f.cable, f.concentr, f.preacher, f.squat}
	f.gw.profiles[f.userID] = &domain.Profile{ID: f.userID, FirstName: "Ana", Goal: "hipertrofia", ExperienceLevel: "intermediate", TrainingDays: 4}
	f.gw.plans[f.userID] = &domain.WeeklyPlan{
		ID:     uuid.New(),
		UserID: f.userID,
		Title:  "Plano A",
		Exercises: []domain.PlanExercise{
			{ID: f.curlRow, DayOfWeek: 1, Position: 1, Exercise: f.curl, Sets: 3, Reps: "10-12"},
			{ID: uuid.New(), DayOfWeek: 3, Position: 1, Exercise: f.squat, Sets: 4, Reps: "8"},
		},
	}
	f.gw.plans[f.otherID] = &domain.WeeklyPlan{
		ID:        uuid.New(),
		UserID:    f.otherID,
		Exercises: []domain.PlanExercise{{ID: f.foreignRow, DayOfWeek: 2, Exercise: f.squat}},
	}
	return f
}

func (f *fixture) handle() Handle {
	return Handle{UserID: f.userID, Gateway: f.gw}
}
