package domain

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the coaching profile the trainer reasons about.
type Profile struct {
	ID              uuid.UUID `json:"id"`
	TelegramID      int64     `json:"-"`
	FirstName       string    `json:"first_name"`
	Goal            string    `json:"goal"`
	ExperienceLevel string    `json:"experience_level"`
	TrainingDays    int       `json:"training_days"`
	Limitations     []string  `json:"limitations"`
	CreatedAt       time.Time `json:"-"`
	UpdatedAt       time.Time `json:"-"`
}

func (p *Profile) HasLimitations() bool {
	return len(p.Limitations) > 0
}
