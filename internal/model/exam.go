package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Difficulty labels a question's difficulty tier.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// Valid reports whether d is one of the known tiers.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// MarkingScheme holds the signed marks awarded per response outcome.
type MarkingScheme struct {
	CorrectMarks     decimal.Decimal `json:"correct_marks"`
	WrongMarks       decimal.Decimal `json:"wrong_marks"`
	UnattemptedMarks decimal.Decimal `json:"unattempted_marks"`
}

// DifficultyDistribution maps a difficulty to its percentage of the paper.
type DifficultyDistribution map[Difficulty]int

// SubjectDistribution maps a subject to the number of questions it contributes.
type SubjectDistribution map[string]int

// Difficulties returns the distribution keys in ascending order.
func (d DifficultyDistribution) Difficulties() []Difficulty {
	keys := make([]Difficulty, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Subjects returns the distribution keys in ascending order.
func (s SubjectDistribution) Subjects() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Exam represents an exam configuration.
type Exam struct {
	ID                     uuid.UUID              `json:"id"`
	Title                  string                 `json:"title"`
	TotalQuestions         int                    `json:"total_questions"`
	DurationMinutes        int                    `json:"duration_minutes"`
	MaxAttempts            int                    `json:"max_attempts"`
	StartsAt               *time.Time             `json:"starts_at,omitempty"`
	EndsAt                 *time.Time             `json:"ends_at,omitempty"`
	MarkingScheme          MarkingScheme          `json:"marking_scheme"`
	DifficultyDistribution DifficultyDistribution `json:"difficulty_distribution"`
	SubjectDistribution    SubjectDistribution    `json:"subject_distribution"`
	IsActive               bool                   `json:"is_active"`
	IsPublished            bool                   `json:"is_published"`
	CreatedAt              time.Time              `json:"created_at"`
	UpdatedAt              time.Time              `json:"updated_at"`
}

// OpenAt reports whether the exam accepts new attempts at the given instant.
func (e *Exam) OpenAt(now time.Time) bool {
	if !e.IsActive || !e.IsPublished {
		return false
	}
	if e.StartsAt != nil && now.Before(*e.StartsAt) {
		return false
	}
	if e.EndsAt != nil && now.After(*e.EndsAt) {
		return false
	}
	return true
}

// Duration returns the per-attempt time budget.
func (e *Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// MarkScale is the number of decimal places a mark may carry.
const MarkScale = 4

// ConfigError lists every problem found in an exam configuration, keyed by field.
type ConfigError struct {
	Fields map[string]string
}

func (e *ConfigError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msg := "invalid exam config:"
	for _, k := range keys {
		msg += fmt.Sprintf(" %s: %s;", k, e.Fields[k])
	}
	return msg
}

// Validate checks the structural rules selection depends on. It returns a
// *ConfigError describing every violation, or nil.
func (e *Exam) Validate() error {
	fields := make(map[string]string)

	if e.TotalQuestions < 1 {
		fields["total_questions"] = "must be at least 1"
	}
	if e.DurationMinutes < 1 {
		fields["duration_minutes"] = "must be at least 1"
	}
	if e.MaxAttempts < 1 {
		fields["max_attempts"] = "must be at least 1"
	}
	if e.StartsAt != nil && e.EndsAt != nil && !e.EndsAt.After(*e.StartsAt) {
		fields["ends_at"] = "must be after starts_at"
	}
	for name, m := range map[string]decimal.Decimal{
		"marking_scheme.correct_marks":     e.MarkingScheme.CorrectMarks,
		"marking_scheme.wrong_marks":       e.MarkingScheme.WrongMarks,
		"marking_scheme.unattempted_marks": e.MarkingScheme.UnattemptedMarks,
	} {
		// Marks are stored as NUMERIC(12,4).
		if !m.Equal(m.Round(MarkScale)) {
			fields[name] = fmt.Sprintf("must have at most %d decimal places", MarkScale)
		}
	}
	if !e.MarkingScheme.CorrectMarks.IsPositive() {
		fields["marking_scheme.correct_marks"] = "must be greater than 0"
	}

	if len(e.DifficultyDistribution) == 0 {
		fields["difficulty_distribution"] = "must not be empty"
	} else {
		sum := 0
		for _, d := range e.DifficultyDistribution.Difficulties() {
			pct := e.DifficultyDistribution[d]
			if !d.Valid() {
				fields["difficulty_distribution."+string(d)] = "unknown difficulty"
				continue
			}
			if pct < 0 || pct > 100 {
				fields["difficulty_distribution."+string(d)] = "must be between 0 and 100"
				continue
			}
			sum += pct
		}
		if sum != 100 {
			fields["difficulty_distribution"] = fmt.Sprintf("percentages must sum to 100, got %d", sum)
		}
	}

	if len(e.SubjectDistribution) == 0 {
		fields["subject_distribution"] = "must not be empty"
	} else {
		sum := 0
		for _, s := range e.SubjectDistribution.Subjects() {
			n := e.SubjectDistribution[s]
			if s == "" {
				fields["subject_distribution"] = "subject name must not be empty"
				continue
			}
			if n < 1 {
				fields["subject_distribution."+s] = "must be at least 1"
				continue
			}
			sum += n
		}
		if _, bad := fields["subject_distribution"]; !bad && sum != e.TotalQuestions {
			fields["subject_distribution"] = fmt.Sprintf("counts must sum to total_questions (%d), got %d", e.TotalQuestions, sum)
		}
	}

	if len(fields) > 0 {
		return &ConfigError{Fields: fields}
	}
	return nil
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title                  string                 `json:"title" binding:"required,min=3,max=255"`
	TotalQuestions         int                    `json:"total_questions" binding:"required,min=1,max=1000"`
	DurationMinutes        int                    `json:"duration_minutes" binding:"required,min=1,max=600"`
	MaxAttempts            int                    `json:"max_attempts" binding:"required,min=1,max=100"`
	StartsAt               *time.Time             `json:"starts_at" binding:"omitempty"`
	EndsAt                 *time.Time             `json:"ends_at" binding:"omitempty,gtfield=StartsAt"`
	MarkingScheme          MarkingScheme          `json:"marking_scheme"`
	DifficultyDistribution DifficultyDistribution `json:"difficulty_distribution" binding:"required,min=1"`
	SubjectDistribution    SubjectDistribution    `json:"subject_distribution" binding:"required,min=1"`
	IsActive               bool                   `json:"is_active"`
	IsPublished            bool                   `json:"is_published"`
}

// Exam converts the request into an unsaved Exam.
func (r *CreateExamRequest) Exam() *Exam {
	return &Exam{
		Title:                  r.Title,
		TotalQuestions:         r.TotalQuestions,
		DurationMinutes:        r.DurationMinutes,
		MaxAttempts:            r.MaxAttempts,
		StartsAt:               r.StartsAt,
		EndsAt:                 r.EndsAt,
		MarkingScheme:          r.MarkingScheme,
		DifficultyDistribution: r.DifficultyDistribution,
		SubjectDistribution:    r.SubjectDistribution,
		IsActive:               r.IsActive,
		IsPublished:            r.IsPublished,
	}
}
