package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stemsi/exampool/internal/config"
	"github.com/stemsi/exampool/internal/database"
	"github.com/stemsi/exampool/internal/logger"
	"github.com/stemsi/exampool/internal/model"
	"github.com/stemsi/exampool/internal/repository"
	"github.com/stemsi/exampool/internal/service"
)

var optionLabels = []string{"A", "B", "C", "D"}

func main() {
	var perBucket int
	var publish bool
	flag.IntVar(&perBucket, "per-bucket", 40, "Questions generated per subject and difficulty")
	flag.BoolVar(&publish, "publish", true, "Publish the sample exam")
	flag.Parse()

	cfg := config.Load()
	log := logger.Component(logger.Setup(cfg.LogLevel, cfg.LogFormat), "seed_questions")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	store := repository.NewPostgresStore(pool)
	pools := service.NewPoolService(store, nil, log)
	exams := service.NewExamService(store, pools, log)

	exam := sampleExam(publish)
	if err := exams.Create(ctx, exam); err != nil {
		log.Fatal().Err(err).Msg("Failed to create sample exam")
	}

	bank := sampleBank(exam, perBucket)
	if err := exams.AddQuestions(ctx, exam.ID, bank); err != nil {
		log.Fatal().Err(err).Msg("Failed to add questions")
	}

	report, err := exams.ValidatePool(ctx, exam.ID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to validate pool")
	}
	if !report.IsValid {
		log.Warn().Strs("errors", report.Errors).Msg("Seeded pool cannot serve the exam")
	}

	log.Info().
		Str("exam_id", exam.ID.String()).
		Int("questions", len(bank)).
		Bool("pool_valid", report.IsValid).
		Msg("Seed complete")
	fmt.Println(exam.ID)
}

// sampleExam mirrors a JEE Main style paper.
func sampleExam(publish bool) *model.Exam {
	return &model.Exam{
		Title:           "JEE Main Mock Test",
		TotalQuestions:  100,
		DurationMinutes: 120,
		MaxAttempts:     3,
		MarkingScheme: model.MarkingScheme{
			CorrectMarks:     decimal.NewFromInt(4),
			WrongMarks:       decimal.NewFromInt(-1),
			UnattemptedMarks: decimal.Zero,
		},
		DifficultyDistribution: model.DifficultyDistribution{
			model.DifficultyEasy:   30,
			model.DifficultyMedium: 50,
			model.DifficultyHard:   20,
		},
		SubjectDistribution: model.SubjectDistribution{
			"Physics":     33,
			"Chemistry":   33,
			"Mathematics": 34,
		},
		IsActive:    true,
		IsPublished: publish,
	}
}

// sampleBank generates perBucket questions for every subject and difficulty
// named by exam.
func sampleBank(exam *model.Exam, perBucket int) []model.Question {
	subjects := exam.SubjectDistribution.Subjects()
	difficulties := exam.DifficultyDistribution.Difficulties()

	bank := make([]model.Question, 0, len(subjects)*len(difficulties)*perBucket)
	for _, subject := range subjects {
		for _, d := range difficulties {
			for i := 1; i <= perBucket; i++ {
				options, _ := json.Marshal(sampleOptions(subject, i))
				bank = append(bank, model.Question{
					ID:            uuid.New(),
					Subject:       subject,
					Difficulty:    d,
					Text:          fmt.Sprintf("%s %s question #%d", subject, d, i),
					Options:       options,
					CorrectOption: optionLabels[i%len(optionLabels)],
					IsActive:      true,
				})
			}
		}
	}
	return bank
}

type option struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

func sampleOptions(subject string, n int) []option {
	opts := make([]option, len(optionLabels))
	for i, label := range optionLabels {
		opts[i] = option{Label: label, Text: fmt.Sprintf("%s answer %d.%d", subject, n, i+1)}
	}
	return opts
}
