package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/funmath/funmath-backend/internal/config"
	"github.com/funmath/funmath-backend/internal/database"
	"github.com/funmath/funmath-backend/internal/logger"
	"github.com/funmath/funmath-backend/internal/model"
	"github.com/funmath/funmath-backend/internal/repository"
	"github.com/funmath/funmath-backend/internal/service"
)

const demoPassword = "funmath123"

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	userRepo := repository.NewUserRepository(pool)
	authService := service.NewAuthService(cfg, userRepo)
	examService := service.NewExamService(
		repository.NewExamRepository(pool),
		repository.NewExamSessionRepository(pool),
		rdb, log,
	)

	// ensure registers a user or returns the existing one with that email.
	ensure := func(name, email string, role model.Role) *model.User {
		u, err := authService.Register(ctx, name, email, demoPassword, role)
		if errors.Is(err, service.ErrEmailTaken) {
			u, err = userRepo.GetByEmail(ctx, email)
		}
		if err != nil {
			log.Fatal().Err(err).Str("email", email).Msg("Failed to seed user")
		}
		return u
	}

	fmt.Println("=== Seeding FunMath demo data ===")

	teacher := ensure("Demo Teacher", "teacher@funmath.local", model.RoleTeacher)
	names := []string{"Ana Lima", "Ben Osei", "Chen Wei", "Dara Novak", "Eli Moreno"}
	for i, name := range names {
		ensure(name, fmt.Sprintf("learner%d@funmath.local", i+1), model.RoleLearner)
	}
	fmt.Printf("Users ready (password %q): teacher@funmath.local, learner1..%d@funmath.local\n", demoPassword, len(names))

	now := time.Now().UTC().Truncate(time.Minute)
	exam, err := examService.Create(ctx, service.Actor{UserID: teacher.ID, Role: teacher.Role}, &model.CreateExamRequest{
		Title:           "Fractions and Equations Warm-up",
		Description:     "A short mixed quiz for the demo.",
		EducationLevel:  "grade_7",
		Subject:         "mathematics",
		DurationMinutes: 30,
		StartTime:       now,
		EndTime:         now.Add(2 * time.Hour),
		Difficulty:      string(model.DifficultyEasy),
		Questions: []model.QuestionInput{
			{Text: "What is 1/2 + 1/4?", Type: "multiple-choice", Options: []string{"1/6", "3/4", "2/6", "1"}, CorrectAnswer: "3/4"},
			{Text: "0.5 equals 1/2.", Type: "true-false", CorrectAnswer: "true"},
			{Text: "Solve for x: 2x + 3 = 11", Type: "math-equation", CorrectAnswer: "4"},
			{Text: "Name the top number of a fraction.", Type: "fill-in", CorrectAnswer: "numerator"},
			{Text: "Explain why 2/4 and 1/2 are equal.", Type: "essay"},
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create demo exam")
	}

	if _, err := examService.Moderate(ctx, exam.ID, model.ExamStatusApproved); err != nil {
		log.Fatal().Err(err).Msg("Failed to approve demo exam")
	}

	fmt.Printf("Approved exam %s open until %s\n", exam.ID, exam.EndTime.Format(time.RFC3339))
}
