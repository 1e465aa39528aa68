package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/funmath/funmath-backend/internal/client"
	"github.com/funmath/funmath-backend/internal/config"
	"github.com/funmath/funmath-backend/internal/database"
	"github.com/funmath/funmath-backend/internal/draft"
	"github.com/funmath/funmath-backend/internal/logger"
	"github.com/funmath/funmath-backend/internal/model"
	"github.com/funmath/funmath-backend/internal/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

func main() {
	cfg := config.LoadClient()
	log := logger.SetupWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat).With().Str("component", "examctl").Logger()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := client.New(cfg, log)

	var err error
	switch os.Args[1] {
	case "login":
		err = login(ctx, api)
	case "take":
		err = take(ctx, cfg, api, requireExamID(), log)
	case "leaderboard":
		err = leaderboard(ctx, api, requireExamID())
	default:
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", userMessage(err))
		log.Debug().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage:
  examctl login
  examctl take <exam-id>
  examctl leaderboard <exam-id>

Environment: API_BASE_URL, API_TOKEN, DRAFT_DB_PATH`)
}

func requireExamID() uuid.UUID {
	if len(os.Args) < 3 {
		printUsage()
		os.Exit(2)
	}
	id, err := uuid.Parse(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %q is not an exam id\n", os.Args[2])
		os.Exit(2)
	}
	return id
}

func userMessage(err error) string {
	var f *session.Failure
	if errors.As(err, &f) {
		return f.Message()
	}
	var ce *client.Error
	if errors.As(err, &ce) && ce.Message != "" {
		return ce.Message
	}
	return err.Error()
}

// ─── login ──────────────────────────────────────────────────────────────────

func login(ctx context.Context, api *client.Client) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Email: ")
	email, err := readLine(reader)
	if err != nil {
		return fmt.Errorf("read email: %w", err)
	}

	fmt.Print("Password: ")
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	res, err := api.Login(ctx, email, string(pw))
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s (%s), token valid until %s\n", res.User.Name, res.User.Role, res.ExpiresAt.Local().Format(time.RFC1123))
	fmt.Printf("export API_TOKEN=%s\n", res.Token)
	return nil
}

// readLine returns the next trimmed line. A final line without a newline
// still counts; end of input with nothing read does not.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ─── leaderboard ────────────────────────────────────────────────────────────

func leaderboard(ctx context.Context, api *client.Client, examID uuid.UUID) error {
	entries, err := api.Leaderboard(ctx, examID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No submissions yet.")
		return nil
	}
	fmt.Printf("%-5s %-30s %7s  %s\n", "RANK", "NAME", "SCORE", "SUBMITTED")
	for _, e := range entries {
		fmt.Printf("%-5d %-30s %7.2f  %s\n", e.Rank, e.Name, e.Score, e.SubmittedAt.Local().Format(time.TimeOnly))
	}
	return nil
}

// ─── take ───────────────────────────────────────────────────────────────────

func take(ctx context.Context, cfg *config.ClientConfig, api *client.Client, examID uuid.UUID, log zerolog.Logger) error {
	me, err := api.Me(ctx)
	if err != nil {
		return err
	}

	drafts, closeDrafts := openDrafts(ctx, cfg.DraftDBPath, me.ID, log)
	defer closeDrafts()
	interactive := term.IsTerminal(int(os.Stdout.Fd()))

	ctrl := session.New(examID, me.ID, api, drafts, session.SystemClock{}, session.Options{
		Debounce: cfg.DraftDebounce,
		OnWarning: func(msg string) {
			fmt.Fprintln(os.Stderr, "\nWarning:", msg)
		},
		OnTick: func(remaining time.Duration) {
			if interactive {
				fmt.Printf("\r\033[K⏱ %s remaining > ", formatRemaining(remaining))
			}
		},
	}, log)

	if err := ctrl.Load(ctx); err != nil {
		return err
	}

	switch ctrl.State() {
	case session.StateIneligible:
		switch ctrl.Reason() {
		case session.ReasonUpcoming:
			fmt.Printf("This exam has not started yet. It opens at %s.\n", ctrl.Exam().StartTime.Local().Format(time.RFC1123))
		case session.ReasonClosed:
			fmt.Println("This exam has closed. Check the leaderboard for results.")
		default:
			fmt.Println("This exam is not available.")
		}
		return nil
	case session.StateSubmitted:
		printResult(ctrl.Result())
		return nil
	}

	exam := ctrl.Exam()
	printExam(exam, ctrl.Answers())
	fmt.Println("Answer with <number>=<answer>. Commands: :answers :save :submit :quit")

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	runDone := make(chan error, 1)
	go func() { runDone <- ctrl.Run(runCtx) }()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			cancelRun()
			ctrl.Flush()
			fmt.Println("\nExam left without submitting. Your answers are saved on this device.")
			return nil

		case <-runDone:
			fmt.Println()
			return finish(ctrl)

		case line, ok := <-lines:
			if !ok {
				cancelRun()
				ctrl.Flush()
				return nil
			}
			done, err := handleLine(ctx, ctrl, exam, strings.TrimSpace(line))
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error:", userMessage(err))
			}
			if done {
				cancelRun()
				return finish(ctrl)
			}
		}
	}
}

// openDrafts returns the learner's draft store and a func that releases it.
func openDrafts(ctx context.Context, path string, userID int64, log zerolog.Logger) (draft.Store, func()) {
	onWarn := func(uuid.UUID, error) {
		fmt.Fprintln(os.Stderr, "Warning: answers cannot be saved on this device; they are kept in memory only.")
	}

	db, err := database.OpenSQLite(ctx, path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Draft database unavailable")
		onWarn(uuid.Nil, err)
		return draft.NewMemoryStore(), func() {}
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Msg("Closing draft database failed")
		}
	}
	store, err := draft.NewSQLiteStore(ctx, db, userID)
	if err != nil {
		log.Warn().Err(err).Msg("Draft table unavailable")
		onWarn(uuid.Nil, err)
		closeDB()
		return draft.NewMemoryStore(), func() {}
	}
	return draft.NewResilient(store, onWarn, log), closeDB
}

// handleLine applies one line of learner input. It returns true once the
// session has been submitted or abandoned.
func handleLine(ctx context.Context, ctrl *session.Controller, exam *model.ExamPayload, line string) (bool, error) {
	switch line {
	case "":
		return false, nil
	case ":answers":
		printExam(exam, ctrl.Answers())
		return false, nil
	case ":save":
		if err := ctrl.SaveProgress(ctx); err != nil {
			return false, err
		}
		fmt.Println("Progress saved.")
		return false, nil
	case ":submit":
		if _, err := ctrl.Submit(ctx); err != nil {
			return ctrl.State().Terminal(), err
		}
		return true, nil
	case ":quit":
		ctrl.Flush()
		fmt.Println("Exam left without submitting. Your answers are saved on this device.")
		return true, nil
	}

	num, value, ok := strings.Cut(line, "=")
	if !ok {
		return false, fmt.Errorf("expected <number>=<answer>, got %q", line)
	}
	idx, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil || idx < 1 || idx > len(exam.Questions) {
		return false, fmt.Errorf("question number must be between 1 and %d", len(exam.Questions))
	}
	return false, ctrl.SetAnswer(exam.Questions[idx-1].ID.String(), strings.TrimSpace(value))
}

func finish(ctrl *session.Controller) error {
	switch ctrl.State() {
	case session.StateSubmitted:
		printResult(ctrl.Result())
	case session.StateFailed:
		return ctrl.Failure()
	}
	return nil
}

func printExam(exam *model.ExamPayload, answers model.Answers) {
	fmt.Printf("\n%s (%s, %d min)\n", exam.Title, exam.Subject, exam.DurationMinutes)
	for i, q := range exam.Questions {
		fmt.Printf("\n%d. [%s] %s\n", i+1, q.Type, q.Text)
		for _, opt := range q.Options {
			fmt.Printf("     - %s\n", opt)
		}
		if a := answers[q.ID.String()]; a != "" {
			fmt.Printf("   answer: %s\n", a)
		}
	}
	fmt.Println()
}

func printResult(res *model.SubmitResult) {
	if res == nil {
		return
	}
	fmt.Printf("Submitted. Score: %.2f (%d of %d correct)\n", res.Score, res.Correct, res.Total)
}

func formatRemaining(d time.Duration) string {
	s := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s%3600/60, s%60)
}
