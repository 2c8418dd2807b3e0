package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ddsha441981/interview-assistant/internal/gateway"
	"github.com/ddsha441981/interview-assistant/internal/interview"
	"github.com/ddsha441981/interview-assistant/internal/logger"
)

const (
	PromptStart      = "Start the interview"
	PromptShow       = "Show questions"
	PromptRegenerate = "Generate new questions"
	PromptQuit       = "Quit"
)

var errExit = errors.New("exit requested")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an interview in the terminal",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("resume", "r", "", "text file with the candidate resume, used to generate questions")
	runCmd.Flags().StringP("questions", "q", "", "text file with one question per line; skips question generation")
	runCmd.Flags().IntP("count", "n", 0, "number of questions to generate (default is interview.question-count)")
	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before starting")

	viper.BindPFlag("interview.question-count", runCmd.Flags().Lookup("count"))
}

// run is the terminal interview.
func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil || config.Interview == nil {
		logger.Fatal("config is required")
	}

	logger.Info("starting the interview-assistant", zap.String("version", version))
	logger.Debug("interview settings", zap.Any("interview", config.Interview), zap.Any("capabilities", config.Capabilities))

	gw, err := buildGateway(ctx, config, logger)
	if err != nil {
		logger.Fatal("building provider gateway", zap.Error(err))
	}

	source, err := questionSource(cmd, gw, config.Interview.QuestionCount)
	if err != nil {
		logger.Fatal("preparing questions", zap.Error(err))
	}

	questions, err := source.Questions(ctx)
	if err != nil {
		logger.Fatal("questions unavailable", zap.Error(err))
	}

	out := cmd.OutOrStdout()
	if autoApprove, _ := cmd.Flags().GetBool("auto-approve"); !autoApprove {
		questions, err = confirmQuestions(ctx, out, source, questions)
		if errors.Is(err, errExit) {
			logger.Info("exiting", zap.String("reason", "interview declined"))
			return
		}
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
	}

	speaker, err := buildSpeaker(config, gw, logger)
	if err != nil {
		logger.Fatal("building speaker", zap.Error(err))
	}

	o, err := interview.New(interviewConfig(config), interview.Deps{
		Evaluator: gw,
		Speaker:   speaker,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("creating orchestrator", zap.Error(err))
	}
	defer o.Close()

	events, unsubscribe := o.Subscribe()
	defer unsubscribe()

	handle, err := o.Start(questions)
	if err != nil {
		logger.Fatal("starting interview", zap.Error(err))
	}
	logger.Info("interview started", zap.String("session_id", handle.ID()), zap.Int("questions", len(questions)))

	go func() {
		<-ctx.Done()
		_ = handle.Abort()
	}()

	conductInterview(out, o, events, logger)
}

func questionSource(cmd *cobra.Command, gw *gateway.Gateway, count int) (interview.QuestionSource, error) {
	if path := cmd.Flag("questions").Value.String(); path != "" {
		questions, err := readQuestionsFile(path)
		if err != nil {
			return nil, err
		}
		return interview.QuestionSourceFunc(func(context.Context) ([]interview.Question, error) {
			return questions, nil
		}), nil
	}

	path := cmd.Flag("resume").Value.String()
	if path == "" {
		return nil, errors.New("either --resume or --questions is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resume: %w", err)
	}
	return gw.QuestionSource(string(data), count), nil
}

func readQuestionsFile(path string) ([]interview.Question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open questions file: %w", err)
	}
	defer f.Close()
	return parseQuestions(f)
}

// parseQuestions reads one question per line, skipping blanks and # comments.
func parseQuestions(r io.Reader) ([]interview.Question, error) {
	var questions []interview.Question
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		questions = append(questions, interview.Question{Text: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, interview.ErrEmptyQuestionSet
	}
	return questions, nil
}

func confirmQuestions(ctx context.Context, out io.Writer, source interview.QuestionSource, questions []interview.Question) ([]interview.Question, error) {
	prompt := promptui.Select{
		Label: "Proceed?",
		Items: []string{PromptStart, PromptShow, PromptRegenerate, PromptQuit},
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			return nil, err
		}

		switch action {
		case PromptStart:
			return questions, nil
		case PromptShow:
			printQuestions(out, questions)
		case PromptRegenerate:
			fresh, err := source.Questions(ctx)
			if err != nil {
				fmt.Fprintf(out, "Could not generate new questions: %v\n", err)
				continue
			}
			questions = fresh
			printQuestions(out, questions)
		case PromptQuit:
			return nil, errExit
		default:
			return nil, fmt.Errorf("invalid action: %s", action)
		}
	}
}

func conductInterview(out io.Writer, o *interview.Orchestrator, events <-chan interview.StageChange, logger *zap.Logger) {
	for change := range events {
		switch change.Stage {
		case interview.StageAsking:
			printFeedback(out, change.Answer)
			total := o.Status().Total
			fmt.Fprintf(out, "\nQuestion %d/%d: %s\n", change.Index+1, total, change.Question.Text)
			captureAnswer(out, o, change.Index, logger)

		case interview.StageEvaluating:
			if change.Answer != nil && change.Answer.TimedOut {
				fmt.Fprintf(out, "Time is up for question %d.\n", change.Index+1)
			}
			fmt.Fprintln(out, "Evaluating the answer...")

		case interview.StageFinished:
			printFeedback(out, change.Answer)
			printSummary(out, change)
		}
	}
}

func captureAnswer(out io.Writer, o *interview.Orchestrator, index int, logger *zap.Logger) {
	if err := o.BeginRecording(); err != nil {
		logger.Debug("not recording", zap.Error(err))
		return
	}

	answerPrompt := promptui.Prompt{Label: "Your answer"}
	text, err := answerPrompt.Run()
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		_ = o.Abort()
		return
	}
	if err != nil {
		logger.Warn("reading answer", zap.Error(err))
		text = ""
	}

	if err := o.SubmitAnswerAt(index, text); err != nil {
		if errors.Is(err, interview.ErrInvalidStageTransition) {
			fmt.Fprintln(out, "Answer not accepted, the time for this question is over.")
			return
		}
		logger.Warn("submitting answer", zap.Error(err))
	}
}

func printQuestions(out io.Writer, questions []interview.Question) {
	for i, q := range questions {
		fmt.Fprintf(out, "%d. %s\n", i+1, q.Text)
		if len(q.ExpectedTopics) > 0 {
			fmt.Fprintf(out, "   topics: %s\n", strings.Join(q.ExpectedTopics, ", "))
		}
	}
}

func printFeedback(out io.Writer, answer *interview.Answer) {
	if answer == nil {
		return
	}
	switch {
	case answer.Evaluation != nil:
		fmt.Fprintf(out, "Score for question %d: %.1f/10\n%s\n", answer.QuestionIndex+1, answer.Evaluation.Score, answer.Evaluation.Feedback)
	case answer.EvaluationUnavailable:
		fmt.Fprintf(out, "No evaluation available for question %d.\n", answer.QuestionIndex+1)
	}
}

func printSummary(out io.Writer, change interview.StageChange) {
	fmt.Fprintf(out, "\nInterview finished (%s).\n", change.EndReason)
	if change.Failure != "" {
		fmt.Fprintf(out, "Reason: %s\n", change.Failure)
	}
	if change.Summary == nil {
		return
	}
	s := change.Summary
	fmt.Fprintf(out, "Answered: %d, timed out: %d, evaluated: %d, unavailable: %d\n", s.Answered, s.TimedOut, s.Evaluated, s.Unavailable)
	if s.Evaluated > 0 {
		fmt.Fprintf(out, "Final score: %.1f/10\n", s.Score)
	}
}
