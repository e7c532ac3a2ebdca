package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/interview"
	"github.com/spigell/interview-coach/internal/logger"
	"github.com/spigell/interview-coach/internal/session"
	"github.com/spigell/interview-coach/internal/skills"
)

const (
	PromptFinish = "Finish the interview"
	PromptReset  = "Start over with another resume"
	PromptQuit   = "Quit"
)

var errExit = errors.New("exit requested")

var interviewCmd = &cobra.Command{
	Use:   "interview <resume>",
	Short: "Run a mock interview in the terminal for the skills found in a resume",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		runInterview(args[0])
	},
}

func init() {
	rootCmd.AddCommand(interviewCmd)

	interviewCmd.Flags().String("difficulty", "", "question difficulty: easy, medium or hard")
	interviewCmd.Flags().Int("questions-per-skill", 0, "questions per detected skill (1-3)")
	interviewCmd.Flags().BoolP("yes", "y", false, "do not ask for the configuration, use config values")

	viper.BindPFlag("interview.difficulty", interviewCmd.Flags().Lookup("difficulty"))
	viper.BindPFlag("interview.questions-per-skill", interviewCmd.Flags().Lookup("questions-per-skill"))
	viper.BindPFlag("interview.yes", interviewCmd.Flags().Lookup("yes"))
}

func runInterview(path string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the interview-coach", zap.String("version", version))

	coach, err := newCoach(ctx, config, nil, logger)
	if err != nil {
		logger.Fatal("preparing the coach", zap.Error(err))
	}

	s := session.New()
	for {
		err := interviewOnce(ctx, coach, s, path, *config.Interview, logger)
		if errors.Is(err, errExit) {
			return
		}
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		coach.Reset(s)
		path, err = (&promptui.Prompt{Label: "Path to the next resume"}).Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

// interviewOnce walks one resume through every stage. It returns nil when the
// user asks to start over.
func interviewOnce(ctx context.Context, coach *session.Coach, s *session.Session, path string, defaults interview.Options, logger *zap.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening resume: %w", err)
	}
	extraction, err := coach.ExtractFromUpload(ctx, s, filepath.Base(path), f)
	f.Close()
	if err != nil {
		return err
	}

	summary := extraction.Summary()
	logger.Info("skills detected",
		zap.Int("total", summary.TotalSkills),
		zap.Int("explicit", summary.Explicit),
		zap.Int("inferred", summary.Inferred),
	)
	for _, category := range extraction.Categories {
		if len(category.Skills) == 0 {
			continue
		}
		names := make([]string, 0, len(category.Skills))
		for _, skill := range category.Skills {
			names = append(names, skill.Name)
		}
		fmt.Printf("%s: %s\n", category.Name, strings.Join(names, ", "))
	}

	opts := defaults
	if !viper.GetBool("interview.yes") {
		if opts, err = askOptions(defaults); err != nil {
			return err
		}
	}

	logger.Info("generating questions",
		zap.String("difficulty", string(opts.Difficulty)),
		zap.Int("questions_per_skill", opts.QuestionsPerSkill),
	)

	questions, err := coach.GenerateQuestions(ctx, s, opts)
	if err != nil {
		return err
	}

	for {
		items := make([]string, 0, len(questions)+2)
		for i, q := range questions {
			mark := " "
			if _, ok := s.Evaluations[i]; ok {
				mark = "x"
			}
			items = append(items, fmt.Sprintf("[%s] %d. %s: %s", mark, i+1, q.Skill, q.Question))
		}
		items = append(items, PromptFinish, PromptQuit)

		questionPrompt := promptui.Select{
			Label: "Choose a question and press ENTER",
			Items: items,
			Size:  10,
		}

		index, selected, err := questionPrompt.Run()
		if err != nil {
			return err
		}

		switch selected {
		case PromptQuit:
			return errExit
		case PromptFinish:
			result, err := coach.Finish(s)
			if errors.Is(err, session.ErrNoAnswers) {
				logger.Warn("answer at least one question before finishing")
				continue
			}
			if err != nil {
				return err
			}
			printSummary(result, s)
			return afterResults()
		default:
			if err := answerQuestion(ctx, coach, s, index); err != nil {
				return err
			}
		}
	}
}

func askOptions(defaults interview.Options) (interview.Options, error) {
	opts := defaults.WithDefaults()

	difficulties := make([]string, 0, len(interview.Difficulties))
	cursor := 0
	for i, d := range interview.Difficulties {
		difficulties = append(difficulties, string(d))
		if d == opts.Difficulty {
			cursor = i
		}
	}

	difficultyPrompt := promptui.Select{
		Label:     "Difficulty",
		Items:     difficulties,
		CursorPos: cursor,
	}
	_, difficulty, err := difficultyPrompt.Run()
	if err != nil {
		return opts, err
	}
	opts.Difficulty = interview.Difficulty(difficulty)

	counts := make([]string, 0, interview.MaxQuestionsPerSkill)
	for n := interview.MinQuestionsPerSkill; n <= interview.MaxQuestionsPerSkill; n++ {
		counts = append(counts, strconv.Itoa(n))
	}

	countPrompt := promptui.Select{
		Label:     "Questions per skill",
		Items:     counts,
		CursorPos: max(0, min(opts.QuestionsPerSkill, interview.MaxQuestionsPerSkill)-interview.MinQuestionsPerSkill),
	}
	_, count, err := countPrompt.Run()
	if err != nil {
		return opts, err
	}
	opts.QuestionsPerSkill, _ = strconv.Atoi(count)

	return opts, nil
}

func answerQuestion(ctx context.Context, coach *session.Coach, s *session.Session, index int) error {
	q := s.Questions[index]

	fmt.Printf("\n%s (%s, %s)\n%s\n", q.Skill, q.Type, q.Difficulty, q.Question)
	for _, hint := range q.Hints {
		fmt.Printf("  hint: %s\n", hint)
	}

	answerPrompt := promptui.Prompt{
		Label:   "Your answer",
		Default: s.Answers[index],
	}
	answer, err := answerPrompt.Run()
	if err != nil {
		return err
	}

	result, err := coach.SubmitAnswer(ctx, s, index, answer)
	if err != nil {
		return err
	}

	printEvaluation(result)
	return nil
}

func printEvaluation(e *interview.Evaluation) {
	fmt.Printf("\nScore: %d/100 (%s)\n", e.TotalScore, e.Grade)
	for _, item := range interview.Rubric {
		fmt.Printf("  %-18s %2d/%d\n", item.Criterion, e.Breakdown[item.Criterion], item.MaxPoints)
	}
	printList("Strengths", e.Strengths)
	printList("Improvements", e.Improvements)
	if e.DetailedFeedback != "" {
		fmt.Printf("%s\n", e.DetailedFeedback)
	}
	fmt.Println()
}

func printSummary(summary *interview.Summary, s *session.Session) {
	fmt.Printf("\nAnswered %d question(s). Average %.1f (%s), highest %d, lowest %d\n",
		summary.TotalQuestions, summary.AverageScore, summary.OverallGrade, summary.HighestScore, summary.LowestScore)

	for _, category := range orderedCategories(summary.CategoryAverages, s.Extraction) {
		fmt.Printf("  %s: %.1f\n", category, summary.CategoryAverages[category])
	}
	printList("Top strengths", summary.TopStrengths)
	printList("Top improvements", summary.TopImprovements)

	for _, i := range s.AnsweredIndices() {
		q := s.Questions[i]
		if q.ModelAnswer == "" {
			continue
		}
		fmt.Printf("\n%d. %s\n   model answer: %s\n", i+1, q.Question, q.ModelAnswer)
	}
	fmt.Println()
}

// orderedCategories lists the averaged categories in taxonomy order, followed
// by any others such as "Other" in alphabetical order.
func orderedCategories(averages map[string]float64, extraction *skills.ExtractionResult) []string {
	ordered := make([]string, 0, len(averages))
	listed := make(map[string]bool, len(averages))
	if extraction != nil {
		for _, category := range extraction.Categories {
			if _, ok := averages[category.Name]; ok && !listed[category.Name] {
				ordered = append(ordered, category.Name)
				listed[category.Name] = true
			}
		}
	}

	var rest []string
	for category := range averages {
		if !listed[category] {
			rest = append(rest, category)
		}
	}
	slices.Sort(rest)

	return append(ordered, rest...)
}

func printList(label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("%s:\n", label)
	for _, item := range items {
		fmt.Printf("  - %s\n", item)
	}
}

func afterResults() error {
	prompt := promptui.Select{
		Label: "What next?",
		Items: []string{PromptReset, PromptQuit},
	}

	_, action, err := prompt.Run()
	if err != nil {
		return err
	}
	if action == PromptQuit {
		return errExit
	}
	return nil
}
