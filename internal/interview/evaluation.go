package interview

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/metrics"
	"github.com/spigell/interview-coach/internal/utils"
)

//go:embed prompts/evaluation.md
var evaluationPromptTemplate string

const (
	evaluationSystemPrompt = "You are a strict but fair technical interviewer. Always respond with valid JSON only, no markdown, no extra text."
	evaluationTemperature  = 0.3
	evaluationMaxTokens    = 800

	emptyAnswerImprovement = "Please provide an answer to be evaluated."
	emptyAnswerFeedback    = "No answer was provided."
	failedFeedback         = "Evaluation failed. Please try again."
)

// Evaluation is the rubric score of one answer. TotalScore is always the sum
// of Breakdown and Grade always follows from TotalScore.
type Evaluation struct {
	TotalScore           int               `json:"total_score"`
	Grade                Grade             `json:"grade"`
	Breakdown            map[Criterion]int `json:"breakdown"`
	Strengths            []string          `json:"strengths"`
	Improvements         []string          `json:"improvements"`
	DetailedFeedback     string            `json:"detailed_feedback"`
	CorrectAnswerSummary string            `json:"correct_answer_summary"`
}

// Failed reports whether the evaluation could not be produced.
func (e *Evaluation) Failed() bool { return e != nil && e.Grade == GradeError }

func (e *Evaluation) recompute() {
	total := 0
	for _, points := range e.Breakdown {
		total += points
	}
	e.TotalScore = total
	e.Grade = GradeForScore(float64(total))
}

func emptyAnswerEvaluation() *Evaluation {
	breakdown := make(map[Criterion]int, len(Rubric))
	for _, item := range Rubric {
		breakdown[item.Criterion] = 0
	}
	e := &Evaluation{
		Breakdown:        breakdown,
		Strengths:        []string{},
		Improvements:     []string{emptyAnswerImprovement},
		DetailedFeedback: emptyAnswerFeedback,
	}
	e.recompute()
	return e
}

func failedEvaluation() *Evaluation {
	return &Evaluation{
		Grade:            GradeError,
		Breakdown:        map[Criterion]int{},
		Strengths:        []string{},
		Improvements:     []string{},
		DetailedFeedback: failedFeedback,
	}
}

// EvaluationRequest is one answer to score.
type EvaluationRequest struct {
	Question    string
	Answer      string
	ModelAnswer string
	Skill       string
	Difficulty  Difficulty
}

// RequestFor builds the evaluation request for an answer to q.
func RequestFor(q Question, answer string) EvaluationRequest {
	return EvaluationRequest{
		Question:    q.Question,
		Answer:      answer,
		ModelAnswer: q.ModelAnswer,
		Skill:       q.Skill,
		Difficulty:  q.Difficulty,
	}
}

type Evaluator struct {
	completer ai.Completer
	logger    *zap.Logger
	metrics   *metrics.Metrics
	maxLogLen int
}

func NewEvaluator(completer ai.Completer, logger *zap.Logger, m *metrics.Metrics, maxLogLength int) *Evaluator {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Evaluator{
		completer: completer,
		logger:    logger,
		metrics:   m,
		maxLogLen: maxLogLength,
	}
}

// Evaluate scores an answer. It never fails: a blank answer gets a fixed zero
// score without calling the model, and any transport or parse failure yields
// an Error grade.
func (e *Evaluator) Evaluate(ctx context.Context, req EvaluationRequest) *Evaluation {
	if strings.TrimSpace(req.Answer) == "" {
		result := emptyAnswerEvaluation()
		e.metrics.ObserveEvaluation(string(result.Grade), result.TotalScore)
		return result
	}

	result, err := e.evaluate(ctx, req)
	if err != nil {
		e.logger.Warn("answer evaluation failed",
			zap.String("skill", req.Skill),
			zap.Error(err),
		)
		result = failedEvaluation()
	}

	e.metrics.ObserveEvaluation(string(result.Grade), result.TotalScore)
	return result
}

func (e *Evaluator) evaluate(ctx context.Context, req EvaluationRequest) (*Evaluation, error) {
	prompt := buildEvaluationPrompt(req)

	e.logger.Debug("answer evaluation request",
		zap.String("skill", req.Skill),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.completer.Complete(ctx, ai.Request{
		Operation:   ai.OperationEvaluateAnswer,
		System:      evaluationSystemPrompt,
		Prompt:      prompt,
		Temperature: evaluationTemperature,
		MaxTokens:   evaluationMaxTokens,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("answer evaluation response",
		zap.String("skill", req.Skill),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	result, err := parseEvaluation(raw)
	if err != nil {
		return nil, err
	}
	result.recompute()
	return result, nil
}

func buildEvaluationPrompt(req EvaluationRequest) string {
	var rubric, breakdown strings.Builder
	for i, item := range Rubric {
		fmt.Fprintf(&rubric, "- %-18s : %d pts  (%s)\n", item.Criterion, item.MaxPoints, item.Description)

		sep := ","
		if i == len(Rubric)-1 {
			sep = ""
		}
		fmt.Fprintf(&breakdown, "    %q: <0-%d>%s\n", item.Criterion, item.MaxPoints, sep)
	}

	template := evaluationPromptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Question:\n{{QUESTION}}\n\nAnswer:\n{{ANSWER}}\n\nScore with:\n{{RUBRIC}}\nJSON Response:"
	}

	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = DefaultDifficulty
	}

	return strings.NewReplacer(
		"{{SKILL}}", req.Skill,
		"{{DIFFICULTY}}", string(difficulty),
		"{{QUESTION}}", req.Question,
		"{{MODEL_ANSWER}}", req.ModelAnswer,
		"{{ANSWER}}", req.Answer,
		"{{RUBRIC}}", strings.TrimRight(rubric.String(), "\n"),
		"{{BREAKDOWN}}", strings.TrimRight(breakdown.String(), "\n"),
	).Replace(template)
}
