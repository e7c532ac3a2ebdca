package interview

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/metrics"
	"github.com/spigell/interview-coach/internal/skills"
	"github.com/spigell/interview-coach/internal/utils"
)

//go:embed prompts/questions.md
var questionPromptTemplate string

const (
	questionSystemPrompt = "You are a technical interview question generator. Always respond with valid JSON only, no markdown, no extra text."
	questionTemperature  = 0.7
	questionMaxTokens    = 1500

	defaultMaxLogLength = 200
)

// SkillFailure records a skill that produced no questions.
type SkillFailure struct {
	Skill    string
	Category string
	Err      error
}

// Batch is the outcome of one generation run.
type Batch struct {
	Questions []Question
	Failures  []SkillFailure
}

type QuestionGenerator struct {
	completer ai.Completer
	logger    *zap.Logger
	metrics   *metrics.Metrics
	maxLogLen int
}

func NewQuestionGenerator(completer ai.Completer, logger *zap.Logger, m *metrics.Metrics, maxLogLength int) *QuestionGenerator {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &QuestionGenerator{
		completer: completer,
		logger:    logger,
		metrics:   m,
		maxLogLen: maxLogLength,
	}
}

// Generate asks for opts.QuestionsPerSkill questions per detected skill, one
// skill at a time. A skill whose request or response fails contributes no
// questions and is reported in Batch.Failures. Only invalid options and a
// cancelled context are returned as errors.
func (g *QuestionGenerator) Generate(ctx context.Context, extraction *skills.ExtractionResult, opts Options) (*Batch, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	detected := extraction.Skills()
	batch := &Batch{Questions: []Question{}}
	if len(detected) == 0 {
		g.logger.Info("no skills detected; skipping question generation")
		return batch, nil
	}

	for _, skill := range detected {
		if err := ctx.Err(); err != nil {
			return batch, fmt.Errorf("question generation interrupted: %w", err)
		}

		questions, err := g.generateForSkill(ctx, skill, opts)
		if err != nil {
			g.logger.Warn("question generation failed for skill",
				zap.String("skill", skill.Name),
				zap.String("category", skill.Category),
				zap.Error(err),
			)
			g.metrics.ObserveSkillFailure(skill.Category)
			batch.Failures = append(batch.Failures, SkillFailure{Skill: skill.Name, Category: skill.Category, Err: err})
			continue
		}

		for _, q := range questions {
			q.ID = len(batch.Questions) + 1
			batch.Questions = append(batch.Questions, q)
		}
	}

	g.metrics.ObserveQuestions(string(opts.Difficulty), len(batch.Questions))
	g.logger.Info("questions generated",
		zap.Int("skills", len(detected)),
		zap.Int("questions", len(batch.Questions)),
		zap.Int("failed_skills", len(batch.Failures)),
	)

	return batch, nil
}

func (g *QuestionGenerator) generateForSkill(ctx context.Context, skill skills.DetectedSkill, opts Options) ([]Question, error) {
	prompt := buildQuestionPrompt(skill.Name, skill.Category, opts.Difficulty, opts.QuestionsPerSkill)

	g.logger.Debug("question generation request",
		zap.String("skill", skill.Name),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, g.maxLogLen)),
	)

	raw, err := g.completer.Complete(ctx, ai.Request{
		Operation:   ai.OperationGenerateQuestions,
		System:      questionSystemPrompt,
		Prompt:      prompt,
		Temperature: questionTemperature,
		MaxTokens:   questionMaxTokens,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}

	g.logger.Debug("question generation response",
		zap.String("skill", skill.Name),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, g.maxLogLen)),
	)

	payloads, skipped, err := parseQuestions(raw)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		g.logger.Debug("skipped malformed questions", zap.String("skill", skill.Name), zap.Int("skipped", skipped))
	}
	if len(payloads) > opts.QuestionsPerSkill {
		payloads = payloads[:opts.QuestionsPerSkill]
	}

	questions := make([]Question, 0, len(payloads))
	for _, p := range payloads {
		questions = append(questions, Question{
			Skill:       skill.Name,
			Category:    skill.Category,
			Difficulty:  opts.Difficulty,
			Question:    p.Question,
			Type:        parseQuestionType(p.Type),
			Hints:       cleanList(p.Hints),
			ModelAnswer: strings.TrimSpace(p.ModelAnswer),
		})
	}
	return questions, nil
}

func buildQuestionPrompt(skill, category string, difficulty Difficulty, count int) string {
	template := questionPromptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Generate {{COUNT}} {{DIFFICULTY}} interview questions about {{SKILL}} ({{CATEGORY}}) as a JSON array."
	}
	return strings.NewReplacer(
		"{{COUNT}}", strconv.Itoa(count),
		"{{SKILL}}", skill,
		"{{CATEGORY}}", category,
		"{{DIFFICULTY}}", string(difficulty),
	).Replace(template)
}
