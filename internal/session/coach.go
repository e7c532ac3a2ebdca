package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/interview"
	"github.com/spigell/interview-coach/internal/logger"
	"github.com/spigell/interview-coach/internal/metrics"
	"github.com/spigell/interview-coach/internal/skills"
)

// TextExtractor turns a document on disk into plain text.
type TextExtractor interface {
	ExtractText(path string) (string, error)
}

type SkillExtractor interface {
	ExtractAllSkills(text string) *skills.ExtractionResult
}

type QuestionGenerator interface {
	Generate(ctx context.Context, extraction *skills.ExtractionResult, opts interview.Options) (*interview.Batch, error)
}

type AnswerEvaluator interface {
	Evaluate(ctx context.Context, req interview.EvaluationRequest) *interview.Evaluation
}

// Deps are the collaborators of a Coach.
type Deps struct {
	Documents TextExtractor
	Skills    SkillExtractor
	Questions QuestionGenerator
	Evaluator AnswerEvaluator
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	// TempDir holds uploaded files while they are read. Empty means os.TempDir.
	TempDir string
}

// Coach drives a Session through upload, configure, interview and results.
type Coach struct {
	deps   Deps
	logger *zap.Logger
}

func NewCoach(deps Deps) (*Coach, error) {
	if deps.Documents == nil {
		return nil, fmt.Errorf("document extractor is required")
	}
	if deps.Skills == nil {
		return nil, fmt.Errorf("skill extractor is required")
	}
	if deps.Questions == nil {
		return nil, fmt.Errorf("question generator is required")
	}
	if deps.Evaluator == nil {
		return nil, fmt.Errorf("answer evaluator is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Coach{deps: deps, logger: deps.Logger}, nil
}

// ExtractFromUpload stores the upload in a temporary file named after the
// original extension, extracts its text and skills, and removes the file
// before returning on every path.
func (c *Coach) ExtractFromUpload(ctx context.Context, s *Session, filename string, r io.Reader) (*skills.ExtractionResult, error) {
	if err := s.require(StageUpload, StageConfigure); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := logger.WithSession(c.logger, s.ID)

	path, err := c.saveUpload(filename, r)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("failed to remove uploaded file", zap.String("path", path), zap.Error(err))
		}
	}()

	text, err := c.deps.Documents.ExtractText(path)
	if err != nil {
		return nil, fmt.Errorf("extract text from %q: %w", filename, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %q", ErrEmptyDocument, filename)
	}

	log.Info("resume text extracted", zap.String("file", filename), zap.Int("length", len(text)))

	return c.ExtractFromText(ctx, s, text)
}

func (c *Coach) saveUpload(filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	f, err := os.CreateTemp(c.deps.TempDir, "resume-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close upload file: %w", err)
	}

	return f.Name(), nil
}

// ExtractFromText detects skills in resume text and moves the session to the
// configure stage. Finding no skills is not an error.
func (c *Coach) ExtractFromText(_ context.Context, s *Session, text string) (*skills.ExtractionResult, error) {
	if err := s.require(StageUpload, StageConfigure); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	result := c.deps.Skills.ExtractAllSkills(text)
	for _, skill := range result.Skills() {
		c.deps.Metrics.ObserveSkill(string(skill.Source))
	}

	summary := result.Summary()
	logger.WithSession(c.logger, s.ID).Info("skills extracted",
		zap.Int("total", summary.TotalSkills),
		zap.Int("explicit", summary.Explicit),
		zap.Int("inferred", summary.Inferred),
		zap.Int("categories", summary.CategoriesFound),
	)

	s.Extraction = result
	s.Questions = []interview.Question{}
	s.Answers = map[int]string{}
	s.Evaluations = map[int]*interview.Evaluation{}
	s.Stage = StageConfigure

	return result, nil
}

// GenerateQuestions creates the question list and starts the interview. When
// nothing could be generated the session stays in configure.
func (c *Coach) GenerateQuestions(ctx context.Context, s *Session, opts interview.Options) ([]interview.Question, error) {
	if err := s.require(StageConfigure); err != nil {
		return nil, err
	}

	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if s.Extraction == nil || s.Extraction.TotalSkills == 0 {
		return nil, ErrNoSkills
	}

	log := logger.WithOperation(logger.WithSession(c.logger, s.ID), "generate_questions")

	batch, err := c.deps.Questions.Generate(ctx, s.Extraction, opts)
	if err != nil {
		return nil, err
	}
	for _, failure := range batch.Failures {
		log.Debug("skill produced no questions", zap.String("skill", failure.Skill), zap.Error(failure.Err))
	}
	if len(batch.Questions) == 0 {
		log.Warn("question generation produced nothing", zap.Int("failed_skills", len(batch.Failures)))
		return nil, ErrNoQuestions
	}

	s.Options = opts
	s.Questions = batch.Questions
	s.Answers = map[int]string{}
	s.Evaluations = map[int]*interview.Evaluation{}
	s.Stage = StageInterview

	return batch.Questions, nil
}

// SubmitAnswer evaluates the answer to the question at index and replaces any
// earlier evaluation of it.
func (c *Coach) SubmitAnswer(ctx context.Context, s *Session, index int, answer string) (*interview.Evaluation, error) {
	if err := s.require(StageInterview); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(s.Questions) {
		return nil, fmt.Errorf("%w: %d (have %d questions)", ErrQuestionIndex, index, len(s.Questions))
	}

	question := s.Questions[index]
	result := c.deps.Evaluator.Evaluate(ctx, interview.RequestFor(question, answer))

	s.Answers[index] = answer
	s.Evaluations[index] = result

	logger.WithSession(c.logger, s.ID).Info("answer evaluated",
		zap.Int("question_id", question.ID),
		zap.String("skill", question.Skill),
		zap.Int("score", result.TotalScore),
		zap.String("grade", string(result.Grade)),
	)

	return result, nil
}

// Finish ends the interview and returns the session summary.
func (c *Coach) Finish(s *Session) (*interview.Summary, error) {
	if err := s.require(StageInterview); err != nil {
		return nil, err
	}
	if len(s.Evaluations) == 0 {
		return nil, ErrNoAnswers
	}

	s.Stage = StageResults
	return c.Summary(s), nil
}

// Summary aggregates the evaluations in question order. It returns nil when
// nothing has been evaluated.
func (c *Coach) Summary(s *Session) *interview.Summary {
	indices := s.AnsweredIndices()
	evaluations := make([]interview.Evaluation, 0, len(indices))
	questions := make([]interview.Question, 0, len(indices))
	for _, i := range indices {
		if s.Evaluations[i] == nil || i >= len(s.Questions) {
			continue
		}
		evaluations = append(evaluations, *s.Evaluations[i])
		questions = append(questions, s.Questions[i])
	}
	return interview.Summarize(evaluations, questions)
}

// Reset returns the session to the upload stage from any stage.
func (c *Coach) Reset(s *Session) {
	s.clear()
	logger.WithSession(c.logger, s.ID).Info("session reset")
}
