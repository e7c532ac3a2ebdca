package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/interview"
	"github.com/spigell/interview-coach/internal/skills"
)

type fakeDocuments struct {
	paths   []string
	content []string
	text    string
	err     error
}

func (f *fakeDocuments) ExtractText(path string) (string, error) {
	f.paths = append(f.paths, path)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	f.content = append(f.content, string(data))
	return f.text, f.err
}

type fakeGenerator struct {
	calls int
	opts  interview.Options
	empty bool
}

func (f *fakeGenerator) Generate(_ context.Context, extraction *skills.ExtractionResult, opts interview.Options) (*interview.Batch, error) {
	f.calls++
	f.opts = opts
	batch := &interview.Batch{}
	if f.empty {
		return batch, nil
	}
	for _, skill := range extraction.Skills() {
		batch.Questions = append(batch.Questions, interview.Question{
			ID:         len(batch.Questions) + 1,
			Skill:      skill.Name,
			Category:   skill.Category,
			Difficulty: opts.Difficulty,
			Question:   "Explain " + skill.Name,
		})
	}
	return batch, nil
}

// scoreEvaluator scores an answer with the number it contains.
type scoreEvaluator struct {
	requests []interview.EvaluationRequest
}

func (f *scoreEvaluator) Evaluate(_ context.Context, req interview.EvaluationRequest) *interview.Evaluation {
	f.requests = append(f.requests, req)
	score, _ := strconv.Atoi(strings.TrimSpace(req.Answer))
	return &interview.Evaluation{
		TotalScore: score,
		Grade:      interview.GradeForScore(float64(score)),
		Strengths:  []string{"answered " + req.Skill},
	}
}

type fixture struct {
	coach     *Coach
	documents *fakeDocuments
	generator *fakeGenerator
	evaluator *scoreEvaluator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	taxonomy, err := skills.DefaultTaxonomy()
	require.NoError(t, err)
	extractor, err := skills.NewExtractor(taxonomy)
	require.NoError(t, err)

	f := &fixture{
		documents: &fakeDocuments{},
		generator: &fakeGenerator{},
		evaluator: &scoreEvaluator{},
	}
	f.coach, err = NewCoach(Deps{
		Documents: f.documents,
		Skills:    extractor,
		Questions: f.generator,
		Evaluator: f.evaluator,
		Logger:    zap.NewNop(),
		TempDir:   t.TempDir(),
	})
	require.NoError(t, err)
	return f
}

func TestNewCoachRequiresDeps(t *testing.T) {
	_, err := NewCoach(Deps{})
	assert.Error(t, err)
}

func TestSessionFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := New()
	require.Equal(t, StageUpload, s.Stage)
	require.NotEmpty(t, s.ID)

	extraction, err := f.coach.ExtractFromText(ctx, s, "Worked with PostgreSQL and MySQL for years.")
	require.NoError(t, err)
	assert.Equal(t, 2, extraction.TotalSkills)
	assert.Equal(t, StageConfigure, s.Stage)

	questions, err := f.coach.GenerateQuestions(ctx, s, interview.Options{Difficulty: interview.DifficultyEasy, QuestionsPerSkill: 1})
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, StageInterview, s.Stage)
	assert.Equal(t, interview.DifficultyEasy, s.Options.Difficulty)

	_, err = f.coach.SubmitAnswer(ctx, s, 0, "80")
	require.NoError(t, err)
	_, err = f.coach.SubmitAnswer(ctx, s, 1, "60")
	require.NoError(t, err)

	result, err := f.coach.SubmitAnswer(ctx, s, 1, "70")
	require.NoError(t, err)
	assert.Equal(t, 70, result.TotalScore)
	assert.Len(t, s.Evaluations, 2)
	assert.Equal(t, "70", s.Answers[1])

	summary, err := f.coach.Finish(s)
	require.NoError(t, err)
	assert.Equal(t, StageResults, s.Stage)
	assert.Equal(t, 2, summary.TotalQuestions)
	assert.Equal(t, 75.0, summary.AverageScore)
	assert.Equal(t, map[string]float64{"Databases": 75}, summary.CategoryAverages)
	assert.Equal(t, 80, summary.HighestScore)
	assert.Equal(t, 70, summary.LowestScore)
}

func TestSummaryUsesQuestionOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := New()

	_, err := f.coach.ExtractFromText(ctx, s, "Python developer. Docker in production.")
	require.NoError(t, err)
	_, err = f.coach.GenerateQuestions(ctx, s, interview.Options{QuestionsPerSkill: 1})
	require.NoError(t, err)
	require.Len(t, s.Questions, 2)

	_, err = f.coach.SubmitAnswer(ctx, s, 1, "40")
	require.NoError(t, err)
	_, err = f.coach.SubmitAnswer(ctx, s, 0, "90")
	require.NoError(t, err)

	summary := f.coach.Summary(s)
	require.NotNil(t, summary)
	assert.Equal(t, map[string]float64{"Programming Languages": 90, "Cloud & DevOps": 40}, summary.CategoryAverages)
	assert.Equal(t, []string{"answered Python", "answered Docker"}, summary.TopStrengths)
}

func TestExtractFromUploadRemovesFile(t *testing.T) {
	f := newFixture(t)
	f.documents.text = "Kubernetes and Go"
	s := New()

	result, err := f.coach.ExtractFromUpload(context.Background(), s, "CV.Final.PDF", strings.NewReader("%PDF bytes"))
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalSkills)
	assert.Equal(t, StageConfigure, s.Stage)

	require.Len(t, f.documents.paths, 1)
	assert.Equal(t, ".pdf", filepath.Ext(f.documents.paths[0]))
	assert.Equal(t, []string{"%PDF bytes"}, f.documents.content)
	_, statErr := os.Stat(f.documents.paths[0])
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "upload must be removed")
}

func TestExtractFromUploadFailures(t *testing.T) {
	tests := []struct {
		name string
		text string
		err  error
		want error
	}{
		{name: "empty text", text: "  ", want: ErrEmptyDocument},
		{name: "extractor error", err: errors.New("unsupported document format"), want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.documents.text = tt.text
			f.documents.err = tt.err
			s := New()

			_, err := f.coach.ExtractFromUpload(context.Background(), s, "resume.txt", strings.NewReader("data"))
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
			assert.Equal(t, StageUpload, s.Stage)
			assert.Nil(t, s.Extraction)

			require.Len(t, f.documents.paths, 1)
			_, statErr := os.Stat(f.documents.paths[0])
			assert.True(t, errors.Is(statErr, os.ErrNotExist))
		})
	}
}

func TestStageGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := New()

	_, err := f.coach.GenerateQuestions(ctx, s, interview.DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidStage)

	_, err = f.coach.SubmitAnswer(ctx, s, 0, "50")
	assert.ErrorIs(t, err, ErrInvalidStage)

	_, err = f.coach.Finish(s)
	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageUpload, stageErr.Current)

	_, err = f.coach.ExtractFromText(ctx, s, "Go")
	require.NoError(t, err)
	_, err = f.coach.GenerateQuestions(ctx, s, interview.DefaultOptions())
	require.NoError(t, err)

	_, err = f.coach.ExtractFromText(ctx, s, "Java")
	assert.ErrorIs(t, err, ErrInvalidStage)

	_, err = f.coach.SubmitAnswer(ctx, s, len(s.Questions), "50")
	assert.ErrorIs(t, err, ErrQuestionIndex)
	_, err = f.coach.SubmitAnswer(ctx, s, -1, "50")
	assert.ErrorIs(t, err, ErrQuestionIndex)

	_, err = f.coach.Finish(s)
	assert.ErrorIs(t, err, ErrNoAnswers)
	assert.Equal(t, StageInterview, s.Stage)
}

func TestGenerateQuestionsFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := New()

	_, err := f.coach.ExtractFromText(ctx, s, "I enjoy gardening.")
	require.NoError(t, err)
	_, err = f.coach.GenerateQuestions(ctx, s, interview.DefaultOptions())
	assert.ErrorIs(t, err, ErrNoSkills)
	assert.Zero(t, f.generator.calls)

	_, err = f.coach.ExtractFromText(ctx, s, "SQL")
	require.NoError(t, err)

	_, err = f.coach.GenerateQuestions(ctx, s, interview.Options{Difficulty: "insane"})
	assert.ErrorIs(t, err, interview.ErrInvalidOptions)

	f.generator.empty = true
	_, err = f.coach.GenerateQuestions(ctx, s, interview.DefaultOptions())
	assert.ErrorIs(t, err, ErrNoQuestions)
	assert.Equal(t, StageConfigure, s.Stage)
	assert.Empty(t, s.Questions)
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := New()
	id := s.ID

	_, err := f.coach.ExtractFromText(ctx, s, "React")
	require.NoError(t, err)
	_, err = f.coach.GenerateQuestions(ctx, s, interview.DefaultOptions())
	require.NoError(t, err)
	_, err = f.coach.SubmitAnswer(ctx, s, 0, "99")
	require.NoError(t, err)
	_, err = f.coach.Finish(s)
	require.NoError(t, err)

	f.coach.Reset(s)

	assert.Equal(t, id, s.ID)
	assert.Equal(t, StageUpload, s.Stage)
	assert.Nil(t, s.Extraction)
	assert.Empty(t, s.Questions)
	assert.Empty(t, s.Answers)
	assert.Empty(t, s.Evaluations)
	assert.Nil(t, f.coach.Summary(s))
}
