package session

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/spigell/interview-coach/internal/interview"
	"github.com/spigell/interview-coach/internal/skills"
)

type Stage string

const (
	StageUpload    Stage = "upload"
	StageConfigure Stage = "configure"
	StageInterview Stage = "interview"
	StageResults   Stage = "results"
)

var (
	ErrInvalidStage  = errors.New("operation not allowed in current stage")
	ErrQuestionIndex = errors.New("question index out of range")
	ErrNoSkills      = errors.New("no skills detected")
	ErrNoQuestions   = errors.New("question generation produced no questions")
	ErrNoAnswers     = errors.New("no answers have been evaluated")
	ErrEmptyDocument = errors.New("could not extract text from document")
)

// Session is the state of one resume-to-results run. It is owned by the
// caller; Coach methods mutate it and are not safe for concurrent use on the
// same Session.
type Session struct {
	ID          string                        `json:"id"`
	Stage       Stage                         `json:"stage"`
	StartedAt   time.Time                     `json:"started_at"`
	Extraction  *skills.ExtractionResult      `json:"extraction,omitempty"`
	Options     interview.Options             `json:"options"`
	Questions   []interview.Question          `json:"questions"`
	Answers     map[int]string                `json:"answers"`
	Evaluations map[int]*interview.Evaluation `json:"evaluations"`
}

func New() *Session {
	s := &Session{ID: uuid.NewString()}
	s.clear()
	return s
}

func (s *Session) clear() {
	s.Stage = StageUpload
	s.StartedAt = time.Now().UTC()
	s.Extraction = nil
	s.Options = interview.DefaultOptions()
	s.Questions = []interview.Question{}
	s.Answers = map[int]string{}
	s.Evaluations = map[int]*interview.Evaluation{}
}

func (s *Session) require(stages ...Stage) error {
	for _, stage := range stages {
		if s.Stage == stage {
			return nil
		}
	}
	return &StageError{Current: s.Stage, Allowed: stages}
}

// AnsweredIndices returns the indices of evaluated questions in ascending order.
func (s *Session) AnsweredIndices() []int {
	indices := make([]int, 0, len(s.Evaluations))
	for i := range s.Evaluations {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	return indices
}

// StageError reports a transition attempted from the wrong stage.
type StageError struct {
	Current Stage
	Allowed []Stage
}

func (e *StageError) Error() string {
	return ErrInvalidStage.Error() + ": stage is " + string(e.Current)
}

func (e *StageError) Unwrap() error { return ErrInvalidStage }
