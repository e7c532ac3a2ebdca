package interview

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidOptions is returned when difficulty or questions per skill are out of range.
var ErrInvalidOptions = errors.New("invalid interview options")

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists the accepted difficulty values.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

type QuestionType string

const (
	QuestionConceptual QuestionType = "conceptual"
	QuestionPractical  QuestionType = "practical"
	QuestionScenario   QuestionType = "scenario"
)

func parseQuestionType(s string) QuestionType {
	switch t := QuestionType(strings.ToLower(strings.TrimSpace(s))); t {
	case QuestionConceptual, QuestionPractical, QuestionScenario:
		return t
	default:
		return QuestionConceptual
	}
}

// Question is one generated interview question. IDs are 1-based and follow
// the order in which skills were processed.
type Question struct {
	ID          int          `json:"id"`
	Skill       string       `json:"skill"`
	Category    string       `json:"category"`
	Difficulty  Difficulty   `json:"difficulty"`
	Question    string       `json:"question"`
	Type        QuestionType `json:"type"`
	Hints       []string     `json:"hints"`
	ModelAnswer string       `json:"model_answer"`
}

const (
	DefaultDifficulty        = DifficultyMedium
	DefaultQuestionsPerSkill = 2
	MinQuestionsPerSkill     = 1
	MaxQuestionsPerSkill     = 3
)

// Options configure question generation.
type Options struct {
	Difficulty        Difficulty `json:"difficulty" mapstructure:"difficulty"`
	QuestionsPerSkill int        `json:"questions_per_skill" mapstructure:"questions-per-skill"`
}

func DefaultOptions() Options {
	return Options{Difficulty: DefaultDifficulty, QuestionsPerSkill: DefaultQuestionsPerSkill}
}

// WithDefaults fills zero values with defaults.
func (o Options) WithDefaults() Options {
	if strings.TrimSpace(string(o.Difficulty)) == "" {
		o.Difficulty = DefaultDifficulty
	}
	if o.QuestionsPerSkill == 0 {
		o.QuestionsPerSkill = DefaultQuestionsPerSkill
	}
	o.Difficulty = Difficulty(strings.ToLower(strings.TrimSpace(string(o.Difficulty))))
	return o
}

func (o Options) Validate() error {
	switch o.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		return fmt.Errorf("%w: difficulty %q must be one of easy, medium, hard", ErrInvalidOptions, o.Difficulty)
	}
	if o.QuestionsPerSkill < MinQuestionsPerSkill || o.QuestionsPerSkill > MaxQuestionsPerSkill {
		return fmt.Errorf("%w: questions per skill must be between %d and %d, got %d",
			ErrInvalidOptions, MinQuestionsPerSkill, MaxQuestionsPerSkill, o.QuestionsPerSkill)
	}
	return nil
}
