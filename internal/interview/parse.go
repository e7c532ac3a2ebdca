package interview

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/spigell/interview-coach/internal/ai"
)

// ErrMalformedResponse marks model output that could not be turned into a result.
var ErrMalformedResponse = errors.New("malformed model response")

// Parse stages reported by ParseError.
const (
	StageDecode   = "decode"
	StageValidate = "validate"
	StageConvert  = "convert"
)

// ParseError describes where parsing of a model response failed. It matches
// ErrMalformedResponse with errors.Is.
type ParseError struct {
	Stage string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrMalformedResponse, e.Stage, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrMalformedResponse, e.Err}
}

//go:embed schemas/question.schema.json
var questionSchemaJSON string

//go:embed schemas/evaluation.schema.json
var evaluationSchemaJSON string

var (
	questionSchema   *jsonschema.Schema
	evaluationSchema *jsonschema.Schema
)

func init() {
	questionSchema = mustCompileSchema(questionSchemaJSON, "question.schema.json")
	evaluationSchema = mustCompileSchema(evaluationSchemaJSON, "evaluation.schema.json")
}

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

type questionPayload struct {
	Question    string   `mapstructure:"question"`
	Type        string   `mapstructure:"type"`
	Hints       []string `mapstructure:"hints"`
	ModelAnswer string   `mapstructure:"model_answer"`
}

type evaluationPayload struct {
	Breakdown            map[string]any `mapstructure:"breakdown"`
	Strengths            []string       `mapstructure:"strengths"`
	Improvements         []string       `mapstructure:"improvements"`
	DetailedFeedback     string         `mapstructure:"detailed_feedback"`
	CorrectAnswerSummary string         `mapstructure:"correct_answer_summary"`
}

// parseQuestions accepts a JSON array of question objects or a single object.
// Items failing validation are skipped; the result fails only when no item
// survives.
func parseQuestions(raw string) ([]questionPayload, int, error) {
	data, err := ai.DecodeJSON(raw)
	if err != nil {
		return nil, 0, &ParseError{Stage: StageDecode, Err: err}
	}

	var items []any
	switch v := data.(type) {
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
	default:
		return nil, 0, &ParseError{Stage: StageDecode, Err: fmt.Errorf("expected a JSON array or object, got %T", data)}
	}

	var (
		out     []questionPayload
		skipped int
		lastErr error
	)
	for _, item := range items {
		if err := questionSchema.Validate(item); err != nil {
			skipped++
			lastErr = &ParseError{Stage: StageValidate, Err: err}
			continue
		}
		var payload questionPayload
		if err := decodeLoose(item, &payload); err != nil {
			skipped++
			lastErr = &ParseError{Stage: StageConvert, Err: err}
			continue
		}
		payload.Question = strings.TrimSpace(payload.Question)
		if payload.Question == "" {
			skipped++
			lastErr = &ParseError{Stage: StageValidate, Err: errors.New("question text is blank")}
			continue
		}
		out = append(out, payload)
	}

	if len(out) == 0 {
		if lastErr == nil {
			lastErr = &ParseError{Stage: StageValidate, Err: errors.New("response contains no questions")}
		}
		return nil, skipped, lastErr
	}
	return out, skipped, nil
}

// parseEvaluation decodes a rubric response. Breakdown values are rounded and
// clamped to each criterion's maximum; any total in the response is ignored.
func parseEvaluation(raw string) (*Evaluation, error) {
	data, err := ai.DecodeJSON(raw)
	if err != nil {
		return nil, &ParseError{Stage: StageDecode, Err: err}
	}
	if _, ok := data.(map[string]any); !ok {
		return nil, &ParseError{Stage: StageDecode, Err: fmt.Errorf("expected a JSON object, got %T", data)}
	}
	if err := evaluationSchema.Validate(data); err != nil {
		return nil, &ParseError{Stage: StageValidate, Err: err}
	}

	var payload evaluationPayload
	if err := decodeLoose(data, &payload); err != nil {
		return nil, &ParseError{Stage: StageConvert, Err: err}
	}

	breakdown := make(map[Criterion]int, len(Rubric))
	for _, item := range Rubric {
		value, ok := payload.Breakdown[string(item.Criterion)]
		if !ok || value == nil {
			breakdown[item.Criterion] = 0
			continue
		}
		points := coerceFloat(value)
		if math.IsNaN(points) {
			return nil, &ParseError{Stage: StageConvert, Err: fmt.Errorf("%s: not a number: %v", item.Criterion, value)}
		}
		breakdown[item.Criterion] = clampPoints(points, item.MaxPoints)
	}

	return &Evaluation{
		Breakdown:            breakdown,
		Strengths:            cleanList(payload.Strengths),
		Improvements:         cleanList(payload.Improvements),
		DetailedFeedback:     strings.TrimSpace(payload.DetailedFeedback),
		CorrectAnswerSummary: strings.TrimSpace(payload.CorrectAnswerSummary),
	}, nil
}

func decodeLoose(input any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		trimmed := strings.TrimSpace(val)
		trimmed = strings.TrimSpace(strings.SplitN(trimmed, "/", 2)[0])
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
