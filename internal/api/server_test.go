package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/document"
	"github.com/spigell/interview-coach/internal/interview"
	"github.com/spigell/interview-coach/internal/metrics"
	"github.com/spigell/interview-coach/internal/session"
	"github.com/spigell/interview-coach/internal/skills"
)

// fakeModel answers by operation: one question per skill, and a fixed
// evaluation worth 80 points.
type fakeModel struct {
	failQuestions atomic.Bool
}

func (f *fakeModel) Complete(_ context.Context, req ai.Request) (string, error) {
	switch req.Operation {
	case ai.OperationGenerateQuestions:
		if f.failQuestions.Load() {
			return "", errors.New("model unavailable")
		}
		return `[{"question": "How do you use this skill?", "type": "practical", "hints": ["be concrete"], "model_answer": "Carefully."}]`, nil
	case ai.OperationEvaluateAnswer:
		return `{"breakdown": {"technical_accuracy": 35, "completeness": 25, "clarity": 15, "practical_insight": 5},
			"strengths": ["clear"], "improvements": ["more depth"], "detailed_feedback": "Solid.", "correct_answer_summary": "Carefully."}`, nil
	default:
		return "", errors.New("unexpected operation")
	}
}

type testServer struct {
	*httptest.Server
	model *fakeModel
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	log := zap.NewNop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	model := &fakeModel{}
	completer := metrics.InstrumentCompleter(model, m, "fake")

	taxonomy, err := skills.DefaultTaxonomy()
	require.NoError(t, err)
	extractor, err := skills.NewExtractor(taxonomy)
	require.NoError(t, err)

	coach, err := session.NewCoach(session.Deps{
		Documents: document.NewExtractor(log, m),
		Skills:    extractor,
		Questions: interview.NewQuestionGenerator(completer, log, m, 0),
		Evaluator: interview.NewEvaluator(completer, log, m, 0),
		Metrics:   m,
		Logger:    log,
		TempDir:   t.TempDir(),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(NewServer(Config{}, coach, reg, log).Router())
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, model: model}
}

// sessionPayload mirrors sessionView with the extraction left raw.
type sessionPayload struct {
	Stage       session.Stage                `json:"stage"`
	Extraction  json.RawMessage              `json:"extraction"`
	Skills      *skills.ExtractionSummary    `json:"skills_summary"`
	Questions   []questionView               `json:"questions"`
	Evaluations map[int]interview.Evaluation `json:"evaluations"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

func decode(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func (s *testServer) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(s.URL+path, "application/json", &buf)
	require.NoError(t, err)
	return resp
}

func (s *testServer) upload(t *testing.T, filename, content string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	resp, err := http.Post(s.URL+"/api/resume", w.FormDataContentType(), &buf)
	require.NoError(t, err)
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode(t, resp).Success)
}

func TestInterviewFlow(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.upload(t, "resume.txt", "Experienced with PostgreSQL and Docker.")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var uploaded sessionPayload
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &uploaded))
	assert.Equal(t, session.StageConfigure, uploaded.Stage)
	assert.NotEmpty(t, uploaded.Extraction)
	require.NotNil(t, uploaded.Skills)
	assert.Equal(t, 2, uploaded.Skills.TotalSkills)

	resp = srv.postJSON(t, "/api/questions", map[string]any{"difficulty": "hard", "questions_per_skill": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var started sessionPayload
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &started))
	assert.Equal(t, session.StageInterview, started.Stage)
	require.Len(t, started.Questions, 2)
	assert.Equal(t, interview.DifficultyHard, started.Questions[0].Difficulty)
	assert.Empty(t, started.Questions[0].ModelAnswer)

	resp = srv.postJSON(t, "/api/questions/0/answer", map[string]string{"answer": "I tune indexes and vacuum."})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var scored interview.Evaluation
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &scored))
	assert.Equal(t, 80, scored.TotalScore)
	assert.Equal(t, interview.GradeGood, scored.Grade)
	assert.Empty(t, scored.CorrectAnswerSummary)

	resp = srv.postJSON(t, "/api/questions/1/answer", map[string]string{"answer": ""})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var blank interview.Evaluation
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &blank))
	assert.Equal(t, 0, blank.TotalScore)

	resp, err := http.Get(srv.URL + "/api/session")
	require.NoError(t, err)
	var answering sessionPayload
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &answering))
	assert.Equal(t, session.StageInterview, answering.Stage)
	require.Contains(t, answering.Evaluations, 0)
	assert.Equal(t, 80, answering.Evaluations[0].TotalScore)
	assert.Empty(t, answering.Evaluations[0].CorrectAnswerSummary)
	assert.Empty(t, answering.Questions[0].ModelAnswer)

	resp = srv.postJSON(t, "/api/finish", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary interview.Summary
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &summary))
	assert.Equal(t, 2, summary.TotalQuestions)
	assert.Equal(t, 40.0, summary.AverageScore)
	assert.Equal(t, 80, summary.HighestScore)
	assert.Equal(t, 0, summary.LowestScore)

	resp, err = http.Get(srv.URL + "/api/session")
	require.NoError(t, err)
	var finished sessionPayload
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &finished))
	assert.Equal(t, session.StageResults, finished.Stage)
	require.Len(t, finished.Questions, 2)
	assert.Equal(t, "Carefully.", finished.Questions[0].ModelAnswer)
	assert.True(t, finished.Questions[1].Answered)
	assert.Equal(t, "Carefully.", finished.Evaluations[0].CorrectAnswerSummary)

	resp, err = http.Get(srv.URL + "/api/summary")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = srv.postJSON(t, "/api/reset", nil)
	var reset sessionPayload
	require.NoError(t, json.Unmarshal(decode(t, resp).Data, &reset))
	assert.Equal(t, session.StageUpload, reset.Stage)
	assert.Empty(t, reset.Questions)
	assert.Empty(t, reset.Extraction)
	assert.Nil(t, reset.Skills)
}

func TestErrorStatuses(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.postJSON(t, "/api/questions", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	env := decode(t, resp)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid_stage", env.Error.Code)

	resp, err := http.Get(srv.URL + "/api/summary")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = srv.upload(t, "resume.odt", "Go")
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	resp.Body.Close()

	resp = srv.upload(t, "resume.txt", "   ")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "empty_document", decode(t, resp).Error.Code)

	resp = srv.upload(t, "resume.txt", "I enjoy gardening.")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = srv.postJSON(t, "/api/questions", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "no_skills", decode(t, resp).Error.Code)

	resp = srv.upload(t, "resume.txt", "Python and Kubernetes")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = srv.postJSON(t, "/api/questions", map[string]any{"difficulty": "extreme"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_options", decode(t, resp).Error.Code)

	srv.model.failQuestions.Store(true)
	resp = srv.postJSON(t, "/api/questions", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	resp.Body.Close()

	srv.model.failQuestions.Store(false)
	resp = srv.postJSON(t, "/api/questions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = srv.postJSON(t, "/api/questions/99/answer", map[string]string{"answer": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = srv.postJSON(t, "/api/questions/abc/answer", map[string]string{"answer": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = srv.postJSON(t, "/api/finish", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "no_answers", decode(t, resp).Error.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.upload(t, "resume.txt", "SQL")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = srv.postJSON(t, "/api/questions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `interview_coach_llm_requests_total{operation="generate_questions",outcome="success",provider="fake"} 1`), text)
	assert.True(t, strings.Contains(text, `interview_coach_documents_extracted_total{format=".txt",outcome="ok"}`), text)
	assert.True(t, strings.Contains(text, `interview_coach_skills_detected_total{source="explicit"} 1`), text)
}

func TestCORSOnlyWhenConfigured(t *testing.T) {
	coach := newTestCoach(t)

	plain := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	NewServer(Config{}, coach, nil, nil).Router().ServeHTTP(plain, req)
	assert.Empty(t, plain.Header().Get("Access-Control-Allow-Origin"))

	allowed := httptest.NewRecorder()
	NewServer(Config{AllowedOrigins: []string{"http://localhost:3000"}}, coach, nil, nil).Router().ServeHTTP(allowed, req)
	assert.Equal(t, "http://localhost:3000", allowed.Header().Get("Access-Control-Allow-Origin"))
}

func newTestCoach(t *testing.T) *session.Coach {
	t.Helper()

	taxonomy, err := skills.DefaultTaxonomy()
	require.NoError(t, err)
	extractor, err := skills.NewExtractor(taxonomy)
	require.NoError(t, err)

	model := &fakeModel{}
	coach, err := session.NewCoach(session.Deps{
		Documents: document.NewExtractor(nil, nil),
		Skills:    extractor,
		Questions: interview.NewQuestionGenerator(model, nil, nil, 0),
		Evaluator: interview.NewEvaluator(model, nil, nil, 0),
	})
	require.NoError(t, err)
	return coach
}
