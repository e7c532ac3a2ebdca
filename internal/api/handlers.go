package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/document"
	"github.com/spigell/interview-coach/internal/interview"
	"github.com/spigell/interview-coach/internal/session"
	"github.com/spigell/interview-coach/internal/skills"
)

type apiResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to encode error response", zap.Error(err))
	}
}

// respondCoachError maps coach and domain errors to HTTP statuses.
func (s *Server) respondCoachError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidStage):
		s.respondError(w, http.StatusConflict, "invalid_stage", err.Error())
	case errors.Is(err, session.ErrNoAnswers):
		s.respondError(w, http.StatusConflict, "no_answers", err.Error())
	case errors.Is(err, session.ErrQuestionIndex):
		s.respondError(w, http.StatusNotFound, "question_not_found", err.Error())
	case errors.Is(err, interview.ErrInvalidOptions):
		s.respondError(w, http.StatusBadRequest, "invalid_options", err.Error())
	case errors.Is(err, document.ErrUnsupportedFormat):
		s.respondError(w, http.StatusUnsupportedMediaType, "unsupported_format", err.Error())
	case errors.Is(err, session.ErrEmptyDocument):
		s.respondError(w, http.StatusUnprocessableEntity, "empty_document", err.Error())
	case errors.Is(err, session.ErrNoSkills):
		s.respondError(w, http.StatusUnprocessableEntity, "no_skills", err.Error())
	case errors.Is(err, session.ErrNoQuestions):
		s.respondError(w, http.StatusBadGateway, "generation_failed", err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// Views

type questionView struct {
	ID          int                    `json:"id"`
	Index       int                    `json:"index"`
	Skill       string                 `json:"skill"`
	Category    string                 `json:"category"`
	Difficulty  interview.Difficulty   `json:"difficulty"`
	Question    string                 `json:"question"`
	Type        interview.QuestionType `json:"type"`
	Hints       []string               `json:"hints"`
	ModelAnswer string                 `json:"model_answer,omitempty"`
	Answered    bool                   `json:"answered"`
}

type sessionView struct {
	ID          string                        `json:"id"`
	Stage       session.Stage                 `json:"stage"`
	StartedAt   time.Time                     `json:"started_at"`
	Extraction  *skills.ExtractionResult      `json:"extraction,omitempty"`
	Skills      *skills.ExtractionSummary     `json:"skills_summary,omitempty"`
	Options     interview.Options             `json:"options"`
	Questions   []questionView                `json:"questions"`
	Evaluations map[int]*interview.Evaluation `json:"evaluations"`
}

// viewOf renders the session. Model answers and answer summaries stay hidden
// until results.
func viewOf(sess *session.Session) sessionView {
	view := sessionView{
		ID:          sess.ID,
		Stage:       sess.Stage,
		StartedAt:   sess.StartedAt,
		Extraction:  sess.Extraction,
		Options:     sess.Options,
		Questions:   make([]questionView, len(sess.Questions)),
		Evaluations: make(map[int]*interview.Evaluation, len(sess.Evaluations)),
	}
	for i, ev := range sess.Evaluations {
		view.Evaluations[i] = evaluationView(sess, ev)
	}
	if sess.Extraction != nil {
		summary := sess.Extraction.Summary()
		view.Skills = &summary
	}
	for i, q := range sess.Questions {
		_, answered := sess.Evaluations[i]
		view.Questions[i] = questionView{
			ID:         q.ID,
			Index:      i,
			Skill:      q.Skill,
			Category:   q.Category,
			Difficulty: q.Difficulty,
			Question:   q.Question,
			Type:       q.Type,
			Hints:      q.Hints,
			Answered:   answered,
		}
		if sess.Stage == session.StageResults {
			view.Questions[i].ModelAnswer = q.ModelAnswer
		}
	}
	return view
}

// evaluationView copies ev without the correct answer summary while the
// interview is still running.
func evaluationView(sess *session.Session, ev *interview.Evaluation) *interview.Evaluation {
	if ev == nil || sess.Stage == session.StageResults {
		return ev
	}
	redacted := *ev
	redacted.CorrectAnswerSummary = ""
	return &redacted
}

// Handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.respondJSON(w, http.StatusOK, viewOf(s.session))
}

func (s *Server) handleUploadResume(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_upload", "expected multipart form with a file field")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_upload", "file field is required")
		return
	}
	defer file.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.coach.ExtractFromUpload(r.Context(), s.session, header.Filename, file); err != nil {
		s.respondCoachError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, viewOf(s.session))
}

type generateRequest struct {
	Difficulty        interview.Difficulty `json:"difficulty"`
	QuestionsPerSkill int                  `json:"questions_per_skill"`
}

func (s *Server) handleGenerateQuestions(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	opts := interview.Options{Difficulty: req.Difficulty, QuestionsPerSkill: req.QuestionsPerSkill}
	if _, err := s.coach.GenerateQuestions(r.Context(), s.session, opts); err != nil {
		s.respondCoachError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, viewOf(s.session))
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_index", "question index must be an integer")
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	evaluation, err := s.coach.SubmitAnswer(r.Context(), s.session, index, req.Answer)
	if err != nil {
		s.respondCoachError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, evaluationView(s.session, evaluation))
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary, err := s.coach.Finish(s.session)
	if err != nil {
		s.respondCoachError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := s.coach.Summary(s.session)
	if summary == nil {
		s.respondError(w, http.StatusNotFound, "no_summary", "no answers evaluated yet")
		return
	}

	s.respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.coach.Reset(s.session)
	s.respondJSON(w, http.StatusOK, viewOf(s.session))
}
