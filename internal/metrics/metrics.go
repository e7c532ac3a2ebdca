package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/spigell/interview-coach/internal/ai"
)

const namespace = "interview_coach"

// Metrics holds the Prometheus collectors of the coach. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	LLMRequests        *prometheus.CounterVec
	LLMLatency         *prometheus.HistogramVec
	QuestionsCreated   *prometheus.CounterVec
	SkillFailures      *prometheus.CounterVec
	SkillsDetected     *prometheus.CounterVec
	EvaluationScores   prometheus.Histogram
	EvaluationGrades   *prometheus.CounterVec
	DocumentsExtracted *prometheus.CounterVec
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LLMRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_requests_total",
				Help:      "LLM completion requests by provider, operation and outcome",
			},
			[]string{"provider", "operation", "outcome"},
		),
		LLMLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_request_duration_seconds",
				Help:      "Duration of LLM completion requests",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 9), // 0.25s to 64s
			},
			[]string{"provider", "operation"},
		),
		QuestionsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "questions_generated_total",
				Help:      "Interview questions generated by difficulty",
			},
			[]string{"difficulty"},
		),
		SkillFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "skill_generation_failures_total",
				Help:      "Skills that yielded no questions",
			},
			[]string{"category"},
		),
		SkillsDetected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "skills_detected_total",
				Help:      "Skills detected in resumes by source",
			},
			[]string{"source"},
		),
		EvaluationScores: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_score",
				Help:      "Total rubric score of evaluated answers",
				Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 85, 100},
			},
		),
		EvaluationGrades: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Evaluated answers by grade",
			},
			[]string{"grade"},
		),
		DocumentsExtracted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_extracted_total",
				Help:      "Uploaded documents by format and outcome",
			},
			[]string{"format", "outcome"},
		),
	}
}

func (m *Metrics) ObserveQuestions(difficulty string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.QuestionsCreated.WithLabelValues(difficulty).Add(float64(n))
}

func (m *Metrics) ObserveSkillFailure(category string) {
	if m == nil {
		return
	}
	m.SkillFailures.WithLabelValues(category).Inc()
}

func (m *Metrics) ObserveSkill(source string) {
	if m == nil {
		return
	}
	m.SkillsDetected.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveEvaluation(grade string, score int) {
	if m == nil {
		return
	}
	m.EvaluationGrades.WithLabelValues(grade).Inc()
	m.EvaluationScores.Observe(float64(score))
}

func (m *Metrics) ObserveDocument(format, outcome string) {
	if m == nil {
		return
	}
	m.DocumentsExtracted.WithLabelValues(format, outcome).Inc()
}

// InstrumentCompleter wraps next so every call is counted and timed.
func InstrumentCompleter(next ai.Completer, m *Metrics, provider string) ai.Completer {
	if m == nil {
		return next
	}
	return &instrumentedCompleter{next: next, metrics: m, provider: provider}
}

type instrumentedCompleter struct {
	next     ai.Completer
	metrics  *Metrics
	provider string
}

func (c *instrumentedCompleter) Complete(ctx context.Context, req ai.Request) (string, error) {
	start := time.Now()
	out, err := c.next.Complete(ctx, req)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}

	operation := string(req.Operation)
	c.metrics.LLMRequests.WithLabelValues(c.provider, operation, outcome).Inc()
	c.metrics.LLMLatency.WithLabelValues(c.provider, operation).Observe(time.Since(start).Seconds())

	return out, err
}
