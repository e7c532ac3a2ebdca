package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/spigell/interview-coach/internal/ai"
)

type stubCompleter struct {
	err error
}

func (s stubCompleter) Complete(context.Context, ai.Request) (string, error) {
	return "ok", s.err
}

func TestInstrumentCompleterCountsOutcomes(t *testing.T) {
	m := New(prometheus.NewRegistry())

	ok := InstrumentCompleter(stubCompleter{}, m, "gemini")
	failing := InstrumentCompleter(stubCompleter{err: errors.New("boom")}, m, "gemini")

	_, err := ok.Complete(context.Background(), ai.Request{Operation: ai.OperationEvaluateAnswer})
	require.NoError(t, err)
	_, err = failing.Complete(context.Background(), ai.Request{Operation: ai.OperationEvaluateAnswer})
	require.Error(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(m.LLMRequests.WithLabelValues("gemini", "evaluate_answer", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.LLMRequests.WithLabelValues("gemini", "evaluate_answer", "error")))
	require.Equal(t, 1, testutil.CollectAndCount(m.LLMLatency))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveQuestions("easy", 3)
	m.ObserveSkillFailure("Databases")
	m.ObserveSkill("explicit")
	m.ObserveEvaluation("Good", 72)
	m.ObserveDocument(".pdf", "ok")

	c := stubCompleter{}
	require.Equal(t, ai.Completer(c), InstrumentCompleter(c, nil, "gemini"))
}

func TestObserveHelpers(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveQuestions("hard", 4)
	m.ObserveQuestions("hard", 0)
	m.ObserveEvaluation("Excellent", 90)

	require.Equal(t, 4.0, testutil.ToFloat64(m.QuestionsCreated.WithLabelValues("hard")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.EvaluationGrades.WithLabelValues("Excellent")))
}
