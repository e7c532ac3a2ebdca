package interview

import (
	"math"
	"strconv"
)

type Grade string

const (
	GradeExcellent        Grade = "Excellent"
	GradeGood             Grade = "Good"
	GradeAverage          Grade = "Average"
	GradeNeedsImprovement Grade = "Needs Improvement"
	GradeError            Grade = "Error"
)

// GradeForScore maps a score to a grade using inclusive lower bounds.
func GradeForScore(score float64) Grade {
	switch {
	case score >= 85:
		return GradeExcellent
	case score >= 70:
		return GradeGood
	case score >= 50:
		return GradeAverage
	default:
		return GradeNeedsImprovement
	}
}

type Criterion string

const (
	TechnicalAccuracy Criterion = "technical_accuracy"
	Completeness      Criterion = "completeness"
	Clarity           Criterion = "clarity"
	PracticalInsight  Criterion = "practical_insight"
)

type RubricItem struct {
	Criterion   Criterion
	MaxPoints   int
	Description string
}

// Rubric is the fixed scoring rubric. The maxima add up to 100.
var Rubric = []RubricItem{
	{Criterion: TechnicalAccuracy, MaxPoints: 40, Description: "factual correctness"},
	{Criterion: Completeness, MaxPoints: 30, Description: "key points covered"},
	{Criterion: Clarity, MaxPoints: 20, Description: "explanation quality"},
	{Criterion: PracticalInsight, MaxPoints: 10, Description: "real-world awareness"},
}

// clampPoints rounds v and bounds it to [0, max].
func clampPoints(v float64, max int) int {
	points := int(math.Round(v))
	if points < 0 {
		return 0
	}
	if points > max {
		return max
	}
	return points
}

// roundScore rounds to one decimal place using the exact binary value of v,
// with exact ties going to the even digit: 70.25 becomes 70.2 and 70.75
// becomes 70.8.
func roundScore(v float64) float64 {
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 1, 64), 64)
	if err != nil {
		return v
	}
	return rounded
}
