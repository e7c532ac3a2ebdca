package interview

import "github.com/spigell/interview-coach/internal/skills"

const maxHighlights = 5

// Summary is the session report derived from a set of evaluations.
type Summary struct {
	TotalQuestions   int                `json:"total_questions"`
	AverageScore     float64            `json:"average_score"`
	OverallGrade     Grade              `json:"overall_grade"`
	HighestScore     int                `json:"highest_score"`
	LowestScore      int                `json:"lowest_score"`
	CategoryAverages map[string]float64 `json:"category_averages"`
	TopStrengths     []string           `json:"top_strengths"`
	TopImprovements  []string           `json:"top_improvements"`
}

// Summarize aggregates evaluations. questions[i] is the question evaluations[i]
// answered; extra questions are ignored and evaluations without a question
// are left out of the category averages. It returns nil when there is nothing
// to report.
func Summarize(evaluations []Evaluation, questions []Question) *Summary {
	if len(evaluations) == 0 {
		return nil
	}

	summary := &Summary{
		TotalQuestions:   len(evaluations),
		HighestScore:     evaluations[0].TotalScore,
		LowestScore:      evaluations[0].TotalScore,
		CategoryAverages: make(map[string]float64),
	}

	var (
		total          int
		categoryTotals = make(map[string]int)
		categoryCounts = make(map[string]int)
		strengths      []string
		improvements   []string
	)

	for i, e := range evaluations {
		total += e.TotalScore
		summary.HighestScore = max(summary.HighestScore, e.TotalScore)
		summary.LowestScore = min(summary.LowestScore, e.TotalScore)

		if i < len(questions) {
			category := questions[i].Category
			if category == "" {
				category = skills.OtherCategory
			}
			categoryTotals[category] += e.TotalScore
			categoryCounts[category]++
		}

		strengths = append(strengths, e.Strengths...)
		improvements = append(improvements, e.Improvements...)
	}

	summary.AverageScore = roundScore(float64(total) / float64(len(evaluations)))
	summary.OverallGrade = GradeForScore(summary.AverageScore)
	for category, sum := range categoryTotals {
		summary.CategoryAverages[category] = roundScore(float64(sum) / float64(categoryCounts[category]))
	}
	summary.TopStrengths = firstUnique(strengths, maxHighlights)
	summary.TopImprovements = firstUnique(improvements, maxHighlights)

	return summary
}

func firstUnique(items []string, limit int) []string {
	out := make([]string, 0, limit)
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out
}
