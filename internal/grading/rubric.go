package grading

import "ieltsprep/internal/models"

var (
	WritingCriteria = []string{
		"Task Achievement",
		"Coherence & Cohesion",
		"Lexical Resource",
		"Grammatical Range & Accuracy",
	}

	SpeakingCriteria = []string{
		"Fluency & Coherence",
		"Lexical Resource",
		"Grammatical Range & Accuracy",
		"Pronunciation",
	}
)

// CriteriaFor returns the fixed rubric for an open-ended question type
func CriteriaFor(qt models.QuestionType) []string {
	switch qt {
	case models.QuestionEssay:
		return WritingCriteria
	case models.QuestionSpeaking:
		return SpeakingCriteria
	}
	return nil
}

// NormalizeRubric returns one rounded score per fixed criterion, in rubric order.
// Criteria missing from scores get the overall band.
func NormalizeRubric(qt models.QuestionType, scores map[string]float64, overall float64) models.RubricScores {
	criteria := CriteriaFor(qt)
	out := make(models.RubricScores, 0, len(criteria))
	for _, c := range criteria {
		band, ok := scores[c]
		if !ok {
			band = overall
		}
		out = append(out, models.CriterionScore{Criterion: c, Band: RoundBand(band)})
	}
	return out
}
