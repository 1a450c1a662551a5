package grading

type Level string

const (
	LevelExcellent        Level = "excellent"
	LevelGood             Level = "good"
	LevelPassing          Level = "passing"
	LevelNeedsImprovement Level = "needs_improvement"
)

var feedback = map[Level]string{
	LevelExcellent:        "Outstanding work! You've mastered this material.",
	LevelGood:             "Good job! You have a solid understanding.",
	LevelPassing:          "You passed! Review the incorrect answers to strengthen your knowledge.",
	LevelNeedsImprovement: "Keep studying! Review the correct answers and try again.",
}

func levelFor(pct float64, passed bool) Level {
	switch {
	case !passed:
		return LevelNeedsImprovement
	case pct >= 90:
		return LevelExcellent
	case pct >= 75:
		return LevelGood
	default:
		return LevelPassing
	}
}

// QuestionResult is the verdict for one question of a submission.
type QuestionResult struct {
	QuestionID      string   `json:"question_id"`
	Text            string   `json:"text"`
	Grade           int      `json:"grade"`
	Correct         bool     `json:"correct"`
	Earned          int      `json:"earned"`
	SelectedIDs     []string `json:"selected_ids"`
	SelectedChoices []string `json:"selected_choices"`
	CorrectChoices  []string `json:"correct_choices"`
	NoAnswerKey     bool     `json:"no_answer_key,omitempty"`
}

type Report struct {
	Earned         int              `json:"earned"`
	Possible       int              `json:"possible"`
	Percentage     float64          `json:"percentage"`
	Threshold      float64          `json:"threshold"`
	Passed         bool             `json:"passed"`
	Level          Level            `json:"level"`
	Feedback       string           `json:"feedback"`
	CorrectCount   int              `json:"correct_count"`
	TotalQuestions int              `json:"total_questions"`
	AllowRetake    bool             `json:"allow_retake"`
	Questions      []QuestionResult `json:"questions"`
}

// Incorrect lists the questions that were not answered correctly.
func (r Report) Incorrect() []QuestionResult {
	var out []QuestionResult
	for _, q := range r.Questions {
		if !q.Correct {
			out = append(out, q)
		}
	}
	return out
}
