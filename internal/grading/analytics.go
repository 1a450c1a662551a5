package grading

import "github.com/mind-engage/mindengage-courses/internal/course"

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyNoData Difficulty = "no_data"
)

// Stats summarises how learners did on one question across submissions.
type Stats struct {
	QuestionID  string     `json:"question_id"`
	Text        string     `json:"text"`
	Grade       int        `json:"grade"`
	Attempts    int        `json:"attempts"`
	Correct     int        `json:"correct"`
	SuccessRate float64    `json:"success_rate"`
	Difficulty  Difficulty `json:"difficulty"`
}

// QuestionStats counts a submission as an attempt at q only when it selects
// at least one of q's choices.
func QuestionStats(q course.Question, selections []Selection) Stats {
	st := Stats{QuestionID: q.ID, Text: q.Text, Grade: q.Grade, Difficulty: DifficultyNoData}
	for _, sel := range selections {
		if len(forQuestion(q, sel)) == 0 {
			continue
		}
		st.Attempts++
		if IsCorrectSubmission(q, sel) {
			st.Correct++
		}
	}
	if st.Attempts == 0 {
		return st
	}
	st.SuccessRate = float64(st.Correct) / float64(st.Attempts) * 100
	switch {
	case st.SuccessRate >= 80:
		st.Difficulty = DifficultyEasy
	case st.SuccessRate >= 50:
		st.Difficulty = DifficultyMedium
	default:
		st.Difficulty = DifficultyHard
	}
	return st
}

func CourseStats(questions []course.Question, selections []Selection) []Stats {
	out := make([]Stats, 0, len(questions))
	for _, q := range questions {
		out = append(out, QuestionStats(q, selections))
	}
	return out
}
