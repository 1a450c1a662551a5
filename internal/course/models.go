package course

import "time"

// Choice is one selectable answer option. Once a submission references a
// choice its text and correctness are frozen.
type Choice struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"is_correct"`
}

// Question is a gradable prompt worth Grade points. Its correct choices
// form the answer key.
type Question struct {
	ID       string   `json:"id"`
	CourseID string   `json:"course_id"`
	Text     string   `json:"text"`
	Grade    int      `json:"grade"`
	Choices  []Choice `json:"choices"`
}

type Course struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	ImageKey        string     `json:"image_key,omitempty"`
	PubDate         *time.Time `json:"pub_date,omitempty"`
	IsActive        bool       `json:"is_active"`
	TotalEnrollment int        `json:"total_enrollment"`
	AverageRating   float64    `json:"average_rating"`
	CreatedBy       string     `json:"created_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	Questions       []Question `json:"questions,omitempty"`
}

// CorrectIDs returns the answer key of q.
func (q Question) CorrectIDs() map[string]struct{} {
	out := make(map[string]struct{}, len(q.Choices))
	for _, c := range q.Choices {
		if c.IsCorrect {
			out[c.ID] = struct{}{}
		}
	}
	return out
}

// ChoiceIDs returns every choice ID owned by q.
func (q Question) ChoiceIDs() map[string]struct{} {
	out := make(map[string]struct{}, len(q.Choices))
	for _, c := range q.Choices {
		out[c.ID] = struct{}{}
	}
	return out
}

func (q Question) HasCorrectAnswer() bool {
	for _, c := range q.Choices {
		if c.IsCorrect {
			return true
		}
	}
	return false
}

// TotalPoints is the sum of the grades of the given questions.
func TotalPoints(questions []Question) int {
	total := 0
	for _, q := range questions {
		total += q.Grade
	}
	return total
}

// TotalPoints is the sum of the course's question grades.
func (c Course) TotalPoints() int { return TotalPoints(c.Questions) }

// IsPublished reports whether the course has a publication date that is
// not in the future.
func (c Course) IsPublished(now time.Time) bool {
	return c.PubDate != nil && !c.PubDate.After(now)
}
