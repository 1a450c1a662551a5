package course

import (
	"strings"

	"github.com/mind-engage/mindengage-courses/internal/apperr"
)

// Issue is a non-fatal authoring problem. Scoring still works when issues
// exist; a question without a correct choice is simply never correct.
type Issue struct {
	QuestionID string `json:"question_id"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

const (
	IssueNoCorrectChoice = "no_correct_choice"
	IssueNoChoices       = "no_choices"
)

// Validate lists the authoring issues of q.
func Validate(q Question) []Issue {
	var out []Issue
	if len(q.Choices) == 0 {
		out = append(out, Issue{QuestionID: q.ID, Code: IssueNoChoices, Message: "question has no choices"})
	}
	if !q.HasCorrectAnswer() {
		out = append(out, Issue{QuestionID: q.ID, Code: IssueNoCorrectChoice, Message: "question has no correct choice"})
	}
	return out
}

// ValidateCourse collects the issues of every question in c.
func ValidateCourse(c Course) []Issue {
	var out []Issue
	for _, q := range c.Questions {
		out = append(out, Validate(q)...)
	}
	return out
}

func checkQuestionInput(text string, grade int) error {
	if strings.TrimSpace(text) == "" {
		return apperr.Invalid("text", "must not be empty")
	}
	if grade <= 0 {
		return apperr.Invalid("grade", "must be a positive integer")
	}
	return nil
}

func checkChoiceInput(text string) error {
	if strings.TrimSpace(text) == "" {
		return apperr.Invalid("text", "must not be empty")
	}
	return nil
}

func checkCourseInput(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.Invalid("name", "must not be empty")
	}
	if len([]rune(name)) > 30 {
		return apperr.Invalid("name", "must be at most 30 characters")
	}
	return nil
}
