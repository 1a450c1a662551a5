package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-courses/internal/course"
)

func TestQuestionStats(t *testing.T) {
	q := question("q1", 1, right("a"), wrong("b"))
	other := question("q2", 1, right("x"))

	cases := []struct {
		name       string
		selections []Selection
		attempts   int
		correct    int
		difficulty Difficulty
	}{
		{"no submissions", nil, 0, 0, DifficultyNoData},
		{"untouched question", []Selection{NewSelection("x")}, 0, 0, DifficultyNoData},
		{"easy", []Selection{
			NewSelection("a"), NewSelection("a"), NewSelection("a"), NewSelection("a"), NewSelection("b"),
		}, 5, 4, DifficultyEasy},
		{"medium", []Selection{NewSelection("a"), NewSelection("b")}, 2, 1, DifficultyMedium},
		{"hard", []Selection{NewSelection("a", "b"), NewSelection("b"), NewSelection("x")}, 2, 0, DifficultyHard},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := QuestionStats(q, tc.selections)
			assert.Equal(t, tc.attempts, st.Attempts)
			assert.Equal(t, tc.correct, st.Correct)
			assert.Equal(t, tc.difficulty, st.Difficulty)
		})
	}

	all := CourseStats([]course.Question{q, other}, []Selection{NewSelection("a", "x")})
	require.Len(t, all, 2)
	assert.Equal(t, 100.0, all[0].SuccessRate)
	assert.Equal(t, "q2", all[1].QuestionID)
}
