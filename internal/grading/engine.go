package grading

import (
	"io"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-courses/internal/course"
)

// DefaultPassThreshold is the passing percentage used when none is given.
const DefaultPassThreshold = 60.0

// Selection is a set of selected choice IDs. It may span many questions
// and may contain IDs that belong to no question at all.
type Selection map[string]struct{}

func NewSelection(ids ...string) Selection {
	s := make(Selection, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s Selection) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the selected IDs in sorted order.
func (s Selection) IDs() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// forQuestion keeps only the selected IDs that are choices of q.
func forQuestion(q course.Question, selected Selection) Selection {
	out := Selection{}
	for _, c := range q.Choices {
		if selected.Has(c.ID) {
			out[c.ID] = struct{}{}
		}
	}
	return out
}

// IsCorrectSubmission is the strict scoring predicate: the learner's
// selection for q must equal q's answer key exactly. IDs that are not
// choices of q are ignored. A question with an empty answer key is never
// correct. Defined for every input, including nil and empty selections.
func IsCorrectSubmission(q course.Question, selected Selection) bool {
	correct := q.CorrectIDs()
	if len(correct) == 0 {
		return false
	}
	own := forQuestion(q, selected)
	if len(own) != len(correct) {
		return false
	}
	for id := range own {
		if _, ok := correct[id]; !ok {
			return false
		}
	}
	return true
}

// Score returns the points earned by selected over questions, and the
// points possible.
func Score(questions []course.Question, selected Selection) (earned, possible int) {
	for _, q := range questions {
		possible += q.Grade
		if IsCorrectSubmission(q, selected) {
			earned += q.Grade
		}
	}
	return earned, possible
}

// Percentage is earned/possible*100, or 0 when nothing is possible.
func Percentage(earned, possible int) float64 {
	if possible <= 0 {
		return 0
	}
	return float64(earned) / float64(possible) * 100
}

// Engine options

type Option func(*config)

type config struct {
	passThreshold float64
	log           logrus.FieldLogger
}

func WithPassThreshold(p float64) Option { return func(c *config) { c.passThreshold = p } }
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

// Engine produces result reports. It holds configuration only and never
// caches results, so scoring the same data twice gives the same answer.
type Engine struct {
	passThreshold float64
	log           logrus.FieldLogger
}

func NewEngine(opts ...Option) *Engine {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	cfg := &config{passThreshold: DefaultPassThreshold, log: quiet}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.passThreshold < 0 || cfg.passThreshold > 100 {
		cfg.passThreshold = DefaultPassThreshold
	}
	return &Engine{passThreshold: cfg.passThreshold, log: cfg.log.WithField("component", "grading")}
}

func (e *Engine) PassThreshold() float64 { return e.passThreshold }

// Passed compares a percentage, not raw points, against the threshold.
func (e *Engine) Passed(percentage float64) bool { return percentage >= e.passThreshold }

// Evaluate scores selected against questions and builds the per-question
// breakdown shown to learners and instructors.
func (e *Engine) Evaluate(questions []course.Question, selected Selection) Report {
	rep := Report{
		Threshold:      e.passThreshold,
		TotalQuestions: len(questions),
		Questions:      make([]QuestionResult, 0, len(questions)),
	}
	for _, q := range questions {
		qr := QuestionResult{
			QuestionID:      q.ID,
			Text:            q.Text,
			Grade:           q.Grade,
			Correct:         IsCorrectSubmission(q, selected),
			SelectedIDs:     []string{},
			SelectedChoices: []string{},
			CorrectChoices:  []string{},
		}
		for _, c := range q.Choices {
			if selected.Has(c.ID) {
				qr.SelectedIDs = append(qr.SelectedIDs, c.ID)
				qr.SelectedChoices = append(qr.SelectedChoices, c.Text)
			}
			if c.IsCorrect {
				qr.CorrectChoices = append(qr.CorrectChoices, c.Text)
			}
		}
		if len(qr.CorrectChoices) == 0 {
			qr.NoAnswerKey = true
			e.log.WithField("question_id", q.ID).Debug("question has no correct choice; scored as incorrect")
		}
		rep.Possible += q.Grade
		if qr.Correct {
			qr.Earned = q.Grade
			rep.Earned += q.Grade
			rep.CorrectCount++
		}
		rep.Questions = append(rep.Questions, qr)
	}
	rep.Percentage = Percentage(rep.Earned, rep.Possible)
	rep.Passed = e.Passed(rep.Percentage)
	rep.Level = levelFor(rep.Percentage, rep.Passed)
	rep.Feedback = feedback[rep.Level]
	rep.AllowRetake = !rep.Passed
	return rep
}
