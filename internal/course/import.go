package course

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xeipuuv/gojsonschema"

	"github.com/mind-engage/mindengage-courses/internal/apperr"
	"github.com/mind-engage/mindengage-courses/internal/db"
)

// ImportDoc is the authoring document accepted by Import.
type ImportDoc struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	PubDate     *time.Time       `json:"pub_date,omitempty"`
	Inactive    bool             `json:"inactive,omitempty"`
	Questions   []ImportQuestion `json:"questions"`
}

type ImportQuestion struct {
	Text    string         `json:"text"`
	Grade   int            `json:"grade"`
	Choices []ImportChoice `json:"choices"`
}

type ImportChoice struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

const importSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "questions"],
  "additionalProperties": false,
  "properties": {
    "name": {"type": "string", "minLength": 1, "maxLength": 30},
    "description": {"type": "string", "maxLength": 1000},
    "pub_date": {"type": "string", "format": "date-time"},
    "inactive": {"type": "boolean"},
    "questions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["text", "grade", "choices"],
        "additionalProperties": false,
        "properties": {
          "text": {"type": "string", "minLength": 1, "maxLength": 500},
          "grade": {"type": "integer", "minimum": 1},
          "choices": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["text"],
              "additionalProperties": false,
              "properties": {
                "text": {"type": "string", "minLength": 1, "maxLength": 200},
                "is_correct": {"type": "boolean"}
              }
            }
          }
        }
      }
    }
  }
}`

var importSchema = mustSchema(importSchemaJSON)

func mustSchema(s string) *gojsonschema.Schema {
	sch, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic("course: bad import schema: " + err.Error())
	}
	return sch
}

// ParseImport validates raw against the import schema and decodes it.
func ParseImport(raw []byte) (ImportDoc, error) {
	res, err := importSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return ImportDoc{}, apperr.Invalid("document", "malformed json")
	}
	if !res.Valid() {
		errs := res.Errors()
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.String())
		}
		return ImportDoc{}, apperr.Invalid("document", strings.Join(msgs, "; "))
	}
	var doc ImportDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ImportDoc{}, apperr.Invalid("document", err.Error())
	}
	return doc, nil
}

// Import creates a whole course (questions and choices included) in one
// transaction. Questions without a correct choice are accepted and
// reported as issues.
func (s *SQLStore) Import(ctx context.Context, raw []byte, createdBy string) (Course, []Issue, error) {
	doc, err := ParseImport(raw)
	if err != nil {
		return Course{}, nil, err
	}
	c := Course{
		ID:          "c-" + uuid.NewString(),
		Name:        strings.TrimSpace(doc.Name),
		Description: doc.Description,
		PubDate:     doc.PubDate,
		IsActive:    !doc.Inactive,
		CreatedBy:   createdBy,
		CreatedAt:   time.Unix(time.Now().Unix(), 0).UTC(),
	}
	if err := checkCourseInput(c.Name); err != nil {
		return Course{}, nil, err
	}

	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.insertCourse(ctx, tx, c); err != nil {
			return err
		}
		for _, iq := range doc.Questions {
			q := Question{ID: "q-" + uuid.NewString(), CourseID: c.ID, Text: strings.TrimSpace(iq.Text), Grade: iq.Grade}
			if err := checkQuestionInput(q.Text, q.Grade); err != nil {
				return err
			}
			if err := insertQuestion(ctx, tx, q); err != nil {
				return err
			}
			for _, ic := range iq.Choices {
				ch := Choice{ID: "ch-" + uuid.NewString(), QuestionID: q.ID, Text: strings.TrimSpace(ic.Text), IsCorrect: ic.IsCorrect}
				if err := checkChoiceInput(ch.Text); err != nil {
					return err
				}
				if err := insertChoice(ctx, tx, ch); err != nil {
					return err
				}
			}
		}
		var err error
		c.Questions, err = LoadQuestions(ctx, tx, c.ID)
		return err
	})
	if err != nil {
		return Course{}, nil, err
	}

	issues := ValidateCourse(c)
	s.warnIssues(issues)
	s.log.WithFields(logrus.Fields{"course_id": c.ID, "questions": len(c.Questions), "issues": len(issues)}).Info("course imported")
	return c, issues, nil
}
