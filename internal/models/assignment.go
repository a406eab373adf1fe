package models

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
)

// QuestionType describes how a question is presented. Grading treats all types alike.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
)

// Question is one gradable item of an assignment.
type Question struct {
	ID            string       `json:"id"`
	Text          string       `json:"text" validate:"required"`
	Type          QuestionType `json:"type" validate:"required,oneof=multiple_choice true_false short_answer"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer,omitempty" validate:"required"`
	Points        int          `json:"points" validate:"min=1"`
}

// Questions is the ordered question list persisted as JSONB.
type Questions []Question

// Value marshals questions to JSON for persistence.
func (q Questions) Value() (driver.Value, error) {
	if q == nil {
		q = Questions{}
	}
	return jsonValue([]Question(q), "questions")
}

// Scan unmarshals JSON payloads into the question list.
func (q *Questions) Scan(value interface{}) error {
	*q = Questions{}
	return jsonScan((*[]Question)(q), value, "questions")
}

// TotalPoints sums the point values of every question.
func (q Questions) TotalPoints() int {
	total := 0
	for _, question := range q {
		total += question.Points
	}
	return total
}

// Find returns the question with the given id.
func (q Questions) Find(id string) (*Question, bool) {
	for i := range q {
		if q[i].ID == id {
			return &q[i], true
		}
	}
	return nil, false
}

// WithoutAnswers returns a copy safe to show to students.
func (q Questions) WithoutAnswers() Questions {
	out := make(Questions, len(q))
	for i, question := range q {
		question.CorrectAnswer = ""
		out[i] = question
	}
	return out
}

// Answer is a student's response to one question.
type Answer struct {
	QuestionID string `json:"question_id" validate:"required"`
	Answer     string `json:"answer"`
}

// Answers is the answer list persisted as JSONB.
type Answers []Answer

// Value marshals answers to JSON for persistence.
func (a Answers) Value() (driver.Value, error) {
	if a == nil {
		a = Answers{}
	}
	return jsonValue([]Answer(a), "answers")
}

// Scan unmarshals JSON payloads into the answer list.
func (a *Answers) Scan(value interface{}) error {
	*a = Answers{}
	return jsonScan((*[]Answer)(a), value, "answers")
}

// Assignment is a graded set of questions published to a class.
type Assignment struct {
	ID          string       `db:"id" json:"id"`
	Title       string       `db:"title" json:"title"`
	Description *string      `db:"description" json:"description,omitempty"`
	ClassID     string       `db:"class_id" json:"class_id"`
	CreatedBy   string       `db:"created_by" json:"created_by"`
	DueDate     *time.Time   `db:"due_date" json:"due_date,omitempty"`
	Questions   Questions    `db:"questions" json:"questions"`
	TotalPoints int          `db:"total_points" json:"total_points"`
	Active      bool         `db:"active" json:"active"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
	Submissions []Submission `db:"-" json:"submissions,omitempty"`
}

// NewAssignment builds an assignment, assigning question ids and computing total points.
func NewAssignment(classID, createdBy, title string, description *string, dueDate *time.Time, questions []Question, now time.Time) *Assignment {
	a := &Assignment{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		ClassID:     classID,
		CreatedBy:   createdBy,
		DueDate:     dueDate,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	a.SetQuestions(questions, now)
	return a
}

// SetQuestions replaces the questions and recomputes TotalPoints.
// Questions without an id receive a fresh one.
func (a *Assignment) SetQuestions(questions []Question, now time.Time) {
	qs := make(Questions, len(questions))
	copy(qs, questions)
	for i := range qs {
		if qs[i].ID == "" {
			qs[i].ID = uuid.NewString()
		}
	}
	a.Questions = qs
	a.TotalPoints = qs.TotalPoints()
	a.UpdatedAt = now
}

// IsPastDue reports whether the due date has passed.
func (a *Assignment) IsPastDue(now time.Time) bool {
	return a.DueDate != nil && now.After(*a.DueDate)
}

// Submission is the single graded attempt a student holds for an assignment.
type Submission struct {
	ID           string     `db:"id" json:"id"`
	AssignmentID string     `db:"assignment_id" json:"assignment_id"`
	StudentID    string     `db:"student_id" json:"student_id"`
	Answers      Answers    `db:"answers" json:"answers"`
	Score        float64    `db:"score" json:"score"`
	Percentage   int        `db:"percentage" json:"percentage"`
	Feedback     *string    `db:"feedback" json:"feedback,omitempty"`
	SubmittedAt  time.Time  `db:"submitted_at" json:"submitted_at"`
	GradedAt     *time.Time `db:"graded_at" json:"graded_at,omitempty"`
	GradedBy     *string    `db:"graded_by" json:"graded_by,omitempty"`
}

// AssignmentFilter scopes assignment listings.
type AssignmentFilter struct {
	ClassID string
	PageQuery
}

// CreateAssignmentRequest is the teacher payload for a new assignment.
type CreateAssignmentRequest struct {
	Title       string     `json:"title" validate:"required,min=1,max=200"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=4000"`
	ClassID     string     `json:"class_id" validate:"required"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Questions   []Question `json:"questions" validate:"required,min=1,dive"`
}

// UpdateAssignmentRequest carries optional assignment changes.
type UpdateAssignmentRequest struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=4000"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Questions   []Question `json:"questions,omitempty" validate:"omitempty,min=1,dive"`
	Active      *bool      `json:"active,omitempty"`
}

// SubmitAssignmentRequest holds a student's answers.
type SubmitAssignmentRequest struct {
	Answers []Answer `json:"answers" validate:"required,min=1,unique=QuestionID,dive"`
}

// GradeSubmissionRequest is a teacher's manual grade.
type GradeSubmissionRequest struct {
	StudentID string   `json:"student_id" validate:"required"`
	Score     *float64 `json:"score" validate:"required,min=0"`
	Feedback  *string  `json:"feedback,omitempty" validate:"omitempty,max=4000"`
}
