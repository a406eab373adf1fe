package models

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
)

// PracticeType enumerates the practice exercise kinds.
type PracticeType string

const (
	PracticeWriting PracticeType = "writing"
	PracticeTyping  PracticeType = "typing"
	PracticeDrawing PracticeType = "drawing"
)

// Difficulty grades a practice exercise.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// PracticeMaxScore is the fixed score ceiling of every session.
const PracticeMaxScore = 100

// Keystroke is one key press captured during a typing exercise.
type Keystroke struct {
	Key       string `json:"key,omitempty"`
	IsCorrect bool   `json:"is_correct"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// PracticeMetadata stores the typing metrics of a session as JSONB.
type PracticeMetadata struct {
	CharactersPerMinute int `json:"characters_per_minute"`
	WordsPerMinute      int `json:"words_per_minute"`
	ErrorCount          int `json:"error_count"`
}

// Value marshals metadata to JSON for persistence.
func (m PracticeMetadata) Value() (driver.Value, error) {
	return jsonValue(m, "practice metadata")
}

// Scan unmarshals JSON payloads into the metadata struct.
func (m *PracticeMetadata) Scan(value interface{}) error {
	*m = PracticeMetadata{}
	return jsonScan(m, value, "practice metadata")
}

// PracticeSession is one student attempt at a writing, typing or drawing exercise.
type PracticeSession struct {
	ID            string           `db:"id" json:"id"`
	StudentID     string           `db:"student_id" json:"student_id"`
	Type          PracticeType     `db:"type" json:"type"`
	Category      string           `db:"category" json:"category"`
	Content       string           `db:"content" json:"content"`
	TargetContent *string          `db:"target_content" json:"target_content,omitempty"`
	Accuracy      int              `db:"accuracy" json:"accuracy"`
	Strokes       int              `db:"strokes" json:"strokes"`
	TimeSpent     int              `db:"time_spent" json:"time_spent"`
	Attempts      int              `db:"attempts" json:"attempts"`
	Difficulty    Difficulty       `db:"difficulty" json:"difficulty"`
	Score         int              `db:"score" json:"score"`
	MaxScore      int              `db:"max_score" json:"max_score"`
	IsCompleted   bool             `db:"is_completed" json:"is_completed"`
	ClassID       *string          `db:"class_id" json:"class_id,omitempty"`
	AssignmentID  *string          `db:"assignment_id" json:"assignment_id,omitempty"`
	Metadata      PracticeMetadata `db:"metadata" json:"metadata"`
	IsActive      bool             `db:"is_active" json:"-"`
	Date          time.Time        `db:"date" json:"date"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// NewPracticeSession builds an active session with defaults applied.
// Accuracy, score and completion are filled by the caller through Apply.
func NewPracticeSession(studentID string, req CreatePracticeRequest, now time.Time) *PracticeSession {
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = DifficultyMedium
	}
	category := req.Category
	if category == "" {
		category = "general"
	}
	return &PracticeSession{
		ID:            uuid.NewString(),
		StudentID:     studentID,
		Type:          req.Type,
		Category:      category,
		Content:       req.Content,
		TargetContent: req.TargetContent,
		Strokes:       req.Strokes,
		TimeSpent:     req.TimeSpent,
		Attempts:      1,
		Difficulty:    difficulty,
		MaxScore:      PracticeMaxScore,
		ClassID:       req.ClassID,
		AssignmentID:  req.AssignmentID,
		IsActive:      true,
		Date:          now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Apply stores derived accuracy, score and completion on the session.
func (p *PracticeSession) Apply(accuracy, score int, completed bool) {
	p.Accuracy = accuracy
	p.Score = score
	p.IsCompleted = completed
}

// PracticeFilter scopes practice listings.
type PracticeFilter struct {
	StudentID string
	Type      PracticeType
	Category  string
	PageQuery
}

// CreatePracticeRequest is the student payload for a practice session.
// Accuracy is only honoured for drawing sessions without a target.
type CreatePracticeRequest struct {
	Type          PracticeType `json:"type" validate:"required,oneof=writing typing drawing"`
	Category      string       `json:"category" validate:"omitempty,max=80"`
	Content       string       `json:"content" validate:"max=20000"`
	TargetContent *string      `json:"target_content,omitempty" validate:"omitempty,max=20000"`
	Accuracy      *int         `json:"accuracy,omitempty" validate:"omitempty,min=0,max=100"`
	Strokes       int          `json:"strokes" validate:"min=0"`
	TimeSpent     int          `json:"time_spent" validate:"min=0"`
	Difficulty    Difficulty   `json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
	Keystrokes    []Keystroke  `json:"keystrokes,omitempty"`
	ClassID       *string      `json:"class_id,omitempty"`
	AssignmentID  *string      `json:"assignment_id,omitempty"`
}

// RetryPracticeRequest resubmits content for an existing session.
type RetryPracticeRequest struct {
	Content    string      `json:"content" validate:"max=20000"`
	Accuracy   *int        `json:"accuracy,omitempty" validate:"omitempty,min=0,max=100"`
	Strokes    int         `json:"strokes" validate:"min=0"`
	TimeSpent  int         `json:"time_spent" validate:"min=0"`
	Keystrokes []Keystroke `json:"keystrokes,omitempty"`
}
