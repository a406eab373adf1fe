package scoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/edu-platform-api/internal/models"
)

// AnswerResult is the outcome of grading one answer.
type AnswerResult struct {
	QuestionID string `json:"question_id"`
	Correct    bool   `json:"correct"`
	Awarded    int    `json:"awarded"`
	Points     int    `json:"points"`
}

// GradeResult is the outcome of auto-grading a submission.
type GradeResult struct {
	Submission models.Submission `json:"submission"`
	Score      float64           `json:"score"`
	Percentage int               `json:"percentage"`
	PerAnswer  []AnswerResult    `json:"per_answer"`
}

// GradeSubmission auto-grades answers against the assignment's questions.
// An answer earns the question's full points when its trimmed, case-insensitive
// text equals the correct answer, otherwise nothing. The resulting submission
// replaces any earlier one by the same student in a.Submissions. Each question
// may be answered once, so the score never exceeds the assignment's total.
func GradeSubmission(a *models.Assignment, studentID string, answers []models.Answer, now time.Time) (*GradeResult, error) {
	if a == nil {
		return nil, fmt.Errorf("grade submission: nil assignment")
	}

	results := make([]AnswerResult, 0, len(answers))
	answered := make(map[string]struct{}, len(answers))
	score := 0
	for _, ans := range answers {
		q, ok := a.Questions.Find(ans.QuestionID)
		if !ok {
			return nil, ErrQuestionNotFound
		}
		if _, seen := answered[q.ID]; seen {
			return nil, ErrDuplicateAnswer
		}
		answered[q.ID] = struct{}{}
		correct := matches(ans.Answer, q.CorrectAnswer)
		awarded := 0
		if correct {
			awarded = q.Points
		}
		score += awarded
		results = append(results, AnswerResult{
			QuestionID: q.ID,
			Correct:    correct,
			Awarded:    awarded,
			Points:     q.Points,
		})
	}

	sub := models.Submission{
		ID:           uuid.NewString(),
		AssignmentID: a.ID,
		StudentID:    studentID,
		Answers:      append(models.Answers(nil), answers...),
		Score:        float64(score),
		Percentage:   Percentage(float64(score), float64(a.TotalPoints)),
		SubmittedAt:  now,
	}
	if idx := submissionIndex(a, studentID); idx >= 0 {
		sub.ID = a.Submissions[idx].ID
		a.Submissions[idx] = sub
	} else {
		a.Submissions = append(a.Submissions, sub)
	}

	return &GradeResult{
		Submission: sub,
		Score:      sub.Score,
		Percentage: sub.Percentage,
		PerAnswer:  results,
	}, nil
}

// ManualGrade overwrites the score and feedback of a student's existing
// submission and recomputes its percentage.
func ManualGrade(a *models.Assignment, studentID string, score float64, feedback *string, graderID string, now time.Time) (*models.Submission, error) {
	if a == nil {
		return nil, fmt.Errorf("manual grade: nil assignment")
	}
	idx := submissionIndex(a, studentID)
	if idx < 0 {
		return nil, ErrSubmissionNotFound
	}
	sub := &a.Submissions[idx]
	sub.Score = score
	sub.Feedback = feedback
	sub.Percentage = Percentage(score, float64(a.TotalPoints))
	gradedAt := now
	grader := graderID
	sub.GradedAt = &gradedAt
	sub.GradedBy = &grader

	out := *sub
	return &out, nil
}

func matches(given, expected string) bool {
	return strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(expected))
}

func submissionIndex(a *models.Assignment, studentID string) int {
	for i := range a.Submissions {
		if a.Submissions[i].StudentID == studentID {
			return i
		}
	}
	return -1
}
