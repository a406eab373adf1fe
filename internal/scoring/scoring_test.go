package scoring

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-platform-api/internal/models"
	appErrors "github.com/noah-isme/edu-platform-api/pkg/errors"
)

var gradedAt = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

func quiz(points ...int) *models.Assignment {
	questions := make([]models.Question, len(points))
	answers := []string{"Paris", "true", "4"}
	for i, p := range points {
		questions[i] = models.Question{
			ID:            []string{"q1", "q2", "q3"}[i],
			Text:          "question",
			Type:          models.QuestionShortAnswer,
			CorrectAnswer: answers[i],
			Points:        p,
		}
	}
	return models.NewAssignment("class-1", "teacher-1", "Quiz", nil, nil, questions, gradedAt)
}

func TestGradeSubmissionExactMatch(t *testing.T) {
	a := quiz(2, 3, 5)

	res, err := GradeSubmission(a, "student-1", []models.Answer{
		{QuestionID: "q1", Answer: "  paris "},
		{QuestionID: "q2", Answer: "TRUE"},
		{QuestionID: "q3", Answer: "four"},
	}, gradedAt)
	require.NoError(t, err)

	assert.Equal(t, 5.0, res.Score)
	assert.Equal(t, 50, res.Percentage)
	require.Len(t, res.PerAnswer, 3)
	assert.True(t, res.PerAnswer[0].Correct)
	assert.False(t, res.PerAnswer[2].Correct)
	assert.Equal(t, 0, res.PerAnswer[2].Awarded)
	require.Len(t, a.Submissions, 1)
	assert.Equal(t, gradedAt, a.Submissions[0].SubmittedAt)
}

func TestGradeSubmissionReplacesPrevious(t *testing.T) {
	a := quiz(1, 1)

	first, err := GradeSubmission(a, "student-1", []models.Answer{{QuestionID: "q1", Answer: "x"}}, gradedAt)
	require.NoError(t, err)
	_, err = GradeSubmission(a, "student-2", []models.Answer{{QuestionID: "q1", Answer: "paris"}}, gradedAt)
	require.NoError(t, err)
	second, err := GradeSubmission(a, "student-1", []models.Answer{{QuestionID: "q1", Answer: "paris"}, {QuestionID: "q2", Answer: "true"}}, gradedAt.Add(time.Hour))
	require.NoError(t, err)

	require.Len(t, a.Submissions, 2)
	assert.Equal(t, first.Submission.ID, second.Submission.ID)
	assert.Equal(t, 100, a.Submissions[0].Percentage)
	assert.Equal(t, "student-1", a.Submissions[0].StudentID)
}

func TestGradeSubmissionZeroTotalPoints(t *testing.T) {
	a := &models.Assignment{ID: "a1", Questions: models.Questions{{ID: "q1", CorrectAnswer: "x"}}}

	res, err := GradeSubmission(a, "student-1", []models.Answer{{QuestionID: "q1", Answer: "x"}}, gradedAt)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Percentage)

	sub, err := ManualGrade(a, "student-1", 42, nil, "teacher-1", gradedAt)
	require.NoError(t, err)
	assert.Equal(t, 0, sub.Percentage)
	assert.Equal(t, 42.0, sub.Score)
}

func TestGradeSubmissionUnknownQuestion(t *testing.T) {
	a := quiz(1)
	_, err := GradeSubmission(a, "student-1", []models.Answer{{QuestionID: "missing", Answer: "x"}}, gradedAt)
	require.True(t, errors.Is(err, ErrQuestionNotFound))
	assert.Empty(t, a.Submissions)
}

func TestGradeSubmissionRejectsRepeatedQuestion(t *testing.T) {
	a := quiz(2, 3, 5)

	_, err := GradeSubmission(a, "student-1", []models.Answer{
		{QuestionID: "q3", Answer: "4"},
		{QuestionID: "q3", Answer: "4"},
		{QuestionID: "q3", Answer: "4"},
	}, gradedAt)
	require.ErrorIs(t, err, ErrDuplicateAnswer)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, a.Submissions)

	res, err := GradeSubmission(a, "student-1", []models.Answer{
		{QuestionID: "q1", Answer: "paris"},
		{QuestionID: "q2", Answer: "true"},
		{QuestionID: "q3", Answer: "4"},
	}, gradedAt)
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.Score)
	assert.Equal(t, 100, res.Percentage)
}

func TestManualGrade(t *testing.T) {
	a := quiz(4, 4)
	_, err := ManualGrade(a, "student-1", 3, nil, "teacher-1", gradedAt)
	require.ErrorIs(t, err, ErrSubmissionNotFound)

	_, err = GradeSubmission(a, "student-1", []models.Answer{{QuestionID: "q1", Answer: "paris"}}, gradedAt)
	require.NoError(t, err)

	feedback := "good effort"
	sub, err := ManualGrade(a, "student-1", 7, &feedback, "teacher-1", gradedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 88, sub.Percentage)
	assert.Equal(t, "teacher-1", *sub.GradedBy)
	assert.Equal(t, gradedAt.Add(time.Hour), *sub.GradedAt)
	assert.Equal(t, &feedback, a.Submissions[0].Feedback)
}

func TestEvaluateWriting(t *testing.T) {
	cases := []struct {
		name     string
		content  string
		target   string
		accuracy int
		score    int
	}{
		{"normalised equal", "HELLO world!", "hello World", 100, 100},
		{"shorter content", "abc", "abcdef", 50, 50},
		{"positional mismatch", "abcd", "abdc", 50, 50},
		{"both empty", "", "", 100, 100},
		{"empty content", "", "abc", 0, 0},
		{"unicode letters", "Ünïcode", "ünïcode", 100, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := EvaluateWriting(tc.content, tc.target)
			assert.Equal(t, tc.accuracy, res.Accuracy)
			assert.Equal(t, tc.score, res.Score)
		})
	}
}

func TestEvaluateTyping(t *testing.T) {
	keys := make([]models.Keystroke, 0, 110)
	for i := 0; i < 100; i++ {
		keys = append(keys, models.Keystroke{IsCorrect: true})
	}
	for i := 0; i < 10; i++ {
		keys = append(keys, models.Keystroke{IsCorrect: false})
	}

	res := EvaluateTyping(30, keys)
	assert.Equal(t, 200, res.CharactersPerMinute)
	assert.Equal(t, 40, res.WordsPerMinute)
	assert.Equal(t, 10, res.ErrorCount)
	assert.Equal(t, 91, res.Accuracy)

	zero := EvaluateTyping(0, keys)
	assert.Equal(t, 0, zero.CharactersPerMinute)
	assert.Equal(t, 0, zero.WordsPerMinute)
	assert.Equal(t, 10, zero.ErrorCount)

	assert.Equal(t, TypingResult{}, EvaluateTyping(60, nil))
}

func TestEvaluateDrawing(t *testing.T) {
	target := "cat"
	acc, score := EvaluateDrawing("cat", &target, nil)
	assert.Equal(t, 100, acc)
	assert.Equal(t, 100, score)

	reported := 130
	acc, score = EvaluateDrawing("", nil, &reported)
	assert.Equal(t, 100, acc)
	assert.Equal(t, 100, score)

	acc, score = EvaluateDrawing("", nil, nil)
	assert.Zero(t, acc)
	assert.Zero(t, score)
}

func TestOverallProgressScore(t *testing.T) {
	assert.Equal(t, 0, OverallProgressScore(nil, nil, nil))

	practiceOnly := []models.PracticeTypeStats{{Key: "typing", AverageAccuracy: 80}}
	assert.Equal(t, 80, OverallProgressScore(practiceOnly, nil, nil))

	all := OverallProgressScore(
		[]models.PracticeTypeStats{{AverageAccuracy: 90}, {AverageAccuracy: 70}},
		[]models.ClassAssignmentPerformance{{AveragePercentage: 60}},
		[]models.ClassMediaConsumption{{AverageWatchPercentage: 100}},
	)
	// 32 + 24 + 20 over 100
	assert.Equal(t, 76, all)
}

func TestCompletionAndScoreHelpers(t *testing.T) {
	assert.True(t, IsCompleted(80, 1))
	assert.True(t, IsCompleted(10, 3))
	assert.False(t, IsCompleted(79, 2))
	assert.Equal(t, 0, Percentage(5, 0))
	assert.Equal(t, 67, Percentage(2, 3))
	assert.Equal(t, 0, ScoreFromAccuracy(-5))
}
