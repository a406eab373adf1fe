package scoring

import (
	"math"
	"strings"
	"unicode"

	"github.com/noah-isme/edu-platform-api/internal/models"
)

// WritingResult is the similarity of written content to its target.
type WritingResult struct {
	Similarity float64 `json:"similarity"`
	Accuracy   int     `json:"accuracy"`
	Score      int     `json:"score"`
}

// EvaluateWriting compares content with target after normalisation
// (lowercase, letters, digits and whitespace only, trimmed). Identical strings
// score 1; otherwise similarity counts equal characters at the same position
// up to the shorter length, divided by the longer length.
func EvaluateWriting(content, target string) WritingResult {
	a := []rune(normalizeText(content))
	b := []rune(normalizeText(target))

	var similarity float64
	if string(a) == string(b) {
		similarity = 1
	} else {
		shorter, longer := len(a), len(b)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		same := 0
		for i := 0; i < shorter; i++ {
			if a[i] == b[i] {
				same++
			}
		}
		similarity = ratio(float64(same), float64(longer))
	}

	accuracy := int(math.Round(similarity * 100))
	return WritingResult{
		Similarity: similarity,
		Accuracy:   accuracy,
		Score:      ScoreFromAccuracy(accuracy),
	}
}

func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// TypingResult holds the speed metrics of a typing session.
type TypingResult struct {
	CharactersPerMinute int `json:"characters_per_minute"`
	WordsPerMinute      int `json:"words_per_minute"`
	ErrorCount          int `json:"error_count"`
	Accuracy            int `json:"accuracy"`
}

// Metadata converts the result into the persisted practice metadata.
func (r TypingResult) Metadata() models.PracticeMetadata {
	return models.PracticeMetadata{
		CharactersPerMinute: r.CharactersPerMinute,
		WordsPerMinute:      r.WordsPerMinute,
		ErrorCount:          r.ErrorCount,
	}
}

// EvaluateTyping derives speed from correct keystrokes over the time spent.
// A word is five characters.
func EvaluateTyping(timeSpentSeconds int, keystrokes []models.Keystroke) TypingResult {
	correct := 0
	for _, k := range keystrokes {
		if k.IsCorrect {
			correct++
		}
	}

	cpm := 0
	if timeSpentSeconds > 0 {
		cpm = int(math.Round(float64(correct) / (float64(timeSpentSeconds) / 60)))
	}
	return TypingResult{
		CharactersPerMinute: cpm,
		WordsPerMinute:      int(math.Round(float64(cpm) / 5)),
		ErrorCount:          len(keystrokes) - correct,
		Accuracy:            int(math.Round(ratio(float64(correct), float64(len(keystrokes))) * 100)),
	}
}

// EvaluateDrawing scores a drawing. With a target the recognised content is
// compared like writing; without one the client-reported accuracy is trusted.
func EvaluateDrawing(content string, target *string, reportedAccuracy *int) (accuracy, score int) {
	if target != nil && strings.TrimSpace(*target) != "" {
		res := EvaluateWriting(content, *target)
		return res.Accuracy, res.Score
	}
	if reportedAccuracy == nil {
		return 0, 0
	}
	acc := clampPercent(*reportedAccuracy)
	return acc, ScoreFromAccuracy(acc)
}
