package analysis

import (
	"math"
	"strings"
	"unicode"

	"github.com/arbovm/levenshtein"
	"github.com/codycollier/wer"
)

// TextMatch scores OCR output against text the user expected to see.
// Rates are fractions; Accuracy is 0..100.
type TextMatch struct {
	Expected string  `json:"expected"`
	CER      float64 `json:"cer"`
	WER      float64 `json:"wer"`
	Accuracy float64 `json:"accuracy"`
}

// ScoreText compares expected with actual after case and whitespace folding.
// It returns nil when there is nothing to compare against.
func ScoreText(expected, actual string) *TextMatch {
	exp := fold(expected)
	if exp == "" {
		return nil
	}
	act := fold(actual)

	refLen := len([]rune(exp))
	cer := float64(levenshtein.Distance(exp, act)) / float64(refLen)

	wordRate, _ := wer.WER(strings.Fields(exp), strings.Fields(act))

	return &TextMatch{
		Expected: expected,
		CER:      round4(cer),
		WER:      round4(wordRate),
		Accuracy: math.Max(0, math.Round((1-cer)*10000)/100),
	}
}

// ApplyExpectedText attaches a TextMatch to a parsing result.
func (r *Result) ApplyExpectedText(expected string) {
	if r.Parsing == nil {
		return
	}
	r.Parsing.Match = ScoreText(expected, r.Parsing.Text())
}

func fold(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
