package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreText(t *testing.T) {
	m := ScoreText("John  DOE", "john doe")
	require.NotNil(t, m)
	assert.Equal(t, 0.0, m.CER)
	assert.Equal(t, 0.0, m.WER)
	assert.Equal(t, 100.0, m.Accuracy)

	m = ScoreText("abcd", "abce")
	require.NotNil(t, m)
	assert.Equal(t, 0.25, m.CER)
	assert.Greater(t, m.WER, 0.0)
	assert.Equal(t, 75.0, m.Accuracy)

	m = ScoreText("ab", "completely different text")
	require.NotNil(t, m)
	assert.Equal(t, 0.0, m.Accuracy, "accuracy never goes negative")

	assert.Nil(t, ScoreText("  ", "anything"))
}

func TestApplyExpectedText(t *testing.T) {
	res := Adapt(json.RawMessage(`{"parsing_results":{"raw_text":"SOMCHAI JAIDEE"}}`))
	require.Equal(t, KindParsing, res.Kind)
	res.ApplyExpectedText("somchai jaidee")
	require.NotNil(t, res.Parsing.Match)
	assert.Equal(t, 100.0, res.Parsing.Match.Accuracy)

	other := Adapt(json.RawMessage(`{"comparison_results":{"confidence":0.5}}`))
	other.ApplyExpectedText("x")
	assert.Nil(t, other.Parsing)
}
