package strategy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/anime-shed/kyc-console-go/internal/analysis"
)

// Row is one label/value line of a rendered result.
type Row struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// View is the presentation model of an analysis result.
type View struct {
	Title    string `json:"title"`
	Summary  string `json:"summary,omitempty"`
	Rows     []Row  `json:"rows"`
	Strategy string `json:"strategy"`
}

// RenderStrategy defines the interface for the per-kind result renderers
type RenderStrategy interface {
	Render(res analysis.Result) View
	GetStrategyName() string
}

// DetectionStrategy renders face detection results
type DetectionStrategy struct{}

func (DetectionStrategy) Render(res analysis.Result) View {
	d := res.Detection
	v := View{Title: "Face Detection", Summary: fmt.Sprintf("%d face(s) detected", d.Count)}
	for i, f := range d.Faces {
		value := fmt.Sprintf("confidence %.2f%%", f.Confidence)
		if f.Box != nil {
			value += fmt.Sprintf(" at (%.0f,%.0f) %.0fx%.0f", f.Box.X, f.Box.Y, f.Box.Width, f.Box.Height)
		}
		v.Rows = append(v.Rows, Row{Label: fmt.Sprintf("Face %d", i+1), Value: value})
	}
	return v
}

func (DetectionStrategy) GetStrategyName() string { return "detection" }

// ComparisonStrategy renders face comparison results
type ComparisonStrategy struct{}

func (ComparisonStrategy) Render(res analysis.Result) View {
	c := res.Comparison
	v := View{Title: "Face Comparison", Summary: fmt.Sprintf("Similarity %.2f%%", c.Similarity)}
	v.Rows = append(v.Rows, Row{Label: "Similarity", Value: fmt.Sprintf("%.2f%%", c.Similarity)})
	if c.Match != nil {
		v.Rows = append(v.Rows, Row{Label: "Match", Value: yesNo(*c.Match)})
	}
	if c.Threshold > 0 {
		v.Rows = append(v.Rows, Row{Label: "Threshold", Value: fmt.Sprintf("%.2f%%", c.Threshold)})
	}
	return v
}

func (ComparisonStrategy) GetStrategyName() string { return "comparison" }

// SearchStrategy renders face search candidates, best first
type SearchStrategy struct{}

func (SearchStrategy) Render(res analysis.Result) View {
	s := res.Search
	v := View{Title: "Face Search", Summary: fmt.Sprintf("%d candidate(s)", len(s.Candidates))}
	for i, c := range s.Candidates {
		label := c.Label
		if label == "" {
			label = c.FaceID
		}
		v.Rows = append(v.Rows, Row{
			Label: fmt.Sprintf("#%d %s", i+1, label),
			Value: fmt.Sprintf("%.2f%% (image %s)", c.Similarity, c.ImageStatus),
		})
	}
	return v
}

func (SearchStrategy) GetStrategyName() string { return "search" }

// LivenessStrategy renders liveness verdicts
type LivenessStrategy struct{}

func (LivenessStrategy) Render(res analysis.Result) View {
	l := res.Liveness
	verdict := "Spoof suspected"
	if l.Passed {
		verdict = "Live person"
	}
	v := View{Title: "Liveness", Summary: verdict}
	v.Rows = append(v.Rows, Row{Label: "Passed", Value: yesNo(l.Passed)})
	if l.Score > 0 {
		v.Rows = append(v.Rows, Row{Label: "Score", Value: fmt.Sprintf("%.2f%%", l.Score)})
	}
	if len(l.ReasonCodes) > 0 {
		v.Rows = append(v.Rows, Row{Label: "Reasons", Value: strings.Join(l.ReasonCodes, ", ")})
	}
	if l.Message != "" {
		v.Rows = append(v.Rows, Row{Label: "Message", Value: l.Message})
	}
	return v
}

func (LivenessStrategy) GetStrategyName() string { return "liveness" }

// ParsingStrategy renders OCR fields in key order
type ParsingStrategy struct{}

func (ParsingStrategy) Render(res analysis.Result) View {
	p := res.Parsing
	v := View{Title: "Document OCR", Summary: fmt.Sprintf("%d field(s) extracted", len(p.Fields))}
	if p.DocumentType != "" {
		v.Rows = append(v.Rows, Row{Label: "Document type", Value: p.DocumentType})
	}
	for _, k := range sortedKeys(p.Fields) {
		v.Rows = append(v.Rows, Row{Label: k, Value: p.Fields[k]})
	}
	if p.Match != nil {
		v.Rows = append(v.Rows,
			Row{Label: "Expected text accuracy", Value: fmt.Sprintf("%.2f%%", p.Match.Accuracy)},
			Row{Label: "CER / WER", Value: fmt.Sprintf("%.4f / %.4f", p.Match.CER, p.Match.WER)},
		)
	}
	return v
}

func (ParsingStrategy) GetStrategyName() string { return "parsing" }

// GenericStrategy dumps unrecognized payloads as key/value pairs
type GenericStrategy struct{}

func (GenericStrategy) Render(res analysis.Result) View {
	v := View{Title: "Result"}
	keys := make([]string, 0, len(res.Generic))
	for k := range res.Generic {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.Rows = append(v.Rows, Row{Label: k, Value: fmt.Sprint(res.Generic[k])})
	}
	return v
}

func (GenericStrategy) GetStrategyName() string { return "generic" }

// RenderContext picks the strategy matching a result's kind
type RenderContext struct {
	strategies map[analysis.Kind]RenderStrategy
	fallback   RenderStrategy
}

// NewRenderContext creates a context with one strategy per known result kind
func NewRenderContext() *RenderContext {
	return &RenderContext{
		strategies: map[analysis.Kind]RenderStrategy{
			analysis.KindDetection:  DetectionStrategy{},
			analysis.KindComparison: ComparisonStrategy{},
			analysis.KindSearch:     SearchStrategy{},
			analysis.KindLiveness:   LivenessStrategy{},
			analysis.KindParsing:    ParsingStrategy{},
		},
		fallback: GenericStrategy{},
	}
}

// SetStrategy overrides the renderer of one kind
func (c *RenderContext) SetStrategy(kind analysis.Kind, s RenderStrategy) {
	c.strategies[kind] = s
}

// StrategyFor returns the renderer used for kind
func (c *RenderContext) StrategyFor(kind analysis.Kind) RenderStrategy {
	if s, ok := c.strategies[kind]; ok {
		return s
	}
	return c.fallback
}

// Render produces the view of res, falling back to the generic dump
// when the kind's payload is missing.
func (c *RenderContext) Render(res analysis.Result) View {
	s := c.StrategyFor(res.Kind)
	if !populated(res) {
		s = c.fallback
	}
	v := s.Render(res)
	v.Strategy = s.GetStrategyName()
	if v.Rows == nil {
		v.Rows = []Row{}
	}
	return v
}

func populated(res analysis.Result) bool {
	switch res.Kind {
	case analysis.KindDetection:
		return res.Detection != nil
	case analysis.KindComparison:
		return res.Comparison != nil
	case analysis.KindSearch:
		return res.Search != nil
	case analysis.KindLiveness:
		return res.Liveness != nil
	case analysis.KindParsing:
		return res.Parsing != nil
	}
	return true
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
