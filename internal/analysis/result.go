// Package analysis turns backend analysis payloads into one internal shape.
// All field-name variants are handled here, once, so nothing downstream
// branches on how the backend spelled a key.
package analysis

import (
	"encoding/json"
	"sort"
	"strings"
)

// Kind identifies which result renderer applies.
type Kind string

const (
	KindDetection  Kind = "detection"
	KindComparison Kind = "comparison"
	KindSearch     Kind = "search"
	KindLiveness   Kind = "liveness"
	KindParsing    Kind = "parsing"
	KindGeneric    Kind = "generic"
)

// Result holds exactly one populated kind, or Generic when none was recognized.
type Result struct {
	Kind       Kind           `json:"kind"`
	Detection  *Detection     `json:"detection,omitempty"`
	Comparison *Comparison    `json:"comparison,omitempty"`
	Search     *Search        `json:"search,omitempty"`
	Liveness   *Liveness      `json:"liveness,omitempty"`
	Parsing    *Parsing       `json:"parsing,omitempty"`
	Generic    map[string]any `json:"generic,omitempty"`
}

type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Face struct {
	Box        *Box    `json:"box,omitempty"`
	Confidence float64 `json:"confidence"`
	Quality    float64 `json:"quality,omitempty"`
}

type Detection struct {
	Faces []Face `json:"faces"`
	Count int    `json:"count"`
}

// Comparison.Similarity is always on a 0..100 scale.
type Comparison struct {
	Similarity float64 `json:"similarity"`
	Match      *bool   `json:"match,omitempty"`
	Threshold  float64 `json:"threshold,omitempty"`
}

// ImageStatus tracks the secondary fetch of a search candidate's image.
type ImageStatus string

const (
	ImagePending     ImageStatus = "pending"
	ImageAvailable   ImageStatus = "available"
	ImageUnavailable ImageStatus = "unavailable"
	ImageNone        ImageStatus = "none"
)

type Candidate struct {
	FaceID      string      `json:"face_id,omitempty"`
	ImageID     string      `json:"image_id,omitempty"`
	Label       string      `json:"label,omitempty"`
	Similarity  float64     `json:"similarity"`
	ImageStatus ImageStatus `json:"image_status"`
	ContentType string      `json:"content_type,omitempty"`
	Image       []byte      `json:"image,omitempty"`
}

type Search struct {
	Candidates []Candidate `json:"candidates"`
}

type Liveness struct {
	Passed      bool     `json:"passed"`
	Score       float64  `json:"score,omitempty"`
	ReasonCodes []string `json:"reason_codes,omitempty"`
	Message     string   `json:"message,omitempty"`
}

type Parsing struct {
	DocumentType string            `json:"document_type,omitempty"`
	Fields       map[string]string `json:"fields"`
	RawText      string            `json:"raw_text,omitempty"`
	Confidence   float64           `json:"confidence,omitempty"`
	Match        *TextMatch        `json:"match,omitempty"`
}

// Text is the raw OCR text when present, otherwise the field values in key order.
func (p *Parsing) Text() string {
	if p.RawText != "" {
		return p.RawText
	}
	keys := make([]string, 0, len(p.Fields))
	for k := range p.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := strings.TrimSpace(p.Fields[k]); v != "" {
			values = append(values, v)
		}
	}
	return strings.Join(values, " ")
}

// Percent maps a score to 0..100. Values <= 1 are fractions.
func Percent(v float64) float64 {
	if v <= 1 {
		return v * 100
	}
	return v
}

// number accepts JSON numbers and numeric strings.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal([]byte(s), &f); err != nil {
		return nil
	}
	*n = number(f)
	return nil
}

// flag accepts booleans and the strings backends use for them.
type flag struct {
	set   bool
	value bool
}

func (f *flag) UnmarshalJSON(b []byte) error {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(string(b)), `"`)) {
	case "true", "pass", "passed", "live", "real", "1", "yes":
		*f = flag{set: true, value: true}
	case "false", "fail", "failed", "spoof", "fake", "0", "no":
		*f = flag{set: true, value: false}
	}
	return nil
}
