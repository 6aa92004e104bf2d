package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Key aliases per kind, in preference order. The first present key wins.
var (
	detectionKeys  = []string{"detection_results", "detection_result", "detection"}
	comparisonKeys = []string{"comparison_results", "comparison_result", "comparison"}
	searchKeys     = []string{"search_results", "search_result", "search"}
	livenessKeys   = []string{"liveness_results", "liveness_result", "liveness"}
	parsingKeys    = []string{"parsing_results", "parsing_result", "ocr_results", "ocr_result"}

	// top-level fields that mark a flat liveness payload
	flatLivenessKeys = []string{"is_live", "liveness_score", "passed"}
)

// Adapt normalizes one successful payload. Kinds are probed in a fixed order
// and the first one present is used; anything else becomes a Generic dump.
func Adapt(data json.RawMessage) Result {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return Result{Kind: KindGeneric, Generic: map[string]any{}}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		var v any
		_ = json.Unmarshal(trimmed, &v)
		return Result{Kind: KindGeneric, Generic: map[string]any{"value": v}}
	}

	if raw, ok := pick(fields, detectionKeys); ok {
		if d, ok := adaptDetection(raw); ok {
			return Result{Kind: KindDetection, Detection: d}
		}
	}
	if raw, ok := pick(fields, comparisonKeys); ok {
		if c, ok := adaptComparison(raw); ok {
			return Result{Kind: KindComparison, Comparison: c}
		}
	}
	if raw, ok := pick(fields, searchKeys); ok {
		if s, ok := adaptSearch(raw); ok {
			return Result{Kind: KindSearch, Search: s}
		}
	}
	if raw, ok := pick(fields, livenessKeys); ok {
		if l, ok := adaptLiveness(raw); ok {
			return Result{Kind: KindLiveness, Liveness: l}
		}
	}
	if _, ok := pick(fields, flatLivenessKeys); ok {
		if l, ok := adaptLiveness(trimmed); ok {
			return Result{Kind: KindLiveness, Liveness: l}
		}
	}
	if raw, ok := pick(fields, parsingKeys); ok {
		if p, ok := adaptParsing(raw); ok {
			return Result{Kind: KindParsing, Parsing: p}
		}
	}
	return Result{Kind: KindGeneric, Generic: generic(fields)}
}

func pick(fields map[string]json.RawMessage, keys []string) (json.RawMessage, bool) {
	for _, k := range keys {
		if raw, ok := fields[k]; ok && len(raw) > 0 && string(raw) != "null" {
			return raw, true
		}
	}
	return nil, false
}

func generic(fields map[string]json.RawMessage) map[string]any {
	out := make(map[string]any, len(fields))
	for k, raw := range fields {
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			out[k] = v
		}
	}
	return out
}

type rawFace struct {
	BBox        json.RawMessage `json:"bbox"`
	BoundingBox json.RawMessage `json:"bounding_box"`
	Box         json.RawMessage `json:"box"`
	Confidence  number          `json:"confidence"`
	Score       number          `json:"score"`
	Quality     number          `json:"quality"`
}

func adaptDetection(raw json.RawMessage) (*Detection, bool) {
	var body struct {
		Faces     []rawFace `json:"faces"`
		FaceCount *number   `json:"face_count"`
		Count     *number   `json:"count"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		// a bare list of faces
		if err := json.Unmarshal(raw, &body.Faces); err != nil {
			return nil, false
		}
	}
	d := &Detection{Faces: make([]Face, 0, len(body.Faces))}
	for _, rf := range body.Faces {
		conf := rf.Confidence
		if conf == 0 {
			conf = rf.Score
		}
		d.Faces = append(d.Faces, Face{
			Box:        parseBox(firstRaw(rf.BBox, rf.BoundingBox, rf.Box)),
			Confidence: Percent(float64(conf)),
			Quality:    float64(rf.Quality),
		})
	}
	d.Count = len(d.Faces)
	switch {
	case body.FaceCount != nil:
		d.Count = int(*body.FaceCount)
	case body.Count != nil:
		d.Count = int(*body.Count)
	}
	return d, true
}

func firstRaw(values ...json.RawMessage) json.RawMessage {
	for _, v := range values {
		if len(v) > 0 && string(v) != "null" {
			return v
		}
	}
	return nil
}

// parseBox accepts {x,y,width,height}, {left,top,right,bottom} or [x,y,w,h].
func parseBox(raw json.RawMessage) *Box {
	if len(raw) == 0 {
		return nil
	}
	var arr []number
	if err := json.Unmarshal(raw, &arr); err == nil {
		if len(arr) != 4 {
			return nil
		}
		return &Box{X: float64(arr[0]), Y: float64(arr[1]), Width: float64(arr[2]), Height: float64(arr[3])}
	}
	var obj struct {
		X, Y          number
		Width, Height number
		W             number `json:"w"`
		H             number `json:"h"`
		Left, Top     number
		Right, Bottom number
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	b := &Box{X: float64(obj.X), Y: float64(obj.Y), Width: float64(obj.Width), Height: float64(obj.Height)}
	if b.Width == 0 && obj.W != 0 {
		b.Width, b.Height = float64(obj.W), float64(obj.H)
	}
	if b.Width == 0 && obj.Right != 0 {
		b.X, b.Y = float64(obj.Left), float64(obj.Top)
		b.Width, b.Height = float64(obj.Right-obj.Left), float64(obj.Bottom-obj.Top)
	}
	return b
}

func adaptComparison(raw json.RawMessage) (*Comparison, bool) {
	var body struct {
		Confidence *number `json:"confidence"`
		Similarity *number `json:"similarity"`
		Score      *number `json:"score"`
		IsMatch    flag    `json:"is_match"`
		Match      flag    `json:"match"`
		Matched    flag    `json:"matched"`
		Threshold  number  `json:"threshold"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, false
	}
	c := &Comparison{}
	switch {
	case body.Similarity != nil:
		c.Similarity = Percent(float64(*body.Similarity))
	case body.Confidence != nil:
		c.Similarity = Percent(float64(*body.Confidence))
	case body.Score != nil:
		c.Similarity = Percent(float64(*body.Score))
	}
	for _, f := range []flag{body.IsMatch, body.Match, body.Matched} {
		if f.set {
			v := f.value
			c.Match = &v
			break
		}
	}
	if body.Threshold != 0 {
		c.Threshold = Percent(float64(body.Threshold))
	}
	return c, true
}

type rawCandidate struct {
	FaceID     string  `json:"face_id"`
	ID         string  `json:"id"`
	ImageID    string  `json:"image_id"`
	Name       string  `json:"name"`
	Label      string  `json:"label"`
	ExternalID string  `json:"external_id"`
	Similarity *number `json:"similarity"`
	Confidence *number `json:"confidence"`
	Score      *number `json:"score"`
}

func adaptSearch(raw json.RawMessage) (*Search, bool) {
	var list []rawCandidate
	if err := json.Unmarshal(raw, &list); err != nil {
		var body struct {
			Candidates []rawCandidate `json:"candidates"`
			Matches    []rawCandidate `json:"matches"`
			Results    []rawCandidate `json:"results"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, false
		}
		switch {
		case body.Candidates != nil:
			list = body.Candidates
		case body.Matches != nil:
			list = body.Matches
		default:
			list = body.Results
		}
	}
	s := &Search{Candidates: make([]Candidate, 0, len(list))}
	for _, rc := range list {
		c := Candidate{
			FaceID:      firstNonEmpty(rc.FaceID, rc.ID),
			ImageID:     rc.ImageID,
			Label:       firstNonEmpty(rc.Label, rc.Name, rc.ExternalID),
			ImageStatus: ImageNone,
		}
		if c.ImageID != "" {
			c.ImageStatus = ImagePending
		}
		for _, v := range []*number{rc.Similarity, rc.Confidence, rc.Score} {
			if v != nil {
				c.Similarity = Percent(float64(*v))
				break
			}
		}
		s.Candidates = append(s.Candidates, c)
	}
	sort.SliceStable(s.Candidates, func(i, j int) bool {
		return s.Candidates[i].Similarity > s.Candidates[j].Similarity
	})
	return s, true
}

func adaptLiveness(raw json.RawMessage) (*Liveness, bool) {
	var body struct {
		IsLive        flag            `json:"is_live"`
		Passed        flag            `json:"passed"`
		Live          flag            `json:"live"`
		Result        flag            `json:"result"`
		Score         *number         `json:"score"`
		LivenessScore *number         `json:"liveness_score"`
		Confidence    *number         `json:"confidence"`
		ReasonCodes   json.RawMessage `json:"reason_codes"`
		Reasons       json.RawMessage `json:"reasons"`
		Message       string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, false
	}
	l := &Liveness{Message: body.Message}
	found := false
	for _, f := range []flag{body.IsLive, body.Passed, body.Live, body.Result} {
		if f.set {
			l.Passed = f.value
			found = true
			break
		}
	}
	for _, v := range []*number{body.LivenessScore, body.Score, body.Confidence} {
		if v != nil {
			l.Score = Percent(float64(*v))
			found = true
			break
		}
	}
	l.ReasonCodes = stringList(firstRaw(body.ReasonCodes, body.Reasons))
	return l, found
}

// stringList accepts ["A","B"], [1,2] or "A,B".
func stringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err == nil {
		out := make([]string, 0, len(items))
		for _, it := range items {
			out = append(out, strings.TrimSpace(fmt.Sprint(it)))
		}
		return out
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return nil
}

func adaptParsing(raw json.RawMessage) (*Parsing, bool) {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, false
	}
	p := &Parsing{Fields: map[string]string{}}

	source := body
	if nested, ok := body["fields"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(nested, &inner); err == nil {
			source = inner
		}
		decodeString(body["document_type"], &p.DocumentType)
		decodeString(firstRaw(body["raw_text"], body["text"]), &p.RawText)
		var conf number
		if c, ok := body["confidence"]; ok {
			_ = json.Unmarshal(c, &conf)
			p.Confidence = Percent(float64(conf))
		}
	}
	for k, v := range source {
		if s, ok := scalar(v); ok {
			p.Fields[k] = s
		}
	}
	return p, true
}

func decodeString(raw json.RawMessage, dst *string) {
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, dst)
	}
}

// scalar renders leaf values; nested objects are flattened one level as {value}.
func scalar(raw json.RawMessage) (string, bool) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64, bool:
		return fmt.Sprint(t), true
	case map[string]any:
		if inner, ok := t["value"]; ok && inner != nil {
			return fmt.Sprint(inner), true
		}
	}
	return "", false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
