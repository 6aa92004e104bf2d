package capability

import (
	"fmt"
	"strings"
)

// Selection is the resolved feature set of one country, in table order.
// It only ever contains features that have a configuration entry.
type Selection struct {
	Country    string    `json:"country"`
	Name       string    `json:"name,omitempty"`
	ThemeColor string    `json:"theme_color,omitempty"`
	Language   string    `json:"language,omitempty"`
	Features   []Feature `json:"features"`
}

// Groups is the per-category view of a Selection.
type Groups struct {
	OCR      []Feature `json:"ocr"`
	Face     []Feature `json:"face"`
	Liveness []Feature `json:"liveness"`
}

// Resolve returns nil when no country is selected. Unknown countries resolve to
// an empty selection; feature ids with no configuration are dropped silently.
func Resolve(t *Table, country string) *Selection {
	code := strings.ToLower(strings.TrimSpace(country))
	if code == "" || t == nil {
		return nil
	}
	sel := &Selection{Country: code, Features: []Feature{}}
	c, ok := t.Country(code)
	if !ok {
		return sel
	}
	sel.Name = c.Name
	sel.ThemeColor = c.ThemeColor
	sel.Language = c.Language

	seen := make(map[string]bool, len(c.Features))
	for _, id := range c.Features {
		f, ok := t.Feature(id)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		sel.Features = append(sel.Features, f)
	}
	return sel
}

// Categorize partitions the selection without touching the table.
func (s *Selection) Categorize() Groups {
	g := Groups{OCR: []Feature{}, Face: []Feature{}, Liveness: []Feature{}}
	if s == nil {
		return g
	}
	for _, f := range s.Features {
		switch f.Category {
		case CategoryOCR:
			g.OCR = append(g.OCR, f)
		case CategoryFace:
			g.Face = append(g.Face, f)
		case CategoryLiveness:
			g.Liveness = append(g.Liveness, f)
		}
	}
	return g
}

// Select returns the feature only if the country offers it.
func (s *Selection) Select(featureID string) (Feature, error) {
	if s == nil {
		return Feature{}, ErrNoCountry
	}
	for _, f := range s.Features {
		if f.ID == featureID {
			return f, nil
		}
	}
	return Feature{}, fmt.Errorf("%w: %s in %s", ErrFeatureNotOffered, featureID, s.Country)
}
