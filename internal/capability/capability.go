// Package capability maps a selected region to the analysis features it offers.
package capability

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultTable []byte

// Category groups features in the playground.
type Category string

const (
	CategoryOCR      Category = "ocr"
	CategoryFace     Category = "face"
	CategoryLiveness Category = "liveness"
)

// InputMode declares how many uploads a feature needs and of what kind.
type InputMode string

const (
	InputSingleImage InputMode = "single_image"
	InputDualImage   InputMode = "dual_image"
	InputVideo       InputMode = "video"
)

var (
	ErrFeatureNotOffered = errors.New("feature not offered in selected country")
	ErrNoCountry         = errors.New("no country selected")
)

// Country is one region entry of the table.
type Country struct {
	Name       string   `yaml:"name" json:"name"`
	ThemeColor string   `yaml:"theme_color" json:"theme_color"`
	Language   string   `yaml:"language" json:"language"`
	Features   []string `yaml:"features" json:"features"`
}

// Feature is the static configuration of one analysis feature.
type Feature struct {
	ID           string    `yaml:"-" json:"id"`
	Name         string    `yaml:"name" json:"name"`
	Category     Category  `yaml:"category" json:"category"`
	Endpoint     string    `yaml:"endpoint" json:"endpoint"`
	InputMode    InputMode `yaml:"input_mode" json:"input_mode"`
	DocumentType string    `yaml:"document_type,omitempty" json:"document_type,omitempty"`
}

// Table is immutable after loading. Callers receive copies.
type Table struct {
	countries map[string]Country
	features  map[string]Feature
}

type tableFile struct {
	Countries map[string]Country `yaml:"countries"`
	Features  map[string]Feature `yaml:"features"`
}

// Default returns the built-in table.
func Default() (*Table, error) {
	return Parse(defaultTable)
}

// Load reads a table from path, or the built-in one when path is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capability table: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML table.
func Parse(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse capability table: %w", err)
	}
	t := &Table{
		countries: make(map[string]Country, len(f.Countries)),
		features:  make(map[string]Feature, len(f.Features)),
	}
	for id, feat := range f.Features {
		feat.ID = id
		if err := feat.validate(); err != nil {
			return nil, err
		}
		t.features[id] = feat
	}
	for code, c := range f.Countries {
		c.Features = append([]string(nil), c.Features...)
		t.countries[strings.ToLower(code)] = c
	}
	return t, nil
}

func (f Feature) validate() error {
	switch f.Category {
	case CategoryOCR, CategoryFace, CategoryLiveness:
	default:
		return fmt.Errorf("feature %s: unknown category %q", f.ID, f.Category)
	}
	switch f.InputMode {
	case InputSingleImage, InputDualImage, InputVideo:
	default:
		return fmt.Errorf("feature %s: unknown input mode %q", f.ID, f.InputMode)
	}
	if !strings.HasPrefix(f.Endpoint, "/") {
		return fmt.Errorf("feature %s: endpoint must start with /", f.ID)
	}
	return nil
}

// Countries lists the configured country codes in sorted order.
func (t *Table) Countries() []string {
	codes := make([]string, 0, len(t.countries))
	for code := range t.countries {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Country looks up a region entry.
func (t *Table) Country(code string) (Country, bool) {
	c, ok := t.countries[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return Country{}, false
	}
	c.Features = append([]string(nil), c.Features...)
	return c, true
}

// Feature looks up a feature configuration.
func (t *Table) Feature(id string) (Feature, bool) {
	f, ok := t.features[id]
	return f, ok
}
