package scenario

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Suite is a set of scenarios loaded from one YAML file. T0 and the
// horizon are optional; callers fall back to their own defaults when the
// file leaves them out.
type Suite struct {
	Name       string    `yaml:"name"`
	T0         time.Time `yaml:"t0"`
	HorizonMin int       `yaml:"horizon_min"`
	Scenarios  []Spec    `yaml:"scenarios"`
}

// Horizon returns the suite's horizon, or def when the file set none.
func (s *Suite) Horizon(def time.Duration) time.Duration {
	if s.HorizonMin > 0 {
		return time.Duration(s.HorizonMin) * time.Minute
	}
	return def
}

// ParseSuite decodes a YAML suite. Unknown fields are rejected so a typo
// in a template parameter fails loudly instead of silently no-opping.
func ParseSuite(r io.Reader) (*Suite, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Suite
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario suite: %w", err)
	}
	if len(s.Scenarios) == 0 {
		return nil, errors.New("scenario suite lists no scenarios")
	}
	for _, spec := range s.Scenarios {
		if err := spec.validate(); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// LoadSuite reads a suite file from disk.
func LoadSuite(path string) (*Suite, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario suite: %w", err)
	}
	defer f.Close()
	s, err := ParseSuite(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
