package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/ze-codes/tee-time-scraper/models"
	"github.com/ze-codes/tee-time-scraper/tz"
)

// Source kinds understood by the source package.
const (
	KindProphet = "prophet"
	KindTotale  = "totale"
)

// CourseConfig describes a course a source publishes tee times for.
type CourseConfig struct {
	Name           string   `yaml:"name"`
	Timezone       string   `yaml:"timezone,omitempty"`
	Latitude       *float64 `yaml:"latitude,omitempty"`
	Longitude      *float64 `yaml:"longitude,omitempty"`
	MinBookingSize int      `yaml:"min_booking_size,omitempty"`
}

// SourceConfig describes one scrape source.
type SourceConfig struct {
	// Name is what triggers refer to, e.g. "vancouver-city".
	Name string `yaml:"name"`
	// Kind selects the implementation: "prophet" or "totale".
	Kind string `yaml:"kind"`
	URL  string `yaml:"url"`
	// Timezone is the zone the booking site shows times in.
	Timezone string `yaml:"timezone,omitempty"`
	Currency string `yaml:"currency,omitempty"`
	// Days is how many days ahead to read, starting today.
	Days int `yaml:"days,omitempty"`
	// RatePerSecond throttles page requests. Zero means 1.
	RatePerSecond float64        `yaml:"rate_per_second,omitempty"`
	Courses       []CourseConfig `yaml:"courses,omitempty"`
}

// Registry is the list of configured scrape sources.
type Registry struct {
	Sources []SourceConfig `yaml:"sources"`
}

// DefaultRegistry returns the built-in sources used when no file exists.
func DefaultRegistry() *Registry {
	lat := func(f float64) *float64 { return &f }
	return &Registry{Sources: []SourceConfig{
		{
			Name:     "vancouver-city",
			Kind:     KindProphet,
			URL:      "https://secure.west.prophetservices.com/CityofVancouver/Home/nIndex?CourseId=2,1,3&Date=",
			Timezone: "America/Vancouver",
			Currency: "CAD",
			Days:     5,
			Courses: []CourseConfig{
				{Name: "Fraserview", Latitude: lat(49.2110), Longitude: lat(-123.0560)},
				{Name: "Langara", Latitude: lat(49.2190), Longitude: lat(-123.1070)},
				{Name: "McCleery", Latitude: lat(49.2150), Longitude: lat(-123.1830)},
			},
		},
		{
			Name:     "mayfair-lakes",
			Kind:     KindTotale,
			URL:      "https://mayfairlakes.totaleintegrated.com/Book-a-Tee-Time",
			Timezone: "America/Vancouver",
			Currency: "CAD",
			Days:     7,
			Courses: []CourseConfig{
				{Name: "Mayfair Lakes", Latitude: lat(49.1560), Longitude: lat(-123.0850)},
			},
		},
	}}
}

// LoadSources reads the YAML registry at path. A missing file yields the
// default registry.
func LoadSources(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			reg := DefaultRegistry()
			return reg, reg.Validate()
		}
		return nil, fmt.Errorf("read sources: %w", err)
	}

	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse sources %s: %w", path, err)
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("sources %s: %w", path, err)
	}
	return &reg, nil
}

// Validate checks names are unique and kinds and zones are known, and fills defaults.
func (r *Registry) Validate() error {
	seen := map[string]bool{}
	for i := range r.Sources {
		s := &r.Sources[i]
		if s.Name == "" {
			return fmt.Errorf("source %d: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("source %q: duplicate name", s.Name)
		}
		seen[s.Name] = true
		if s.Kind != KindProphet && s.Kind != KindTotale {
			return fmt.Errorf("source %q: unknown kind %q", s.Name, s.Kind)
		}
		if s.URL == "" {
			return fmt.Errorf("source %q: url is required", s.Name)
		}
		if s.Timezone == "" {
			s.Timezone = models.DefaultTimezone
		}
		if _, err := tz.Load(s.Timezone); err != nil {
			return fmt.Errorf("source %q: %w", s.Name, err)
		}
		if s.Days <= 0 {
			s.Days = 1
		}
		if s.Currency == "" {
			s.Currency = "CAD"
		}
		for j := range s.Courses {
			c := &s.Courses[j]
			if c.Name == "" {
				return fmt.Errorf("source %q: course %d has no name", s.Name, j)
			}
			if c.Timezone == "" {
				c.Timezone = s.Timezone
			}
			if _, err := tz.Load(c.Timezone); err != nil {
				return fmt.Errorf("source %q course %q: %w", s.Name, c.Name, err)
			}
			if c.MinBookingSize <= 0 {
				c.MinBookingSize = models.DefaultMinBookingSize
			}
		}
	}
	return nil
}

// Names returns the source names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.Sources))
	for _, s := range r.Sources {
		out = append(out, s.Name)
	}
	slices.Sort(out)
	return out
}

// Courses returns every course across all sources.
func (r *Registry) Courses() []CourseConfig {
	var out []CourseConfig
	for _, s := range r.Sources {
		out = append(out, s.Courses...)
	}
	return out
}
