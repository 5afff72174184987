package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		DBPass:          "secret",
		ScrapeTimeout:   time.Minute,
		DefaultCurrency: "CAD",
		DefaultTimezone: "America/Vancouver",
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "database url instead of password", mutate: func(c *Config) { c.DBPass = ""; c.DatabaseURL = "postgres://x" }},
		{name: "no credentials", mutate: func(c *Config) { c.DBPass = "" }, wantErr: "DATABASE_URL"},
		{name: "zero timeout", mutate: func(c *Config) { c.ScrapeTimeout = 0 }, wantErr: "SCRAPE_TIMEOUT"},
		{name: "negative retries", mutate: func(c *Config) { c.ReconcileRetries = -1 }, wantErr: "RECONCILE_RETRIES"},
		{name: "bad zone", mutate: func(c *Config) { c.DefaultTimezone = "Mars/Olympus" }, wantErr: "DEFAULT_TIMEZONE"},
		{name: "bad currency", mutate: func(c *Config) { c.DefaultCurrency = "DOLLARS" }, wantErr: "DEFAULT_CURRENCY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.check()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("check() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("check() = %v, want error mentioning %s", err, tt.wantErr)
			}
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	c := &Config{DBUser: "u", DBPass: "p", DBHost: "h", DBPort: "5432", DBName: "n", DBSSLMode: "disable"}
	if got, want := c.PostgresDSN(), "postgres://u:p@h:5432/n?sslmode=disable"; got != want {
		t.Errorf("PostgresDSN() = %q, want %q", got, want)
	}
	c.DatabaseURL = "postgres://override"
	if got := c.PostgresDSN(); got != "postgres://override" {
		t.Errorf("PostgresDSN() = %q, want DATABASE_URL", got)
	}
}

func TestSplitTrimmed(t *testing.T) {
	got := splitTrimmed(" a.com, ,b.com ,")
	if len(got) != 2 || got[0] != "a.com" || got[1] != "b.com" {
		t.Errorf("splitTrimmed() = %q", got)
	}
}

func TestLoadSourcesMissingFileUsesDefault(t *testing.T) {
	reg, err := LoadSources(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadSources() error = %v", err)
	}
	names := reg.Names()
	if len(names) != 2 || names[0] != "mayfair-lakes" || names[1] != "vancouver-city" {
		t.Errorf("Names() = %v", names)
	}
	for _, c := range reg.Courses() {
		if c.MinBookingSize != 2 || c.Timezone != "America/Vancouver" {
			t.Errorf("course %q defaults not filled: %+v", c.Name, c)
		}
	}
}

func TestLoadSourcesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	yml := `
sources:
  - name: east
    kind: prophet
    url: https://example.test/sheet?Date=
    timezone: America/Toronto
    days: 3
    courses:
      - name: Lakeside
        min_booking_size: 1
      - name: Ridge
        timezone: America/Vancouver
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadSources(path)
	if err != nil {
		t.Fatalf("LoadSources() error = %v", err)
	}
	src := reg.Sources[0]
	if src.Currency != "CAD" || src.Days != 3 {
		t.Errorf("source defaults = %+v", src)
	}
	if got := src.Courses[0]; got.Timezone != "America/Toronto" || got.MinBookingSize != 1 {
		t.Errorf("Lakeside = %+v", got)
	}
	if got := src.Courses[1]; got.Timezone != "America/Vancouver" || got.MinBookingSize != 2 {
		t.Errorf("Ridge = %+v", got)
	}
}

func TestRegistryValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		reg     Registry
		wantErr string
	}{
		{
			name:    "duplicate",
			reg:     Registry{Sources: []SourceConfig{{Name: "a", Kind: KindProphet, URL: "u"}, {Name: "a", Kind: KindTotale, URL: "u"}}},
			wantErr: "duplicate",
		},
		{
			name:    "unknown kind",
			reg:     Registry{Sources: []SourceConfig{{Name: "a", Kind: "ezlinks", URL: "u"}}},
			wantErr: "unknown kind",
		},
		{
			name:    "missing url",
			reg:     Registry{Sources: []SourceConfig{{Name: "a", Kind: KindProphet}}},
			wantErr: "url",
		},
		{
			name:    "bad course zone",
			reg:     Registry{Sources: []SourceConfig{{Name: "a", Kind: KindProphet, URL: "u", Courses: []CourseConfig{{Name: "c", Timezone: "Nowhere/Land"}}}}},
			wantErr: "course",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.reg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}
