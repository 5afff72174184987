package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ze-codes/tee-time-scraper/models"
)

func TestCourseUpdateFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "nothing set", args: nil},
		{name: "all set", args: []string{"--lat", "49.21", "--lon", "-123.1", "--timezone", "America/Toronto", "--min-size", "1"}},
		{name: "bad latitude", args: []string{"--lat", "91"}, wantErr: "--lat"},
		{name: "bad zone", args: []string{"--timezone", "Pacific/Nowhere"}, wantErr: "--timezone"},
		{name: "bad size", args: []string{"--min-size", "0"}, wantErr: "--min-size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newCourseSetCmd()
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatal(err)
			}
			u, err := courseUpdate(cmd)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("courseUpdate() = %v, want error about %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			set := len(tt.args) > 0
			if (u.Latitude != nil) != set || (u.Longitude != nil) != set || (u.Timezone != nil) != set || (u.MinBookingSize != nil) != set {
				t.Errorf("update = %+v, want all fields set=%v", u, set)
			}
			if set && (*u.Latitude != 49.21 || *u.Timezone != "America/Toronto" || *u.MinBookingSize != 1) {
				t.Errorf("update values = %+v", u)
			}
		})
	}
}

func TestPrintCourses(t *testing.T) {
	lat, lon := 49.2190, -123.1070
	var buf bytes.Buffer
	err := printCourses(&buf, []models.Course{
		{ID: 1, Name: "Langara", Latitude: &lat, Longitude: &lon, Timezone: "America/Vancouver", MinBookingSize: 2},
		{ID: 2, Name: "Unplaced"},
	})
	if err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Langara", "49.2190", "-123.1070", "Unplaced", "America/Vancouver"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.Contains(lines[2], " - ") {
		t.Errorf("unexpected layout:\n%s", out)
	}
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{{"init-db"}, {"courses", "list"}, {"courses", "set"}, {"scrape"}, {"expire"}} {
		if c, _, err := root.Find(path); err != nil || c.Name() != path[len(path)-1] {
			t.Errorf("command %v not found: %v", path, err)
		}
	}
}
