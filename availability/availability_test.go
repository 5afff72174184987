package availability

import (
	"slices"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		minSize int
		want    []int
		wantOK  bool
	}{
		{"hyphen range", "2-4", 2, []int{2, 3, 4}, true},
		{"words range", "3 to 5 players", 2, []int{3, 4, 5}, true},
		{"words range capitalised", "2 To 4 Players", 2, []int{2, 3, 4}, true},
		{"bare count", "4", 2, []int{4}, true},
		{"bare count with noun", "3 players", 2, []int{3}, true},
		{"count below minimum is clamped", "1", 2, []int{2}, true},
		{"range below minimum is clamped", "1-3", 2, []int{2, 3}, true},
		{"select option list", "\n  1\n  2\n  3\n  4\n", 2, []int{2, 3, 4}, true},
		{"mixed separators", "2-3, 4\n6", 2, []int{2, 3, 4, 6}, true},
		{"overlapping ranges dedupe", "2-4\n3-5", 2, []int{2, 3, 4, 5}, true},
		{"garbage alongside valid token", "Select\n2-4", 2, []int{2, 3, 4}, true},
		{"unparseable", "abc", 2, []int{2}, false},
		{"unparseable custom minimum", "abc", 3, []int{3}, false},
		{"empty", "", 2, []int{2}, false},
		{"reversed range", "4-2", 2, []int{2}, false},
		{"absurd range", "1-1000", 2, []int{2}, false},
		{"zero count", "0", 2, []int{2}, false},
		{"minimum above all values", "2-4", 4, []int{4}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.text, tt.minSize)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Parse(%q, %d) = %v, want %v", tt.text, tt.minSize, got, tt.want)
			}
			if ok != tt.wantOK {
				t.Errorf("Parse(%q, %d) ok = %v, want %v", tt.text, tt.minSize, ok, tt.wantOK)
			}
		})
	}
}

func TestParseDefaultsNonPositiveMinimum(t *testing.T) {
	got, ok := Parse("nope", 0)
	if ok || !slices.Equal(got, []int{1}) {
		t.Errorf("Parse with minSize 0 = %v, %v", got, ok)
	}
}
