// Package availability turns the free-form party-size text found on booking
// pages into a sorted set of bookable party sizes.
package availability

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// maxSpan bounds how many sizes one range token may expand to.
const maxSpan = 50

var (
	splitPattern  = regexp.MustCompile(`[\n\r,]+`)
	hyphenPattern = regexp.MustCompile(`^(\d+)\s*-\s*(\d+)$`)
	wordsPattern  = regexp.MustCompile(`^(\d+)\s+to\s+(\d+)$`)
	countPattern  = regexp.MustCompile(`^(\d+)$`)
	noisePattern  = regexp.MustCompile(`\b(players?|golfers?|people|persons?)\b`)
)

// Parse returns the ascending, de-duplicated party sizes described by text.
// Every size is raised to at least minSize. Recognised forms are "2-4",
// "3 to 5 players", a bare count, and any newline or comma separated mix of
// those. Unrecognised pieces are skipped; if nothing is recognised the result
// is [minSize] and ok is false so the caller can record a data-quality event.
func Parse(text string, minSize int) (sizes []int, ok bool) {
	if minSize < 1 {
		minSize = 1
	}

	seen := map[int]struct{}{}
	for _, tok := range splitPattern.Split(text, -1) {
		lo, hi, good := parseToken(tok)
		if !good {
			continue
		}
		ok = true
		for n := lo; n <= hi; n++ {
			seen[max(n, minSize)] = struct{}{}
		}
	}

	if !ok {
		return []int{minSize}, false
	}

	sizes = make([]int, 0, len(seen))
	for n := range seen {
		sizes = append(sizes, n)
	}
	slices.Sort(sizes)
	return sizes, true
}

func parseToken(tok string) (int, int, bool) {
	tok = strings.ToLower(strings.TrimSpace(tok))
	tok = strings.Join(strings.Fields(noisePattern.ReplaceAllString(tok, "")), " ")
	if tok == "" {
		return 0, 0, false
	}

	if m := hyphenPattern.FindStringSubmatch(tok); m != nil {
		return span(m[1], m[2])
	}
	if m := wordsPattern.FindStringSubmatch(tok); m != nil {
		return span(m[1], m[2])
	}
	if m := countPattern.FindStringSubmatch(tok); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return 0, 0, false
		}
		return n, n, true
	}
	return 0, 0, false
}

func span(a, b string) (int, int, bool) {
	lo, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, false
	}
	hi, err := strconv.Atoi(b)
	if err != nil {
		return 0, 0, false
	}
	if lo < 1 || hi < lo || hi-lo > maxSpan {
		return 0, 0, false
	}
	return lo, hi, true
}
