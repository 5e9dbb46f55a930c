// Package naming implements the project naming convention: an initiative
// code followed by a three-digit, zero-padded index and the project title,
// as in "ENG-042 Search Revamp".
package naming

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTimestamp is returned for creation timestamps not in the
// API's fractional-seconds UTC form.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// timestampPattern accepts 2024-01-15T10:30:00.123Z with 1-6 fractional digits.
var timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{1,6}Z$`)

const timestampLayout = "2006-01-02T15:04:05.999999Z"

// Initiative is a compiled initiative code.
type Initiative struct {
	Code string

	index  *regexp.Regexp
	prefix *regexp.Regexp
}

// NewInitiative compiles the matching rules for code. The code is
// upper-cased; names are compared case-insensitively.
func NewInitiative(code string) Initiative {
	code = strings.ToUpper(code)
	quoted := regexp.QuoteMeta(code)
	return Initiative{
		Code:   code,
		index:  regexp.MustCompile(`^` + quoted + `[\s-]*(\d{3})`),
		prefix: regexp.MustCompile(`(?i)^` + quoted + `[\s-]*`),
	}
}

// Compile compiles codes in order. Order matters: Match picks the first
// initiative a name starts with.
func Compile(codes []string) []Initiative {
	out := make([]Initiative, 0, len(codes))
	for _, code := range codes {
		out = append(out, NewInitiative(code))
	}
	return out
}

// Matches reports whether the upper-cased name starts with the code.
func (i Initiative) Matches(name string) bool {
	return strings.HasPrefix(strings.ToUpper(name), i.Code)
}

// ExtractIndex returns the three-digit index directly following the code at
// the start of name, allowing any run of whitespace or hyphens in between.
// Digits anywhere else in the name are ignored.
func (i Initiative) ExtractIndex(name string) (int, bool) {
	m := i.index.FindStringSubmatch(strings.ToUpper(name))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// CleanTitle strips a leading code (and trailing separators) from name
// and trims the result.
func (i Initiative) CleanTitle(name string) string {
	return strings.TrimSpace(i.prefix.ReplaceAllString(name, ""))
}

// FormatName builds "<CODE>-<index> <title>".
func (i Initiative) FormatName(index int, title string) string {
	return fmt.Sprintf("%s-%s %s", i.Code, FormatIndex(index), title)
}

// ExtractIndex is a convenience wrapper around Initiative.ExtractIndex.
func ExtractIndex(code, name string) (int, bool) {
	return NewInitiative(code).ExtractIndex(name)
}

// Match returns the first initiative whose code starts name.
func Match(initiatives []Initiative, name string) (Initiative, bool) {
	for _, in := range initiatives {
		if in.Matches(name) {
			return in, true
		}
	}
	return Initiative{}, false
}

// FormatIndex zero-pads n to three digits.
func FormatIndex(n int) string {
	return fmt.Sprintf("%03d", n)
}

// ParseTimestamp parses a creation timestamp such as
// "2024-01-15T10:30:00.000Z". Other ISO-8601 forms (offsets, missing
// fraction) are rejected.
func ParseTimestamp(s string) (time.Time, error) {
	if !timestampPattern.MatchString(s) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidTimestamp, s, err)
	}
	return t, nil
}
