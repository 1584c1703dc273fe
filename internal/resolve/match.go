package resolve

import (
	"fmt"
	"strings"
)

// Criteria filters artifact names.
// A name matches when it ends with Suffix, contains every Contains token
// and none of the Excludes tokens.
type Criteria struct {
	Suffix   string
	Contains []string
	Excludes []string
}

func (c Criteria) Matches(name string) bool {
	if c.Suffix != "" && !strings.HasSuffix(name, c.Suffix) {
		return false
	}
	for _, token := range c.Contains {
		if !strings.Contains(name, token) {
			return false
		}
	}
	for _, token := range c.Excludes {
		if strings.Contains(name, token) {
			return false
		}
	}

	return true
}

func (c Criteria) String() string {
	return fmt.Sprintf("suffix=%q contains=%q excludes=%q", c.Suffix, c.Contains, c.Excludes)
}

// Filter returns the distinct names matching c. Index pages often link
// the same file twice.
func (c Criteria) Filter(names []string) []string {
	var out []string
	for _, name := range names {
		if c.Matches(name) {
			out = append(out, name)
		}
	}

	return unique(out)
}

// ExactlyOne filters names by c and requires a single match.
// Zero or several matches are a *ResolutionError: guessing is never safe.
func ExactlyOne(arch string, names []string, c Criteria) (string, error) {
	matches := c.Filter(names)
	if len(matches) != 1 {
		return "", &ResolutionError{
			Reason:     ReasonNotExactlyOne,
			Arch:       arch,
			Details:    c.String(),
			Candidates: matches,
		}
	}

	return matches[0], nil
}
