// Package trust decides whether a caller identifier belongs to the configured
// set of trusted identities.
package trust

import (
	"strings"
	"unicode"

	"github.com/gosuda/callbridge/internal/domain"
)

// Classifier matches caller identifiers against a fixed trusted list.
type Classifier struct {
	trusted []string
}

// NewClassifier normalizes the trusted identifiers once. Entries that are
// empty after whitespace removal are dropped.
func NewClassifier(trusted []string) *Classifier {
	c := &Classifier{trusted: make([]string, 0, len(trusted))}
	for _, id := range trusted {
		if n := normalize(id); n != "" {
			c.trusted = append(c.trusted, n)
		}
	}
	return c
}

// Classify returns TrustTrusted when the caller and a trusted identifier
// contain one another after whitespace removal, so "+31 6 2759 9508" and a
// number without its country code still match. Empty callers are untrusted.
func (c *Classifier) Classify(caller string) domain.TrustLevel {
	n := normalize(caller)
	if n == "" {
		return domain.TrustUntrusted
	}
	for _, t := range c.trusted {
		if strings.Contains(n, t) || strings.Contains(t, n) {
			return domain.TrustTrusted
		}
	}
	return domain.TrustUntrusted
}

// Trusted returns the normalized trusted identifiers.
func (c *Classifier) Trusted() []string {
	out := make([]string, len(c.trusted))
	copy(out, c.trusted)
	return out
}

func normalize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
