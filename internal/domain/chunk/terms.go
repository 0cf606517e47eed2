package chunk

import (
	"strings"
	"unicode"
)

// MaxQueryTerms caps how many distinct terms a lexical query carries.
const MaxQueryTerms = 32

// QueryTerms splits a free-text question into lowercase search terms.
// Runs of letters and digits form a term; single-rune terms are dropped and
// duplicates keep their first position.
func QueryTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	terms := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
		if len(terms) == MaxQueryTerms {
			break
		}
	}
	return terms
}
