package intent

import "strings"

// Intent is the closed set of task categories a question can be routed to.
type Intent string

// Intent wire tokens.
const (
	Find     Intent = "FIND_TASK"
	Explain  Intent = "EXPLAIN_TASK"
	Generate Intent = "GENERATE_TASK"
	Other    Intent = "OTHER"
)

// priority is the scan order used by Parse. GENERATE wins over EXPLAIN over
// FIND over OTHER when a reply mentions several tokens.
var priority = []Intent{Generate, Explain, Find, Other}

// All returns every intent in parse priority order.
func All() []Intent {
	out := make([]Intent, len(priority))
	copy(out, priority)
	return out
}

// String returns the wire token.
func (i Intent) String() string { return string(i) }

// Parse finds the highest-priority token anywhere in the uppercased reply.
func Parse(reply string) (Intent, bool) {
	upper := strings.ToUpper(strings.TrimSpace(reply))
	if upper == "" {
		return "", false
	}
	for _, in := range priority {
		if strings.Contains(upper, string(in)) {
			return in, true
		}
	}
	return "", false
}
