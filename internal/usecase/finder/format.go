package finder

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/taskpilot/internal/usecase/fusion"
)

func (a *Agent) format(query string, ranked []fusion.Ranked, semanticUsed bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I searched for tasks matching %q and found the following:\n\n", query)

	for i, r := range ranked {
		doc := r.Document()
		fmt.Fprintf(&b, "%d. **%s", i+1, doc.TaskName())
		if doc.Heading() != "" {
			b.WriteString(" - " + doc.Heading())
		}
		b.WriteString("**\n")
		if doc.Content() != "" {
			b.WriteString("   " + snippet(doc.Content(), a.opts.SnippetLength) + "\n")
		}
		if src := doc.Source(); src != "" {
			b.WriteString("   Source: " + src + "\n")
		}
	}

	fmt.Fprintf(&b, "\nWeighting: lexical %.0f%% / semantic %.0f%%",
		a.opts.Weights.Lexical*100, a.opts.Weights.Semantic*100)
	if !semanticUsed {
		b.WriteString(" (semantic ranking disabled: no embedding available)")
	}
	return b.String()
}

// snippet collapses whitespace and cuts to maxLen runes, ending in "..." when cut.
func snippet(content string, maxLen int) string {
	collapsed := strings.Join(strings.Fields(content), " ")
	runes := []rune(collapsed)
	if len(runes) <= maxLen {
		return collapsed
	}
	return string(runes[:maxLen-3]) + "..."
}
