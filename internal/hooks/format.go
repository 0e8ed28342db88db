package hooks

import (
	"fmt"
	"strings"

	"github.com/HendryAvila/mama/internal/memory"
)

// Snippet lengths per injection mode.
const (
	hintSnippetLen = 60
	fullSnippetLen = 240
)

// EstimateTokens approximates tokens as chars/4; at least 1 for non-empty text.
func EstimateTokens(text string) int {
	n := len(text)
	if n == 0 {
		return 0
	}
	if n < 4 {
		return 1
	}
	return n / 4
}

// navigationHint is a footer shown when a list was capped.
func navigationHint(showing, total int, hint string) string {
	if total <= 0 || showing >= total {
		return ""
	}
	if hint != "" {
		return fmt.Sprintf("Showing %d of %d. %s", showing, total, hint)
	}
	return fmt.Sprintf("Showing %d of %d.", showing, total)
}

func formatDecisionLine(d memory.Decision, snippet int) string {
	line := fmt.Sprintf("- [%s] %s", d.ID, d.Topic)
	if snippet > 0 {
		if r := strings.Join(strings.Fields(d.Reasoning), " "); r != "" {
			line += ": " + memory.Truncate(r, snippet)
		}
	}
	if d.Outcome != nil && *d.Outcome != "" {
		line += " (outcome: " + memory.Truncate(*d.Outcome, snippet) + ")"
	}
	return line
}

// FormatActionHints renders hints as a short text block for tool results.
func FormatActionHints(a *ActionHints) string {
	if a.Empty() {
		return ""
	}
	var b strings.Builder
	b.WriteString("Next steps:")
	for _, s := range a.Suggestions {
		b.WriteString("\n- " + s)
	}
	if a.SaveSuggestion != "" {
		b.WriteString("\n- " + a.SaveSuggestion)
	}
	for _, m := range a.ModuleHints {
		b.WriteString("\n- " + m)
	}
	return b.String()
}
