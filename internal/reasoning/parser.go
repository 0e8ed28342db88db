// Package reasoning extracts typed relationships from a decision's free-text
// reasoning and resolves their targets against the Decision Store.
//
// Recognized forms, one per line, keyword case-insensitive:
//
//	builds_on: <target>
//	debates: <target>
//	synthesizes: [<target1>, <target2>, ...]
//
// A target is either a decision id (decision_<token>) or a bare topic.
package reasoning

import (
	"strings"
	"unicode"

	"github.com/HendryAvila/mama/internal/memory"
)

// Relation is one relationship found in reasoning text.
type Relation struct {
	Type   memory.EdgeType `json:"type"`
	Target string          `json:"target"`
}

// IsDecisionID reports whether the target looks like a decision id.
func (r Relation) IsDecisionID() bool {
	return strings.HasPrefix(strings.ToLower(r.Target), memory.DecisionIDPrefix)
}

// keywords in match order.
var keywords = []memory.EdgeType{memory.EdgeBuildsOn, memory.EdgeDebates, memory.EdgeSynthesizes}

// Parse scans reasoning line by line and returns every relationship found,
// in order of appearance, without duplicates. It never fails: text it cannot
// read is ignored.
func Parse(reasoning string) []Relation {
	var (
		out  []Relation
		seen = make(map[Relation]bool)
	)
	add := func(r Relation) {
		if r.Target == "" || seen[r] {
			return
		}
		seen[r] = true
		out = append(out, r)
	}

	for _, line := range strings.Split(reasoning, "\n") {
		lower := asciiLower(line)
		for _, kw := range keywords {
			for _, rest := range clauses(line, lower, string(kw)) {
				if kw == memory.EdgeSynthesizes {
					for _, t := range splitList(rest) {
						add(Relation{Type: kw, Target: t})
					}
					continue
				}
				add(Relation{Type: kw, Target: firstToken(rest)})
			}
		}
	}
	return out
}

// clauses returns the text following every "<kw>:" occurrence in the line
// where kw starts a word.
func clauses(line, lower, kw string) []string {
	var rests []string
	from := 0
	for {
		i := strings.Index(lower[from:], kw)
		if i < 0 {
			return rests
		}
		start := from + i
		end := start + len(kw)
		from = end

		if start > 0 && isWordRune(rune(lower[start-1])) {
			continue
		}
		j := end
		for j < len(line) && (line[j] == ' ' || line[j] == '\t') {
			j++
		}
		if j >= len(line) || line[j] != ':' {
			continue
		}
		rests = append(rests, line[j+1:])
	}
}

// asciiLower folds only ASCII letters so byte offsets match the original line.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// firstToken returns the first whitespace-delimited token with surrounding
// quotes and trailing punctuation removed.
func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return cleanTarget(fields[0])
}

// splitList reads "[a, b, c]" or "a, b, c". Without brackets the list ends at
// the end of the line.
func splitList(s string) []string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		s = s[1:]
		if end := strings.IndexByte(s, ']'); end >= 0 {
			s = s[:end]
		}
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := cleanTarget(strings.TrimSpace(part)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func cleanTarget(t string) string {
	t = strings.Trim(t, "\"'`")
	t = strings.TrimRight(t, ".,;)]")
	return strings.Trim(t, "\"'`")
}
