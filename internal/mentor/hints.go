package mentor

import (
	"sort"
	"strings"

	"github.com/HendryAvila/mama/internal/memory"
)

// Verbosity labels, one per level.
const (
	VerbosityDetailed = "detailed"
	VerbosityGuided   = "guided"
	VerbosityConcise  = "concise"
	VerbosityTerse    = "terse"
)

// conciseHintLen caps stored hint text for proficient users.
const conciseHintLen = 80

// AdaptiveHints is guidance for one domain scaled to the user's level.
type AdaptiveHints struct {
	Domain    string   `json:"domain"`
	Level     int      `json:"level"`
	LevelName string   `json:"level_name"`
	Verbosity string   `json:"verbosity"`
	Hints     []string `json:"hints"`
}

// baseHints are general next-step suggestions, most explicit first.
var baseHints = []string{
	"Record why you chose this approach with save, naming the alternatives you rejected.",
	"Link it to earlier work: start the reasoning with builds_on: <topic or id>.",
	"If it contradicts an earlier choice, say so with debates: <id> so the graph stays honest.",
	"Before starting something similar, search past decisions and run recommend_modules for reusable parts.",
}

// Verbosity returns the label for a level.
func Verbosity(level int) string {
	switch level {
	case LevelIntermediate:
		return VerbosityGuided
	case LevelProficient:
		return VerbosityConcise
	case LevelAdvanced:
		return VerbosityTerse
	default:
		return VerbosityDetailed
	}
}

// AdaptiveHints returns guidance for a domain. Levels are recomputed first so
// the verbosity always reflects current activity.
func (m *Mentor) AdaptiveHints(userID, domain string) (*AdaptiveHints, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil, &memory.ValidationError{Field: "domain", Reason: "must not be empty"}
	}
	p, err := m.Profile(userID)
	if err != nil {
		return nil, err
	}
	stored, err := m.store.ListHints(domain, true)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(stored))
	for _, h := range stored {
		texts = append(texts, h.Text)
	}
	level := p.Level(domain)
	return &AdaptiveHints{
		Domain:    domain,
		Level:     level,
		LevelName: LevelName(level),
		Verbosity: Verbosity(level),
		Hints:     ScaleHints(level, texts),
	}, nil
}

// ScaleHints combines general suggestions with stored domain hints at the
// verbosity for level.
func ScaleHints(level int, stored []string) []string {
	out := []string{}
	switch level {
	case LevelAdvanced:
		return append(out, "Decision worth recording? save it; link with builds_on/debates.")
	case LevelProficient:
		out = append(out, baseHints[1])
		for _, s := range stored {
			out = append(out, memory.Truncate(firstLine(s), conciseHintLen))
		}
		return out
	case LevelIntermediate:
		out = append(out, baseHints[:2]...)
	default:
		out = append(out, baseHints...)
	}
	return append(out, stored...)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
