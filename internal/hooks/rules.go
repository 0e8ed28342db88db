package hooks

import (
	"regexp"
	"strconv"
	"strings"
)

// Observation is what the classifier found in a tool's output.
type Observation struct {
	ToolName string
	Entities map[string]int
	Imports  []string
	Files    []string
	Result   string
}

// Count returns how many entities of any of the given kinds were seen.
func (o *Observation) Count(kinds ...string) int {
	n := 0
	for _, k := range kinds {
		n += o.Entities[k]
	}
	return n
}

// Rule is a declarative {condition, suggestion} pair.
type Rule struct {
	Name       string
	When       func(*Observation) bool
	Suggestion string
}

// DefaultRules are evaluated in order; earlier rules win when the result is capped.
var DefaultRules = []Rule{
	{
		Name:       "group_character_parts",
		When:       func(o *Observation) bool { return o.Count("character") > 0 || o.Count("part") >= 2 },
		Suggestion: "Several parts were created: group them into one object so they move and scale together.",
	},
	{
		Name:       "check_geometry",
		When:       func(o *Observation) bool { return o.Count("mesh", "geometry", "object", "shape") > 0 },
		Suggestion: "Check the new geometry for overlaps and consistent scale before building on it.",
	},
	{
		Name:       "apply_materials",
		When:       func(o *Observation) bool { return o.Count("part", "mesh", "object") > 0 && o.Count("material", "texture") == 0 },
		Suggestion: "Assign materials now while part names are fresh.",
	},
	{
		Name:       "test_new_code",
		When:       func(o *Observation) bool { return o.Count("function", "class", "method", "component") > 0 },
		Suggestion: "Add a test for the new code before moving on.",
	},
	{
		Name: "link_decision",
		When: func(o *Observation) bool {
			return o.ToolName == "save" && strings.Contains(o.Result, `"parsed_edges": []`)
		},
		Suggestion: "This decision is not linked yet: mention builds_on: <topic> or debates: <id> in the reasoning next time.",
	},
	{
		Name:       "advance_workflow",
		When:       func(o *Observation) bool { return o.Count("artifact") > 0 },
		Suggestion: "When this phase's artifacts are complete, advance with workflow action=next.",
	},
	{
		Name:       "record_reasoning",
		When:       func(o *Observation) bool { return len(o.Entities) > 0 && o.ToolName != "save" },
		Suggestion: "Record why you made this change with save so it can be found later.",
	},
}

// Evaluate returns the suggestions of the first max matching rules.
func Evaluate(rules []Rule, o *Observation, max int) []string {
	out := []string{}
	for _, r := range rules {
		if max > 0 && len(out) >= max {
			break
		}
		if r.When(o) {
			out = append(out, r.Suggestion)
		}
	}
	return out
}

var (
	// "created 3 parts", "added a mesh", "generated character"
	createdRe = regexp.MustCompile(`(?i)\b(?:created|added|generated|built|inserted)\s+(?:an?\s+|the\s+|(\d+)\s+)?(?:new\s+)?([a-z][a-z_]*)`)
	// {"type": "part"} / {"kind":"mesh"}
	typeFieldRe = regexp.MustCompile(`"(?:type|kind|entity)"\s*:\s*"([A-Za-z][A-Za-z_]*)"`)
	// import foo / from foo import / require("foo") / import "foo"
	importRe = regexp.MustCompile(`(?m)^\s*(?:import|from)\s+"?([A-Za-z_][\w./-]*)"?|require\(\s*["']([\w./@-]+)["']\s*\)`)
	fileRe   = regexp.MustCompile(`[\w./-]+\.(?:py|go|js|ts|scad|stl|obj|blend|json|ya?ml|md)\b`)
)

// Classify extracts entity kinds, imports and file paths from tool output.
func Classify(toolName, result string) *Observation {
	o := &Observation{ToolName: toolName, Entities: map[string]int{}, Result: result}
	for _, m := range createdRe.FindAllStringSubmatch(result, -1) {
		n := 1
		if m[1] != "" {
			if v, err := strconv.Atoi(m[1]); err == nil && v > 0 {
				n = v
			}
		}
		o.Entities[singular(strings.ToLower(m[2]))] += n
	}
	for _, m := range typeFieldRe.FindAllStringSubmatch(result, -1) {
		o.Entities[singular(strings.ToLower(m[1]))]++
	}
	seen := map[string]bool{}
	for _, m := range importRe.FindAllStringSubmatch(result, -1) {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if name != "" && !seen[name] {
			seen[name] = true
			o.Imports = append(o.Imports, name)
		}
	}
	for _, f := range fileRe.FindAllString(result, -1) {
		if !seen[f] {
			seen[f] = true
			o.Files = append(o.Files, f)
		}
	}
	return o
}

func singular(s string) string {
	switch {
	case strings.HasSuffix(s, "ies") && len(s) > 3:
		return s[:len(s)-3] + "y"
	case strings.HasSuffix(s, "ses"), strings.HasSuffix(s, "xes"), strings.HasSuffix(s, "ches"), strings.HasSuffix(s, "shes"):
		return s[:len(s)-2]
	case strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss") && len(s) > 1:
		return s[:len(s)-1]
	}
	return s
}
