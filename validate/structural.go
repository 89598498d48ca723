package validate

import (
	"fmt"
	"strings"

	"github.com/clinsight/takforge/tak"
)

// elementRule describes one element of the artifact grammar: the attributes
// it must carry and the children it may contain.
type elementRule struct {
	tag      string
	attrs    []string
	children []childRule
}

// childRule requires at least min occurrences of an element. Upper bounds
// are deliberately not part of the grammar: a duplicated element is an
// ambiguity for the business validator to report as uncertain, not a shape
// defect.
type childRule struct {
	rule elementRule
	min  int
}

func one(rule elementRule) childRule  { return childRule{rule: rule, min: 1} }
func many(rule elementRule) childRule { return childRule{rule: rule, min: 1} }

var persistenceRule = elementRule{
	tag:   "persistence",
	attrs: []string{"good-before", "good-after", "downward-hereditary"},
}

var derivedFromRule = elementRule{
	tag:      "derived-from",
	children: []childRule{many(elementRule{tag: "concept", attrs: []string{"id"}})},
}

// grammar is the fixed artifact schema, keyed by root tag. Every concept
// type the engine can generate has exactly one entry.
var grammar = map[string]elementRule{
	string(tak.ConceptRawNumeric): {
		tag:   string(tak.ConceptRawNumeric),
		attrs: []string{"id", "name"},
		children: []childRule{
			one(persistenceRule),
			one(elementRule{tag: "numeric-allowed-values", attrs: []string{"min", "max", "unit", "scale"}}),
		},
	},
	string(tak.ConceptRawNominal): {
		tag:   string(tak.ConceptRawNominal),
		attrs: []string{"id", "name"},
		children: []childRule{
			one(persistenceRule),
			one(elementRule{
				tag:      "nominal-allowed-values",
				children: []childRule{many(elementRule{tag: "allowed-value", attrs: []string{"value"}})},
			}),
		},
	},
	string(tak.ConceptState): {
		tag:   string(tak.ConceptState),
		attrs: []string{"id", "name"},
		children: []childRule{
			one(persistenceRule),
			one(derivedFromRule),
			one(elementRule{
				tag:      "mapping-function",
				children: []childRule{many(elementRule{tag: "bin", attrs: []string{"label"}})},
			}),
		},
	},
	string(tak.ConceptEvent): {
		tag:   string(tak.ConceptEvent),
		attrs: []string{"id", "name"},
		children: []childRule{
			one(persistenceRule),
			one(elementRule{
				tag:      "attributes",
				children: []childRule{many(elementRule{tag: "attribute", attrs: []string{"id"}})},
			}),
		},
	},
	string(tak.ConceptContext): {
		tag:   string(tak.ConceptContext),
		attrs: []string{"id", "name"},
		children: []childRule{
			one(persistenceRule),
			one(elementRule{tag: "inducer", attrs: []string{"id", "from", "until"}}),
		},
	},
	string(tak.ConceptTrend): {
		tag:   string(tak.ConceptTrend),
		attrs: []string{"id", "name"},
		children: []childRule{
			one(persistenceRule),
			one(derivedFromRule),
			one(elementRule{tag: "thresholds", attrs: []string{"increase", "decrease", "significance"}}),
		},
	},
}

// Structural checks a candidate artifact against the fixed grammar for the
// given concept type. The outcome is binary: every finding is a violation
// and the status is PASS or FAIL, never UNCERTAIN. All defects are reported
// in one pass so a single retry can address them together.
func Structural(artifact string, ct tak.ConceptType) Result {
	root, err := parseArtifact(artifact)
	if err != nil {
		return Result{
			Status:   StatusFail,
			Findings: []Finding{violation("/", "document", "well-formed XML", err.Error())},
		}
	}

	rule, ok := grammar[string(ct)]
	if !ok {
		return Result{
			Status:   StatusFail,
			Findings: []Finding{violation("/", "concept type", "a generatable concept type", string(ct))},
		}
	}

	if root.tag != rule.tag {
		return Result{
			Status:   StatusFail,
			Findings: []Finding{violation(root.path, "root element", "<"+rule.tag+">", "<"+root.tag+">")},
		}
	}

	var findings []Finding
	checkElement(root, rule, &findings)
	if len(findings) == 0 {
		return Result{Status: StatusPass}
	}
	return Result{Status: StatusFail, Findings: findings}
}

func checkElement(n *node, rule elementRule, findings *[]Finding) {
	for _, name := range rule.attrs {
		v, ok := n.attr(name)
		if !ok {
			*findings = append(*findings, violation(n.path, "@"+name, "attribute present", "absent"))
			continue
		}
		if strings.TrimSpace(v) == "" {
			*findings = append(*findings, violation(n.path, "@"+name, "non-empty value", "empty"))
		}
	}

	allowed := make(map[string]childRule, len(rule.children))
	for _, cr := range rule.children {
		allowed[cr.rule.tag] = cr
	}

	counts := make(map[string]int)
	for _, child := range n.children {
		cr, ok := allowed[child.tag]
		if !ok {
			*findings = append(*findings, violation(child.path, child.tag, "no such element under <"+n.tag+">", "present"))
			continue
		}
		counts[child.tag]++
		checkElement(child, cr.rule, findings)
	}

	for _, cr := range rule.children {
		count := counts[cr.rule.tag]
		if count < cr.min {
			*findings = append(*findings, violation(
				n.path+"/"+cr.rule.tag, cr.rule.tag,
				fmt.Sprintf("at least %d occurrence(s)", cr.min), fmt.Sprintf("%d", count)))
		}
	}
}
