package validate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/clinsight/takforge/tak"
)

// Business checks that a candidate artifact encodes the originating
// definition faithfully: identifiers, value domains, bin structure,
// derivations. Unlike the structural pass it can return UNCERTAIN, when a
// value it needs to check cannot be located unambiguously. An absent value
// is a violation; an ambiguous one is an uncertain finding.
func Business(artifact string, def *tak.Definition) Result {
	root, err := parseArtifact(artifact)
	if err != nil {
		return Result{
			Status:   StatusFail,
			Findings: []Finding{violation("/", "document", "well-formed XML", err.Error())},
		}
	}

	c := &checker{def: def}

	if root.tag != string(def.Type) {
		c.fail(root.path, "root element", "<"+string(def.Type)+">", "<"+root.tag+">")
		return Aggregate(c.findings)
	}

	c.attrEquals(root, "id", def.ID)
	c.attrEquals(root, "name", def.Name)
	c.checkPersistence(root)

	switch def.Type {
	case tak.ConceptRawNumeric:
		c.checkRawNumeric(root)
	case tak.ConceptRawNominal:
		c.checkRawNominal(root)
	case tak.ConceptState:
		c.checkState(root)
	case tak.ConceptEvent:
		c.checkEvent(root)
	case tak.ConceptContext:
		c.checkContext(root)
	case tak.ConceptTrend:
		c.checkTrend(root)
	}

	return Aggregate(c.findings)
}

type checker struct {
	def      *tak.Definition
	findings []Finding
}

func (c *checker) fail(locator, field, expected, observed string) {
	c.findings = append(c.findings, violation(locator, field, expected, observed))
}

func (c *checker) unsure(locator, field, expected, observed string) {
	c.findings = append(c.findings, uncertain(locator, field, expected, observed))
}

// locate returns the single descendant with the tag. Zero matches is a
// violation, more than one is an uncertain finding; both return nil and the
// caller skips the checks that needed the element.
func (c *checker) locate(parent *node, tag string) *node {
	matches := parent.find(tag)
	switch len(matches) {
	case 1:
		return matches[0]
	case 0:
		c.fail(parent.path+"/"+tag, tag, "element present", "absent")
		return nil
	default:
		c.unsure(parent.path, tag, "exactly one <"+tag+"> element", fmt.Sprintf("%d candidates", len(matches)))
		return nil
	}
}

func (c *checker) attrEquals(n *node, name, expected string) {
	v, ok := n.attr(name)
	if !ok {
		c.fail(n.path, "@"+name, expected, "absent")
		return
	}
	if strings.TrimSpace(v) != expected {
		c.fail(n.path, "@"+name, expected, strings.TrimSpace(v))
	}
}

func (c *checker) attrNumEquals(n *node, name string, expected float64) {
	v, ok := n.attr(name)
	if !ok {
		c.fail(n.path, "@"+name, formatFloat(expected), "absent")
		return
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		c.fail(n.path, "@"+name, formatFloat(expected), strings.TrimSpace(v))
		return
	}
	if f != expected {
		c.fail(n.path, "@"+name, formatFloat(expected), formatFloat(f))
	}
}

func (c *checker) checkPersistence(root *node) {
	p := c.locate(root, "persistence")
	if p == nil {
		return
	}
	c.attrEquals(p, "good-before", window(c.def.Persistence.GoodBefore, c.def.Persistence.GoodBeforeUnit))
	c.attrEquals(p, "good-after", window(c.def.Persistence.GoodAfter, c.def.Persistence.GoodAfterUnit))
	c.attrEquals(p, "downward-hereditary", strconv.FormatBool(c.def.Persistence.DownwardHereditary))
}

func (c *checker) checkRawNumeric(root *node) {
	nav := c.locate(root, "numeric-allowed-values")
	if nav == nil {
		return
	}
	c.attrNumEquals(nav, "min", *c.def.MinValue)
	c.attrNumEquals(nav, "max", *c.def.MaxValue)
	c.attrEquals(nav, "unit", c.def.Unit)
	c.attrEquals(nav, "scale", c.def.Scale)
}

func (c *checker) checkRawNominal(root *node) {
	nav := c.locate(root, "nominal-allowed-values")
	if nav == nil {
		return
	}
	c.checkIDSet(nav, "allowed-value", "value", c.def.NominalValues)
}

func (c *checker) checkState(root *node) {
	c.checkDerivedFrom(root)

	mf := c.locate(root, "mapping-function")
	if mf == nil {
		return
	}

	if c.def.RankCriteria != "" {
		c.attrEquals(mf, "rank-criteria", c.def.RankCriteria)
	}

	observed := mf.child("bin")
	expected := c.def.Bins()

	if len(observed) != len(expected) {
		c.fail(mf.path, "bin count",
			fmt.Sprintf("%d bins", len(expected)), fmt.Sprintf("%d bins", len(observed)))
	} else {
		for i, bin := range observed {
			c.attrEquals(bin, "label", c.def.StateLabels[i])
			c.checkBound(bin, "lower", expected[i].Lower)
			c.checkBound(bin, "upper", expected[i].Upper)
		}
	}

	// Contiguity is checked on the observed bins themselves so that a gap
	// or overlap is named as such, not as two unrelated bound mismatches.
	for i := 0; i < len(observed)-1; i++ {
		upper, okU := parseBound(observed[i], "upper")
		lower, okL := parseBound(observed[i+1], "lower")
		if !okU || !okL {
			continue
		}
		switch {
		case lower > upper:
			c.fail(observed[i+1].path, "bin contiguity",
				fmt.Sprintf("lower bound %s (no gap after previous bin)", formatFloat(upper)),
				fmt.Sprintf("gap [%s, %s)", formatFloat(upper), formatFloat(lower)))
		case lower < upper:
			c.fail(observed[i+1].path, "bin contiguity",
				fmt.Sprintf("lower bound %s (no overlap with previous bin)", formatFloat(upper)),
				fmt.Sprintf("overlap from %s to %s", formatFloat(lower), formatFloat(upper)))
		}
	}
}

// checkBound verifies one side of a bin interval. A nil expected bound means
// the bin is unbounded on that side and the attribute must be absent.
func (c *checker) checkBound(bin *node, name string, expected *float64) {
	if expected == nil {
		if v, ok := bin.attr(name); ok {
			c.fail(bin.path, "@"+name, "absent (unbounded)", strings.TrimSpace(v))
		}
		return
	}
	c.attrNumEquals(bin, name, *expected)
}

func (c *checker) checkEvent(root *node) {
	attrs := c.locate(root, "attributes")
	if attrs == nil {
		return
	}
	c.checkIDSet(attrs, "attribute", "id", c.def.Attributes)
}

func (c *checker) checkContext(root *node) {
	ind := c.locate(root, "inducer")
	if ind == nil {
		return
	}
	c.attrEquals(ind, "id", c.def.InducerID)
	c.attrEquals(ind, "from", c.def.From)
	c.attrEquals(ind, "until", c.def.Until)
}

func (c *checker) checkTrend(root *node) {
	c.checkDerivedFrom(root)

	th := c.locate(root, "thresholds")
	if th == nil {
		return
	}
	c.attrNumEquals(th, "increase", c.def.Thresholds.Increase)
	c.attrNumEquals(th, "decrease", c.def.Thresholds.Decrease)
	c.attrNumEquals(th, "significance", c.def.Thresholds.Significance)
}

func (c *checker) checkDerivedFrom(root *node) {
	df := c.locate(root, "derived-from")
	if df == nil {
		return
	}
	c.checkIDSet(df, "concept", "id", c.def.DerivedFrom)
}

// checkIDSet compares the set of attribute values on the container's child
// elements against the expected list. Missing and surplus entries are both
// violations; order is not significant.
func (c *checker) checkIDSet(container *node, childTag, attrName string, expected []string) {
	observed := make(map[string]bool)
	for _, child := range container.child(childTag) {
		v, ok := child.attr(attrName)
		if !ok {
			c.fail(child.path, "@"+attrName, "attribute present", "absent")
			continue
		}
		observed[strings.TrimSpace(v)] = true
	}

	want := make(map[string]bool, len(expected))
	for _, e := range expected {
		want[e] = true
		if !observed[e] {
			c.fail(container.path, childTag+"/@"+attrName, e, "absent")
		}
	}
	for _, child := range container.child(childTag) {
		v, ok := child.attr(attrName)
		if ok && !want[strings.TrimSpace(v)] {
			c.fail(child.path, "@"+attrName, "a declared value", strings.TrimSpace(v))
		}
	}
}

func parseBound(bin *node, name string) (float64, bool) {
	v, ok := bin.attr(name)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// window renders a persistence window as the value and unit the artifact
// carries, e.g. "4h". A zero-valued window with no unit renders as "0".
func window(value int, unit string) string {
	return strconv.Itoa(value) + unit
}
