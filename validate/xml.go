package validate

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/clinsight/takforge/errors"
)

// node is a parsed artifact element. Both validators walk the same tree so
// their locators agree, letting feedback point at the exact defect.
type node struct {
	tag      string
	attrs    map[string]string
	children []*node
	text     string
	path     string // locator, e.g. "/state/mapping-function/bin[2]"
}

// parseArtifact decodes candidate XML into a node tree. Artifacts come from
// a generative oracle, so syntax errors are expected input, not bugs.
func parseArtifact(artifact string) (*node, error) {
	decoder := xml.NewDecoder(strings.NewReader(artifact))

	var root *node
	var stack []*node

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "XML syntax error")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{
				tag:   t.Name.Local,
				attrs: make(map[string]string, len(t.Attr)),
			}
			for _, attr := range t.Attr {
				n.attrs[attr.Name.Local] = attr.Value
			}

			if len(stack) == 0 {
				if root != nil {
					return nil, errors.New("multiple root elements")
				}
				n.path = "/" + n.tag
				root = n
			} else {
				parent := stack[len(stack)-1]
				n.path = childPath(parent, n.tag)
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, errors.Newf("unexpected closing tag </%s>", t.Name.Local)
			}
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text += strings.TrimSpace(string(t))
			}
		}
	}

	if len(stack) != 0 {
		return nil, errors.Newf("unclosed element <%s>", stack[len(stack)-1].tag)
	}
	if root == nil {
		return nil, errors.New("artifact contains no elements")
	}
	return root, nil
}

// childPath builds the locator for a new child, indexing repeated siblings
// so bin[1] and bin[2] are distinguishable in findings.
func childPath(parent *node, tag string) string {
	count := 1
	for _, sibling := range parent.children {
		if sibling.tag == tag {
			count++
		}
	}
	if count > 1 {
		return fmt.Sprintf("%s/%s[%d]", parent.path, tag, count)
	}
	return parent.path + "/" + tag
}

// find returns every descendant (including the node itself) with the tag,
// in document order.
func (n *node) find(tag string) []*node {
	var out []*node
	if n.tag == tag {
		out = append(out, n)
	}
	for _, child := range n.children {
		out = append(out, child.find(tag)...)
	}
	return out
}

// child returns direct children with the tag, in document order.
func (n *node) child(tag string) []*node {
	var out []*node
	for _, c := range n.children {
		if c.tag == tag {
			out = append(out, c)
		}
	}
	return out
}

func (n *node) attr(name string) (string, bool) {
	v, ok := n.attrs[name]
	return v, ok
}
