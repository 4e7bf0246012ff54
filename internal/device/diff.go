package device

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Merge returns running with the candidate merged into it. Both texts are
// read as indentation trees: a candidate line matching a line under the
// same parent descends into it, anything else is inserted after the last
// matched sibling together with its children. A line starting with "exit"
// closes the stanza before it and moves with it. Flat configurations such
// as junos "display set" output merge line by line. Blank lines and "!" or
// "#" comments in the candidate are skipped.
func Merge(running, candidate string) string {
	root := parseTree(running, false)
	mergeInto(root, parseTree(candidate, true))

	var b strings.Builder
	root.write(&b)
	return b.String()
}

type configNode struct {
	line     string
	indent   int
	children []*configNode
	closer   *configNode
}

func (n *configNode) key() string { return strings.TrimRight(n.line, " \r") }

func (n *configNode) write(b *strings.Builder) {
	for _, c := range n.children {
		b.WriteString(c.line)
		b.WriteByte('\n')
		c.write(b)
		if c.closer != nil {
			b.WriteString(c.closer.line)
			b.WriteByte('\n')
		}
	}
}

func indentOf(l string) int {
	return len(l) - len(strings.TrimLeft(l, " \t"))
}

// parseTree builds the indentation tree of text under an empty root.
// Blank lines stay in place under the deepest open stanza.
func parseTree(text string, candidate bool) *configNode {
	root := &configNode{indent: -1}
	stack := []*configNode{root}

	var lines []string
	if candidate {
		lines = candidateLines(text)
	} else if t := strings.TrimRight(text, "\n"); t != "" {
		lines = strings.Split(t, "\n")
	}
	for _, l := range lines {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) == "" {
			top := stack[len(stack)-1]
			top.children = append(top.children, &configNode{line: l, indent: top.indent + 1})
			continue
		}
		n := &configNode{line: l, indent: indentOf(l)}
		for len(stack) > 1 && stack[len(stack)-1].indent >= n.indent {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1]
		if strings.HasPrefix(strings.TrimSpace(l), "exit") && len(parent.children) > 0 {
			if prev := parent.children[len(parent.children)-1]; prev.indent == n.indent && prev.closer == nil {
				prev.closer = n
				continue
			}
		}
		parent.children = append(parent.children, n)
		stack = append(stack, n)
	}
	return root
}

// mergeInto merges the children of src into dst, keeping the candidate's
// order for inserted lines. Lines before the first match are appended.
func mergeInto(dst, src *configNode) {
	pos := len(dst.children)
	for _, c := range src.children {
		idx := -1
		for i, d := range dst.children {
			if d.key() == c.key() {
				idx = i
				break
			}
		}
		if idx < 0 {
			dst.children = append(dst.children, nil)
			copy(dst.children[pos+1:], dst.children[pos:])
			dst.children[pos] = c
			pos++
			continue
		}
		existing := dst.children[idx]
		mergeInto(existing, c)
		if existing.closer == nil {
			existing.closer = c.closer
		}
		pos = idx + 1
	}
}

// candidateLines returns the configuration lines of a candidate.
func candidateLines(candidate string) []string {
	var out []string
	for _, l := range strings.Split(candidate, "\n") {
		l = strings.TrimRight(l, " \r")
		trimmed := strings.TrimSpace(l)
		if trimmed == "" || strings.HasPrefix(trimmed, "!") || strings.HasPrefix(trimmed, "#") {
			continue
		}
		out = append(out, l)
	}
	return out
}

// LineDiff returns a line oriented diff from a to b containing only added
// ("+") and removed ("-") lines. Identical inputs yield "".
func LineDiff(a, b string) string {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		default:
			continue
		}
		for _, l := range strings.SplitAfter(d.Text, "\n") {
			if l == "" {
				continue
			}
			out.WriteString(prefix)
			out.WriteString(strings.TrimSuffix(l, "\n"))
			out.WriteByte('\n')
		}
	}
	return out.String()
}
