package markers

import (
	"strings"
)

// node is one level of a parsed marker: an expr, an andNode or an orNode.
// Nested nodes of the same kind are flattened on construction.
type node interface {
	render(b *strings.Builder, nested bool)
	strip(pred func(expr) bool) node
	walk(fn func(expr))
}

type operand struct {
	name  string // set for environment variables
	value string // set for literals
}

func (o operand) isVar(name string) bool { return o.name == name }

func (o operand) String() string {
	if o.name != "" {
		return o.name
	}
	if strings.Contains(o.value, "'") {
		return `"` + o.value + `"`
	}
	return "'" + o.value + "'"
}

type expr struct {
	left  operand
	op    string
	right operand
}

func (e expr) render(b *strings.Builder, _ bool) {
	b.WriteString(e.left.String())
	b.WriteByte(' ')
	b.WriteString(e.op)
	b.WriteByte(' ')
	b.WriteString(e.right.String())
}

func (e expr) strip(pred func(expr) bool) node {
	if pred(e) {
		return nil
	}
	return e
}

func (e expr) walk(fn func(expr)) { fn(e) }

// variable returns the variable name and literal of a var-vs-literal
// comparison; flipped reports that the variable was on the right.
func (e expr) variable() (name, literal string, flipped bool) {
	switch {
	case e.left.name != "" && e.right.name == "":
		return e.left.name, e.right.value, false
	case e.right.name != "" && e.left.name == "":
		return e.right.name, e.left.value, true
	}
	return "", "", false
}

func (e expr) isExtra() bool {
	return e.left.isVar("extra") || e.right.isVar("extra")
}

type andNode []node

func (a andNode) add(n node) andNode {
	if inner, ok := n.(andNode); ok {
		return append(a, inner...)
	}
	return append(a, n)
}

func (a andNode) render(b *strings.Builder, _ bool) {
	for i, n := range a {
		if i > 0 {
			b.WriteString(" and ")
		}
		n.render(b, true)
	}
}

func (a andNode) strip(pred func(expr) bool) node {
	var out andNode
	for _, n := range a {
		if s := n.strip(pred); s != nil {
			out = out.add(s)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

func (a andNode) walk(fn func(expr)) {
	for _, n := range a {
		n.walk(fn)
	}
}

type orNode []node

func (o orNode) add(n node) orNode {
	if inner, ok := n.(orNode); ok {
		return append(o, inner...)
	}
	return append(o, n)
}

func (o orNode) render(b *strings.Builder, nested bool) {
	if nested {
		b.WriteByte('(')
	}
	for i, n := range o {
		if i > 0 {
			b.WriteString(" or ")
		}
		n.render(b, false)
	}
	if nested {
		b.WriteByte(')')
	}
}

func (o orNode) strip(pred func(expr) bool) node {
	var out orNode
	for _, n := range o {
		if s := n.strip(pred); s != nil {
			out = out.add(s)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

func (o orNode) walk(fn func(expr)) {
	for _, n := range o {
		n.walk(fn)
	}
}
