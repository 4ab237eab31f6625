package markers

import (
	"fmt"
	"slices"
	"strings"
)

// Grammar, following PEP 508 with pip's relaxation that and/or chains need
// no parentheses:
//
//	marker_or   = marker_and ('or' marker_and)*
//	marker_and  = marker_expr ('and' marker_expr)*
//	marker_expr = marker_var marker_op marker_var | '(' marker_or ')'
//	marker_var  = env_var | python_str
//	marker_op   = version_cmp | 'in' | 'not' wsp+ 'in'

// variables lists known environment variable names, longest first so that
// no name shadows another while scanning.
var variables = func() []string {
	names := []string{
		"implementation_name", "implementation_version", "os_name",
		"platform_machine", "platform_python_implementation",
		"platform_release", "platform_system", "platform_version",
		"python_full_version", "python_version", "sys_platform", "extra",
		// Legacy spellings still found in old metadata.
		"os.name", "sys.platform", "platform.version", "platform.machine",
		"platform.python_implementation", "python_implementation",
	}
	slices.SortFunc(names, func(a, b string) int { return len(b) - len(a) })
	return names
}()

var legacyNames = map[string]string{
	"os.name":                        "os_name",
	"sys.platform":                   "sys_platform",
	"platform.version":               "platform_version",
	"platform.machine":               "platform_machine",
	"platform.python_implementation": "platform_python_implementation",
	"python_implementation":          "platform_python_implementation",
}

// operators by descending length; "not in" is handled separately.
var operators = []string{"===", "<=", "!=", "==", ">=", "~=", "in", "<", ">"}

type parser struct {
	input string
	pos   int
}

func parse(raw string) (node, error) {
	p := &parser{input: raw}
	p.skipWsp()
	if p.pos == len(p.input) {
		return nil, nil
	}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipWsp()
	if p.pos < len(p.input) {
		return nil, p.expected("end of marker")
	}
	return n, nil
}

func (p *parser) skipWsp() bool {
	start := p.pos
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
	return p.pos > start
}

func (p *parser) accept(s string) bool {
	if !strings.HasPrefix(p.input[p.pos:], s) {
		return false
	}
	p.pos += len(s)
	return true
}

// acceptKeyword takes an and/or keyword only when it is not the prefix of a
// longer word.
func (p *parser) acceptKeyword(kw string) bool {
	rest := p.input[p.pos:]
	if !strings.HasPrefix(rest, kw) {
		return false
	}
	if len(rest) > len(kw) {
		if c := rest[len(kw)]; c != ' ' && c != '\t' && c != '(' && c != '\'' && c != '"' {
			return false
		}
	}
	p.pos += len(kw)
	return true
}

func (p *parser) expected(want string) error {
	end := p.input[p.pos:]
	if len(end) > 10 {
		end = end[:10]
	}
	if end == "" {
		end = "EOF"
	}
	return fmt.Errorf("invalid marker %q: expected %s, found %q", p.input, want, end)
}

func (p *parser) parseOr() (node, error) {
	var items orNode
	for {
		n, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		items = items.add(n)
		p.skipWsp()
		if !p.acceptKeyword("or") {
			break
		}
	}
	if len(items) == 1 {
		return items[0], nil
	}
	return items, nil
}

func (p *parser) parseAnd() (node, error) {
	var items andNode
	for {
		n, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = items.add(n)
		p.skipWsp()
		if !p.acceptKeyword("and") {
			break
		}
	}
	if len(items) == 1 {
		return items[0], nil
	}
	return items, nil
}

func (p *parser) parseExpr() (node, error) {
	p.skipWsp()
	if p.accept("(") {
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		p.skipWsp()
		if !p.accept(")") {
			return nil, p.expected("closing )")
		}
		return n, nil
	}
	left, err := p.parseVar()
	if err != nil {
		return nil, err
	}
	op, err := p.parseOp()
	if err != nil {
		return nil, err
	}
	right, err := p.parseVar()
	if err != nil {
		return nil, err
	}
	if (left.isVar("extra") || right.isVar("extra")) && op != "==" && op != "!=" {
		return nil, fmt.Errorf("invalid marker %q: extra can only be compared with == or !=", p.input)
	}
	return expr{left: left, op: op, right: right}, nil
}

func (p *parser) parseVar() (operand, error) {
	p.skipWsp()
	if q := p.peek(); q == '\'' || q == '"' {
		i := strings.IndexByte(p.input[p.pos+1:], q)
		if i < 0 {
			return operand{}, p.expected("terminating quote")
		}
		val := p.input[p.pos+1 : p.pos+1+i]
		p.pos += i + 2
		return operand{value: val}, nil
	}
	for _, name := range variables {
		if p.accept(name) {
			if canon, ok := legacyNames[name]; ok {
				name = canon
			}
			return operand{name: name}, nil
		}
	}
	return operand{}, p.expected("string or variable name")
}

func (p *parser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) parseOp() (string, error) {
	p.skipWsp()
	for _, op := range operators {
		if p.accept(op) {
			return op, nil
		}
	}
	if !p.accept("not") {
		return "", p.expected("comparison operator")
	}
	if !p.skipWsp() || !p.accept("in") {
		return "", p.expected("'in' after 'not'")
	}
	return "not in", nil
}
