package grader

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// TranslatePython transliterates Python source into JavaScript so the same
// invoker can run it. This is a line-oriented textual rewrite, not an
// interpreter. Supported constructs:
//
//   - def headers (annotations dropped, defaults kept, *args as rest params)
//   - if / elif / else / while / try / finally blocks
//   - for x in range(...), for x in iterable, for i, x in enumerate(...)
//   - True / False / None, and / or / not, is / is not
//   - len, print, str, int, float, abs, max, min
//   - .append, .lower, .upper, .strip
//   - simple and tuple assignment, # comments, docstrings, pass
//
// Blocks follow indentation; open blocks are closed on dedent and at end of
// input. String literal contents are never rewritten. Slicing, floor
// division, comprehensions, f-strings, classes, dict iteration and the
// "in" operator are not translated and usually surface as a JavaScript
// error when the result runs.
func TranslatePython(src string) string {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	t := &transliterator{
		defined: definedFunctions(src),
		out:     []string{`var __name__ = "solution";`},
	}

	lines := strings.Split(src, "\n")
	for i := 0; i < len(lines); i++ {
		raw := strings.TrimRight(lines[i], " \t")
		trimmed := strings.TrimSpace(raw)
		indent := indentWidth(raw)

		if t.depth > 0 {
			t.emit(indent, t.continuation(trimmed))
			continue
		}

		switch {
		case trimmed == "":
			t.blank++
			continue
		case strings.HasPrefix(trimmed, "#"):
			t.emit(indent, "//"+trimmed[1:])
			continue
		case strings.HasPrefix(trimmed, `"""`), strings.HasPrefix(trimmed, "'''"):
			i = t.docstring(lines, i, indent)
			continue
		}

		t.closeBlocks(indent)
		js, header := t.statement(trimmed)
		t.emit(indent, js)
		if header {
			t.blocks = append(t.blocks, indent)
		}
	}

	t.closeBlocks(-1)
	t.flushBlank()
	return strings.Join(t.out, "\n")
}

type transliterator struct {
	out     []string
	blocks  []int // indentation of each open block header
	depth   int   // bracket nesting carried across lines
	blank   int   // blank lines not yet written
	defined map[string]bool
}

// emit writes a line. Pending blank lines go first so closing braces stay
// attached to the block they end.
func (t *transliterator) emit(indent int, line string) {
	t.flushBlank()
	if line == "" {
		t.out = append(t.out, "")
		return
	}
	t.out = append(t.out, strings.Repeat(" ", indent)+line)
}

func (t *transliterator) flushBlank() {
	for ; t.blank > 0; t.blank-- {
		t.out = append(t.out, "")
	}
}

func (t *transliterator) closeBlocks(indent int) {
	for len(t.blocks) > 0 && t.blocks[len(t.blocks)-1] >= indent {
		top := t.blocks[len(t.blocks)-1]
		t.blocks = t.blocks[:len(t.blocks)-1]
		t.out = append(t.out, strings.Repeat(" ", top)+"}")
	}
}

// docstring turns a triple-quoted block into comments and returns the index
// of its last line
func (t *transliterator) docstring(lines []string, i, indent int) int {
	trimmed := strings.TrimSpace(lines[i])
	quote := trimmed[:3]
	body := trimmed[3:]
	for {
		if end := strings.Index(body, quote); end >= 0 {
			if text := strings.TrimSpace(body[:end]); text != "" {
				t.emit(indent, "// "+text)
			}
			return i
		}
		if text := strings.TrimSpace(body); text != "" {
			t.emit(indent, "// "+text)
		}
		if i+1 >= len(lines) {
			return i
		}
		i++
		body = strings.TrimSpace(lines[i])
	}
}

// statement translates one logical line and reports whether it opens a block
func (t *transliterator) statement(line string) (string, bool) {
	masked, lits, comment := maskStrings(line)
	code := strings.TrimSpace(masked)
	t.depth += bracketDelta(code)
	if t.depth < 0 {
		t.depth = 0
	}

	var js string
	header := false
	if t.depth == 0 && strings.HasSuffix(code, ":") {
		header = true
		js = t.header(strings.TrimSpace(strings.TrimSuffix(code, ":")))
	} else {
		js = t.simple(code)
		if t.depth == 0 && js != "" {
			js += ";"
		}
	}
	return withComment(unmask(js, lits), comment), header
}

func (t *transliterator) continuation(line string) string {
	masked, lits, comment := maskStrings(line)
	code := strings.TrimSpace(masked)
	t.depth += bracketDelta(code)
	if t.depth < 0 {
		t.depth = 0
	}
	js := t.expr(code)
	if t.depth == 0 && js != "" {
		js += ";"
	}
	return withComment(unmask(js, lits), comment)
}

func (t *transliterator) header(h string) string {
	if h == "else" || h == "try" || h == "finally" {
		return h + " {"
	}
	if rest, ok := cutKeyword(h, "def"); ok {
		return "function " + t.signature(rest) + " {"
	}
	if rest, ok := cutKeyword(h, "elif"); ok {
		return "else if (" + t.expr(rest) + ") {"
	}
	for _, kw := range []string{"if", "while"} {
		if rest, ok := cutKeyword(h, kw); ok {
			return kw + " (" + t.expr(rest) + ") {"
		}
	}
	if rest, ok := cutKeyword(h, "for"); ok {
		if js, ok := t.forHeader(rest); ok {
			return js
		}
	}
	return t.expr(h) + " {"
}

// signature rewrites "name(a: int, b=2) -> int" to "name(a, b = 2)"
func (t *transliterator) signature(s string) string {
	open := strings.Index(s, "(")
	if open < 0 {
		return s + "()"
	}
	closeIdx := matchParen(s, open)
	if closeIdx < 0 {
		return s
	}
	name := strings.TrimSpace(s[:open])

	var params []string
	for _, p := range splitTopLevel(s[open+1 : closeIdx]) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		def := ""
		if eq := strings.Index(p, "="); eq >= 0 {
			def = strings.TrimSpace(p[eq+1:])
			p = p[:eq]
		}
		if colon := strings.Index(p, ":"); colon >= 0 {
			p = p[:colon]
		}
		p = strings.TrimSpace(p)
		switch {
		case strings.HasPrefix(p, "**"):
			continue
		case strings.HasPrefix(p, "*"):
			p = "..." + p[1:]
		}
		if def != "" {
			p += " = " + t.expr(def)
		}
		params = append(params, p)
	}
	return name + "(" + strings.Join(params, ", ") + ")"
}

func (t *transliterator) forHeader(s string) (string, bool) {
	idx := strings.Index(s, " in ")
	if idx < 0 {
		return "", false
	}
	target := strings.TrimSpace(s[:idx])
	iter := strings.TrimSpace(s[idx+4:])

	if inner, ok := callArgs(iter, "range"); ok && !strings.Contains(target, ",") {
		args := splitTopLevel(inner)
		for i := range args {
			args[i] = t.expr(strings.TrimSpace(args[i]))
		}
		start, stop, step := "0", "", "1"
		switch len(args) {
		case 1:
			stop = args[0]
		case 2:
			start, stop = args[0], args[1]
		case 3:
			start, stop, step = args[0], args[1], args[2]
		default:
			return "", false
		}
		cmp := "<"
		if strings.HasPrefix(step, "-") {
			cmp = ">"
		}
		update := target + " += " + step
		if step == "1" {
			update = target + "++"
		}
		return fmt.Sprintf("for (let %s = %s; %s %s %s; %s) {", target, start, target, cmp, stop, update), true
	}

	if strings.Contains(target, ",") {
		target = "[" + strings.Join(trimAll(strings.Split(target, ",")), ", ") + "]"
	}
	if inner, ok := callArgs(iter, "enumerate"); ok {
		return fmt.Sprintf("for (const %s of Array.from(%s).entries()) {", target, t.expr(inner)), true
	}
	return fmt.Sprintf("for (const %s of %s) {", target, t.expr(iter)), true
}

var (
	tupleAssign  = regexp.MustCompile(`^([A-Za-z_]\w*(?:\s*,\s*[A-Za-z_]\w*)+)\s*=([^=].*)$`)
	simpleAssign = regexp.MustCompile(`^([A-Za-z_]\w*)\s*=([^=].*)$`)
)

func (t *transliterator) simple(code string) string {
	switch {
	case code == "pass":
		return ""
	case strings.HasPrefix(code, "global "), strings.HasPrefix(code, "nonlocal "):
		return ""
	}
	if m := tupleAssign.FindStringSubmatch(code); m != nil {
		targets := trimAll(strings.Split(m[1], ","))
		return "var [" + strings.Join(targets, ", ") + "] = [" + t.expr(strings.TrimSpace(m[2])) + "]"
	}
	if m := simpleAssign.FindStringSubmatch(code); m != nil {
		return "var " + m[1] + " = " + t.expr(strings.TrimSpace(m[2]))
	}
	return t.expr(code)
}

type callRule struct {
	name    string
	rewrite func(args string) string
}

var callRules = []callRule{
	{"len", func(a string) string { return "(" + a + ").length" }},
	{"print", func(a string) string { return "console.log(" + a + ")" }},
	{"str", func(a string) string { return "String(" + a + ")" }},
	{"int", func(a string) string { return "Math.trunc(Number(" + a + "))" }},
	{"float", func(a string) string { return "Number(" + a + ")" }},
	{"abs", func(a string) string { return "Math.abs(" + a + ")" }},
	{"max", func(a string) string { return "Math.max(...[].concat(" + a + "))" }},
	{"min", func(a string) string { return "Math.min(...[].concat(" + a + "))" }},
}

var wordRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\bis\s+not\b`), "!=="},
	{regexp.MustCompile(`\bis\b`), "==="},
	{regexp.MustCompile(`\bnot\b\s*`), "!"},
	{regexp.MustCompile(`\band\b`), "&&"},
	{regexp.MustCompile(`\bor\b`), "||"},
	{regexp.MustCompile(`\bTrue\b`), "true"},
	{regexp.MustCompile(`\bFalse\b`), "false"},
	{regexp.MustCompile(`\bNone\b`), "null"},
}

var methodRules = strings.NewReplacer(
	".append(", ".push(",
	".lower()", ".toLowerCase()",
	".upper()", ".toUpperCase()",
	".strip()", ".trim()",
)

// expr rewrites an expression whose string literals are already masked
func (t *transliterator) expr(s string) string {
	for _, r := range wordRules {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	s = methodRules.Replace(s)
	for _, r := range callRules {
		if t.defined[r.name] {
			continue
		}
		s = rewriteCall(s, r.name, r.rewrite)
	}
	return s
}

var defPattern = regexp.MustCompile(`(?m)^\s*def\s+([A-Za-z_]\w*)`)

// definedFunctions returns the names the source defines itself, so built-in
// rewrites never shadow them
func definedFunctions(src string) map[string]bool {
	names := make(map[string]bool)
	for _, m := range defPattern.FindAllStringSubmatch(src, -1) {
		names[m[1]] = true
	}
	return names
}

// rewriteCall replaces every call name(args) with rewrite(args), innermost first
func rewriteCall(s, name string, rewrite func(string) string) string {
	var b strings.Builder
	i := 0
	for {
		j := indexCall(s, name, i)
		if j < 0 {
			break
		}
		open := j + len(name)
		closeIdx := matchParen(s, open)
		if closeIdx < 0 {
			break
		}
		inner := rewriteCall(s[open+1:closeIdx], name, rewrite)
		b.WriteString(s[i:j])
		b.WriteString(rewrite(inner))
		i = closeIdx + 1
	}
	b.WriteString(s[i:])
	return b.String()
}

func indexCall(s, name string, from int) int {
	for k := from; k < len(s); {
		idx := strings.Index(s[k:], name+"(")
		if idx < 0 {
			return -1
		}
		pos := k + idx
		if pos == 0 || (!isIdentByte(s[pos-1]) && s[pos-1] != '.') {
			return pos
		}
		k = pos + 1
	}
	return -1
}

// callArgs returns the argument text if s is exactly name(...)
func callArgs(s, name string) (string, bool) {
	if !strings.HasPrefix(s, name+"(") {
		return "", false
	}
	open := len(name)
	if matchParen(s, open) != len(s)-1 {
		return "", false
	}
	return s[open+1 : len(s)-1], true
}

// matchParen returns the index of the bracket closing the one at open
func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func bracketDelta(s string) int {
	d := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			d++
		case ')', ']', '}':
			d--
		}
	}
	return d
}

func cutKeyword(s, kw string) (string, bool) {
	if !strings.HasPrefix(s, kw) || len(s) == len(kw) {
		return "", false
	}
	next := s[len(kw)]
	if next != ' ' && next != '(' && next != '\t' {
		return "", false
	}
	return strings.TrimSpace(s[len(kw):]), true
}

// maskStrings swaps string literals for placeholders and splits off a
// trailing comment so rewrites only ever see code
func maskStrings(line string) (masked string, lits []string, comment string) {
	var b strings.Builder
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == '#' {
			comment = line[i+1:]
			break
		}
		if c != '"' && c != '\'' {
			b.WriteByte(c)
			continue
		}

		var lit string
		if strings.HasPrefix(line[i:], strings.Repeat(string(c), 3)) {
			q := line[i : i+3]
			end := strings.Index(line[i+3:], q)
			if end < 0 {
				lit = strconv.Quote(line[i+3:])
				i = len(line)
			} else {
				lit = strconv.Quote(line[i+3 : i+3+end])
				i += 3 + end + 2
			}
		} else {
			j := i + 1
			for j < len(line) && line[j] != c {
				if line[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(line) {
				lit = line[i:] + string(c)
				i = len(line)
			} else {
				lit = line[i : j+1]
				i = j
			}
		}
		fmt.Fprintf(&b, "\x00%d\x00", len(lits))
		lits = append(lits, lit)
	}
	return b.String(), lits, comment
}

var placeholder = regexp.MustCompile("\x00(\\d+)\x00")

func unmask(s string, lits []string) string {
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		n, err := strconv.Atoi(m[1 : len(m)-1])
		if err != nil || n >= len(lits) {
			return m
		}
		return lits[n]
	})
}

func withComment(js, comment string) string {
	if comment == "" {
		return js
	}
	if js == "" {
		return "//" + comment
	}
	return js + " //" + comment
}

func indentWidth(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func trimAll(parts []string) []string {
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
