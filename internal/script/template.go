// Package script renders the content scripts evaluated inside the chat page.
// Every script is a pure function of its inputs: all timing and selector
// parameters are substituted at render time.
package script

import "strings"

// Render replaces every literal {{key}} in tmpl with bindings[key]. Unbound
// placeholders pass through unchanged. Substituted values are never rescanned,
// so the result does not depend on map iteration order.
func Render(tmpl string, bindings map[string]string) string {
	var b strings.Builder
	b.Grow(len(tmpl))
	rest := tmpl
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:open])
		rest = rest[open:]

		end := strings.Index(rest[2:], "}}")
		if end < 0 {
			b.WriteString(rest)
			return b.String()
		}
		key := rest[2 : 2+end]
		if v, ok := bindings[key]; ok && validKey(key) {
			b.WriteString(v)
			rest = rest[2+end+2:]
			continue
		}
		// Not a binding: emit the opening brace and keep scanning so that
		// "{{{key}}" still resolves the inner placeholder.
		b.WriteByte('{')
		rest = rest[1:]
	}
}

func validKey(k string) bool {
	if k == "" {
		return false
	}
	for _, r := range k {
		if r == '{' || r == '}' || r == ' ' || r == '\n' {
			return false
		}
	}
	return true
}

// Placeholders returns the {{key}} names still present in s, in order of
// first appearance.
func Placeholders(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for {
		open := strings.Index(s, "{{")
		if open < 0 {
			return out
		}
		s = s[open+2:]
		end := strings.Index(s, "}}")
		if end < 0 {
			return out
		}
		if k := s[:end]; validKey(k) {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
			s = s[end+2:]
		}
	}
}

// jsEscaper escapes backslash, backtick, dollar, newline and carriage return.
// The replacer works in a single pass, which gives the same result as
// escaping backslash first and the rest afterwards.
var jsEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	`$`, `\$`,
	"\n", `\n`,
	"\r", `\r`,
)

// EscapeJS makes s safe to place between backticks in a JavaScript template
// literal.
func EscapeJS(s string) string {
	return jsEscaper.Replace(s)
}

// UnescapeJS is the inverse of EscapeJS. Unknown escapes keep the escaped
// character.
func UnescapeJS(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

var singleQuoter = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`, "\u2028", `\u2028`, "\u2029", `\u2029`)

// quoteSingle renders s as a single-quoted JavaScript string literal.
func quoteSingle(s string) string {
	return "'" + singleQuoter.Replace(s) + "'"
}
