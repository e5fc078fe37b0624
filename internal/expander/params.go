package expander

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aledsdavies/posh/internal/shellerr"
	"github.com/aledsdavies/posh/internal/shellglob"
	"github.com/aledsdavies/posh/internal/token"
)

// paramResult is one parameter/command/arithmetic expansion's outcome: the
// joined text plus, for $@ / "$@" / positional-all expansions, the
// individual pre-split fields (spec §4.4's one documented exception to
// normal field splitting).
type paramResult struct {
	text   string
	fields []string // non-nil only for an already-field-split expansion ($@)
}

// isAlwaysSetSpecial reports whether name is one of the special parameters
// nounset mode never complains about: $@ $* $# always have a defined
// (possibly empty/zero) value, and $? $$ $! $- $0 are always set by the
// shell itself.
func isAlwaysSetSpecial(name string) bool {
	switch name {
	case "@", "*", "#", "?", "$", "!", "-", "0":
		return true
	}
	return false
}

// rawBareParam is expandBareParam's value lookup without the nounset check:
// used directly by expandBraceParam's modifier operators (:-  :=  :?  :+
// and friends), which test isSet themselves and must get the chance to
// supply their own fallback before an unset reference becomes an error.
func (e *Expander) rawBareParam(name string, quoted bool) (paramResult, bool) {
	switch name {
	case "@":
		all := e.env.PositionalAll(false)
		if quoted {
			return paramResult{fields: all}, true
		}
		return paramResult{text: strings.Join(all, " ")}, true
	case "*":
		ifs := e.env.IFS()
		sep := " "
		if ifs != "" {
			sep = ifs[:1]
		} else {
			sep = ""
		}
		return paramResult{text: strings.Join(e.env.PositionalAll(true), sep)}, true
	case "#":
		return paramResult{text: strconv.Itoa(e.env.PositionalCount())}, true
	case "?", "$", "!", "-", "0":
		v, ok := e.env.Special(name)
		return paramResult{text: v}, ok
	default:
		if n, err := strconv.Atoi(name); err == nil {
			v, ok := e.env.Positional(n)
			return paramResult{text: v}, ok
		}
		v, ok := e.env.Get(name)
		return paramResult{text: v}, ok
	}
}

// expandBareParam resolves $name / $1 / $@ / $* / $? / $$ / $! / $# / $- /
// $0 — the forms with no {braces} and therefore no modifier. Under nounset
// mode (-u), a reference to an unset ordinary variable or positional
// parameter is an error; the always-set specials are exempt (spec §6.1).
func (e *Expander) expandBareParam(name string, quoted bool, pos token.Position) (paramResult, error) {
	r, isSet := e.rawBareParam(name, quoted)
	if !isSet && e.noUnset && !isAlwaysSetSpecial(name) {
		return paramResult{}, shellerr.NewExpansion(pos, "%s: unbound variable", name)
	}
	return r, nil
}

// expandBraceParam resolves ${...}: a bare name/special form, a length
// form (${#name}), or one of the modifier forms (:-  :=  :?  :+  #  ##
// %  %%  /  //  ^  ^^  ,  ,,).
func (e *Expander) expandBraceParam(body string, pos token.Position, quoted bool) (paramResult, error) {
	if strings.HasPrefix(body, "#") && body != "#" && !strings.HasPrefix(body, "#-") && isNameLead(body[1:]) {
		name := body[1:]
		if !isValidName(name) && name != "@" && name != "*" {
			return paramResult{}, shellerr.NewExpansion(pos, "bad substitution: ${%s}", body)
		}
		var v string
		switch name {
		case "@", "*":
			v = strconv.Itoa(e.env.PositionalCount())
		default:
			r, err := e.expandBareParam(name, false, pos)
			if err != nil {
				return paramResult{}, err
			}
			v = strconv.Itoa(utf8.RuneCountInString(r.text))
		}
		return paramResult{text: v}, nil
	}

	name, op, arg, ok := splitModifier(body)
	if !ok {
		return e.expandBareParam(body, quoted, pos)
	}

	get := func() (string, bool) {
		if name == "@" || name == "*" {
			r, _ := e.rawBareParam(name, quoted)
			if r.fields != nil {
				return strings.Join(r.fields, " "), e.env.PositionalCount() > 0
			}
			return r.text, e.env.PositionalCount() > 0
		}
		if n, err := strconv.Atoi(name); err == nil {
			return e.env.Positional(n)
		}
		switch name {
		case "?", "$", "!", "-", "0":
			v, ok := e.env.Special(name)
			return v, ok
		}
		return e.env.Get(name)
	}

	cur, isSet := get()

	switch op {
	case ":-":
		if !isSet || cur == "" {
			return e.expandWordText(arg, pos)
		}
		return paramResult{text: cur}, nil
	case "-":
		if !isSet {
			return e.expandWordText(arg, pos)
		}
		return paramResult{text: cur}, nil
	case ":=":
		if !isSet || cur == "" {
			r, err := e.expandWordText(arg, pos)
			if err != nil {
				return paramResult{}, err
			}
			if !isValidName(name) {
				return paramResult{}, shellerr.NewExpansion(pos, "cannot assign to %q", name)
			}
			e.env.Set(name, r.text)
			return r, nil
		}
		return paramResult{text: cur}, nil
	case "=":
		if !isSet {
			r, err := e.expandWordText(arg, pos)
			if err != nil {
				return paramResult{}, err
			}
			if !isValidName(name) {
				return paramResult{}, shellerr.NewExpansion(pos, "cannot assign to %q", name)
			}
			e.env.Set(name, r.text)
			return r, nil
		}
		return paramResult{text: cur}, nil
	case ":?":
		if !isSet || cur == "" {
			r, _ := e.expandWordText(arg, pos)
			msg := r.text
			if msg == "" {
				msg = "parameter null or not set"
			}
			return paramResult{}, shellerr.NewExpansion(pos, "%s: %s", name, msg)
		}
		return paramResult{text: cur}, nil
	case "?":
		if !isSet {
			r, _ := e.expandWordText(arg, pos)
			msg := r.text
			if msg == "" {
				msg = "parameter not set"
			}
			return paramResult{}, shellerr.NewExpansion(pos, "%s: %s", name, msg)
		}
		return paramResult{text: cur}, nil
	case ":+":
		if isSet && cur != "" {
			return e.expandWordText(arg, pos)
		}
		return paramResult{text: ""}, nil
	case "+":
		if isSet {
			return e.expandWordText(arg, pos)
		}
		return paramResult{text: ""}, nil
	case "#":
		pat, err := e.expandPatternText(arg, pos)
		if err != nil {
			return paramResult{}, err
		}
		return paramResult{text: shellglob.TrimPrefix(cur, pat, false)}, nil
	case "##":
		pat, err := e.expandPatternText(arg, pos)
		if err != nil {
			return paramResult{}, err
		}
		return paramResult{text: shellglob.TrimPrefix(cur, pat, true)}, nil
	case "%":
		pat, err := e.expandPatternText(arg, pos)
		if err != nil {
			return paramResult{}, err
		}
		return paramResult{text: shellglob.TrimSuffix(cur, pat, false)}, nil
	case "%%":
		pat, err := e.expandPatternText(arg, pos)
		if err != nil {
			return paramResult{}, err
		}
		return paramResult{text: shellglob.TrimSuffix(cur, pat, true)}, nil
	case "/", "//":
		return paramResult{text: e.replacePattern(cur, arg, pos, op == "//")}, nil
	case "^":
		return paramResult{text: caseConvert(cur, arg, false, true)}, nil
	case "^^":
		return paramResult{text: caseConvert(cur, arg, true, true)}, nil
	case ",":
		return paramResult{text: caseConvert(cur, arg, false, false)}, nil
	case ",,":
		return paramResult{text: caseConvert(cur, arg, true, false)}, nil
	default:
		return paramResult{}, shellerr.NewExpansion(pos, "unsupported parameter modifier %q", op)
	}
}

// splitModifier splits a ${...} body into (name, operator, argument). ok is
// false when body is a plain name with no modifier (the caller then falls
// back to expandBareParam).
func splitModifier(body string) (name, op, arg string, ok bool) {
	ops := []string{":-", ":=", ":?", ":+", "##", "%%", "^^", ",,", "//", "#", "%", "^", ",", "/", "=", "?", "+", "-"}
	// Scan for the first name-boundary character rather than a fixed
	// prefix length, since names can be "@", "*", digits, or identifiers.
	i := 0
	if i < len(body) && (body[i] == '@' || body[i] == '*') {
		i++
	} else {
		for i < len(body) && isNameByte(body[i], i == 0) {
			i++
		}
	}
	name = body[:i]
	rest := body[i:]
	if rest == "" {
		return "", "", "", false
	}
	for _, o := range ops {
		if strings.HasPrefix(rest, o) {
			return name, o, rest[len(o):], true
		}
	}
	return "", "", "", false
}

func isNameByte(b byte, first bool) bool {
	switch {
	case b == '_':
		return true
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z':
		return true
	case b >= '0' && b <= '9':
		return !first
	default:
		return false
	}
}

func isNameLead(s string) bool {
	return s != "" && isNameByte(s[0], true)
}

func isValidName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isNameByte(s[i], i == 0) {
			return false
		}
	}
	return true
}

// replacePattern implements ${var/pattern/repl} (first match),
// ${var//pattern/repl} (all matches), ${var/#pattern/repl} (pattern anchored
// at the start of the string), and ${var/%pattern/repl} (anchored at the
// end).
func (e *Expander) replacePattern(cur, arg string, pos token.Position, all bool) string {
	anchorStart, anchorEnd := false, false
	switch {
	case strings.HasPrefix(arg, "#"):
		anchorStart = true
		arg = arg[1:]
	case strings.HasPrefix(arg, "%"):
		anchorEnd = true
		arg = arg[1:]
	}

	pattern, repl := splitUnescaped(arg, '/')
	pat, err := e.expandPatternText(pattern, pos)
	if err != nil {
		pat = pattern
	}
	replText, _ := e.expandWordText(repl, pos)
	re, err := shellglob.Translate(pat, true)
	if err != nil {
		return cur
	}
	// shellglob patterns are anchored (^...$); for substring replacement we
	// need a scanning match, so rebuild without anchors here, then re-anchor
	// per the leading '#'/'%' directive.
	unanchored := re.String()
	unanchored = strings.TrimPrefix(unanchored, "^")
	unanchored = strings.TrimSuffix(unanchored, "$")
	switch {
	case anchorStart:
		unanchored = "^(?:" + unanchored + ")"
	case anchorEnd:
		unanchored = "(?:" + unanchored + ")$"
	}
	return regexpReplace(cur, unanchored, replText.text, all)
}

func splitUnescaped(s string, sep byte) (string, string) {
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == sep {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}

// caseConvert implements ^ ^^ , ,, : convert the first (upper/lower is
// picked by upperCase) or all matching characters. An optional glob
// pattern restricts which characters qualify; an empty pattern means "any
// alphabetic character", matching common shell behavior for the bare
// modifier.
func caseConvert(s, pattern string, all, upperCase bool) string {
	convert := func(r rune) rune {
		if upperCase {
			return unicode.ToUpper(r)
		}
		return unicode.ToLower(r)
	}
	matches := func(r rune) bool {
		if pattern == "" {
			return unicode.IsLetter(r)
		}
		return shellglob.Match(pattern, string(r))
	}
	var b strings.Builder
	done := false
	for _, r := range s {
		if !done && matches(r) {
			b.WriteRune(convert(r))
			if !all {
				done = true
			}
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
