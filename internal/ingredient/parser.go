// Package ingredient parses raw INCI strings and resolves their tokens to
// canonical ingredient rows, linking them to catalog products in order.
package ingredient

import (
	"regexp"
	"strings"
)

// ParsedIngredient is one token of an INCI string. Position is 1-based
// and encodes concentration order; it must never be re-sorted downstream.
type ParsedIngredient struct {
	Name     string
	Position int
}

var (
	// leadingMarkerRe strips list numbering and bullets from a token.
	leadingMarkerRe = regexp.MustCompile(`^\s*(?:\d+[.)]\s*|[-•*·]\s*)+`)

	// percentageRe matches tokens that are only a percentage figure.
	percentageRe = regexp.MustCompile(`^\d+(?:\.\d+)?\s*%$`)
)

// annotationDenylist filters non-ingredient annotations that survive
// tokenization. Matched case-insensitively as prefixes.
var annotationDenylist = []string{
	"may contain",
	"peut contenir",
	"ingredients",
	"inactive ingredient",
	"active ingredient",
	"and ",
	"etc",
	"+/-",
}

// Parse tokenizes an INCI string into ordered candidate names. Commas
// inside parentheses or brackets do not split, so compound entries like
// "Water (Aqua)" or "[+/- CI 77891, CI 77492]" stay whole.
func Parse(inci string) []ParsedIngredient {
	tokens := splitNestingAware(inci)

	parsed := make([]ParsedIngredient, 0, len(tokens))
	for _, token := range tokens {
		name := normalizeToken(token)
		if name == "" || isDenylisted(name) {
			continue
		}
		parsed = append(parsed, ParsedIngredient{
			Name:     name,
			Position: len(parsed) + 1,
		})
	}

	return parsed
}

// splitNestingAware splits on commas at zero parenthesis/bracket depth.
func splitNestingAware(s string) []string {
	var tokens []string
	var current strings.Builder
	depth := 0

	for _, r := range s {
		switch r {
		case '(', '[':
			depth++
			current.WriteRune(r)
		case ')', ']':
			if depth > 0 {
				depth--
			}
			current.WriteRune(r)
		case ',':
			if depth == 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			} else {
				current.WriteRune(r)
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}

	return tokens
}

// normalizeToken cleans one raw token into a candidate name.
func normalizeToken(token string) string {
	name := strings.Join(strings.Fields(token), " ")
	name = leadingMarkerRe.ReplaceAllString(name, "")

	// Organic-certification markers.
	name = strings.Trim(name, "*")
	name = strings.TrimSpace(name)

	name = unwrapParenthetical(name)

	return strings.TrimSpace(name)
}

// unwrapParenthetical removes the outer pair when the whole token is one
// parenthetical or bracketed group, e.g. "(Aqua)" or "[+/- CI 77891]" but
// not "Water (Aqua)".
func unwrapParenthetical(name string) string {
	if len(name) < 2 {
		return name
	}

	var open, close byte
	switch {
	case name[0] == '(' && name[len(name)-1] == ')':
		open, close = '(', ')'
	case name[0] == '[' && name[len(name)-1] == ']':
		open, close = '[', ']'
	default:
		return name
	}

	depth := 0
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 && i < len(name)-1 {
				// Closes before the end; not a single group.
				return name
			}
		}
	}

	return strings.TrimSpace(name[1 : len(name)-1])
}

// isDenylisted reports whether a token is a non-ingredient annotation.
func isDenylisted(name string) bool {
	lower := strings.ToLower(name)
	if percentageRe.MatchString(lower) {
		return true
	}
	if lower == "and" || lower == "or" {
		return true
	}
	for _, prefix := range annotationDenylist {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
