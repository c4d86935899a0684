// Package naming converts between the snake_case names used on the contract
// wire and the identifiers used on the Go side. Every conversion in cwgen goes
// through this package.
package naming

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	title = cases.Title(language.Und, cases.NoLower)
	lower = cases.Lower(language.Und)
)

// initialisms are rendered in upper case inside exported identifiers.
var initialisms = map[string]bool{
	"api": true, "ascii": true, "cpu": true, "dao": true, "eth": true,
	"html": true, "http": true, "https": true, "id": true, "ip": true,
	"irl": true, "json": true, "nft": true, "sql": true, "ttl": true,
	"uid": true, "uri": true, "url": true, "utf8": true, "uuid": true,
	"xml": true,
}

// Camel converts a snake_case wire name into lowerCamelCase
// ("token_id" -> "tokenId"). A segment starting with a digit keeps its
// underscore ("level_2_fee" -> "level_2Fee"), so Snake can restore it.
func Camel(wire string) string {
	parts := split(wire)
	if len(parts) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(lower.String(parts[0]))
	for _, p := range parts[1:] {
		p = lower.String(p)
		if r, _ := utf8.DecodeRuneInString(p); unicode.IsDigit(r) {
			b.WriteByte('_')
			b.WriteString(p)
			continue
		}
		b.WriteString(upperFirst(p))
	}
	return b.String()
}

// Snake converts a camelCase name into the snake_case wire convention
// ("tokenId" -> "token_id"). It is the inverse of Camel: every upper-case
// letter starts a new segment. Names that are already snake_case are
// returned unchanged.
func Snake(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Exported converts a wire or schema name into an exported Go identifier.
// Segments are split on underscores, dashes, dots and spaces; known
// initialisms are upper-cased ("token_id" -> "TokenID",
// "MintMsg_for_Metadata" -> "MintMsgForMetadata").
func Exported(name string) string {
	parts := split(name)
	var b strings.Builder
	for _, p := range parts {
		if initialisms[lower.String(p)] {
			b.WriteString(strings.ToUpper(p))
			continue
		}
		b.WriteString(upperFirst(p))
	}
	out := b.String()
	if out == "" {
		return "X"
	}
	if r := []rune(out)[0]; !unicode.IsLetter(r) {
		out = "X" + out
	}
	return out
}

// Package converts a contract name into a Go package name
// ("AccountMinter" -> "accountminter").
func Package(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	out := b.String()
	if out == "" {
		return ""
	}
	if unicode.IsDigit(rune(out[0])) {
		out = "c" + out
	}
	return out
}

// IsSnake reports whether s is a lowercase snake_case identifier, the form
// required for union tags.
func IsSnake(s string) bool {
	if s == "" {
		return false
	}
	prevUnderscore := true
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			prevUnderscore = false
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
			prevUnderscore = false
		case r == '_':
			if prevUnderscore {
				return false
			}
			prevUnderscore = true
		default:
			return false
		}
	}
	return !prevUnderscore
}

// upperFirst title-cases the first rune of a segment only, so digits inside
// a segment never start a new word.
func upperFirst(s string) string {
	if s == "" {
		return s
	}
	_, n := utf8.DecodeRuneInString(s)
	return title.String(s[:n]) + s[n:]
}

func split(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' ' || r == '/'
	})
}
