// Package query holds the small SQL-building helpers shared by the store
// dialects: identifier validation and quoting, whitelisted sorting, paging
// fragments and LIKE pattern escaping.
package query

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxIdentifierLength = 64

// reservedWords are keywords refused as column identifiers even though
// they match the identifier grammar.
var reservedWords = map[string]struct{}{
	"SELECT": {}, "INSERT": {}, "UPDATE": {}, "DELETE": {}, "DROP": {},
	"UNION": {}, "FROM": {}, "WHERE": {}, "ORDER": {}, "GROUP": {},
	"TABLE": {}, "USER": {},
}

// ValidateIdentifier accepts names made of ASCII letters, digits and
// underscores that do not start with a digit, are at most 64 bytes long and
// are not reserved words. Every column name interpolated into SQL passes
// through it.
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > maxIdentifierLength {
		return fmt.Errorf("identifier %q exceeds %d bytes", name, maxIdentifierLength)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_', 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case '0' <= c && c <= '9' && i > 0:
		default:
			return fmt.Errorf("identifier %q contains invalid character %q at %d", name, c, i)
		}
	}
	if _, ok := reservedWords[strings.ToUpper(name)]; ok {
		return fmt.Errorf("identifier %q is a reserved word", name)
	}
	return nil
}

// SanitizeSearch prepares a free-text search term: surrounding space is
// trimmed and control characters (NUL included) are dropped. Terms longer
// than maxRunes characters or that are not valid UTF-8 are rejected.
func SanitizeSearch(term string, maxRunes int) (string, error) {
	if !utf8.ValidString(term) {
		return "", fmt.Errorf("search term is not valid UTF-8")
	}
	term = strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, term))
	if maxRunes > 0 && utf8.RuneCountInString(term) > maxRunes {
		return "", fmt.Errorf("search term too long (max %d characters)", maxRunes)
	}
	return term, nil
}
