// Package naming turns camera and device titles into stable display names and
// entity identifiers.
package naming

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Russian to Latin, reversible table (ъ and ь collapse to an apostrophe).
var cyrillic = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "e",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "j", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "h", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "sch", 'ъ': "'",
	'ы': "y", 'ь': "'", 'э': "e", 'ю': "ju", 'я': "ja",
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Transliterate replaces Cyrillic letters with their Latin spelling. Upper
// case letters keep their case on the first Latin character.
func Transliterate(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		lat, ok := cyrillic[unicode.ToLower(r)]
		if !ok {
			b.WriteRune(r)
			continue
		}
		if unicode.IsUpper(r) {
			lat = capitalize(lat)
		}
		b.WriteString(lat)
	}
	return b.String()
}

// BuildDeviceName prefixes the lowered title with the account name, transliterates
// the result and capitalizes the first character.
func BuildDeviceName(account, title string) string {
	name := account + "." + strings.ToLower(title)
	return capitalize(strings.ToLower(Transliterate(name)))
}

// EntityID derives a lower-case identifier from a display name.
func EntityID(name string) string {
	id := nonAlnum.ReplaceAllString(name, "_")
	return strings.ToLower(strings.TrimRight(id, "_"))
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
