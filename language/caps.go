package language

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	textlang "golang.org/x/text/language"
)

var titleCaser = cases.Title(textlang.Und)

// FuzzyCaps infers the capitalization of a replacement token from the token it replaces.
//
//	FuzzyCaps("girl", "GUY") == "GIRL"
//	FuzzyCaps("girl", "Guy") == "Girl"
//	FuzzyCaps("girl", "guy") == "girl"
//
// Mixed or caseless originals fall back to lowercase.
func FuzzyCaps(replacement, original string) string {
	switch {
	case original == replacement:
		return replacement
	case isTitle(original):
		return titleCaser.String(replacement)
	case isLower(original):
		return strings.ToLower(replacement)
	case isUpper(original):
		return strings.ToUpper(replacement)
	default:
		return strings.ToLower(replacement)
	}
}

// isTitle reports whether every cased run starts with an upper case letter followed only
// by lower case letters, with at least one cased letter.
func isTitle(s string) bool {
	cased, previousCased := false, false
	for _, r := range s {
		switch {
		case unicode.IsUpper(r) || unicode.IsTitle(r):
			if previousCased {
				return false
			}
			previousCased, cased = true, true
		case unicode.IsLower(r):
			if !previousCased {
				return false
			}
			previousCased, cased = true, true
		default:
			previousCased = false
		}
	}
	return cased
}

func isLower(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			return false
		}
		if unicode.IsLower(r) {
			cased = true
		}
	}
	return cased
}

func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) || unicode.IsTitle(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}
