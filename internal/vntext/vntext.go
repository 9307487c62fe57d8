// Package vntext normalizes Vietnamese user text for matching and indexing:
// lower-casing, diacritic folding, whitespace unification and tokenizing.
// All matching tables elsewhere in the engine assume folded input.
package vntext

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldChain = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Fold lower-cases the text, strips diacritic marks and unifies whitespace.
// Idempotent: Fold(Fold(s)) == Fold(s).
func Fold(s string) string {
	s = strings.ToLower(s)
	// đ is a base letter, not a combining mark; NFD leaves it alone.
	s = strings.ReplaceAll(s, "đ", "d")
	if folded, _, err := transform.String(foldChain, s); err == nil {
		s = folded
	}
	return strings.Join(strings.Fields(s), " ")
}

// Tokenize folds the text and splits it on non-alphanumeric runes.
func Tokenize(s string) []string {
	folded := Fold(s)
	tokens := strings.FieldsFunc(folded, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_')
	})
	out := tokens[:0]
	for _, t := range tokens {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// provinceAliases maps folded colloquial/typo spellings to canonical province
// names. Longer aliases are matched first so that "tp hcm" does not fall
// through to a shorter entry.
var provinceAliases = []struct {
	alias string
	name  string
}{
	{"thanh pho ho chi minh", "Thành phố Hồ Chí Minh"},
	{"ho chi minh", "Thành phố Hồ Chí Minh"},
	{"sai gon", "Thành phố Hồ Chí Minh"},
	{"saigon", "Thành phố Hồ Chí Minh"},
	{"tp.hcm", "Thành phố Hồ Chí Minh"},
	{"tp hcm", "Thành phố Hồ Chí Minh"},
	{"tphcm", "Thành phố Hồ Chí Minh"},
	{"hcm", "Thành phố Hồ Chí Minh"},
	{"ha noi", "Hà Nội"},
	{"hanoi", "Hà Nội"},
	{"da nang", "Đà Nẵng"},
	{"danang", "Đà Nẵng"},
	{"can tho", "Cần Thơ"},
	{"hai phong", "Hải Phòng"},
	{"binh duong", "Bình Dương"},
	{"binhduong", "Bình Dương"},
	{"dong nai", "Đồng Nai"},
	{"dongnai", "Đồng Nai"},
	{"long an", "Long An"},
	{"bac ninh", "Bắc Ninh"},
	{"hung yen", "Hưng Yên"},
	{"ha nam", "Hà Nam"},
	{"quang nam", "Quảng Nam"},
	{"thua thien hue", "Thừa Thiên Huế"},
}

// FindProvince scans folded text for a known province mention, tolerating
// common typos and abbreviations. Returns the canonical name or "".
func FindProvince(text string) string {
	folded := Fold(text)
	for _, p := range provinceAliases {
		if strings.Contains(folded, p.alias) {
			return p.name
		}
	}
	return ""
}

// NearbyProvinces returns neighboring provinces suggested when a province
// search comes back empty. Only the large metros carry suggestions.
func NearbyProvinces(name string) []string {
	switch name {
	case "Thành phố Hồ Chí Minh":
		return []string{"Bình Dương", "Đồng Nai", "Long An"}
	case "Hà Nội":
		return []string{"Bắc Ninh", "Hưng Yên", "Hà Nam"}
	case "Đà Nẵng":
		return []string{"Quảng Nam", "Thừa Thiên Huế"}
	default:
		return nil
	}
}
