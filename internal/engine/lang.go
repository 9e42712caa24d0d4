package engine

import "unicode"

// detectLang guesses the buyer's language from a message. More than a fifth
// Cyrillic letters means Russian; a latin-only message longer than two runes
// means English; everything else defaults to Russian, the dominant audience.
func detectLang(text string) string {
	var letters, cyrillic int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.Is(unicode.Cyrillic, r) {
			cyrillic++
		}
	}
	if letters == 0 {
		return "ru"
	}
	if float64(cyrillic)/float64(letters) > 0.2 {
		return "ru"
	}
	if cyrillic == 0 && letters > 2 {
		return "en"
	}
	return "ru"
}

// normalizeLang maps a platform locale to a reply language.
func normalizeLang(locale string) string {
	switch locale {
	case "en":
		return "en"
	case "ru", "uk":
		return "ru"
	default:
		return ""
	}
}
