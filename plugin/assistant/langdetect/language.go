// Package langdetect provides language and sentiment classification for
// resident messages. Pure functions, no state.
//
// Supported languages are English, Spanish and Haitian Creole. Detection is
// pattern based: language-specific keywords and diacritics are scored and
// ties resolve in the order ht > es > en, defaulting to English.
package langdetect

import (
	"strings"
)

// Language is an ISO 639-1 language code.
type Language string

const (
	English Language = "en"
	Spanish Language = "es"
	Creole  Language = "ht"
)

// Supported reports whether code names a supported language.
func Supported(code string) bool {
	switch Language(code) {
	case English, Spanish, Creole:
		return true
	}
	return false
}

// Normalize maps a BCP 47-ish tag ("es-US") to a supported Language.
// Returns false for unsupported or empty tags.
func Normalize(code string) (Language, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if idx := strings.IndexAny(code, "-_"); idx > 0 {
		code = code[:idx]
	}
	if Supported(code) {
		return Language(code), true
	}
	return English, false
}

var creoleMarkers = []string{
	"mwen", "ou ", "nou ", "yo ", "èske", "eske", "tanpri", "bonjou", "bonswa",
	"kijan", "kisa", "kote", "konnen", "randevou", "bezwen", "vle", "fè",
	"pou ", "nan ", "avèk", "mèsi", "mesi anpil", "ki jan",
}

var spanishMarkers = []string{
	"¿", "¡", "ñ", "cómo", "cuándo", "dónde", "qué", "por favor", "gracias",
	"necesito", "quiero", "hola", "buenos días", "buenas tardes", "cita",
	"ayuda", "servicio", "tengo", "hacer una", "me gustaría", "usted",
}

var englishMarkers = []string{
	"the ", "i want", "i need", "please", "hello", "thanks", "thank you",
	"how ", "when ", "where ", "what ", "appointment", "schedule", "help",
	"would like", "can i", "could you",
}

// Detect classifies the language of text. Ties break toward Creole, then
// Spanish; an unmatched message defaults to English.
func Detect(text string) Language {
	lower := strings.ToLower(text)

	htScore := countMarkers(lower, creoleMarkers)
	esScore := countMarkers(lower, spanishMarkers)
	enScore := countMarkers(lower, englishMarkers)

	// Diacritics that only occur in Creole orthography weigh extra.
	for _, r := range lower {
		switch r {
		case 'è', 'ò':
			htScore += 2
		case 'á', 'é', 'í', 'ó', 'ú':
			esScore++
		}
	}

	if htScore == 0 && esScore == 0 {
		return English
	}
	if htScore >= esScore && htScore >= enScore {
		return Creole
	}
	if esScore >= enScore {
		return Spanish
	}
	return English
}

func countMarkers(text string, markers []string) int {
	score := 0
	for _, m := range markers {
		if strings.Contains(text, m) {
			score++
		}
	}
	return score
}
