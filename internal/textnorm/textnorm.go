// Package textnorm provides language-aware text normalization for Arabic and
// English question text. Normalization is deterministic and idempotent; the
// normalized form is derived state, never stored as the source of truth.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"islamic-qa-platform/models"
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	urlRe        = regexp.MustCompile(`https?://\S+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Normalize returns the canonical form of text for the given language.
// It never fails for valid UTF-8; empty or whitespace-only input yields "".
func Normalize(text, language string) string {
	text = htmlTagRe.ReplaceAllString(text, " ")
	text = urlRe.ReplaceAllString(text, " ")

	switch language {
	case models.LanguageArabic:
		text = normalizeArabic(text)
	default:
		text = normalizeEnglish(text)
	}

	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// normalizeArabic strips tashkeel and folds letter variants to one canonical
// form: alef variants to bare alef, teh marbuta to ha, alef maqsura to ya.
func normalizeArabic(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r >= 0x064B && r <= 0x0652: // tashkeel
			continue
		case r == 0x0670: // superscript alef
			continue
		case r == 0x0640: // tatweel
			continue
		case r == 'أ' || r == 'إ' || r == 'آ':
			b.WriteRune('ا')
		case r == 'ة':
			b.WriteRune('ه')
		case r == 'ى':
			b.WriteRune('ي')
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizeEnglish(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DetectLanguage classifies text as Arabic or English by the ratio of Arabic
// codepoints among letters. More than 30% Arabic letters means Arabic.
func DetectLanguage(text string) string {
	arabic, letters := 0, 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if r >= 0x0600 && r <= 0x06FF {
				arabic++
			}
		}
	}
	if letters == 0 {
		return models.LanguageEnglish
	}
	if float64(arabic)/float64(letters) > 0.3 {
		return models.LanguageArabic
	}
	return models.LanguageEnglish
}

// Tokens splits normalized text into words, dropping single-rune tokens that
// carry no retrieval signal. Used by the lexical fallback index.
func Tokens(normalized string) []string {
	fields := strings.Fields(normalized)
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) > 1 {
			out = append(out, f)
		}
	}
	return out
}
