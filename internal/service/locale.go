package service

import (
	"strings"

	"golang.org/x/text/language"
)

// LocaleFamily returns the base language of a BCP 47 tag ("en-US" -> "en",
// "zh-Hans" -> "zh"). Unparseable input falls back to its first subtag.
func LocaleFamily(locale string) string {
	tag, err := language.Parse(locale)
	if err == nil {
		if base, conf := tag.Base(); conf != language.No {
			return base.String()
		}
	}
	family, _, _ := strings.Cut(strings.ReplaceAll(locale, "_", "-"), "-")
	return strings.ToLower(family)
}

// VoiceLocale extracts the locale prefix of a voice name such as
// "en-US-JennyNeural". It returns "" when the name carries none.
func VoiceLocale(voiceID string) string {
	parts := strings.Split(voiceID, "-")
	if len(parts) < 3 {
		return ""
	}
	locale := parts[0] + "-" + parts[1]
	if _, err := language.Parse(locale); err != nil {
		return ""
	}
	return locale
}

// ResolveLocale returns the locale a synthesis request runs under: locale
// itself, or the voice's own locale when locale is empty. Well-formed tags
// come back in canonical form so "en-us" and "en-US" resolve alike.
func ResolveLocale(voiceID, locale string) string {
	if locale == "" {
		locale = VoiceLocale(voiceID)
	}
	if tag, err := language.Parse(locale); err == nil {
		return tag.String()
	}
	return locale
}

// validLocale reports whether locale is a well-formed BCP 47 tag.
func validLocale(locale string) bool {
	if locale == "" {
		return false
	}
	_, err := language.Parse(locale)
	return err == nil
}
