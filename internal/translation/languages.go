package translation

import (
	"sort"
	"strings"

	"horse.fit/presslate/internal/language"
)

type LanguageOption struct {
	Code   string `json:"code"`
	Label  string `json:"label"`
	Native string `json:"native,omitempty"`
}

type languageLabel struct {
	english string
	native  string
}

var translationLanguageLabels = map[string]languageLabel{
	"ar": {english: "Arabic", native: "العربية"},
	"de": {english: "German", native: "Deutsch"},
	"en": {english: "English", native: "English"},
	"es": {english: "Spanish", native: "Español"},
	"fr": {english: "French", native: "Français"},
	"id": {english: "Indonesian", native: "Bahasa Indonesia"},
	"it": {english: "Italian", native: "Italiano"},
	"ja": {english: "Japanese", native: "日本語"},
	"ko": {english: "Korean", native: "한국어"},
	"pl": {english: "Polish", native: "Polski"},
	"pt": {english: "Portuguese", native: "Português"},
	"ru": {english: "Russian", native: "Русский"},
	"th": {english: "Thai", native: "ไทย"},
	"tr": {english: "Turkish", native: "Türkçe"},
	"vi": {english: "Vietnamese", native: "Tiếng Việt"},
	"zh": {english: "Chinese", native: "中文"},
}

// SupportedLanguageCodes lists every target language the pipeline accepts.
func SupportedLanguageCodes() []string {
	codes := make([]string, 0, len(translationLanguageLabels))
	for code := range translationLanguageLabels {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// IsSupportedLanguage reports whether code normalizes to a supported target.
func IsSupportedLanguage(code string) bool {
	_, ok := translationLanguageLabels[normalizeLangCode(code)]
	return ok
}

// LanguageOptions returns the supported targets with display labels.
func LanguageOptions() []LanguageOption {
	codes := SupportedLanguageCodes()
	options := make([]LanguageOption, 0, len(codes))
	for _, code := range codes {
		labels := translationLanguageLabels[code]
		options = append(options, LanguageOption{
			Code:   code,
			Label:  labels.english,
			Native: labels.native,
		})
	}
	return options
}

func languageLabelFor(code string) string {
	if labels, ok := translationLanguageLabels[normalizeLangCode(code)]; ok {
		return labels.english
	}
	fallback := strings.TrimSpace(code)
	if fallback == "" {
		return "English"
	}
	return strings.ToUpper(fallback)
}

func normalizeLangCode(raw string) string {
	return language.NormalizeCode(raw)
}
