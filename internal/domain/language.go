package domain

import (
	"fmt"
	"strings"
)

// Language is a submission language tag
type Language string

const (
	// LanguageJavaScript runs directly in the embedded runtime
	LanguageJavaScript Language = "javascript"
	// LanguagePython is transliterated to JavaScript before execution
	LanguagePython Language = "python"
)

// AllLanguages lists every supported language in display order
func AllLanguages() []Language {
	return []Language{LanguageJavaScript, LanguagePython}
}

// IsValid checks if the language is supported
func (l Language) IsValid() bool {
	switch l {
	case LanguageJavaScript, LanguagePython:
		return true
	default:
		return false
	}
}

// String returns the language as a string
func (l Language) String() string {
	return string(l)
}

// ParseLanguage converts a string to a Language. Common aliases are accepted.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "javascript", "js":
		return LanguageJavaScript, nil
	case "python", "py":
		return LanguagePython, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedLanguage, s)
}
