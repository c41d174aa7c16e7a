package model

import (
	"fmt"
	"strings"
)

// Language is the enumerated language of a Book. The stored value is the
// enum name (EN, FR, PL, OTHER).
type Language string

const (
	LanguageEN    Language = "EN"
	LanguageFR    Language = "FR"
	LanguagePL    Language = "PL"
	LanguageOther Language = "OTHER"
)

// Languages lists every valid language in declaration order.
var Languages = []Language{LanguageEN, LanguageFR, LanguagePL, LanguageOther}

var languageLabels = map[Language]string{
	LanguageEN:    "English",
	LanguageFR:    "French",
	LanguagePL:    "Polish",
	LanguageOther: "Other",
}

// Label returns the human-readable name.
func (l Language) Label() string {
	return languageLabels[l]
}

// Valid reports whether l is one of the enumerated languages.
func (l Language) Valid() bool {
	_, ok := languageLabels[l]
	return ok
}

// ParseLanguage accepts an enum name or a label, case-insensitively.
func ParseLanguage(s string) (Language, error) {
	s = strings.TrimSpace(s)
	for _, l := range Languages {
		if strings.EqualFold(s, string(l)) || strings.EqualFold(s, l.Label()) {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown language %q", s)
}
