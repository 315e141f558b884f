package lang

import "strings"

type Language string

const (
	English    Language = "en"
	Spanish    Language = "es"
	French     Language = "fr"
	German     Language = "de"
	Italian    Language = "it"
	Portuguese Language = "pt"
	Chinese    Language = "zh"
)

// Canonical is the language documents are extracted and generated in.
const Canonical = English

// All lists every supported language, canonical first. Storage column order follows it.
var All = []Language{English, Spanish, French, German, Italian, Portuguese, Chinese}

var names = map[Language]string{
	English:    "English",
	Spanish:    "Spanish",
	French:     "French",
	German:     "German",
	Italian:    "Italian",
	Portuguese: "Portuguese",
	Chinese:    "Chinese (Simplified)",
}

// Targets returns the non-canonical languages.
func Targets() []Language {
	out := make([]Language, 0, len(All)-1)
	for _, l := range All {
		if l != Canonical {
			out = append(out, l)
		}
	}
	return out
}

func Parse(raw string) (Language, bool) {
	l := Language(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := names[l]; ok {
		return l, true
	}
	return "", false
}

// ParseOrCanonical falls back to the canonical language for unknown input.
func ParseOrCanonical(raw string) Language {
	if l, ok := Parse(raw); ok {
		return l
	}
	return Canonical
}

func (l Language) Code() string { return string(l) }

func (l Language) Name() string {
	if n, ok := names[l]; ok {
		return n
	}
	return string(l)
}

func (l Language) IsCanonical() bool { return l == Canonical }
