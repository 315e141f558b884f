package lang

import "strings"

// Text holds one value per supported language.
type Text struct {
	EN string `json:"en"`
	ES string `json:"es"`
	FR string `json:"fr"`
	DE string `json:"de"`
	IT string `json:"it"`
	PT string `json:"pt"`
	ZH string `json:"zh"`
}

type accessor struct {
	get func(*Text) string
	set func(*Text, string)
}

var accessors = map[Language]accessor{
	English:    {get: func(t *Text) string { return t.EN }, set: func(t *Text, v string) { t.EN = v }},
	Spanish:    {get: func(t *Text) string { return t.ES }, set: func(t *Text, v string) { t.ES = v }},
	French:     {get: func(t *Text) string { return t.FR }, set: func(t *Text, v string) { t.FR = v }},
	German:     {get: func(t *Text) string { return t.DE }, set: func(t *Text, v string) { t.DE = v }},
	Italian:    {get: func(t *Text) string { return t.IT }, set: func(t *Text, v string) { t.IT = v }},
	Portuguese: {get: func(t *Text) string { return t.PT }, set: func(t *Text, v string) { t.PT = v }},
	Chinese:    {get: func(t *Text) string { return t.ZH }, set: func(t *Text, v string) { t.ZH = v }},
}

// NewText returns a Text with only the canonical value set.
func NewText(canonical string) Text {
	var t Text
	t.Set(Canonical, canonical)
	return t
}

func (t Text) Get(l Language) string {
	a, ok := accessors[l]
	if !ok {
		return ""
	}
	return a.get(&t)
}

// Set ignores unsupported languages.
func (t *Text) Set(l Language, v string) {
	if a, ok := accessors[l]; ok {
		a.set(t, v)
	}
}

// FillMissing copies the canonical value into every blank language.
func (t *Text) FillMissing() {
	canonical := t.Get(Canonical)
	for _, l := range All {
		if strings.TrimSpace(t.Get(l)) == "" {
			t.Set(l, canonical)
		}
	}
}

// Values returns the values in All order.
func (t Text) Values() []string {
	out := make([]string, 0, len(All))
	for _, l := range All {
		out = append(out, t.Get(l))
	}
	return out
}
