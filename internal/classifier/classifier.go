package classifier

import (
	"math/rand/v2"
	"strings"
)

// Picker returns an index in [0, n). It must be safe for concurrent use.
type Picker func(n int) int

type Classifier struct {
	table *Table
	pick  Picker
}

func New(table *Table) *Classifier {
	return &Classifier{table: table, pick: rand.IntN}
}

// WithPicker returns a copy of the classifier that selects verses with p.
func (c *Classifier) WithPicker(p Picker) *Classifier {
	return &Classifier{table: c.table, pick: p}
}

func (c *Classifier) Table() *Table {
	return c.table
}

// Classify is total: every transcript, including the empty one, maps to
// exactly one Result. Precedence is abuse, religion, general, personal,
// then the non-religious default.
func (c *Classifier) Classify(transcript string) Result {
	t := c.table
	text := strings.TrimSpace(transcript)

	if text == "" {
		return textResult(CategoryNonReligious, t.defaultText)
	}

	if t.abuse.MatchString(text) {
		return textResult(CategoryAbusive, t.abuseText)
	}

	for _, r := range t.religions {
		if !r.pattern.MatchString(text) {
			continue
		}
		for _, sub := range r.subtopics {
			if sub.pattern.MatchString(text) {
				return religiousResult(r.religion, sub.name, c.choose(sub.verses))
			}
		}
		return religiousResult(r.religion, "", c.choose(r.verses))
	}

	if t.general.pattern.MatchString(text) {
		return religiousResult(General, "", c.choose(t.general.verses))
	}

	if t.personal.MatchString(text) {
		return textResult(CategoryPersonal, strings.ReplaceAll(t.personalText, transcriptPlaceholder, text))
	}

	return textResult(CategoryNonReligious, t.defaultText)
}

// Matches lists every religion whose keywords appear in the transcript, in
// precedence order. Classify only ever uses the first.
func (c *Classifier) Matches(transcript string) []Religion {
	var out []Religion
	for _, r := range c.table.religions {
		if r.pattern.MatchString(transcript) {
			out = append(out, r.religion)
		}
	}
	return out
}

func (c *Classifier) choose(verses []Verse) Verse {
	if len(verses) == 1 {
		return verses[0]
	}
	return verses[c.pick(len(verses))]
}
