package classifier

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var defaultTaxonomy []byte

const transcriptPlaceholder = "{transcript}"

type Taxonomy struct {
	Abuse        ResponseSet      `yaml:"abuse"`
	Religions    []ReligionConfig `yaml:"religions"`
	General      TopicConfig      `yaml:"general"`
	Personal     ResponseSet      `yaml:"personal"`
	NonReligious ResponseSet      `yaml:"non_religious"`
}

type ResponseSet struct {
	Patterns []string `yaml:"patterns"`
	Response string   `yaml:"response"`
}

type TopicConfig struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Verses   []Verse  `yaml:"verses"`
}

type ReligionConfig struct {
	Name      Religion      `yaml:"name"`
	Keywords  []string      `yaml:"keywords"`
	Verses    []Verse       `yaml:"verses"`
	Subtopics []TopicConfig `yaml:"subtopics"`
}

// Table is the compiled, read-only form of a Taxonomy. It is safe for
// concurrent use without locking because nothing mutates it after Compile.
type Table struct {
	abuse        *regexp.Regexp
	abuseText    string
	religions    []religionMatcher
	general      topicMatcher
	personal     *regexp.Regexp
	personalText string
	defaultText  string
}

type topicMatcher struct {
	name    string
	pattern *regexp.Regexp
	verses  []Verse
}

type religionMatcher struct {
	religion  Religion
	pattern   *regexp.Regexp
	verses    []Verse
	subtopics []topicMatcher
}

// LoadTable reads a taxonomy file, or the embedded default when path is empty.
func LoadTable(path string) (*Table, error) {
	data := defaultTaxonomy
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read taxonomy %s: %w", path, err)
		}
	}

	tax, err := ParseTaxonomy(data)
	if err != nil {
		return nil, err
	}
	return tax.Compile()
}

func DefaultTable() (*Table, error) {
	return LoadTable("")
}

func ParseTaxonomy(data []byte) (*Taxonomy, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var tax Taxonomy
	if err := dec.Decode(&tax); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	if err := tax.Validate(); err != nil {
		return nil, fmt.Errorf("invalid taxonomy: %w", err)
	}
	return &tax, nil
}

func (t *Taxonomy) Validate() error {
	var errs []error

	if len(t.Abuse.Patterns) == 0 || t.Abuse.Response == "" {
		errs = append(errs, errors.New("abuse: patterns and response are required"))
	}
	if len(t.Religions) == 0 {
		errs = append(errs, errors.New("religions: at least one religion is required"))
	}

	seen := make(map[Religion]bool, len(t.Religions))
	for _, r := range t.Religions {
		switch {
		case r.Name == General || !r.Name.Valid():
			errs = append(errs, fmt.Errorf("religion %q: unknown name", r.Name))
		case seen[r.Name]:
			errs = append(errs, fmt.Errorf("religion %q: duplicate entry", r.Name))
		}
		seen[r.Name] = true

		if len(r.Keywords) == 0 {
			errs = append(errs, fmt.Errorf("religion %q: no keywords", r.Name))
		}
		if len(r.Verses) == 0 {
			errs = append(errs, fmt.Errorf("religion %q: no verses", r.Name))
		}
		for _, sub := range r.Subtopics {
			if sub.Name == "" {
				errs = append(errs, fmt.Errorf("religion %q: subtopic without name", r.Name))
			}
			if len(sub.Keywords) == 0 || len(sub.Verses) == 0 {
				errs = append(errs, fmt.Errorf("religion %q subtopic %q: keywords and verses are required", r.Name, sub.Name))
			}
		}
	}

	if len(t.General.Keywords) == 0 || len(t.General.Verses) == 0 {
		errs = append(errs, errors.New("general: keywords and verses are required"))
	}
	if len(t.Personal.Patterns) == 0 || t.Personal.Response == "" {
		errs = append(errs, errors.New("personal: patterns and response are required"))
	}
	if t.NonReligious.Response == "" {
		errs = append(errs, errors.New("non_religious: response is required"))
	}

	return errors.Join(errs...)
}

// Compile builds the case-insensitive matchers, ordering religions by
// ReligionOrder regardless of their order in the source file.
func (t *Taxonomy) Compile() (*Table, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	abuse, err := compileTerms(t.Abuse.Patterns)
	if err != nil {
		return nil, fmt.Errorf("abuse: %w", err)
	}
	personal, err := compileTerms(t.Personal.Patterns)
	if err != nil {
		return nil, fmt.Errorf("personal: %w", err)
	}
	general, err := compileTopic(TopicConfig{Name: string(General), Keywords: t.General.Keywords, Verses: t.General.Verses})
	if err != nil {
		return nil, fmt.Errorf("general: %w", err)
	}

	religions := make([]religionMatcher, 0, len(t.Religions))
	for _, r := range t.Religions {
		pattern, err := compileTerms(r.Keywords)
		if err != nil {
			return nil, fmt.Errorf("religion %q: %w", r.Name, err)
		}
		m := religionMatcher{religion: r.Name, pattern: pattern, verses: r.Verses}
		for _, sub := range r.Subtopics {
			tm, err := compileTopic(sub)
			if err != nil {
				return nil, fmt.Errorf("religion %q subtopic %q: %w", r.Name, sub.Name, err)
			}
			m.subtopics = append(m.subtopics, tm)
		}
		religions = append(religions, m)
	}
	sort.SliceStable(religions, func(i, j int) bool {
		return religionRank(religions[i].religion) < religionRank(religions[j].religion)
	})

	return &Table{
		abuse:        abuse,
		abuseText:    t.Abuse.Response,
		religions:    religions,
		general:      general,
		personal:     personal,
		personalText: t.Personal.Response,
		defaultText:  t.NonReligious.Response,
	}, nil
}

func (t *Table) Religions() []Religion {
	out := make([]Religion, len(t.religions))
	for i, r := range t.religions {
		out[i] = r.religion
	}
	return out
}

// Verses returns every verse the table can return for a religion and
// optional subtopic, mainly so callers can assert membership.
func (t *Table) Verses(religion Religion, subtopic string) []Verse {
	if religion == General {
		return append([]Verse(nil), t.general.verses...)
	}
	for _, r := range t.religions {
		if r.religion != religion {
			continue
		}
		if subtopic == "" {
			return append([]Verse(nil), r.verses...)
		}
		for _, sub := range r.subtopics {
			if sub.name == subtopic {
				return append([]Verse(nil), sub.verses...)
			}
		}
	}
	return nil
}

func compileTopic(cfg TopicConfig) (topicMatcher, error) {
	pattern, err := compileTerms(cfg.Keywords)
	if err != nil {
		return topicMatcher{}, err
	}
	return topicMatcher{name: cfg.Name, pattern: pattern, verses: cfg.Verses}, nil
}

// compileTerms joins terms into one word-bounded alternation. Terms may be
// regular expression fragments; spaces match any run of whitespace.
func compileTerms(terms []string) (*regexp.Regexp, error) {
	parts := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		parts = append(parts, "(?:"+strings.Join(strings.Fields(term), `\s+`)+")")
	}
	if len(parts) == 0 {
		return nil, errors.New("no usable terms")
	}
	return regexp.Compile(`(?i)\b(?:` + strings.Join(parts, "|") + `)\b`)
}

func religionRank(r Religion) int {
	for i, known := range ReligionOrder {
		if r == known {
			return i
		}
	}
	return len(ReligionOrder)
}
