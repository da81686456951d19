package classifier

type Category string

const (
	CategoryReligious    Category = "religious"
	CategoryPersonal     Category = "personal"
	CategoryAbusive      Category = "abusive"
	CategoryNonReligious Category = "non_religious"
)

type Religion string

const (
	Islam        Religion = "islam"
	Christianity Religion = "christianity"
	Hinduism     Religion = "hinduism"
	Buddhism     Religion = "buddhism"
	Judaism      Religion = "judaism"
	Sikhism      Religion = "sikhism"
	General      Religion = "general"
)

// ReligionOrder is the precedence used when a transcript names more than
// one religion. General is never matched by keyword; it is the fallback.
var ReligionOrder = []Religion{Islam, Christianity, Hinduism, Buddhism, Judaism, Sikhism}

func (r Religion) Valid() bool {
	if r == General {
		return true
	}
	for _, known := range ReligionOrder {
		if r == known {
			return true
		}
	}
	return false
}

type Verse struct {
	Text   string `yaml:"text" json:"text"`
	Source string `yaml:"source" json:"source"`
}

// Result is a tagged union keyed by Category. Religion, Subtopic and Source
// are only set for CategoryReligious.
type Result struct {
	Category Category `json:"category"`
	Religion Religion `json:"religion,omitempty"`
	Subtopic string   `json:"subtopic,omitempty"`
	Text     string   `json:"text"`
	Source   string   `json:"source,omitempty"`
}

func religiousResult(religion Religion, subtopic string, verse Verse) Result {
	return Result{
		Category: CategoryReligious,
		Religion: religion,
		Subtopic: subtopic,
		Text:     verse.Text,
		Source:   verse.Source,
	}
}

func textResult(category Category, text string) Result {
	return Result{Category: category, Text: text}
}

func (r Result) IsReligious() bool {
	return r.Category == CategoryReligious
}
