package tools

import "fmt"

// Kind identifies a guided tool. The set is closed: adding a tool means adding
// a Kind, a variant type and a case in newTool.
type Kind string

const (
	KindHybridOffer Kind = "hybrid-offer"
	KindWorkshop    Kind = "workshop-generator"
)

// Kinds lists every tool kind in catalog order.
var Kinds = []Kind{KindHybridOffer, KindWorkshop}

// ParseKind validates a tool identifier coming from a request or a thread row.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown tool: %q", s)
}

// Category selects the fast-accept heuristics applied to an answer.
type Category string

const (
	CategoryDescription Category = "description"
	CategoryResult      Category = "result"
	CategoryGeneral     Category = "general"
)

// Question is one step of a tool's fixed question list.
type Question struct {
	Key           string   `yaml:"key" json:"key"`
	Prompt        string   `yaml:"prompt" json:"prompt"`
	ContextPrompt string   `yaml:"context_prompt,omitempty" json:"context_prompt,omitempty"`
	Required      bool     `yaml:"required" json:"required"`
	Options       []string `yaml:"options,omitempty" json:"options,omitempty"`
	Category      Category `yaml:"category" json:"category"`
	Rubric        string   `yaml:"rubric" json:"-"`
}

// Definition is the static configuration of a tool, loaded from YAML.
type Definition struct {
	// Kind is set during loading
	Kind             Kind       `yaml:"-" json:"id"`
	Name             string     `yaml:"name" json:"name"`
	Description      string     `yaml:"description" json:"description"`
	Intro            string     `yaml:"intro" json:"intro"`
	SystemPrompt     string     `yaml:"system_prompt" json:"-"`
	CompletionPrompt string     `yaml:"completion_prompt" json:"-"`
	Questions        []Question `yaml:"questions" json:"questions"`
}

// Total returns the number of questions in the tool.
func (d *Definition) Total() int {
	return len(d.Questions)
}

// Question returns the question with the given key.
func (d *Definition) Question(key string) (Question, bool) {
	for _, q := range d.Questions {
		if q.Key == key {
			return q, true
		}
	}
	return Question{}, false
}

// QuestionAt returns the question at index i, or false past the end.
func (d *Definition) QuestionAt(i int) (Question, bool) {
	if i < 0 || i >= len(d.Questions) {
		return Question{}, false
	}
	return d.Questions[i], true
}

// HasKey reports whether key belongs to this tool.
func (d *Definition) HasKey(key string) bool {
	_, ok := d.Question(key)
	return ok
}
