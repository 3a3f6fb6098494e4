package tools

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Catalog holds every tool, loaded once from the embedded YAML files.
// It is immutable after NewCatalog returns.
type Catalog struct {
	tools map[Kind]Tool
}

// NewCatalog loads and validates the embedded tool definitions.
func NewCatalog() (*Catalog, error) {
	c := &Catalog{tools: make(map[Kind]Tool, len(Kinds))}

	// Question keys are global: the validator and message tags carry only the key.
	owners := make(map[string]Kind)
	for _, kind := range Kinds {
		def, err := loadDefinition(kind)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", kind, err)
		}
		for _, q := range def.Questions {
			if other, dup := owners[q.Key]; dup {
				return nil, fmt.Errorf("question key %q is used by both %s and %s", q.Key, other, kind)
			}
			owners[q.Key] = kind
		}
		tool, err := newTool(kind, def)
		if err != nil {
			return nil, err
		}
		c.tools[kind] = tool
	}

	return c, nil
}

// loadDefinition reads and validates a tool's YAML file
func loadDefinition(kind Kind) (*Definition, error) {
	filename := fmt.Sprintf("config/%s.yaml", kind)
	data, err := configFiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", filename, err)
	}
	def.Kind = kind

	if len(def.Questions) == 0 {
		return nil, fmt.Errorf("%s defines no questions", filename)
	}
	seen := make(map[string]bool, len(def.Questions))
	for i, q := range def.Questions {
		if q.Key == "" || q.Prompt == "" {
			return nil, fmt.Errorf("%s: question %d is missing key or prompt", filename, i)
		}
		if seen[q.Key] {
			return nil, fmt.Errorf("%s: duplicate question key %q", filename, q.Key)
		}
		seen[q.Key] = true
		if q.Category == "" {
			def.Questions[i].Category = CategoryGeneral
		}
	}

	return &def, nil
}

// Get returns the tool for kind.
func (c *Catalog) Get(kind Kind) (Tool, bool) {
	t, ok := c.tools[kind]
	return t, ok
}

// Lookup parses a raw tool id and returns the tool.
func (c *Catalog) Lookup(id string) (Tool, error) {
	kind, err := ParseKind(id)
	if err != nil {
		return nil, err
	}
	t, ok := c.tools[kind]
	if !ok {
		return nil, fmt.Errorf("tool %s not loaded", kind)
	}
	return t, nil
}

// List returns all definitions in catalog order.
func (c *Catalog) List() []*Definition {
	defs := make([]*Definition, 0, len(Kinds))
	for _, kind := range Kinds {
		if t, ok := c.tools[kind]; ok {
			defs = append(defs, t.Definition())
		}
	}
	return defs
}

// FindQuestion returns the question with key from whichever tool owns it.
func (c *Catalog) FindQuestion(key string) (Question, bool) {
	for _, kind := range Kinds {
		if t, ok := c.tools[kind]; ok {
			if q, found := t.Definition().Question(key); found {
				return q, true
			}
		}
	}
	return Question{}, false
}
