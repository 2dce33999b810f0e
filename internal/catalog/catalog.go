// Package catalog is the static table of invocable node methods.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed methods.yaml
var methodsYAML []byte

// Category decides which endpoint a method is sent to.
type Category int

const (
	General Category = iota
	Wallet
)

func (c Category) String() string {
	if c == Wallet {
		return "wallet"
	}
	return "general"
}

// ParseCategory accepts "general" or "wallet".
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "general", "":
		return General, nil
	case "wallet":
		return Wallet, nil
	default:
		return General, fmt.Errorf("unknown category %q", s)
	}
}

func (c *Category) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseCategory(node.Value)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParamSpec describes one positional parameter. Default, when set, is a
// JSON literal.
type ParamSpec struct {
	Name        string `yaml:"name"`
	TypeHint    string `yaml:"type"`
	Required    bool   `yaml:"required"`
	Default     string `yaml:"default"`
	Description string `yaml:"description"`
}

func (p ParamSpec) HasDefault() bool { return p.Default != "" }

// MethodDescriptor is one catalog entry.
type MethodDescriptor struct {
	Name     string      `yaml:"name"`
	Category Category    `yaml:"category"`
	Group    string      `yaml:"group"`
	Summary  string      `yaml:"summary"`
	Params   []ParamSpec `yaml:"params"`
}

// RequiredCount is the number of params without which the call cannot be built.
func (m MethodDescriptor) RequiredCount() int {
	n := 0
	for _, p := range m.Params {
		if p.Required {
			n++
		}
	}
	return n
}

func (m MethodDescriptor) HasParams() bool { return len(m.Params) > 0 }

// Usage renders "name <required> [optional=default]".
func (m MethodDescriptor) Usage() string {
	var b strings.Builder
	b.WriteString(m.Name)
	for _, p := range m.Params {
		b.WriteByte(' ')
		switch {
		case p.Required:
			fmt.Fprintf(&b, "<%s>", p.Name)
		case p.HasDefault():
			fmt.Fprintf(&b, "[%s=%s]", p.Name, p.Default)
		default:
			fmt.Fprintf(&b, "[%s]", p.Name)
		}
	}
	return b.String()
}

// Help is the multi-line text shown in the detail pane and by `methods <name>`.
func (m MethodDescriptor) Help() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s, %s)\n\n%s\n", m.Name, m.Category, m.Group, m.Summary)
	if len(m.Params) == 0 {
		return b.String()
	}
	b.WriteString("\nParameters:\n")
	for i, p := range m.Params {
		req := "optional"
		if p.Required {
			req = "required"
		}
		fmt.Fprintf(&b, "  %d. %s (%s, %s", i+1, p.Name, p.TypeHint, req)
		if p.HasDefault() {
			fmt.Fprintf(&b, ", default=%s", p.Default)
		}
		b.WriteString(")\n")
		if p.Description != "" {
			fmt.Fprintf(&b, "     %s\n", p.Description)
		}
	}
	return b.String()
}

// Catalog is immutable after Load.
type Catalog struct {
	methods []MethodDescriptor
	byName  map[string]int
}

// Load parses a YAML method table, sorted by name.
func Load(data []byte) (*Catalog, error) {
	var methods []MethodDescriptor
	if err := yaml.Unmarshal(data, &methods); err != nil {
		return nil, fmt.Errorf("failed to parse method catalog: %w", err)
	}

	sort.SliceStable(methods, func(i, j int) bool { return methods[i].Name < methods[j].Name })

	c := &Catalog{methods: methods, byName: make(map[string]int, len(methods))}
	for i, m := range methods {
		if m.Name == "" {
			return nil, fmt.Errorf("method #%d has no name", i)
		}
		if _, dup := c.byName[m.Name]; dup {
			return nil, fmt.Errorf("duplicate method %q", m.Name)
		}
		for _, p := range m.Params {
			if p.HasDefault() && !json.Valid([]byte(p.Default)) {
				return nil, fmt.Errorf("%s: default for %s is not a JSON literal: %s", m.Name, p.Name, p.Default)
			}
			if p.Required && p.HasDefault() {
				return nil, fmt.Errorf("%s: required param %s cannot have a default", m.Name, p.Name)
			}
		}
		c.byName[m.Name] = i
	}
	return c, nil
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := Load(methodsYAML)
	if err != nil {
		panic(err)
	}
	return c
})

// Default returns the embedded catalog.
func Default() *Catalog { return defaultCatalog() }

// Methods returns every method in name order.
func (c *Catalog) Methods() []MethodDescriptor {
	return append([]MethodDescriptor(nil), c.methods...)
}

// ByCategory returns the methods of one category in name order.
func (c *Catalog) ByCategory(cat Category) []MethodDescriptor {
	var out []MethodDescriptor
	for _, m := range c.methods {
		if m.Category == cat {
			out = append(out, m)
		}
	}
	return out
}

func (c *Catalog) Lookup(name string) (MethodDescriptor, bool) {
	i, ok := c.byName[name]
	if !ok {
		return MethodDescriptor{}, false
	}
	return c.methods[i], true
}

func (c *Catalog) Len() int { return len(c.methods) }
