package texts

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Vars are placeholder values substituted into messages.
type Vars map[string]string

// Catalog is an immutable table of messages built once at startup.
type Catalog struct {
	messages [messageCount]string
}

// Default returns the built-in messages with base placeholders filled in.
func Default(base Vars) *Catalog {
	c, _ := build(nil, base)
	return c
}

// Load reads overrides from a YAML mapping of message keys to strings.
// Unknown keys are rejected. An empty path yields the defaults.
func Load(path string, base Vars) (*Catalog, error) {
	if path == "" {
		return Default(base), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read texts file: %w", err)
	}
	return Parse(raw, base)
}

// Parse builds a catalog from YAML overrides held in memory.
func Parse(raw []byte, base Vars) (*Catalog, error) {
	var overrides map[string]string
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("decode texts: %w", err)
	}
	return build(overrides, base)
}

func build(overrides map[string]string, base Vars) (*Catalog, error) {
	c := &Catalog{messages: defaults}
	for key, value := range overrides {
		id, ok := lookup(key)
		if !ok {
			return nil, fmt.Errorf("unknown message key %q", key)
		}
		c.messages[id] = value
	}
	r := replacer(base)
	for i := range c.messages {
		c.messages[i] = r.Replace(c.messages[i])
	}
	return c, nil
}

func lookup(key string) (MessageID, bool) {
	for i, name := range names {
		if name == key {
			return MessageID(i), true
		}
	}
	return 0, false
}

// Text returns the message for id.
func (c *Catalog) Text(id MessageID) string {
	if id < 0 || id >= messageCount {
		return ""
	}
	return c.messages[id]
}

// Format returns the message for id with per-call placeholders filled in.
func (c *Catalog) Format(id MessageID, vars Vars) string {
	return replacer(vars).Replace(c.Text(id))
}

func replacer(vars Vars) *strings.Replacer {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...)
}
