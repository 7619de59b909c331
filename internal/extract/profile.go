package extract

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_profile.yaml
var defaultProfileYAML []byte

// FieldSpec describes one property of an extracted record.
type FieldSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
}

// Profile is the prompt and response shape requested from the model.
type Profile struct {
	Name          string      `yaml:"name"`
	Prompt        string      `yaml:"prompt"`
	PhonePrefixes []string    `yaml:"phonePrefixes"`
	Fields        []FieldSpec `yaml:"fields"`
}

// DefaultProfile returns the built-in contact list profile.
func DefaultProfile() *Profile {
	p, err := parseProfile(defaultProfileYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded profile: %v", err))
	}
	return p
}

// LoadProfile reads a profile from a YAML file. An empty path yields the
// built-in profile.
func LoadProfile(path string) (*Profile, error) {
	if path == "" {
		return DefaultProfile(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}
	return parseProfile(data)
}

func parseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing profile: %w", err)
	}
	if strings.TrimSpace(p.Prompt) == "" {
		return nil, fmt.Errorf("profile %q has no prompt", p.Name)
	}
	if len(p.Fields) == 0 {
		return nil, fmt.Errorf("profile %q has no fields", p.Name)
	}
	return &p, nil
}

// RenderPrompt returns the prompt with placeholders filled in.
func (p *Profile) RenderPrompt() string {
	r := strings.NewReplacer("{{phone_prefixes}}", strings.Join(p.PhonePrefixes, ", "))
	return strings.TrimSpace(r.Replace(p.Prompt))
}

// RequiredFields lists the names of mandatory properties.
func (p *Profile) RequiredFields() []string {
	var out []string
	for _, f := range p.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// JSONSchema builds the response schema: an array of record objects.
func (p *Profile) JSONSchema() map[string]any {
	props := make(map[string]any, len(p.Fields))
	for _, f := range p.Fields {
		props[f.Name] = map[string]any{
			"type":        "string",
			"description": f.Description,
		}
	}
	item := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if req := p.RequiredFields(); len(req) > 0 {
		item["required"] = req
	}
	return map[string]any{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type":    "array",
		"items":   item,
	}
}
