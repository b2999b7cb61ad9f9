package item

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileTemplates mirrors the on-disk YAML shape of an item template
// file, the same pattern internal/world and internal/mob's loaders
// use.
type fileTemplates struct {
	Items []struct {
		ID          string   `yaml:"id"`
		Name        string   `yaml:"name"`
		Description string   `yaml:"description"`
		Slot        string   `yaml:"slot"`
		DamageBonus int      `yaml:"damageBonus"`
		Keywords    []string `yaml:"keywords"`
	} `yaml:"items"`
}

// LoadTemplateFile reads a YAML item template file and returns every
// template it defines; the caller registers each via
// Registry.RegisterTemplate.
func LoadTemplateFile(path string) ([]Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("item: reading %s: %w", path, err)
	}

	var ft fileTemplates
	if err := yaml.Unmarshal(raw, &ft); err != nil {
		return nil, fmt.Errorf("item: parsing %s: %w", path, err)
	}

	out := make([]Template, 0, len(ft.Items))
	for _, it := range ft.Items {
		if it.ID == "" {
			return nil, fmt.Errorf("item: template missing id in %s", path)
		}
		out = append(out, Template{
			ID:          it.ID,
			Name:        it.Name,
			Description: it.Description,
			Slot:        it.Slot,
			DamageBonus: it.DamageBonus,
			Keywords:    it.Keywords,
		})
	}
	return out, nil
}
