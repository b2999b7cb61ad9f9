package mob

import (
	"fmt"
	"os"

	"ambonmud/internal/ids"
	"gopkg.in/yaml.v3"
)

// fileTemplates mirrors the on-disk YAML shape of a mob template file,
// the same pattern internal/world's loader uses for rooms: template
// content and its schema are world data, outside the core's concerns.
type fileTemplates struct {
	Mobs []struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Behavior    string `yaml:"behavior"`
		MaxHP       int    `yaml:"maxHP"`
		MinDamage   int    `yaml:"minDamage"`
		MaxDamage   int    `yaml:"maxDamage"`
		Armor       int    `yaml:"armor"`
		XPReward    int64  `yaml:"xpReward"`
		GoldMin     int64  `yaml:"goldMin"`
		GoldMax     int64  `yaml:"goldMax"`
		PatrolRoute []string `yaml:"patrolRoute"`
		CowardHPPct int    `yaml:"cowardHPPct"`
		LootTable   []struct {
			ItemTemplateID string  `yaml:"itemTemplateId"`
			Chance         float64 `yaml:"chance"`
		} `yaml:"lootTable"`
		Inventory []string `yaml:"inventory"`
	} `yaml:"mobs"`
}

// LoadTemplateFile reads a YAML mob template file and returns every
// template it defines; the caller registers each into a
// TemplateRegistry.
func LoadTemplateFile(path string) ([]Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mob: reading %s: %w", path, err)
	}

	var ft fileTemplates
	if err := yaml.Unmarshal(raw, &ft); err != nil {
		return nil, fmt.Errorf("mob: parsing %s: %w", path, err)
	}

	out := make([]Template, 0, len(ft.Mobs))
	for _, m := range ft.Mobs {
		if m.ID == "" {
			return nil, fmt.Errorf("mob: template missing id in %s", path)
		}
		tmpl := Template{
			ID:          m.ID,
			Name:        m.Name,
			Description: m.Description,
			Behavior:    Behavior(m.Behavior),
			MaxHP:       m.MaxHP,
			MinDamage:   m.MinDamage,
			MaxDamage:   m.MaxDamage,
			Armor:       m.Armor,
			XPReward:    m.XPReward,
			GoldMin:     m.GoldMin,
			GoldMax:     m.GoldMax,
			CowardHPPct: m.CowardHPPct,
			Inventory:   m.Inventory,
		}
		for _, rid := range m.PatrolRoute {
			id, err := ids.ParseEntityID(rid)
			if err != nil {
				return nil, fmt.Errorf("mob: template %s patrolRoute: %w", m.ID, err)
			}
			tmpl.PatrolRoute = append(tmpl.PatrolRoute, id)
		}
		for _, l := range m.LootTable {
			tmpl.LootTable = append(tmpl.LootTable, LootEntry{ItemTemplateID: l.ItemTemplateID, Chance: l.Chance})
		}
		out = append(out, tmpl)
	}
	return out, nil
}

// TemplateRegistry indexes loaded mob templates by id, the immutable
// catalog the zone-reset and initial-population steps instantiate live
// State values from.
type TemplateRegistry struct {
	byID map[string]Template
}

// NewTemplateRegistry builds an empty template registry.
func NewTemplateRegistry() *TemplateRegistry {
	return &TemplateRegistry{byID: make(map[string]Template)}
}

// Register adds a loaded template, overwriting any prior template with
// the same id.
func (r *TemplateRegistry) Register(t Template) {
	r.byID[t.ID] = t
}

// Get looks up a template by id.
func (r *TemplateRegistry) Get(id string) (Template, bool) {
	t, ok := r.byID[id]
	return t, ok
}
