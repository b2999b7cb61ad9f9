package ability

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileDefinitions mirrors the on-disk YAML shape of an ability
// definition file, the same pattern internal/world and internal/mob's
// loaders use for their own content.
type fileDefinitions struct {
	Abilities []struct {
		ID               string  `yaml:"id"`
		DisplayName      string  `yaml:"displayName"`
		Description      string  `yaml:"description"`
		ManaCost         int     `yaml:"manaCost"`
		CooldownMs       int64   `yaml:"cooldownMs"`
		LevelRequired    int     `yaml:"levelRequired"`
		TargetType       string  `yaml:"targetType"`
		ClassRestriction string  `yaml:"classRestriction"`
		Effect           struct {
			Kind     string `yaml:"kind"`
			Min      int    `yaml:"min"`
			Max      int    `yaml:"max"`
			Radius   int    `yaml:"radius"`
			StatusID string `yaml:"statusId"`
		} `yaml:"effect"`
	} `yaml:"abilities"`
}

// LoadDefinitionFile reads a YAML ability-definition file and returns
// every definition it declares. Validation (unknown target/effect
// kind, dangling status reference) happens in New, not here, since
// cross-referencing status definitions requires both files loaded
// first.
func LoadDefinitionFile(path string) ([]Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ability: reading %s: %w", path, err)
	}

	var fd fileDefinitions
	if err := yaml.Unmarshal(raw, &fd); err != nil {
		return nil, fmt.Errorf("ability: parsing %s: %w", path, err)
	}

	out := make([]Definition, 0, len(fd.Abilities))
	for _, a := range fd.Abilities {
		if a.ID == "" {
			return nil, fmt.Errorf("ability: definition missing id in %s", path)
		}
		out = append(out, Definition{
			ID:               a.ID,
			DisplayName:      a.DisplayName,
			Description:      a.Description,
			ManaCost:         a.ManaCost,
			CooldownMs:       a.CooldownMs,
			LevelRequired:    a.LevelRequired,
			TargetType:       TargetType(a.TargetType),
			ClassRestriction: a.ClassRestriction,
			Effect: Effect{
				Kind:     EffectKind(a.Effect.Kind),
				Min:      a.Effect.Min,
				Max:      a.Effect.Max,
				Radius:   a.Effect.Radius,
				StatusID: a.Effect.StatusID,
			},
		})
	}
	return out, nil
}

// fileStatusDefinitions mirrors the on-disk YAML shape of a status
// effect definition file.
type fileStatusDefinitions struct {
	Statuses []struct {
		ID             string `yaml:"id"`
		DisplayName    string `yaml:"displayName"`
		Kind           string `yaml:"kind"`
		Magnitude      int    `yaml:"magnitude"`
		Attribute      string `yaml:"attribute"`
		DurationMs     int64  `yaml:"durationMs"`
		TickIntervalMs int64  `yaml:"tickIntervalMs"`
		StackCap       int    `yaml:"stackCap"`
		Stacking       string `yaml:"stacking"`
	} `yaml:"statuses"`
}

// LoadStatusDefinitionFile reads a YAML status-effect definition file.
func LoadStatusDefinitionFile(path string) ([]StatusDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ability: reading %s: %w", path, err)
	}

	var fsd fileStatusDefinitions
	if err := yaml.Unmarshal(raw, &fsd); err != nil {
		return nil, fmt.Errorf("ability: parsing %s: %w", path, err)
	}

	out := make([]StatusDefinition, 0, len(fsd.Statuses))
	for _, s := range fsd.Statuses {
		if s.ID == "" {
			return nil, fmt.Errorf("ability: status definition missing id in %s", path)
		}
		out = append(out, StatusDefinition{
			ID:             s.ID,
			DisplayName:    s.DisplayName,
			Kind:           StatusKind(s.Kind),
			Magnitude:      s.Magnitude,
			Attribute:      s.Attribute,
			DurationMs:     s.DurationMs,
			TickIntervalMs: s.TickIntervalMs,
			StackCap:       s.StackCap,
			Stacking:       StackingRule(s.Stacking),
		})
	}
	return out, nil
}
