package structure

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Kind is the type of a design parameter.
type Kind string

const (
	// KindContinuous is a bounded real-valued parameter (thickness, doping, ...)
	KindContinuous Kind = "continuous"
	// KindCategorical is a choice from a fixed domain (pattern type, ...)
	KindCategorical Kind = "categorical"
	// KindRepeat is a bounded non-negative integer count (stacked periods, ...)
	KindRepeat Kind = "repeat"
)

// ParamDef declares one parameter of the design space.
type ParamDef struct {
	Name string `yaml:"name"`
	Kind Kind   `yaml:"kind"`

	// Min/Max bound continuous and repeat parameters (inclusive).
	Min float64 `yaml:"min,omitempty"`
	Max float64 `yaml:"max,omitempty"`

	// Choices is the categorical domain.
	Choices []string `yaml:"choices,omitempty"`

	// DefaultValue seeds baseline specs for continuous and repeat parameters;
	// DefaultChoice does the same for categorical ones.
	DefaultValue  float64 `yaml:"default,omitempty"`
	DefaultChoice string  `yaml:"default_choice,omitempty"`
}

// Schema describes the legal parameter space. Loaded once at startup and
// read-only thereafter; the loop and backends reference it, never mutate it.
type Schema struct {
	Params []ParamDef `yaml:"parameters"`
}

// LoadSchema reads and parses a parameter schema file.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	schema, err := ParseSchemaYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema file %s: %w", path, err)
	}
	return schema, nil
}

// ParseSchemaYAML parses a Schema from YAML bytes and validates it.
func ParseSchemaYAML(data []byte) (*Schema, error) {
	var schema Schema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to parse schema yaml: %w", err)
	}
	if err := schema.Check(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &schema, nil
}

// Check validates the schema definition itself.
func (s *Schema) Check() error {
	if len(s.Params) == 0 {
		return fmt.Errorf("schema must define at least one parameter")
	}
	names := make(map[string]bool)
	for _, p := range s.Params {
		if p.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if names[p.Name] {
			return fmt.Errorf("duplicate parameter name: %s", p.Name)
		}
		names[p.Name] = true

		switch p.Kind {
		case KindContinuous:
			if p.Min >= p.Max {
				return fmt.Errorf("parameter %s: min %f must be below max %f", p.Name, p.Min, p.Max)
			}
		case KindRepeat:
			if p.Min < 0 {
				return fmt.Errorf("parameter %s: repeat count cannot be negative", p.Name)
			}
			if p.Min >= p.Max {
				return fmt.Errorf("parameter %s: min %f must be below max %f", p.Name, p.Min, p.Max)
			}
			if p.Min != float64(int(p.Min)) || p.Max != float64(int(p.Max)) {
				return fmt.Errorf("parameter %s: repeat bounds must be integers", p.Name)
			}
		case KindCategorical:
			if len(p.Choices) == 0 {
				return fmt.Errorf("parameter %s: categorical domain cannot be empty", p.Name)
			}
			choices := make(map[string]bool)
			for _, c := range p.Choices {
				if c == "" {
					return fmt.Errorf("parameter %s: empty choice", p.Name)
				}
				if choices[c] {
					return fmt.Errorf("parameter %s: duplicate choice %s", p.Name, c)
				}
				choices[c] = true
			}
			if p.DefaultChoice != "" && !choices[p.DefaultChoice] {
				return fmt.Errorf("parameter %s: default_choice %s not in domain", p.Name, p.DefaultChoice)
			}
		default:
			return fmt.Errorf("parameter %s: unknown kind %s", p.Name, p.Kind)
		}
	}
	return nil
}

// DefaultSchema returns the built-in QLED stack parameter space: layer
// thicknesses, injection-barrier proxies, doping fractions, the microsphere
// and quantum-dot superlattice microstructure, the drive condition, the
// emission-layer pattern, and the number of QD sublayers.
func DefaultSchema() *Schema {
	return &Schema{Params: []ParamDef{
		{Name: "t_htl_nm", Kind: KindContinuous, Min: 10, Max: 60, DefaultValue: 30},
		{Name: "t_eml_nm", Kind: KindContinuous, Min: 10, Max: 40, DefaultValue: 20},
		{Name: "t_etl_nm", Kind: KindContinuous, Min: 10, Max: 60, DefaultValue: 30},

		{Name: "phi_htl_ev", Kind: KindContinuous, Min: 4.8, Max: 5.6, DefaultValue: 5.2},
		{Name: "phi_etl_ev", Kind: KindContinuous, Min: 3.8, Max: 4.5, DefaultValue: 4.1},

		{Name: "p_doping_htl", Kind: KindContinuous, Min: 0, Max: 0.3, DefaultValue: 0.1},
		{Name: "n_doping_etl", Kind: KindContinuous, Min: 0, Max: 0.3, DefaultValue: 0.1},

		{Name: "ps_radius_nm", Kind: KindContinuous, Min: 50, Max: 250, DefaultValue: 120},
		{Name: "ps_fill_frac", Kind: KindContinuous, Min: 0, Max: 0.5, DefaultValue: 0.25},
		{Name: "sl_thickness_nm", Kind: KindContinuous, Min: 8, Max: 30, DefaultValue: 15},
		{Name: "sl_gap_um", Kind: KindContinuous, Min: 0.3, Max: 5, DefaultValue: 1.2},
		{Name: "qd_coverage", Kind: KindContinuous, Min: 0.2, Max: 1, DefaultValue: 0.6},

		{Name: "v_drive", Kind: KindContinuous, Min: 2, Max: 6, DefaultValue: 4},

		{Name: "eml_pattern", Kind: KindCategorical,
			Choices: []string{"planar", "microsphere", "superlattice"}, DefaultChoice: "planar"},
		{Name: "qd_sublayers", Kind: KindRepeat, Min: 1, Max: 4, DefaultValue: 2},
	}}
}
