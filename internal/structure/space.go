package structure

import (
	"fmt"
	"math"

	"github.com/qdsearch/search-core/pkg/utils"
)

// Space projects specs into a fixed-length numeric vector in [-1, 1] and
// back: continuous and repeat parameters map linearly onto one coordinate
// each, categorical parameters onto a one-hot block. Policies only ever see
// this projection.
type Space struct {
	schema  *Schema
	dim     int
	offsets []int // encoding offset per schema parameter
}

// NewSpace builds a Space over a validated schema.
func NewSpace(schema *Schema) (*Space, error) {
	if schema == nil {
		return nil, fmt.Errorf("schema is required")
	}
	if err := schema.Check(); err != nil {
		return nil, err
	}

	s := &Space{
		schema:  schema,
		offsets: make([]int, len(schema.Params)),
	}
	for i, p := range schema.Params {
		s.offsets[i] = s.dim
		if p.Kind == KindCategorical {
			s.dim += len(p.Choices)
		} else {
			s.dim++
		}
	}
	return s, nil
}

// Schema returns the underlying schema (read-only by convention).
func (s *Space) Schema() *Schema {
	return s.schema
}

// EncodedDim returns the length of encoded vectors.
func (s *Space) EncodedDim() int {
	return s.dim
}

// Sample draws a spec uniformly from the schema-defined space. The result
// always satisfies all bounds and categorical domains.
func (s *Space) Sample(rng *utils.RandSource) *Spec {
	spec := &Spec{
		Params:  make(map[string]float64),
		Repeats: make(map[string]int),
		Choices: make(map[string]string),
	}
	for _, p := range s.schema.Params {
		switch p.Kind {
		case KindContinuous:
			spec.Params[p.Name] = rng.UniformFloat64(p.Min, p.Max)
		case KindRepeat:
			lo, hi := int(p.Min), int(p.Max)
			spec.Repeats[p.Name] = lo + rng.Intn(hi-lo+1)
		case KindCategorical:
			spec.Choices[p.Name] = p.Choices[rng.Intn(len(p.Choices))]
		}
	}
	return spec
}

// Baseline returns the spec built from schema defaults, used as a fixed
// episode starting point.
func (s *Space) Baseline() *Spec {
	spec := &Spec{
		Params:  make(map[string]float64),
		Repeats: make(map[string]int),
		Choices: make(map[string]string),
	}
	for _, p := range s.schema.Params {
		switch p.Kind {
		case KindContinuous:
			v := p.DefaultValue
			if v < p.Min || v > p.Max {
				v = (p.Min + p.Max) / 2
			}
			spec.Params[p.Name] = v
		case KindRepeat:
			v := int(p.DefaultValue)
			if float64(v) < p.Min || float64(v) > p.Max {
				v = int(p.Min)
			}
			spec.Repeats[p.Name] = v
		case KindCategorical:
			c := p.DefaultChoice
			if c == "" {
				c = p.Choices[0]
			}
			spec.Choices[p.Name] = c
		}
	}
	return spec
}

// Validate checks that every schema field is present, within bounds, and of
// the correct kind. It returns a *SchemaError naming the offending field.
func (s *Space) Validate(spec *Spec) error {
	if spec == nil {
		return &SchemaError{Field: "", Kind: ErrMissingField, Detail: "spec is nil"}
	}
	for _, p := range s.schema.Params {
		switch p.Kind {
		case KindContinuous:
			v, ok := spec.Params[p.Name]
			if !ok {
				return &SchemaError{Field: p.Name, Kind: ErrMissingField}
			}
			if math.IsNaN(v) || v < p.Min || v > p.Max {
				return &SchemaError{
					Field:  p.Name,
					Kind:   ErrOutOfBounds,
					Detail: fmt.Sprintf("%g outside [%g, %g]", v, p.Min, p.Max),
				}
			}
		case KindRepeat:
			v, ok := spec.Repeats[p.Name]
			if !ok {
				return &SchemaError{Field: p.Name, Kind: ErrMissingField}
			}
			if float64(v) < p.Min || float64(v) > p.Max {
				return &SchemaError{
					Field:  p.Name,
					Kind:   ErrOutOfBounds,
					Detail: fmt.Sprintf("%d outside [%g, %g]", v, p.Min, p.Max),
				}
			}
		case KindCategorical:
			c, ok := spec.Choices[p.Name]
			if !ok {
				return &SchemaError{Field: p.Name, Kind: ErrMissingField}
			}
			found := false
			for _, choice := range p.Choices {
				if c == choice {
					found = true
					break
				}
			}
			if !found {
				return &SchemaError{
					Field:  p.Name,
					Kind:   ErrUnknownCategory,
					Detail: fmt.Sprintf("%q not in domain", c),
				}
			}
		}
	}
	return nil
}

// Encode projects a valid spec onto the fixed-length vector. Continuous and
// repeat values map linearly to [-1, 1]; categorical values become a one-hot
// block (+1 selected, -1 otherwise).
func (s *Space) Encode(spec *Spec) ([]float64, error) {
	if err := s.Validate(spec); err != nil {
		return nil, err
	}

	vec := make([]float64, s.dim)
	for i, p := range s.schema.Params {
		off := s.offsets[i]
		switch p.Kind {
		case KindContinuous:
			vec[off] = normalize(spec.Params[p.Name], p.Min, p.Max)
		case KindRepeat:
			vec[off] = normalize(float64(spec.Repeats[p.Name]), p.Min, p.Max)
		case KindCategorical:
			selected := spec.Choices[p.Name]
			for j, choice := range p.Choices {
				if choice == selected {
					vec[off+j] = 1
				} else {
					vec[off+j] = -1
				}
			}
		}
	}
	return vec, nil
}

// Decode maps a vector back to a spec. Coordinates outside [-1, 1] are
// clamped into range and the affected field is recorded in Spec.Clamped, so
// infeasible actions are flagged rather than silently repaired. Repeat
// counts decode by rounding, never truncation, to avoid biasing the search
// toward smaller structures. Categorical blocks decode by argmax.
func (s *Space) Decode(vec []float64) (*Spec, error) {
	if len(vec) != s.dim {
		return nil, fmt.Errorf("encoded vector has length %d, expected %d", len(vec), s.dim)
	}

	spec := &Spec{
		Params:  make(map[string]float64),
		Repeats: make(map[string]int),
		Choices: make(map[string]string),
	}
	for i, p := range s.schema.Params {
		off := s.offsets[i]
		switch p.Kind {
		case KindContinuous:
			x, clamped := clampUnit(vec[off])
			if clamped {
				spec.Clamped = append(spec.Clamped, p.Name)
			}
			spec.Params[p.Name] = denormalize(x, p.Min, p.Max)
		case KindRepeat:
			x, clamped := clampUnit(vec[off])
			if clamped {
				spec.Clamped = append(spec.Clamped, p.Name)
			}
			spec.Repeats[p.Name] = int(math.Round(denormalize(x, p.Min, p.Max)))
		case KindCategorical:
			best := 0
			for j := 1; j < len(p.Choices); j++ {
				if vec[off+j] > vec[off+best] {
					best = j
				}
			}
			spec.Choices[p.Name] = p.Choices[best]
		}
	}
	return spec, nil
}

// clampUnit clamps x into [-1, 1]; the second result reports whether
// clamping beyond numeric noise was needed.
func clampUnit(x float64) (float64, bool) {
	const eps = 1e-9
	if x < -1 {
		return -1, x < -1-eps
	}
	if x > 1 {
		return 1, x > 1+eps
	}
	return x, false
}

// normalize maps v in [min, max] to [-1, 1].
func normalize(v, min, max float64) float64 {
	u := (v - min) / (max - min)
	return 2*u - 1
}

// denormalize maps x in [-1, 1] to [min, max].
func denormalize(x, min, max float64) float64 {
	u := (x + 1) / 2
	return min + u*(max-min)
}
