package structure

import (
	"fmt"
	"hash/fnv"
	"sort"
)

// Spec is one candidate device design: a mapping from parameter name to a
// typed value. Specs are created by sampling or by decoding an agent action
// and are treated as immutable afterwards.
type Spec struct {
	// Params holds continuous values keyed by parameter name.
	Params map[string]float64 `json:"params" yaml:"params"`
	// Repeats holds structural-repeat counts keyed by parameter name.
	Repeats map[string]int `json:"repeats,omitempty" yaml:"repeats,omitempty"`
	// Choices holds categorical values keyed by parameter name.
	Choices map[string]string `json:"choices,omitempty" yaml:"choices,omitempty"`

	// Clamped names the fields that had to be clamped into bounds while the
	// spec was decoded from an action vector. A non-empty list marks the spec
	// infeasible for reward purposes; clamping is always recorded, never silent.
	Clamped []string `json:"clamped,omitempty" yaml:"clamped,omitempty"`
}

// Infeasible reports whether the spec required clamping during creation.
func (sp *Spec) Infeasible() bool {
	return len(sp.Clamped) > 0
}

// Fingerprint returns a stable hexadecimal digest of the spec's values,
// independent of map iteration order. Used to key simulator export files and
// to derive deterministic per-spec randomness in the mock backend.
func (sp *Spec) Fingerprint() string {
	h := fnv.New64a()

	names := make([]string, 0, len(sp.Params))
	for name := range sp.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(h, "%s=%.12g;", name, sp.Params[name])
	}

	names = names[:0]
	for name := range sp.Repeats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(h, "%s=%d;", name, sp.Repeats[name])
	}

	names = names[:0]
	for name := range sp.Choices {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(h, "%s=%s;", name, sp.Choices[name])
	}

	return fmt.Sprintf("%016x", h.Sum64())
}

// Seed returns a deterministic int64 derived from the fingerprint, mixed
// with the given base seed.
func (sp *Spec) Seed(base int64) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%s", base, sp.Fingerprint())
	return int64(h.Sum64() & 0x7fffffffffffffff)
}

// Clone returns a deep copy of the spec.
func (sp *Spec) Clone() *Spec {
	out := &Spec{
		Params:  make(map[string]float64, len(sp.Params)),
		Repeats: make(map[string]int, len(sp.Repeats)),
		Choices: make(map[string]string, len(sp.Choices)),
	}
	for k, v := range sp.Params {
		out.Params[k] = v
	}
	for k, v := range sp.Repeats {
		out.Repeats[k] = v
	}
	for k, v := range sp.Choices {
		out.Choices[k] = v
	}
	if len(sp.Clamped) > 0 {
		out.Clamped = append([]string(nil), sp.Clamped...)
	}
	return out
}
