package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/qdsearch/search-core/internal/backend"
	"github.com/qdsearch/search-core/pkg/config"
)

func TestBuildSpaceDefaultSchema(t *testing.T) {
	space, err := buildSpace(config.Default())
	if err != nil {
		t.Fatalf("buildSpace failed: %v", err)
	}
	if space.EncodedDim() == 0 {
		t.Fatal("expected a non-empty design space")
	}
}

func TestBuildSpaceFromFile(t *testing.T) {
	schema := `
parameters:
  - name: thickness
    kind: continuous
    min: 1
    max: 10
    default: 5
`
	path := filepath.Join(t.TempDir(), "schema.yaml")
	if err := os.WriteFile(path, []byte(schema), 0o644); err != nil {
		t.Fatalf("failed to write schema: %v", err)
	}

	cfg := config.Default()
	cfg.ParameterSchemaPath = path
	space, err := buildSpace(cfg)
	if err != nil {
		t.Fatalf("buildSpace failed: %v", err)
	}
	if space.EncodedDim() != 1 {
		t.Fatalf("expected 1-dimensional space, got %d", space.EncodedDim())
	}
}

func TestLoadSpec(t *testing.T) {
	design := `
params:
  t_eml_nm: 22.5
choices:
  eml_pattern: planar
repeats:
  qd_sublayers: 2
`
	path := filepath.Join(t.TempDir(), "design.yaml")
	if err := os.WriteFile(path, []byte(design), 0o644); err != nil {
		t.Fatalf("failed to write design: %v", err)
	}

	spec, err := loadSpec(path)
	if err != nil {
		t.Fatalf("loadSpec failed: %v", err)
	}
	if spec.Params["t_eml_nm"] != 22.5 {
		t.Fatalf("continuous value misread: %+v", spec.Params)
	}
	if spec.Choices["eml_pattern"] != "planar" {
		t.Fatalf("choice misread: %+v", spec.Choices)
	}
	if spec.Repeats["qd_sublayers"] != 2 {
		t.Fatalf("repeat misread: %+v", spec.Repeats)
	}
}

func TestBuildEvaluatorSurrogateNeedsModel(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = config.BackendSurrogate
	cfg.SurrogateModelPath = filepath.Join(t.TempDir(), "missing.json")

	space, err := buildSpace(cfg)
	if err != nil {
		t.Fatalf("buildSpace failed: %v", err)
	}
	if _, err := buildEvaluator(cfg, space); err == nil {
		t.Fatal("expected error when the surrogate model file is missing")
	}
}

func TestBuildEvaluatorWrapsRetry(t *testing.T) {
	cfg := config.Default()
	space, err := buildSpace(cfg)
	if err != nil {
		t.Fatalf("buildSpace failed: %v", err)
	}
	ev, err := buildEvaluator(cfg, space)
	if err != nil {
		t.Fatalf("buildEvaluator failed: %v", err)
	}
	if ev.Name() != config.BackendMock {
		t.Fatalf("expected mock backend, got %s", ev.Name())
	}
	if _, ok := ev.(*backend.Mock); ok && cfg.RetryLimit > 0 {
		t.Fatal("expected the evaluator to be wrapped with retries")
	}
}
