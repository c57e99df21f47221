package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/qdsearch/search-core/internal/device"
	"github.com/qdsearch/search-core/internal/explog"
	"github.com/qdsearch/search-core/internal/structure"
	"github.com/qdsearch/search-core/internal/surrogate"
	"github.com/qdsearch/search-core/pkg/config"
	"github.com/qdsearch/search-core/pkg/utils"
)

func testSpace(t *testing.T) *structure.Space {
	t.Helper()
	space, err := structure.NewSpace(structure.DefaultSchema())
	if err != nil {
		t.Fatalf("failed to build space: %v", err)
	}
	return space
}

func TestNewDispatch(t *testing.T) {
	space := testSpace(t)

	cfg := config.Default()
	ev, err := New(cfg, space)
	if err != nil {
		t.Fatalf("mock dispatch failed: %v", err)
	}
	if ev.Name() != config.BackendMock {
		t.Fatalf("expected mock backend, got %s", ev.Name())
	}

	cfg.Backend = config.BackendSimulator
	if _, err := New(cfg, space); err == nil {
		t.Fatal("expected error for simulator backend without export dir")
	}
	cfg.SimulatorExportDir = t.TempDir()
	if _, err := New(cfg, space); err != nil {
		t.Fatalf("simulator dispatch failed: %v", err)
	}

	cfg.Backend = "quantum"
	_, err = New(cfg, space)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for unknown backend, got %v", err)
	}
}

func TestNewSimulatorRejectsMissingExportDir(t *testing.T) {
	space := testSpace(t)

	cfg := config.Default()
	cfg.Backend = config.BackendSimulator
	cfg.SimulatorExportDir = filepath.Join(t.TempDir(), "does-not-exist")

	_, err := New(cfg, space)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for missing export dir, got %v", err)
	}
	if cfgErr.Field != "simulator_export_dir" {
		t.Fatalf("expected simulator_export_dir field, got %s", cfgErr.Field)
	}

	// A file at the configured path is just as fatal as a missing directory.
	file := filepath.Join(t.TempDir(), "export.csv")
	if err := os.WriteFile(file, []byte("position\n"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	cfg.SimulatorExportDir = file
	if _, err := New(cfg, space); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for non-directory export dir, got %v", err)
	}
}

func TestMockDeterministic(t *testing.T) {
	space := testSpace(t)
	spec := space.Baseline()
	mock := NewMock(17, 64)
	ctx := context.Background()

	a, err := mock.Evaluate(ctx, spec)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	b, err := mock.Evaluate(ctx, spec)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("repeated evaluation of the same design differed")
	}

	other := spec.Clone()
	other.Params["t_eml_nm"] = 35.0
	c, err := mock.Evaluate(ctx, other)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if reflect.DeepEqual(a, c) {
		t.Fatal("distinct designs produced identical metrics")
	}
}

func TestMockPhysicsShape(t *testing.T) {
	space := testSpace(t)
	mock := NewMock(1, 64)
	ctx := context.Background()

	balanced := space.Baseline()
	balanced.Params["phi_htl_ev"] = 5.2
	balanced.Params["phi_etl_ev"] = 4.1

	skewed := balanced.Clone()
	skewed.Params["phi_htl_ev"] = 5.6
	skewed.Params["phi_etl_ev"] = 4.5

	mb, err := mock.Evaluate(ctx, balanced)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	ms, err := mock.Evaluate(ctx, skewed)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if mb.ChargeBalance <= ms.ChargeBalance {
		t.Fatalf("balanced barriers should give higher charge balance: %g vs %g", mb.ChargeBalance, ms.ChargeBalance)
	}
	if mb.EQE <= ms.EQE {
		t.Fatalf("balanced barriers should give higher EQE: %g vs %g", mb.EQE, ms.EQE)
	}

	if mb.Spatial == nil || mb.Spatial.Len() != 64 {
		t.Fatalf("expected a 64-point spatial profile, got %+v", mb.Spatial)
	}
	if err := mb.Validate(); err != nil {
		t.Fatalf("mock produced inconsistent metrics: %v", err)
	}
}

const exportHeader = "position,electron_density,hole_density,recomb_radiative,recomb_nonradiative,eqe,voltage"

func writeExport(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write export: %v", err)
	}
	return path
}

func TestExportParse(t *testing.T) {
	dir := t.TempDir()
	space := testSpace(t)
	spec := space.Baseline()

	content := exportHeader + "\n" +
		"0.0,1.0,2.0,0.5,0.1,14.2,4.0\n" +
		"10.0,2.0,2.0,1.0,0.2,14.2,4.0\n" +
		"20.0,1.0,1.0,0.5,0.1,14.2,4.0\n"
	writeExport(t, dir, spec.Fingerprint()+".csv", content)

	ev := NewExport(dir, 3, time.Second)
	metrics, err := ev.Evaluate(context.Background(), spec)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if metrics.EQE != 14.2 || metrics.Voltage != 4.0 {
		t.Fatalf("scalar columns misread: %+v", metrics)
	}
	if metrics.Spatial.Len() != 3 {
		t.Fatalf("expected 3 grid points, got %d", metrics.Spatial.Len())
	}
	// charge_balance absent: derived from integrated densities 4 and 5.
	if diff := metrics.ChargeBalance - 0.8; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("expected derived charge balance 0.8, got %g", metrics.ChargeBalance)
	}
}

func TestExportMissingColumn(t *testing.T) {
	dir := t.TempDir()
	space := testSpace(t)
	spec := space.Baseline()

	content := "position,electron_density,hole_density,recomb_radiative,eqe,voltage\n" +
		"0.0,1.0,2.0,0.5,14.2,4.0\n"
	writeExport(t, dir, spec.Fingerprint()+".csv", content)

	ev := NewExport(dir, 3, time.Second)
	_, err := ev.Evaluate(context.Background(), spec)
	var malformed *MalformedExportError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedExportError, got %v", err)
	}
	if malformed.Column != "recomb_nonradiative" {
		t.Fatalf("error should name the missing column, named %q", malformed.Column)
	}
}

func TestExportNonNumericCell(t *testing.T) {
	dir := t.TempDir()
	space := testSpace(t)
	spec := space.Baseline()

	content := exportHeader + "\n" +
		"0.0,one,2.0,0.5,0.1,14.2,4.0\n"
	writeExport(t, dir, spec.Fingerprint()+".csv", content)

	ev := NewExport(dir, 3, time.Second)
	_, err := ev.Evaluate(context.Background(), spec)
	var malformed *MalformedExportError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedExportError, got %v", err)
	}
	if malformed.Column != "electron_density" {
		t.Fatalf("error should name the unparsable column, named %q", malformed.Column)
	}
}

func TestExportRegrid(t *testing.T) {
	dir := t.TempDir()
	space := testSpace(t)
	spec := space.Baseline()

	content := exportHeader + "\n" +
		"0.0,0.0,0.0,0.0,0.0,10.0,4.0\n" +
		"10.0,10.0,10.0,10.0,10.0,10.0,4.0\n"
	writeExport(t, dir, spec.Fingerprint()+".csv", content)

	ev := NewExport(dir, 5, time.Second)
	metrics, err := ev.Evaluate(context.Background(), spec)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if metrics.Spatial.Len() != 5 {
		t.Fatalf("expected regridded 5 points, got %d", metrics.Spatial.Len())
	}
	if got := metrics.Spatial.Electron[2]; got != 5.0 {
		t.Fatalf("expected midpoint interpolation 5.0, got %g", got)
	}
}

func TestExportTimeout(t *testing.T) {
	space := testSpace(t)
	ev := NewExport(t.TempDir(), 3, 50*time.Millisecond)

	_, err := ev.Evaluate(context.Background(), space.Baseline())
	var evalErr *EvalError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvalError, got %v", err)
	}
	if !evalErr.Timeout || !evalErr.Retryable {
		t.Fatalf("timeout should be retryable: %+v", evalErr)
	}
}

// flakyEvaluator fails the first failures calls with a retryable error.
type flakyEvaluator struct {
	failures int
	calls    int
}

func (f *flakyEvaluator) Name() string { return "flaky" }

func (f *flakyEvaluator) Evaluate(ctx context.Context, spec *structure.Spec) (*device.Metrics, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, &EvalError{Backend: "flaky", Reason: "transient", Retryable: true}
	}
	return &device.Metrics{EQE: 1.0}, nil
}

func TestWithRetryRecovers(t *testing.T) {
	flaky := &flakyEvaluator{failures: 2}
	ev := WithRetry(flaky, 2, utils.NewConstantBackoff(time.Millisecond))

	metrics, err := ev.Evaluate(context.Background(), &structure.Spec{})
	if err != nil {
		t.Fatalf("expected recovery within retry budget: %v", err)
	}
	if metrics.EQE != 1.0 {
		t.Fatalf("unexpected metrics: %+v", metrics)
	}
	if flaky.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", flaky.calls)
	}
}

func TestWithRetryExhausted(t *testing.T) {
	flaky := &flakyEvaluator{failures: 10}
	ev := WithRetry(flaky, 2, utils.NewConstantBackoff(time.Millisecond))

	_, err := ev.Evaluate(context.Background(), &structure.Spec{})
	var evalErr *EvalError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected the last EvalError, got %v", err)
	}
	if flaky.calls != 3 {
		t.Fatalf("expected retry bound to cap at 3 attempts, got %d", flaky.calls)
	}
}

type fatalEvaluator struct{ calls int }

func (f *fatalEvaluator) Name() string { return "fatal" }

func (f *fatalEvaluator) Evaluate(ctx context.Context, spec *structure.Spec) (*device.Metrics, error) {
	f.calls++
	return nil, &EvalError{Backend: "fatal", Reason: "broken export", Retryable: false}
}

func TestWithRetryNonRetryablePassesThrough(t *testing.T) {
	fatal := &fatalEvaluator{}
	ev := WithRetry(fatal, 3, utils.NewConstantBackoff(time.Millisecond))

	if _, err := ev.Evaluate(context.Background(), &structure.Spec{}); err == nil {
		t.Fatal("expected error")
	}
	if fatal.calls != 1 {
		t.Fatalf("non-retryable error must not be retried, got %d calls", fatal.calls)
	}
}

func TestWithRecording(t *testing.T) {
	space := testSpace(t)
	store := explog.NewMemoryStore()
	ev := WithRecording(NewMock(3, 16), store)
	ctx := context.Background()

	spec := space.Baseline()
	if _, err := ev.Evaluate(ctx, spec); err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Backend != config.BackendMock {
		t.Fatalf("record names backend %q", records[0].Backend)
	}
	if records[0].Reward != nil {
		t.Fatal("recording wrapper must not attach a reward")
	}
}

func TestSurrogateBackend(t *testing.T) {
	space := testSpace(t)
	ev := NewSurrogate(space, 0.5)
	ctx := context.Background()
	spec := space.Baseline()

	if _, err := ev.Evaluate(ctx, spec); !errors.Is(err, ErrModelNotTrained) {
		t.Fatalf("expected ErrModelNotTrained, got %v", err)
	}

	dim := space.EncodedDim()
	coef := make([]float64, dim+1)
	coef[0] = 7.5
	model := &surrogate.Model{
		Dim: dim,
		Coefficients: map[string][]float64{
			surrogate.TargetEQE:           coef,
			surrogate.TargetVoltage:       make([]float64, dim+1),
			surrogate.TargetChargeBalance: make([]float64, dim+1),
		},
		Training: [][]float64{make([]float64, dim)},
	}
	ev.SetModel(model)

	metrics, err := ev.Evaluate(ctx, spec)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if metrics.EQE != 7.5 {
		t.Fatalf("expected intercept-only prediction 7.5, got %g", metrics.EQE)
	}
	if metrics.Spatial != nil {
		t.Fatal("surrogate predictions must not carry a spatial profile")
	}
	if _, ok := metrics.Diagnostics["train_distance"]; !ok {
		t.Fatal("expected train_distance diagnostic")
	}
	if _, ok := metrics.Diagnostics["extrapolation"]; !ok {
		t.Fatal("baseline design is far from the zero training row, expected extrapolation flag")
	}
}
