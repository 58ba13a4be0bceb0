package match

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NicholasJacob1990/litgo/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestResolveNormalizedForAllPresetsAndComplexities(t *testing.T) {
	r := NewResolver(context.Background(), nil, testLogger())

	presets := []string{"fast", "expert", "balanced", "unknown"}
	complexities := []model.Complexity{model.ComplexityLow, model.ComplexityMedium, model.ComplexityHigh}

	for _, p := range presets {
		for _, c := range complexities {
			w := r.Resolve(p, c)
			assert.InDeltaf(t, 1.0, w.Sum(), 1e-9, "preset %s complexity %s", p, c)
			for k, v := range w.Map() {
				assert.GreaterOrEqualf(t, v, 0.0, "preset %s complexity %s weight %s", p, c, k)
			}
		}
	}
}

func TestResolveHighComplexityShiftsWeights(t *testing.T) {
	r := NewResolver(context.Background(), nil, testLogger())

	med := r.Resolve(PresetBalanced, model.ComplexityMedium)
	high := r.Resolve(PresetBalanced, model.ComplexityHigh)

	assert.Greater(t, high.Q, med.Q)
	assert.Greater(t, high.T, med.T)
	assert.Less(t, high.U, med.U)
	assert.InDelta(t, 1.0, high.Sum(), 1e-9)
}

func TestResolveLowComplexityShiftsWeights(t *testing.T) {
	r := NewResolver(context.Background(), nil, testLogger())

	med := r.Resolve(PresetBalanced, model.ComplexityMedium)
	low := r.Resolve(PresetBalanced, model.ComplexityLow)

	assert.Greater(t, low.U, med.U)
	assert.Greater(t, low.G, med.G)
	assert.Less(t, low.Q, med.Q)
	assert.Less(t, low.T, med.T)
}

func TestResolveClampsNegativeAdjustments(t *testing.T) {
	// The fast preset carries U=0.03; the HIGH delta subtracts 0.05, driving
	// it negative before the clamp.
	r := NewResolver(context.Background(), nil, testLogger())

	w := r.Resolve("fast", model.ComplexityHigh)
	assert.Equal(t, 0.0, w.U)
	for _, v := range w.Map() {
		assert.GreaterOrEqual(t, v, 0.0)
	}
	assert.InDelta(t, 1.0, w.Sum(), 1e-9)
}

func TestPresetUnknownFallsBackToBalanced(t *testing.T) {
	assert.Equal(t, Preset("balanced"), Preset("nope"))
}

func TestFileLoaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.json")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"A":0.4,"S":0.2,"T":0.1,"G":0.1,"Q":0.1,"U":0.05,"R":0.03,"C":0.02}`,
	), 0o600))

	w, err := FileLoader{Path: path}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.4, w.A)
	assert.InDelta(t, 1.0, w.Sum(), 1e-9)
}

func TestFileLoaderRejectsNegative(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"A":-0.1,"S":0.5}`), 0o600))

	_, err := FileLoader{Path: path}.Load(context.Background())
	assert.ErrorIs(t, err, ErrWeightLoad)
}

func TestFileLoaderRejectsAllZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	_, err := FileLoader{Path: path}.Load(context.Background())
	assert.ErrorIs(t, err, ErrWeightLoad)
}

func TestFileLoaderMissingFile(t *testing.T) {
	_, err := FileLoader{Path: filepath.Join(t.TempDir(), "absent.json")}.Load(context.Background())
	assert.ErrorIs(t, err, ErrWeightLoad)
}

func TestResolverColdStartFailureUsesDefaults(t *testing.T) {
	r := NewResolver(context.Background(), failingLoader{}, testLogger())
	assert.Equal(t, DefaultWeights, r.Active())
}

func TestResolverColdStartRejectsZeroSnapshot(t *testing.T) {
	// A loader that hands back a persisted all-zero row without flagging it;
	// the resolver validates at the swap point and keeps the defaults.
	r := NewResolver(context.Background(), &rawLoader{}, testLogger())
	assert.Equal(t, DefaultWeights, r.Active())
}

func TestResolverReloadRejectsInvalidSnapshot(t *testing.T) {
	good := model.Weights{A: 1}
	l := &rawLoader{w: good}
	r := NewResolver(context.Background(), l, testLogger())
	require.Equal(t, good, r.Active())

	l.w = model.Weights{}
	w, err := r.Reload(context.Background())
	assert.ErrorIs(t, err, ErrWeightLoad)
	assert.Equal(t, good, w)
	assert.Equal(t, good, r.Active())

	l.w = model.Weights{A: -0.5, S: 1.5}
	_, err = r.Reload(context.Background())
	assert.ErrorIs(t, err, ErrWeightLoad)
	assert.Equal(t, good, r.Active())
}

func TestResolverReloadKeepsPreviousOnFailure(t *testing.T) {
	good := model.Weights{A: 1}
	l := &flakyLoader{first: good}
	r := NewResolver(context.Background(), l, testLogger())
	require.Equal(t, good, r.Active())

	l.fail = true
	w, err := r.Reload(context.Background())
	assert.Error(t, err)
	assert.Equal(t, good, w)
	assert.Equal(t, good, r.Active())
}

func TestResolverReloadSwaps(t *testing.T) {
	l := &flakyLoader{first: model.Weights{A: 1}}
	r := NewResolver(context.Background(), l, testLogger())

	l.first = model.Weights{S: 1}
	w, err := r.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Weights{S: 1}, w)
	assert.Equal(t, model.Weights{S: 1}, r.Active())
}

// rawLoader returns its vector as-is with a nil error, the way a DB-backed
// loader surfaces whatever row was persisted.
type rawLoader struct{ w model.Weights }

func (l *rawLoader) Load(context.Context) (model.Weights, error) { return l.w, nil }

type failingLoader struct{}

func (failingLoader) Load(context.Context) (model.Weights, error) {
	return model.Weights{}, ErrWeightLoad
}

type flakyLoader struct {
	first model.Weights
	fail  bool
}

func (l *flakyLoader) Load(context.Context) (model.Weights, error) {
	if l.fail {
		return model.Weights{}, ErrWeightLoad
	}
	return l.first, nil
}
