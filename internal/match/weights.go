package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/NicholasJacob1990/litgo/internal/model"
)

// PresetBalanced is the default preset name; unknown preset names resolve to it.
const PresetBalanced = "balanced"

// ErrWeightLoad indicates a snapshot that is missing, malformed, or all-zero.
// Recovered locally: the resolver keeps the previously valid vector.
var ErrWeightLoad = errors.New("match: weight snapshot load failed")

// DefaultWeights is the built-in fallback weight vector.
var DefaultWeights = model.Weights{
	A: 0.30, S: 0.25, T: 0.15, G: 0.10,
	Q: 0.10, U: 0.05, R: 0.05, C: 0.03,
}

// presetWeights are the fixed named starting vectors. Stored as keyed maps so
// a preset may define only a subset of keys; the built-ins define all eight.
var presetWeights = map[string]map[string]float64{
	"fast": {
		"A": 0.40, "S": 0.15, "T": 0.20, "G": 0.15,
		"Q": 0.05, "U": 0.03, "R": 0.02, "C": 0.00,
	},
	"expert": {
		"A": 0.25, "S": 0.30, "T": 0.15, "G": 0.05,
		"Q": 0.15, "U": 0.05, "R": 0.03, "C": 0.02,
	},
	PresetBalanced: DefaultWeights.Map(),
}

// Preset returns the named preset's keyed overlay. Unknown names fall back to
// the balanced (DEFAULT) preset.
func Preset(name string) map[string]float64 {
	if p, ok := presetWeights[name]; ok {
		return p
	}
	return presetWeights[PresetBalanced]
}

// SnapshotLoader loads a persisted LTR weight snapshot.
type SnapshotLoader interface {
	Load(ctx context.Context) (model.Weights, error)
}

// FileLoader reads a snapshot from a JSON file: a keyed record
// {"A":...,"S":...,...} of non-negative numbers.
type FileLoader struct {
	Path string
}

// Load implements SnapshotLoader.
func (f FileLoader) Load(_ context.Context) (model.Weights, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return model.Weights{}, fmt.Errorf("%w: read %s: %v", ErrWeightLoad, f.Path, err)
	}
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return model.Weights{}, fmt.Errorf("%w: parse %s: %v", ErrWeightLoad, f.Path, err)
	}
	w := model.WeightsFromMap(m)
	if err := validateSnapshot(w); err != nil {
		return model.Weights{}, err
	}
	return w, nil
}

func validateSnapshot(w model.Weights) error {
	for k, v := range w.Map() {
		if v < 0 {
			return fmt.Errorf("%w: negative weight %s=%v", ErrWeightLoad, k, v)
		}
	}
	if w.Sum() <= 0 {
		return fmt.Errorf("%w: all-zero vector", ErrWeightLoad)
	}
	return nil
}

// Resolver merges the active LTR snapshot, a named preset, and
// case-complexity adjustments into a normalized weight vector.
//
// The active snapshot is process-wide: reads are frequent, reloads rare. It is
// held behind an atomic pointer so a rank call never observes a torn vector.
type Resolver struct {
	loader SnapshotLoader
	logger *slog.Logger
	active atomic.Pointer[model.Weights]
}

// NewResolver creates a resolver and performs the cold-start load. A load
// failure is non-fatal: the resolver starts from DefaultWeights and logs a
// warning. Loaded vectors are validated here, at the swap point, so loaders
// may return raw persisted values.
func NewResolver(ctx context.Context, loader SnapshotLoader, logger *slog.Logger) *Resolver {
	r := &Resolver{loader: loader, logger: logger}
	w := DefaultWeights
	if loader != nil {
		loaded, err := loader.Load(ctx)
		if err == nil {
			err = validateSnapshot(loaded)
		}
		if err != nil {
			logger.Warn("weight resolver: cold-start load failed, using defaults", "error", err)
		} else {
			w = loaded
		}
	}
	r.active.Store(&w)
	return r
}

// Active returns the currently loaded snapshot vector.
func (r *Resolver) Active() model.Weights {
	return *r.active.Load()
}

// Reload re-reads the snapshot and atomically swaps it in. On failure the
// previously valid vector stays active; the error is returned alongside it so
// callers can surface the warning.
func (r *Resolver) Reload(ctx context.Context) (model.Weights, error) {
	if r.loader == nil {
		return r.Active(), nil
	}
	w, err := r.loader.Load(ctx)
	if err == nil {
		err = validateSnapshot(w)
	}
	if err != nil {
		r.logger.Warn("weight resolver: reload failed, keeping previous vector", "error", err)
		return r.Active(), err
	}
	r.active.Store(&w)
	r.logger.Info("weight resolver: snapshot reloaded", "sum", w.Sum())
	return w, nil
}

// Resolve produces the normalized weight vector for one rank call: snapshot
// base, preset overlay, complexity delta, clamp, normalize.
func (r *Resolver) Resolve(preset string, complexity model.Complexity) model.Weights {
	base := r.Active().Map()
	for k, v := range Preset(preset) {
		base[k] = v
	}

	switch complexity {
	case model.ComplexityHigh:
		base["Q"] += 0.05
		base["T"] += 0.05
		base["U"] -= 0.05
		base["C"] += 0.02
	case model.ComplexityLow:
		base["U"] += 0.05
		base["G"] += 0.03
		base["Q"] -= 0.05
		base["T"] -= 0.03
	}

	var sum float64
	for k, v := range base {
		if v < 0 {
			base[k] = 0
			continue
		}
		sum += v
	}
	if sum <= 0 {
		// Degenerate overlay; fall back to the built-in default.
		return normalize(DefaultWeights)
	}
	for k, v := range base {
		base[k] = v / sum
	}
	return model.WeightsFromMap(base)
}

func normalize(w model.Weights) model.Weights {
	sum := w.Sum()
	if sum <= 0 {
		return w
	}
	m := w.Map()
	for k, v := range m {
		m[k] = v / sum
	}
	return model.WeightsFromMap(m)
}
