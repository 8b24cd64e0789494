// Package profile persists named EQ presets as one YAML file per preset
// under a storage directory (§5.4), the way the control API and the
// worker's resolver-driven reconfiguration expect to find them: a flat
// directory of "<name>.yaml" files, read back into dsp.BandConfig slices.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/aaeq-audio/aaeq/internal/dsp"
	"github.com/aaeq-audio/aaeq/internal/errors"
)

// Band is the on-disk shape of one EQ band; it mirrors dsp.BandConfig
// with YAML-friendly field names and a string filter type.
type Band struct {
	Type   string  `yaml:"type"`
	FreqHz float64 `yaml:"freq_hz"`
	Q      float64 `yaml:"q"`
	GainDB float64 `yaml:"gain_db"`
}

// Document is the on-disk shape of one preset file.
type Document struct {
	Name  string `yaml:"name"`
	Bands []Band `yaml:"bands"`
}

// Store loads and caches presets from a directory, falling back to an
// empty (flat) cascade for any name it has never seen on disk.
type Store struct {
	dir string

	mu    sync.RWMutex
	cache map[string][]dsp.BandConfig
}

// NewStore creates a Store rooted at dir. dir is created on first Save if
// it does not already exist; Load does not require it to exist yet.
func NewStore(dir string) *Store {
	return &Store{dir: dir, cache: make(map[string][]dsp.BandConfig)}
}

// Load reads name's preset from disk, caching the result. A preset file
// that does not exist yet resolves to a flat (no bands) cascade rather
// than an error, so a freshly-named profile with no bands saved is a
// valid, audible (bypassed) EQ state.
func (s *Store) Load(name string) ([]dsp.BandConfig, error) {
	s.mu.RLock()
	if bands, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return bands, nil
	}
	s.mu.RUnlock()

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			s.mu.Lock()
			s.cache[name] = nil
			s.mu.Unlock()
			return nil, nil
		}
		return nil, errors.New(err).
			Component("profile").
			Category(errors.CategoryState).
			Context("preset", name).
			Build()
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.New(err).
			Component("profile").
			Category(errors.CategoryProtocol).
			Context("preset", name).
			Build()
	}

	bands := make([]dsp.BandConfig, 0, len(doc.Bands))
	for _, b := range doc.Bands {
		bands = append(bands, dsp.BandConfig{
			Type:   parseBiquadType(b.Type),
			FreqHz: b.FreqHz,
			Q:      b.Q,
			GainDB: b.GainDB,
		})
	}

	s.mu.Lock()
	s.cache[name] = bands
	s.mu.Unlock()
	return bands, nil
}

// Save writes name's bands to disk as YAML and updates the cache.
func (s *Store) Save(name string, bands []dsp.BandConfig) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.New(err).Component("profile").Category(errors.CategoryState).Build()
	}

	doc := Document{Name: name, Bands: make([]Band, 0, len(bands))}
	for _, b := range bands {
		doc.Bands = append(doc.Bands, Band{
			Type:   biquadTypeName(b.Type),
			FreqHz: b.FreqHz,
			Q:      b.Q,
			GainDB: b.GainDB,
		})
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return errors.New(err).Component("profile").Category(errors.CategoryProtocol).Build()
	}
	if err := os.WriteFile(s.path(name), data, 0o644); err != nil {
		return errors.New(err).Component("profile").Category(errors.CategoryState).Build()
	}

	s.mu.Lock()
	s.cache[name] = bands
	s.mu.Unlock()
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".yaml")
}

func parseBiquadType(t string) dsp.BiquadType {
	switch strings.ToLower(t) {
	case "low_shelf":
		return dsp.BiquadLowShelf
	case "high_shelf":
		return dsp.BiquadHighShelf
	default:
		return dsp.BiquadPeak
	}
}

func biquadTypeName(t dsp.BiquadType) string {
	switch t {
	case dsp.BiquadLowShelf:
		return "low_shelf"
	case dsp.BiquadHighShelf:
		return "high_shelf"
	default:
		return "peak"
	}
}

// Reconfigurer adapts a Store and a dsp.Pipeline's EQ stage to
// internal/worker.Reconfigurer: ApplyPreset loads (or lazily creates) the
// named preset and swaps it into the live EQ cascade.
type Reconfigurer struct {
	Store *Store
	EQ    *dsp.EQStage
}

// ApplyPreset implements internal/worker.Reconfigurer.
func (r *Reconfigurer) ApplyPreset(presetName string) error {
	bands, err := r.Store.Load(presetName)
	if err != nil {
		return fmt.Errorf("profile: loading preset %q: %w", presetName, err)
	}
	r.EQ.SetPreset(bands)
	return nil
}
