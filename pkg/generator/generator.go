// Package generator assembles fixed-size training batches of sagittal slices
// from a manifest of MRI volumes.
//
// Each call to NextBatch draws records uniformly at random (with replacement),
// loads one volume at a time, and appends its normalized middle sagittal slices
// to a fresh buffer until the buffer holds exactly BatchSize rows. Records that
// cannot contribute (out-of-range label, unreadable file, non-finite data) are
// skipped and another record is drawn. Only a long run of consecutive skips is
// reported to the caller, as ErrExhausted.
//
// A Generator is not safe for concurrent use. Independent generators may share
// one manifest.Index.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"mrimodality/internal/models"
	"mrimodality/pkg/logging"
	"mrimodality/pkg/manifest"
	"mrimodality/pkg/preprocess"
	"mrimodality/pkg/sagittal"
	"mrimodality/pkg/volume"
)

const (
	// DefaultSlicesPerVolume is the nominal extraction window per draw
	DefaultSlicesPerVolume = 30

	// DefaultMaxConsecutiveFailures bounds the number of draws in a row that
	// may contribute nothing before NextBatch gives up
	DefaultMaxConsecutiveFailures = 1000
)

var (
	// ErrExhausted is returned when too many consecutive draws fail
	ErrExhausted = errors.New("too many consecutive unusable draws")

	// ErrNoUsableRecords is returned by New when no record has a label below Modalities
	ErrNoUsableRecords = errors.New("manifest has no record with a usable modality")

	// ErrNonFinite marks a volume whose processed slices contain NaN or Inf
	ErrNonFinite = errors.New("non-finite values in processed slices")

	// ErrEmptyWindow marks a volume that yielded no sagittal slices
	ErrEmptyWindow = errors.New("no sagittal slices extracted")
)

// Options are the batch parameters shared by training and validation generators
type Options struct {
	// BatchSize is the number of slices per emitted batch (nb_step)
	BatchSize int

	// Modalities is the width of each one-hot label (nb_modalities)
	Modalities int

	// SlicesPerVolume is how many middle sagittal slices one draw extracts
	SlicesPerVolume int

	// MaxConsecutiveFailures is the retry ceiling before ErrExhausted
	MaxConsecutiveFailures int
}

// Sampler picks a record index in [0, n). *rand.Rand satisfies it.
type Sampler interface {
	IntN(n int) int
}

// Stats are cumulative counters for one generator
type Stats struct {
	Draws         int
	SkippedLabels int
	Failures      int
	Slices        int
	Batches       int
}

// Option customizes a Generator
type Option func(*Generator)

// WithSampler sets the source of record indices
func WithSampler(s Sampler) Option {
	return func(g *Generator) {
		g.sampler = s
	}
}

// WithSeed uses a deterministic PCG source seeded with seed
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.sampler = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithLogger sets the logger used for skipped records
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = l
	}
}

// Generator produces training batches on demand
type Generator struct {
	index   *manifest.Index
	loader  volume.Loader
	opts    Options
	shape   models.InputShape
	sampler Sampler
	logger  *slog.Logger
	stats   Stats
}

// New validates the options and returns a generator over index
func New(index *manifest.Index, loader volume.Loader, opts Options, options ...Option) (*Generator, error) {
	if index == nil || index.Size() == 0 {
		return nil, errors.New("manifest is empty")
	}
	if loader == nil {
		return nil, errors.New("volume loader is required")
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", opts.BatchSize)
	}
	if opts.Modalities <= 0 {
		return nil, fmt.Errorf("number of modalities must be positive, got %d", opts.Modalities)
	}
	if opts.SlicesPerVolume < 0 || opts.MaxConsecutiveFailures < 0 {
		return nil, errors.New("slices per volume and failure ceiling must not be negative")
	}
	if opts.SlicesPerVolume == 0 {
		opts.SlicesPerVolume = DefaultSlicesPerVolume
	}
	if opts.MaxConsecutiveFailures == 0 {
		opts.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}

	usable := false
	for _, rec := range index.Records() {
		if inRange(rec.Modality, opts.Modalities) {
			usable = true
			break
		}
	}
	if !usable {
		return nil, fmt.Errorf("%w (modalities=%d)", ErrNoUsableRecords, opts.Modalities)
	}

	g := &Generator{
		index:  index,
		loader: loader,
		opts:   opts,
		shape:  models.SliceShape,
	}
	for _, o := range options {
		o(g)
	}
	if g.sampler == nil {
		g.sampler = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if g.logger == nil {
		g.logger = logging.Discard()
	}
	return g, nil
}

// Options returns the effective options after defaults were applied
func (g *Generator) Options() Options {
	return g.opts
}

// Shape returns the layout of each row of X
func (g *Generator) Shape() models.InputShape {
	return g.shape
}

// Stats returns a snapshot of the generator's counters
func (g *Generator) Stats() Stats {
	return g.stats
}

// NextBatch fills and returns a new batch of exactly BatchSize rows.
func (g *Generator) NextBatch(ctx context.Context) (*models.Batch, error) {
	batch := models.NewBatch(g.opts.BatchSize, g.opts.Modalities, g.shape)

	misses := 0
	var lastErr error
	for batch.Len() < g.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if misses >= g.opts.MaxConsecutiveFailures {
			return nil, fmt.Errorf("%w: %d in a row, last: %w", ErrExhausted, misses, lastErr)
		}

		rec := g.index.RecordAt(g.sampler.IntN(g.index.Size()))
		g.stats.Draws++

		if !inRange(rec.Modality, g.opts.Modalities) {
			g.stats.SkippedLabels++
			misses++
			lastErr = fmt.Errorf("modality %d of %s is outside [0,%d)", rec.Modality, rec.Path, g.opts.Modalities)
			continue
		}

		g.logger.Debug("drawing volume", "modality", rec.Modality, "path", rec.Path)
		rows, err := g.ExtractVolume(rec.Path)
		if err != nil {
			g.stats.Failures++
			misses++
			lastErr = err
			g.logger.Warn("skipping volume", "path", rec.Path, "modality", rec.Modality, "error", err)
			continue
		}
		misses = 0

		if remaining := g.opts.BatchSize - batch.Len(); len(rows) > remaining {
			rows = rows[:remaining]
		}
		for _, row := range rows {
			batch.X = append(batch.X, row)
			batch.Y = append(batch.Y, preprocess.OneHot(rec.Modality, g.opts.Modalities))
			batch.Sources = append(batch.Sources, rec.Path)
		}
		g.stats.Slices += len(rows)
	}

	g.stats.Batches++
	return batch, nil
}

func inRange(label, modalities int) bool {
	return label >= 0 && label < modalities
}

// ExtractVolume runs the slice pipeline on one volume file: load, take up to
// SlicesPerVolume middle sagittal slices, resample each to the input grid and
// normalize it. Each returned row is one flattened (1, 32, 32) example.
func (g *Generator) ExtractVolume(path string) ([][]float64, error) {
	v, err := g.load(path)
	if err != nil {
		return nil, err
	}

	sections := sagittal.Extract(v, g.opts.SlicesPerVolume)
	if len(sections) == 0 {
		return nil, ErrEmptyWindow
	}

	rows := make([][]float64, 0, len(sections))
	for _, s := range sections {
		resampled := sagittal.ResampleToShape(s, g.shape)
		rows = append(rows, preprocess.Flatten(preprocess.Normalize(resampled)))
	}
	if !preprocess.AllFinite(rows...) {
		return nil, ErrNonFinite
	}
	return rows, nil
}

// load wraps the loader so that a panicking decoder counts as a bad file
func (g *Generator) load(path string) (v *models.Volume, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("loader panicked: %v", r)
		}
	}()

	v, err = g.loader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load volume: %w", err)
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}
