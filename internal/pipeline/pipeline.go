// Package pipeline runs the full estimation flow for one location and
// period: parallel source fetch, parallel per-source preprocessing,
// sequential fusion, ETo calculation.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/evaonline/eto-engine/internal/eto"
	"github.com/evaonline/eto-engine/internal/fusion"
	"github.com/evaonline/eto-engine/internal/metrics"
	"github.com/evaonline/eto-engine/internal/models"
	"github.com/evaonline/eto-engine/internal/normals"
	"github.com/evaonline/eto-engine/internal/preprocess"
	"github.com/evaonline/eto-engine/internal/sources"
)

// Config is built once by the caller and passed in; the pipeline holds no
// global state.
type Config struct {
	PerSourceTimeout   time.Duration
	MaxParallelFetch   int
	MaxPriorDistanceKm float64
}

// Request identifies one fusion run.
type Request struct {
	Latitude  float64
	Longitude float64
	Elevation float64
	Start     time.Time
	End       time.Time
}

// Result is the structured outcome of a run. Per-source and per-day
// problems are absorbed into Warnings; only total data absence or
// cancellation surfaces as an error from Run.
type Result struct {
	Fused    []models.FusedRecord
	Records  []models.EToRecord
	Prior    *models.ClimatologicalPrior
	Warnings []string
}

type Pipeline struct {
	adapters []sources.Adapter
	loader   *normals.Loader // nil disables the climatological prior
	engine   *fusion.Engine
	calc     *eto.Calculator
	cfg      Config
}

// New wires the pipeline stages. loader may be nil when no normals
// database is available.
func New(adapters []sources.Adapter, loader *normals.Loader, engine *fusion.Engine, calc *eto.Calculator, cfg Config) *Pipeline {
	return &Pipeline{
		adapters: adapters,
		loader:   loader,
		engine:   engine,
		calc:     calc,
		cfg:      cfg,
	}
}

func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Latitude < -90 || req.Latitude > 90 {
		return nil, fmt.Errorf("invalid latitude: %.4f", req.Latitude)
	}
	if req.Longitude < -180 || req.Longitude > 180 {
		return nil, fmt.Errorf("invalid longitude: %.4f", req.Longitude)
	}
	if req.End.Before(req.Start) {
		return nil, fmt.Errorf("end date %s before start date %s",
			req.End.Format("2006-01-02"), req.Start.Format("2006-01-02"))
	}

	res := &Result{}

	raw, warnings := sources.FetchAll(ctx, p.adapters, req.Latitude, req.Longitude, req.Start, req.End, sources.FetchOptions{
		PerSourceTimeout: p.cfg.PerSourceTimeout,
		MaxParallel:      p.cfg.MaxParallelFetch,
	})
	res.Warnings = append(res.Warnings, warnings...)
	if len(raw) == 0 {
		return nil, fusion.ErrInsufficientData
	}

	cleaned := p.preprocessAll(raw, req.Latitude, req.Longitude, res)
	if len(cleaned) == 0 {
		return nil, fusion.ErrInsufficientData
	}

	prior := p.lookupPrior(req.Latitude, req.Longitude, res)

	fused, fuseWarnings, err := p.engine.Fuse(ctx, cleaned, prior)
	res.Warnings = append(res.Warnings, fuseWarnings...)
	if err != nil {
		return nil, err
	}
	res.Fused = fused

	res.Records = p.calc.CalculateSeries(fused, req.Latitude, req.Longitude, req.Elevation)
	return res, nil
}

// preprocessAll cleans every source concurrently; a source whose series is
// structurally unusable is dropped with a warning.
func (p *Pipeline) preprocessAll(raw []models.SourceSeries, latitude, longitude float64, res *Result) []models.SourceSeries {
	region := preprocess.DetectRegion(latitude, longitude)

	type outcome struct {
		series   models.SourceSeries
		warnings []string
		err      error
	}
	outcomes := make([]outcome, len(raw))

	var wg sync.WaitGroup
	for i := range raw {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			series, warns, err := preprocess.Clean(raw[i], region)
			outcomes[i] = outcome{series: series, warnings: warns, err: err}
		}()
	}
	wg.Wait()

	var cleaned []models.SourceSeries
	for i, o := range outcomes {
		if o.err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s dropped: %v", raw[i].SourceID, o.err))
			log.Printf("pipeline: preprocess %s: %v", raw[i].SourceID, o.err)
			continue
		}
		for _, w := range o.warnings {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %s", o.series.SourceID, w))
		}
		if len(o.warnings) > 0 {
			metrics.PreprocessCorrections.WithLabelValues(o.series.SourceID).Add(float64(len(o.warnings)))
		}
		cleaned = append(cleaned, o.series)
	}
	return cleaned
}

func (p *Pipeline) lookupPrior(latitude, longitude float64, res *Result) *models.ClimatologicalPrior {
	if p.loader == nil {
		return nil
	}
	found, prior, err := p.loader.Lookup(latitude, longitude, p.cfg.MaxPriorDistanceKm)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("climatological prior lookup failed: %v", err))
		return nil
	}
	if !found {
		res.Warnings = append(res.Warnings, "no climatological reference within range, seeding from first observations")
		return nil
	}
	res.Prior = prior
	log.Printf("pipeline: climatological reference %s (%.0f km)", prior.City, prior.DistanceKm)
	return prior
}
