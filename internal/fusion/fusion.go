// Package fusion merges N preprocessed daily source series into one
// uncertainty-quantified series using a per-variable scalar Kalman filter.
//
// The state model is a random walk: the true daily value persists with a
// small process perturbation. Each source observation is folded in as an
// independent noisy measurement via inverse-variance weighting. Per-source
// observation noise starts from a fixed prior and is refined online by an
// exponentially weighted residual variance, so a source that starts
// disagreeing loses weight without any offline calibration.
package fusion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/evaonline/eto-engine/internal/metrics"
	"github.com/evaonline/eto-engine/internal/models"
)

// ErrInsufficientData is returned when zero sources produced any usable
// observation across the whole requested period.
var ErrInsufficientData = errors.New("no source produced usable data for the period")

// Config carries the estimator tuning. Construct once and pass in; there is
// no package-level state.
type Config struct {
	// ProcessNoise is the daily variance increment per variable (how much
	// the true value is allowed to drift between days).
	ProcessNoise map[models.Variable]float64
	// InitialVariance seeds the state when no climatological prior exists.
	InitialVariance float64
	// PriorVariance seeds the state from a monthly normal.
	PriorVariance float64
	// SourceVariance is the prior observation noise for every source.
	SourceVariance float64
	// ResidualAlpha is the weight of the newest squared residual in the
	// running per-source noise estimate.
	ResidualAlpha float64
	// MinVariance floors every variance to keep the filter numerically sane.
	MinVariance float64
}

// DefaultConfig returns tuning that tracks daily weather closely while
// still damping single-source spikes.
func DefaultConfig() Config {
	return Config{
		ProcessNoise: map[models.Variable]float64{
			models.VarTempMax:        2.0,
			models.VarTempMin:        2.0,
			models.VarTempMean:       1.5,
			models.VarHumidity:       25.0,
			models.VarWindSpeed:      1.0,
			models.VarSolarRadiation: 9.0,
			models.VarPrecipitation:  50.0,
		},
		InitialVariance: 100.0,
		PriorVariance:   9.0,
		SourceVariance:  1.0,
		ResidualAlpha:   0.1,
		MinVariance:     0.05,
	}
}

// Engine fuses preprocessed source series. Safe for concurrent use across
// independent Fuse calls; each call carries its own state.
type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	if cfg.ProcessNoise == nil {
		cfg = DefaultConfig()
	}
	return &Engine{cfg: cfg}
}

// varState is the filter state of one variable.
type varState struct {
	x        float64
	p        float64
	seeded   bool
	lastDate time.Time
}

type observation struct {
	source int
	value  float64
}

// Fuse merges the sources into one chronological fused series. The fused
// date index is the union of all source dates; a date with zero valid
// observations across all sources emits no record. Per-date estimator
// failures fall back to the plain mean of that day's observations and are
// reported as warnings, never as errors. If the context is cancelled the
// current date is finished but no further date is started.
func (e *Engine) Fuse(ctx context.Context, sources []models.SourceSeries, prior *models.ClimatologicalPrior) ([]models.FusedRecord, []string, error) {
	dates := unionDates(sources)
	if len(dates) == 0 {
		return nil, nil, ErrInsufficientData
	}

	// byDate[i] maps a source index to its record for dates[i].
	byDate := indexSources(sources, dates)

	states := make(map[models.Variable]*varState, len(models.Variables()))
	noise := make([]map[models.Variable]float64, len(sources))
	for i := range sources {
		noise[i] = make(map[models.Variable]float64)
	}

	var (
		records  []models.FusedRecord
		warnings []string
		anyObs   bool
	)

	for di, date := range dates {
		if err := ctx.Err(); err != nil {
			return records, warnings, err
		}

		rec := models.FusedRecord{Date: date}
		hasValue := false

		for _, v := range models.Variables() {
			obs := collectObservations(byDate[di], len(sources), v)
			if len(obs) == 0 {
				continue
			}
			anyObs = true

			fv, warn := e.fuseVariable(states, noise, v, date, prior, obs)
			if warn != "" {
				warnings = append(warnings, warn)
			}
			if fv.Valid {
				rec.SetValue(v, fv)
				hasValue = true
			}
		}

		if !hasValue {
			continue
		}
		fillTempMean(&rec)
		records = append(records, rec)
	}

	if !anyObs {
		return nil, warnings, ErrInsufficientData
	}
	return records, warnings, nil
}

// fuseVariable runs one predict/update cycle for a single variable and date.
func (e *Engine) fuseVariable(states map[models.Variable]*varState, noise []map[models.Variable]float64, v models.Variable, date time.Time, prior *models.ClimatologicalPrior, obs []observation) (models.FusedValue, string) {
	st := states[v]
	if st == nil {
		st = &varState{}
		states[v] = st
	}

	if !st.seeded {
		if normal, ok := prior.Normal(v, date.Month()); ok {
			st.x = normal
			st.p = e.cfg.PriorVariance
		} else {
			st.x = obs[0].value
			st.p = e.cfg.InitialVariance
		}
		st.seeded = true
	} else {
		// Widen uncertainty once per elapsed day so a gap in the record
		// leaves the filter appropriately unsure on re-entry.
		gapDays := int(date.Sub(st.lastDate).Hours() / 24)
		if gapDays < 1 {
			gapDays = 1
		}
		st.p += e.cfg.ProcessNoise[v] * float64(gapDays)
	}

	// Adapt each source's noise against the prediction before any update so
	// the per-date result is independent of fold-in order.
	xPred := st.x
	for _, o := range obs {
		r, ok := noise[o.source][v]
		if !ok {
			r = e.cfg.SourceVariance
		}
		residual := o.value - xPred
		r = (1-e.cfg.ResidualAlpha)*r + e.cfg.ResidualAlpha*residual*residual
		if r < e.cfg.MinVariance {
			r = e.cfg.MinVariance
		}
		noise[o.source][v] = r
	}

	for _, o := range obs {
		r := noise[o.source][v]
		gain := st.p / (st.p + r)
		st.x += gain * (o.value - st.x)
		st.p *= 1 - gain
	}
	if st.p < e.cfg.MinVariance {
		st.p = e.cfg.MinVariance
	}

	if !isFinite(st.x) || !isFinite(st.p) || st.p <= 0 {
		mean := meanOf(obs)
		st.x = mean
		st.p = e.cfg.InitialVariance
		st.lastDate = date
		metrics.FusionFallbacks.WithLabelValues(string(v)).Inc()
		warn := fmt.Sprintf("%s %s: estimator reset, using source mean", date.Format("2006-01-02"), v)
		return models.FusedValue{Value: mean, Variance: e.cfg.InitialVariance, Valid: true, Filled: true}, warn
	}

	st.lastDate = date
	return models.FusedValue{Value: st.x, Variance: st.p, Valid: true}, ""
}

// fillTempMean derives T2M from fused max/min when no source estimated it.
func fillTempMean(rec *models.FusedRecord) {
	if rec.TempMean.Valid || !rec.TempMax.Valid || !rec.TempMin.Valid {
		return
	}
	rec.TempMean = models.FusedValue{
		Value:    (rec.TempMax.Value + rec.TempMin.Value) / 2,
		Variance: (rec.TempMax.Variance + rec.TempMin.Variance) / 4,
		Valid:    true,
		Filled:   true,
	}
}

func unionDates(sources []models.SourceSeries) []time.Time {
	seen := make(map[time.Time]bool)
	var dates []time.Time
	for _, src := range sources {
		for _, rec := range src.Records {
			day := rec.Date.Truncate(24 * time.Hour)
			if !seen[day] {
				seen[day] = true
				dates = append(dates, day)
			}
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

func indexSources(sources []models.SourceSeries, dates []time.Time) []map[int]*models.DailyRecord {
	pos := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		pos[d] = i
	}
	byDate := make([]map[int]*models.DailyRecord, len(dates))
	for i := range byDate {
		byDate[i] = make(map[int]*models.DailyRecord)
	}
	for si := range sources {
		for ri := range sources[si].Records {
			rec := &sources[si].Records[ri]
			if i, ok := pos[rec.Date.Truncate(24*time.Hour)]; ok {
				byDate[i][si] = rec
			}
		}
	}
	return byDate
}

func collectObservations(day map[int]*models.DailyRecord, nSources int, v models.Variable) []observation {
	var obs []observation
	for si := 0; si < nSources; si++ {
		rec, ok := day[si]
		if !ok {
			continue
		}
		if val := rec.Value(v); val.Valid {
			obs = append(obs, observation{source: si, value: val.Float64})
		}
	}
	return obs
}

func meanOf(obs []observation) float64 {
	var sum float64
	for _, o := range obs {
		sum += o.value
	}
	return sum / float64(len(obs))
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
