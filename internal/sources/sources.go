// Package sources holds the climate data source adapters and the bounded
// parallel fetch coordinator. Adapters return parsed per-day records; all
// cleaning belongs to the preprocessor.
package sources

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/evaonline/eto-engine/internal/metrics"
	"github.com/evaonline/eto-engine/internal/models"
)

// Adapter fetches one source's raw daily records for a location and period.
type Adapter interface {
	Name() string
	FetchDaily(ctx context.Context, lat, lon float64, start, end time.Time) ([]models.DailyRecord, error)
}

// FetchOptions bounds the parallel fetch.
type FetchOptions struct {
	PerSourceTimeout time.Duration
	MaxParallel      int
}

func (o FetchOptions) withDefaults() FetchOptions {
	if o.PerSourceTimeout <= 0 {
		o.PerSourceTimeout = 60 * time.Second
	}
	if o.MaxParallel <= 0 {
		o.MaxParallel = 4
	}
	return o
}

// FetchAll runs every adapter concurrently with a per-source timeout. A
// source that fails or times out contributes no series and one warning; it
// never aborts the run. Retry policy, if any, lives inside the adapter.
func FetchAll(ctx context.Context, adapters []Adapter, lat, lon float64, start, end time.Time, opts FetchOptions) ([]models.SourceSeries, []string) {
	opts = opts.withDefaults()

	series := make([]models.SourceSeries, len(adapters))
	errs := make([]error, len(adapters))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.MaxParallel)
	for i, adapter := range adapters {
		i, adapter := i, adapter
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gctx, opts.PerSourceTimeout)
			defer cancel()

			began := time.Now()
			records, err := adapter.FetchDaily(fetchCtx, lat, lon, start, end)
			metrics.SourceFetchLatency.WithLabelValues(adapter.Name()).Observe(time.Since(began).Seconds())

			if err != nil {
				metrics.SourceFetchTotal.WithLabelValues(adapter.Name(), "error").Inc()
				errs[i] = err
				return nil
			}
			metrics.SourceFetchTotal.WithLabelValues(adapter.Name(), "ok").Inc()
			series[i] = models.SourceSeries{SourceID: adapter.Name(), Records: records}
			return nil
		})
	}
	g.Wait()

	var (
		out      []models.SourceSeries
		warnings []string
	)
	for i, adapter := range adapters {
		if errs[i] != nil {
			warnings = append(warnings, fmt.Sprintf("%s unavailable: %v", adapter.Name(), errs[i]))
			log.Printf("sources: %s: %v", adapter.Name(), errs[i])
			continue
		}
		if len(series[i].Records) == 0 {
			warnings = append(warnings, fmt.Sprintf("%s returned no data", adapter.Name()))
			continue
		}
		out = append(out, series[i])
	}
	return out, warnings
}

func sortRecords(records []models.DailyRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
}
