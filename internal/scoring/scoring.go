// Package scoring compares a computed ETo series against an independent
// reference series and reports the accuracy statistics used in hydrology.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DefaultMinOverlap is the smallest inner join considered meaningful.
const DefaultMinOverlap = 30

// Point is one dated value of a series.
type Point struct {
	Date  time.Time
	Value float64
}

// Stats holds the comparison result. When Valid is false the overlap was too
// small and Reason explains why; no statistic is populated.
type Stats struct {
	Valid  bool
	Reason string

	Days int
	MAE  float64
	RMSE float64
	Bias float64 // mean(computed) - mean(reference)
	R2   float64
	KGE  float64 // Kling–Gupta efficiency
	NSE  float64 // Nash–Sutcliffe efficiency
	PBias float64 // percent bias
}

// Compare inner-joins the two series on calendar day and computes the
// statistics. minOverlap <= 0 selects DefaultMinOverlap. Pure function:
// too little overlap yields Stats{Valid: false}, never an error.
func Compare(computed, reference []Point, minOverlap int) Stats {
	if minOverlap <= 0 {
		minOverlap = DefaultMinOverlap
	}

	refByDay := make(map[time.Time]float64, len(reference))
	for _, p := range reference {
		refByDay[day(p.Date)] = p.Value
	}

	var c, r []float64
	seen := make(map[time.Time]bool)
	sorted := append([]Point(nil), computed...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	for _, p := range sorted {
		d := day(p.Date)
		if seen[d] {
			continue
		}
		if ref, ok := refByDay[d]; ok {
			seen[d] = true
			c = append(c, p.Value)
			r = append(r, ref)
		}
	}

	n := len(c)
	if n < minOverlap {
		return Stats{
			Valid:  false,
			Reason: fmt.Sprintf("only %d overlapping day(s), need at least %d", n, minOverlap),
		}
	}

	cMean := mean(c)
	rMean := mean(r)

	var sumAbs, sumSq, sumRefDev, sumC, sumR float64
	for i := 0; i < n; i++ {
		diff := c[i] - r[i]
		sumAbs += math.Abs(diff)
		sumSq += diff * diff
		refDev := r[i] - rMean
		sumRefDev += refDev * refDev
		sumC += c[i]
		sumR += r[i]
	}

	corr := pearson(c, r, cMean, rMean)

	st := Stats{
		Valid: true,
		Days:  n,
		MAE:   sumAbs / float64(n),
		RMSE:  math.Sqrt(sumSq / float64(n)),
		Bias:  cMean - rMean,
		R2:    corr * corr,
	}

	alpha := stddev(c, cMean) / stddev(r, rMean)
	beta := cMean / rMean
	st.KGE = 1 - math.Sqrt((corr-1)*(corr-1)+(alpha-1)*(alpha-1)+(beta-1)*(beta-1))

	if sumRefDev > 0 {
		st.NSE = 1 - sumSq/sumRefDev
	}
	if sumR != 0 {
		st.PBias = 100 * (sumC - sumR) / sumR
	}

	return st
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64, m float64) float64 {
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

func pearson(a, b []float64, aMean, bMean float64) float64 {
	var num, aDev, bDev float64
	for i := range a {
		da := a[i] - aMean
		db := b[i] - bMean
		num += da * db
		aDev += da * da
		bDev += db * db
	}
	if aDev == 0 || bDev == 0 {
		return 0
	}
	return num / math.Sqrt(aDev*bDev)
}
